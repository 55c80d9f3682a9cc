package scan

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/cjeanneret/RasterGo/internal/hw/hbridge"
	"github.com/cjeanneret/RasterGo/internal/hw/irq"
	"github.com/cjeanneret/RasterGo/internal/logic/geometry"
	"github.com/cjeanneret/RasterGo/internal/logic/motion"
)

// State of the scan machine.
type State int

const (
	Idle State = iota
	Homing
	Scanning
	Aborting
	Fault
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Homing:
		return "homing"
	case Scanning:
		return "scanning"
	case Aborting:
		return "aborting"
	case Fault:
		return "fault"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrAcquisitionTimeout means a conversion never signalled completion.
	ErrAcquisitionTimeout = fmt.Errorf("acquisition timeout: %w", irq.ErrTimeout)
	// ErrStepTimeout means the tick source never signalled the end of a step.
	ErrStepTimeout = fmt.Errorf("step timeout: %w", irq.ErrTimeout)
	// ErrConversionRefused means the sensor would not start a conversion,
	// usually because it is disabled.
	ErrConversionRefused = errors.New("sensor refused conversion")
)

// Mover moves the two axes one pulse at a time.
type Mover interface {
	StepAndWait(axis motion.Axis, dir hbridge.Direction) error
	Dwell() error
	StopAll() error
}

// Sampler is the distance sensor input. StartConversion reports whether a
// conversion was started.
type Sampler interface {
	StartConversion() bool
	IsBusy() bool
	Latest() uint16
	Err() error
}

// RunFlag is the start/abort signal.
type RunFlag interface {
	Running() bool
	Clear()
}

// Reporter receives the scan tokens.
type Reporter interface {
	Row(row int)
	Sample(v uint16)
	HomeRow(row int)
	HomeColumn(column int)
	Fault(err error)
}

// Settings configures a scan.
type Settings struct {
	Rows              int
	Columns           int
	ResolutionPercent int
	SamplesPerCell    int
	// ResetColumns restarts the column counter at every new row. When false
	// the counter keeps its value and every row after the first one is empty.
	ResetColumns bool
	// DwellAfterStep keeps the motor off for one extra tick after each pulse.
	DwellAfterStep bool
	// AcquireTimeout bounds the wait for one conversion; zero waits forever.
	AcquireTimeout time.Duration
}

// EffectiveColumns is the number of columns visited per row.
func (s Settings) EffectiveColumns() int {
	return geometry.EffectiveColumns(s.Columns, s.ResolutionPercent)
}

// Snapshot is a copy of the machine state safe to read from any goroutine.
type Snapshot struct {
	State            string `json:"state"`
	Row              int    `json:"row"`
	Column           int    `json:"column"`
	Rows             int    `json:"rows"`
	EffectiveColumns int    `json:"effective_columns"`
	Resolution       int    `json:"resolution_percent"`
}

// Orchestrator sequences homing and raster scanning. Step performs exactly
// one unit of work (one motor pulse, one sampled cell or one transition) and
// checks the run flag before each, so an abort lands within one step.
type Orchestrator struct {
	settings   Settings
	resolution atomic.Int32
	onLatch    func(Settings)

	motion  Mover
	sampler Sampler
	run     RunFlag
	out     Reporter

	state   State
	active  Settings
	effCols int
	row     int
	column  int
	samples []uint16
	fault   error
	notBusy func() bool

	pub struct {
		state, row, column, rows, cols atomic.Int32
	}
}

// New creates an idle orchestrator at position (0, 0).
func New(settings Settings, m Mover, s Sampler, run RunFlag, out Reporter) *Orchestrator {
	if settings.SamplesPerCell <= 0 {
		settings.SamplesPerCell = 9
	}
	o := &Orchestrator{
		settings: settings,
		motion:   m,
		sampler:  s,
		run:      run,
		out:      out,
		active:   settings,
		samples:  make([]uint16, settings.SamplesPerCell),
	}
	o.notBusy = func() bool { return !o.sampler.IsBusy() }
	o.resolution.Store(int32(settings.ResolutionPercent))
	o.effCols = settings.EffectiveColumns()
	o.publish()
	return o
}

// OnLatch registers fn, called with the settings a scan starts with (used to
// retune the step timer when the resolution changed).
func (o *Orchestrator) OnLatch(fn func(Settings)) {
	o.onLatch = fn
}

// SetResolution changes the resolution used by the next scan.
func (o *Orchestrator) SetResolution(percent int) error {
	if percent < 1 || percent > 100 {
		return fmt.Errorf("resolution must be between 1 and 100, got %d", percent)
	}
	o.resolution.Store(int32(percent))
	return nil
}

// Resolution returns the resolution the next scan will use.
func (o *Orchestrator) Resolution() int {
	return int(o.resolution.Load())
}

// Settings returns the base settings with the current resolution.
func (o *Orchestrator) Settings() Settings {
	s := o.settings
	s.ResolutionPercent = o.Resolution()
	return s
}

// State returns the current state. Main loop only; use Snapshot elsewhere.
func (o *Orchestrator) State() State {
	return o.state
}

// Position returns the current (row, column).
func (o *Orchestrator) Position() (int, int) {
	return o.row, o.column
}

// SetPosition overrides the position counters, e.g. after the carriage was
// moved by hand. Only allowed while idle.
func (o *Orchestrator) SetPosition(row, column int) error {
	if o.state != Idle {
		return fmt.Errorf("cannot set position while %s", o.state)
	}
	if row < 0 || column < 0 {
		return fmt.Errorf("position must not be negative, got (%d, %d)", row, column)
	}
	o.row, o.column = row, column
	o.publish()
	return nil
}

// Snapshot returns the last published state.
func (o *Orchestrator) Snapshot() Snapshot {
	return Snapshot{
		State:            State(o.pub.state.Load()).String(),
		Row:              int(o.pub.row.Load()),
		Column:           int(o.pub.column.Load()),
		Rows:             int(o.pub.rows.Load()),
		EffectiveColumns: int(o.pub.cols.Load()),
		Resolution:       o.Resolution(),
	}
}

// Run drives the machine from Idle through a complete or aborted scan and
// back to Idle. It returns nil when nothing was requested, when the scan
// completed and when it was aborted; it returns the fault otherwise.
// Cancelling ctx stops the motors and returns ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.state == Idle && !o.run.Running() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			stopErr := o.motion.StopAll()
			o.transition(Idle)
			return errors.Join(ctx.Err(), stopErr)
		default:
		}

		err := o.Step()
		if o.state == Idle {
			return err
		}
		if err != nil {
			return err
		}
	}
}

// Step performs one unit of work for the current state.
func (o *Orchestrator) Step() error {
	switch o.state {
	case Idle:
		if o.run.Running() {
			o.latch()
			o.transition(Homing)
		}
		return nil
	case Homing:
		return o.stepHoming()
	case Scanning:
		return o.stepScanning()
	case Aborting:
		err := o.motion.StopAll()
		o.run.Clear()
		debug.Info("Scan aborted at row %d, column %d", o.row, o.column)
		o.transition(Idle)
		return err
	case Fault:
		err := o.fault
		o.fault = nil
		if stopErr := o.motion.StopAll(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		o.out.Fault(err)
		debug.Fault(err)
		o.run.Clear()
		o.transition(Idle)
		return err
	default:
		return fmt.Errorf("unknown state: %d", int(o.state))
	}
}

func (o *Orchestrator) latch() {
	o.active = o.Settings()
	o.effCols = o.active.EffectiveColumns()
	if o.onLatch != nil {
		o.onLatch(o.active)
	}
	debug.Summary("Scan started")
	debug.Grid(o.active.Rows, o.active.Columns, o.effCols, o.active.ResolutionPercent)
	o.publish()
}

// stepHoming retracts one row (axis 1) or one column (axis 2) per call.
func (o *Orchestrator) stepHoming() error {
	if !o.run.Running() {
		o.transition(Aborting)
		return nil
	}
	switch {
	case o.row > 0:
		if err := o.move(motion.Axis1, hbridge.Reverse); err != nil {
			return o.fail(err)
		}
		o.out.HomeRow(o.row)
		o.row--
	case o.column > 0:
		if err := o.move(motion.Axis2, hbridge.Reverse); err != nil {
			return o.fail(err)
		}
		o.out.HomeColumn(o.column)
		o.column--
	default:
		o.transition(Scanning)
		return nil
	}
	o.publish()
	return nil
}

// stepScanning samples one cell and advances axis 1, or, at the end of a
// row, advances axis 2.
func (o *Orchestrator) stepScanning() error {
	if !o.run.Running() {
		o.transition(Aborting)
		return nil
	}
	if o.row >= o.active.Rows {
		o.run.Clear()
		if err := o.motion.StopAll(); err != nil {
			return o.fail(err)
		}
		debug.Summary("Scan complete")
		o.transition(Idle)
		return nil
	}

	if o.column < o.effCols {
		if err := o.acquireCell(); err != nil {
			return o.fail(err)
		}
		o.out.Row(o.row)
		for _, v := range o.samples {
			o.out.Sample(v)
		}
		debug.Cell(o.row, o.column)
		if err := o.move(motion.Axis1, hbridge.Forward); err != nil {
			return o.fail(err)
		}
		o.column++
		o.publish()
		return nil
	}

	if err := o.move(motion.Axis2, hbridge.Forward); err != nil {
		return o.fail(err)
	}
	o.row++
	if o.active.ResetColumns {
		o.column = 0
	}
	o.publish()
	return nil
}

func (o *Orchestrator) acquireCell() error {
	for i := range o.samples {
		if !o.sampler.StartConversion() {
			return fmt.Errorf("%w (row %d, column %d, sample %d)", ErrConversionRefused, o.row, o.column, i)
		}
		if err := irq.WaitFor(o.notBusy, o.active.AcquireTimeout); err != nil {
			return fmt.Errorf("%w (row %d, column %d, sample %d)", ErrAcquisitionTimeout, o.row, o.column, i)
		}
		if err := o.sampler.Err(); err != nil {
			return fmt.Errorf("acquisition failed (row %d, column %d, sample %d): %w", o.row, o.column, i, err)
		}
		o.samples[i] = o.sampler.Latest()
	}
	return nil
}

func (o *Orchestrator) move(axis motion.Axis, dir hbridge.Direction) error {
	if err := o.motion.StepAndWait(axis, dir); err != nil {
		return stepError(err)
	}
	if o.active.DwellAfterStep {
		if err := o.motion.Dwell(); err != nil {
			return stepError(err)
		}
	}
	return nil
}

func stepError(err error) error {
	if errors.Is(err, irq.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrStepTimeout, err)
	}
	return err
}

func (o *Orchestrator) fail(err error) error {
	o.fault = err
	o.transition(Fault)
	return nil
}

func (o *Orchestrator) transition(to State) {
	if o.state == to {
		return
	}
	debug.Transition(o.state, to)
	o.state = to
	o.publish()
}

func (o *Orchestrator) publish() {
	o.pub.state.Store(int32(o.state))
	o.pub.row.Store(int32(o.row))
	o.pub.column.Store(int32(o.column))
	o.pub.rows.Store(int32(o.active.Rows))
	o.pub.cols.Store(int32(o.effCols))
}
