// Package console runs the main control loop: read the menu knob, show the
// selection, run the selected action when the run button is on.
package console

import (
	"context"
	"time"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/cjeanneret/RasterGo/internal/hw/display"
	"github.com/cjeanneret/RasterGo/internal/logic/menu"
)

// Knob is the analog menu input.
type Knob interface {
	StartConversion() bool
	Latest() uint16
}

// Scanner runs one scan when the run flag is set.
type Scanner interface {
	Run(ctx context.Context) error
	Resolution() int
}

// Sensor is the scan acquisition hardware. It stays disabled at the menu and
// is enabled for a scan or while sleeping.
type Sensor interface {
	Enable()
	Disable()
}

// RunFlag is the run button state.
type RunFlag interface {
	Running() bool
}

// Loop is the main control loop. All its methods run on one goroutine.
type Loop struct {
	display display.Display
	knob    Knob
	sensor  Sensor
	scanner Scanner
	run     RunFlag
	poll    time.Duration

	shown      menu.Selection
	needsFrame bool
	iterations int
}

// New creates a loop pausing poll between two iterations.
func New(d display.Display, knob Knob, sensor Sensor, scanner Scanner, run RunFlag, poll time.Duration) *Loop {
	return &Loop{
		display:    d,
		knob:       knob,
		sensor:     sensor,
		scanner:    scanner,
		run:        run,
		poll:       poll,
		needsFrame: true,
	}
}

// Run iterates until ctx is cancelled and returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	debug.Info("Main loop started")
	l.knob.StartConversion()
	for {
		if err := l.Iterate(ctx); err != nil {
			return err
		}
		if err := pause(ctx, l.poll); err != nil {
			return err
		}
	}
}

// Iterate performs one pass: select, render, dispatch, then start the next
// knob conversion. It only returns an error when ctx is done; action and
// display failures are logged.
func (l *Loop) Iterate(ctx context.Context) error {
	l.iterations++
	sel := menu.Select(l.knob.Latest())
	l.render(sel)

	switch sel {
	case menu.ScanAction:
		if l.run.Running() {
			l.sensor.Enable()
			err := l.scanner.Run(ctx)
			l.sensor.Disable()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				debug.Error(err)
			}
		}
	case menu.ResolutionAction:
		if l.run.Running() {
			if err := l.holdResolution(ctx); err != nil {
				return err
			}
		}
	case menu.SleepAction:
		if l.run.Running() {
			if err := l.sleep(ctx); err != nil {
				return err
			}
		}
	}

	l.knob.StartConversion()
	return ctx.Err()
}

// Iterations returns how many iterations ran.
func (l *Loop) Iterations() int {
	return l.iterations
}

// render redraws the menu when the selection changed or the screen was
// taken over by an action.
func (l *Loop) render(sel menu.Selection) {
	if l.needsFrame {
		if err := menu.RenderFrame(l.display); err != nil {
			debug.Error(err)
			return
		}
		l.needsFrame = false
		l.shown = menu.ScanAction
	}
	if sel == l.shown {
		return
	}
	if err := menu.Render(l.display, sel); err != nil {
		debug.Error(err)
		return
	}
	debug.Live("Menu: %s", sel)
	l.shown = sel
}

// holdResolution shows the resolution readout until the run flag drops.
func (l *Loop) holdResolution(ctx context.Context) error {
	l.needsFrame = true
	shown := -1
	for l.run.Running() {
		if pct := l.scanner.Resolution(); pct != shown {
			if err := menu.RenderResolution(l.display, pct); err != nil {
				debug.Error(err)
			}
			shown = pct
		}
		if err := pause(ctx, l.poll); err != nil {
			return err
		}
	}
	return nil
}

// sleep keeps the sensor powered until the run flag drops.
func (l *Loop) sleep(ctx context.Context) error {
	l.needsFrame = true
	if err := menu.RenderSleep(l.display); err != nil {
		debug.Error(err)
	}
	debug.Info("Sleeping")
	defer l.sensor.Disable()
	for l.run.Running() {
		l.sensor.Enable()
		if err := pause(ctx, l.poll); err != nil {
			return err
		}
	}
	debug.Info("Awake")
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
