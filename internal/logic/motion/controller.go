package motion

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/cjeanneret/RasterGo/internal/hw/hbridge"
	"github.com/cjeanneret/RasterGo/internal/hw/irq"
)

// Axis selects one of the two motors.
type Axis int

const (
	Axis1 Axis = 1
	Axis2 Axis = 2
)

// TickSource is the timer that measures step durations.
type TickSource interface {
	ResetAndArm() error
	Fired() bool
	Clear()
}

// Controller drives both axes in fixed-duration pulses.
// It's an intermediate layer between the scan state machine and the
// H-bridges; every physical movement goes through StepAndWait.
type Controller struct {
	axes    [2]*hbridge.Bridge
	ticks   TickSource
	timeout time.Duration
}

// NewController wires both bridges to a tick source. timeout bounds the wait
// for a single tick; zero waits forever.
func NewController(axis1, axis2 *hbridge.Bridge, ticks TickSource, timeout time.Duration) *Controller {
	return &Controller{
		axes:    [2]*hbridge.Bridge{axis1, axis2},
		ticks:   ticks,
		timeout: timeout,
	}
}

func (c *Controller) bridge(axis Axis) (*hbridge.Bridge, error) {
	if axis != Axis1 && axis != Axis2 {
		return nil, fmt.Errorf("unknown axis: %d", int(axis))
	}
	return c.axes[axis-1], nil
}

// SetAxis applies a direction to one axis and leaves it there.
func (c *Controller) SetAxis(axis Axis, dir hbridge.Direction) error {
	b, err := c.bridge(axis)
	if err != nil {
		return err
	}
	return b.Set(dir)
}

// StepAndWait drives axis in dir for exactly one tick period, then stops it.
// The timer is re-armed after the direction is applied so the pulse is
// measured from that moment. The axis is stopped even if the wait fails.
func (c *Controller) StepAndWait(axis Axis, dir hbridge.Direction) error {
	b, err := c.bridge(axis)
	if err != nil {
		return err
	}
	if err := b.Set(dir); err != nil {
		return err
	}
	debug.Move(int(axis), dir.String())

	err = c.waitTick()
	if stopErr := b.Set(hbridge.Stop); err == nil {
		err = stopErr
	}
	if err != nil {
		return fmt.Errorf("axis %d step: %w", axis, err)
	}
	return nil
}

// Dwell waits one tick period with the motors untouched.
func (c *Controller) Dwell() error {
	return c.waitTick()
}

// StopAll stops both axes.
func (c *Controller) StopAll() error {
	return errors.Join(c.axes[0].Set(hbridge.Stop), c.axes[1].Set(hbridge.Stop))
}

// Direction returns the direction currently applied to axis.
func (c *Controller) Direction(axis Axis) hbridge.Direction {
	b, err := c.bridge(axis)
	if err != nil {
		return hbridge.Stop
	}
	return b.Direction()
}

func (c *Controller) waitTick() error {
	if err := c.ticks.ResetAndArm(); err != nil {
		return err
	}
	if err := irq.WaitFor(c.ticks.Fired, c.timeout); err != nil {
		return fmt.Errorf("wait for tick: %w", err)
	}
	c.ticks.Clear()
	return nil
}
