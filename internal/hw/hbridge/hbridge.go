package hbridge

import (
	"fmt"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/cjeanneret/RasterGo/internal/hw/gpio"
)

// Direction is the command applied to one motor axis.
type Direction int

const (
	Forward Direction = iota
	Reverse
	Stop
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Config holds the two H-bridge input pins (BCM) driving one DC motor.
type Config struct {
	In1Pin int
	In2Pin int
}

// Bridge drives one DC motor through an H-bridge.
// Forward and Reverse drive complementary levels on the two inputs,
// Stop drives both low.
type Bridge struct {
	gpio gpio.Driver
	cfg  Config
	dir  Direction
}

// NewBridge sets both inputs as outputs and leaves the motor stopped.
func NewBridge(g gpio.Driver, cfg Config) (*Bridge, error) {
	if cfg.In1Pin == cfg.In2Pin {
		return nil, fmt.Errorf("h-bridge inputs must differ, both set to %d", cfg.In1Pin)
	}
	if err := g.SetupPin(cfg.In1Pin, gpio.Output); err != nil {
		return nil, err
	}
	if err := g.SetupPin(cfg.In2Pin, gpio.Output); err != nil {
		return nil, err
	}

	b := &Bridge{gpio: g, cfg: cfg, dir: Stop}
	if err := b.Set(Stop); err != nil {
		return nil, err
	}
	return b, nil
}

// Set applies a direction. The input going low is always written first so
// both inputs are never high at the same time.
func (b *Bridge) Set(dir Direction) error {
	var low, high int
	switch dir {
	case Forward:
		low, high = b.cfg.In1Pin, b.cfg.In2Pin
	case Reverse:
		low, high = b.cfg.In2Pin, b.cfg.In1Pin
	case Stop:
		if err := b.gpio.WritePin(b.cfg.In1Pin, gpio.Low); err != nil {
			return err
		}
		if err := b.gpio.WritePin(b.cfg.In2Pin, gpio.Low); err != nil {
			return err
		}
		b.dir = Stop
		return nil
	default:
		return fmt.Errorf("unknown direction: %d", int(dir))
	}

	if err := b.gpio.WritePin(low, gpio.Low); err != nil {
		return err
	}
	if err := b.gpio.WritePin(high, gpio.High); err != nil {
		return err
	}
	b.dir = dir
	debug.Trace("H-bridge in1=%d in2=%d: %s", b.cfg.In1Pin, b.cfg.In2Pin, dir)
	return nil
}

// Direction returns the last applied direction.
func (b *Bridge) Direction() Direction {
	return b.dir
}
