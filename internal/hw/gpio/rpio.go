package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
// The main loop writes motor pins while the run-button watcher polls its
// edge register, so the pin table is guarded.
type RPiDriver struct {
	mu      sync.Mutex
	pins    map[int]rpio.Pin
	watched map[int]struct{}
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:    make(map[int]rpio.Pin),
		watched: make(map[int]struct{}),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setup(pin, mode)
}

func (r *RPiDriver) setup(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}
	r.pins[pin] = p
	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.setup(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.setup(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

// WatchRisingEdge sets pin as a pulled-down input and enables the rising
// edge detect register for it.
func (r *RPiDriver) WatchRisingEdge(pin int) error {
	debug.GPIO("WatchRisingEdge", pin, nil)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.setup(pin, Input); err != nil {
		return err
	}
	p := r.pins[pin]
	p.PullDown()
	p.Detect(rpio.RiseEdge)
	r.watched[pin] = struct{}{}
	return nil
}

// EdgeDetected reads and clears the edge event status of pin.
func (r *RPiDriver) EdgeDetected(pin int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.watched[pin]; !ok {
		return false, fmt.Errorf("pin %d is not watched for edges", pin)
	}
	detected := r.pins[pin].EdgeDetected()
	if detected {
		debug.GPIO("EdgeDetected", pin, true)
	}
	return detected, nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	r.mu.Lock()
	defer r.mu.Unlock()

	for pin := range r.watched {
		r.pins[pin].Detect(rpio.NoEdge)
	}
	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
