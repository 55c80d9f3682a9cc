package gpio

import (
	"sync"

	"github.com/cjeanneret/RasterGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// WatchRisingEdge configures pin as an input latching rising edges.
	WatchRisingEdge(pin int) error
	// EdgeDetected reports (and acknowledges) a latched edge on pin.
	EdgeDetected(pin int) (bool, error)
	Close() error
}

// MockDriver is a development implementation that logs actions and keeps
// the last written level of every pin. Edges are injected with TriggerEdge.
type MockDriver struct {
	mu      sync.Mutex
	levels  map[int]Level
	pending map[int]int
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

// NewMockDriver returns an empty mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		levels:  make(map[int]Level),
		pending: make(map[int]int),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	m.levels[pin] = level
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) WatchRisingEdge(pin int) error {
	debug.GPIO("WatchRisingEdge", pin, nil)
	return nil
}

func (m *MockDriver) EdgeDetected(pin int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending[pin] == 0 {
		return false, nil
	}
	m.pending[pin]--
	debug.GPIO("EdgeDetected", pin, true)
	return true, nil
}

// TriggerEdge latches one rising edge on pin, as a button press would.
func (m *MockDriver) TriggerEdge(pin int) {
	m.mu.Lock()
	m.pending[pin]++
	m.mu.Unlock()
}

// Level returns the last level written to pin.
func (m *MockDriver) Level(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
