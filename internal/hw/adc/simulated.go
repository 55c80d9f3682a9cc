package adc

import (
	"sync"
	"time"
)

// Simulated is a converter for running without hardware. Each conversion
// returns fn(n) where n counts conversions from zero.
type Simulated struct {
	mu    sync.Mutex
	fn    func(n int) uint16
	n     int
	delay time.Duration
}

// NewSimulated creates a converter taking delay per conversion.
func NewSimulated(fn func(n int) uint16, delay time.Duration) *Simulated {
	return &Simulated{fn: fn, delay: delay}
}

// Constant always returns v.
func Constant(v uint16) func(int) uint16 {
	return func(int) uint16 { return v }
}

// Triangle sweeps 0..MaxValue and back with the given increment, which
// looks like a sloped surface passing in front of the sensor.
func Triangle(step int) func(int) uint16 {
	if step <= 0 {
		step = 1
	}
	span := 2 * MaxValue
	return func(n int) uint16 {
		p := (n * step) % span
		if p > MaxValue {
			p = span - p
		}
		return uint16(p)
	}
}

func (s *Simulated) Convert() (uint16, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.fn(s.n)
	s.n++
	return v, nil
}

// Conversions returns how many conversions were performed.
func (s *Simulated) Conversions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}
