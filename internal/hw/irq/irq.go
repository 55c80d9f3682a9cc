// Package irq holds the cells shared between interrupt handlers and the
// main control loop.
//
// Every cell has exactly one writer on the handler side and one reader on the
// main loop side (the run flag additionally gets cleared by the main loop).
// Access goes through sync/atomic so the reader never works on a stale copy
// across a polling loop. Handlers never block, so there are no mutexes here.
package irq

import (
	"errors"
	"runtime"
	"sync/atomic"
	"time"
)

// ErrTimeout is returned by WaitFor when the condition did not become true in time.
var ErrTimeout = errors.New("irq: wait timed out")

// Flag is a boolean cell.
type Flag struct {
	v atomic.Bool
}

// Set raises the flag.
func (f *Flag) Set() { f.v.Store(true) }

// Clear lowers the flag.
func (f *Flag) Clear() { f.v.Store(false) }

// Load returns the current value.
func (f *Flag) Load() bool { return f.v.Load() }

// Toggle flips the flag and returns the new value.
func (f *Flag) Toggle() bool {
	for {
		old := f.v.Load()
		if f.v.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Word is a 16-bit value cell, wide enough for a 10-bit conversion result.
type Word struct {
	v atomic.Uint32
}

// Store overwrites the value.
func (w *Word) Store(v uint16) { w.v.Store(uint32(v)) }

// Load returns the last stored value.
func (w *Word) Load() uint16 { return uint16(w.v.Load()) }

// deadlineEvery is how many spins pass between two clock reads.
const deadlineEvery = 64

// WaitFor spins until cond returns true. A positive timeout bounds the wait
// and turns a handler that never signals into ErrTimeout; timeout <= 0 spins
// forever.
func WaitFor(cond func() bool, timeout time.Duration) error {
	if cond() {
		return nil
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for i := 1; ; i++ {
		if cond() {
			return nil
		}
		if timeout > 0 && i%deadlineEvery == 0 && time.Now().After(deadline) {
			if cond() {
				return nil
			}
			return ErrTimeout
		}
		runtime.Gosched()
	}
}
