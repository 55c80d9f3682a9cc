// Package tick provides the periodic timer used as the time base for motor
// steps. The timer handler runs in its own goroutine and does nothing but
// raise the tick event.
package tick

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/cjeanneret/RasterGo/internal/hw/irq"
)

// ErrNotRunning is returned by ResetAndArm when Run is not active.
var ErrNotRunning = errors.New("tick: source not running")

// maxCompare is the largest value the 16-bit compare register can hold.
const maxCompare = 0xFFFF

// Source fires a tick event every period.
type Source struct {
	event   irq.Flag     // written by the handler, cleared by the consumer
	period  atomic.Int64 // nanoseconds, read by the handler at each (re)arm
	count   atomic.Uint64
	running atomic.Bool

	rearm chan struct{}
	armed chan struct{}
	done  chan struct{}
}

// New creates a tick source. The period must be positive.
func New(period time.Duration) *Source {
	if period <= 0 {
		period = time.Millisecond
	}
	s := &Source{
		rearm: make(chan struct{}),
		armed: make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.period.Store(int64(period))
	return s
}

// Run is the timer handler. It blocks until ctx is cancelled and must be
// called at most once.
func (s *Source) Run(ctx context.Context) {
	t := time.NewTimer(s.Period())
	defer t.Stop()

	s.running.Store(true)
	defer close(s.done)
	defer s.running.Store(false)

	debug.Verbose("Tick source running (period %v)", s.Period())

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.event.Set()
			s.count.Add(1)
			t.Reset(s.Period())
		case <-s.rearm:
			// Counter restart and event clear happen here so that no tick
			// can be delivered between the two.
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			s.event.Clear()
			t.Reset(s.Period())
			s.armed <- struct{}{}
		}
	}
}

// ResetAndArm clears any pending tick and starts a fresh period from now.
func (s *Source) ResetAndArm() error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	select {
	case s.rearm <- struct{}{}:
	case <-s.done:
		return ErrNotRunning
	}
	<-s.armed
	return nil
}

// Running reports whether the handler goroutine is active.
func (s *Source) Running() bool { return s.running.Load() }

// Fired reports whether a tick has elapsed since the last Clear.
func (s *Source) Fired() bool { return s.event.Load() }

// Clear consumes the tick event.
func (s *Source) Clear() { s.event.Clear() }

// Count returns the number of ticks delivered since Run started.
func (s *Source) Count() uint64 { return s.count.Load() }

// Period returns the current period.
func (s *Source) Period() time.Duration { return time.Duration(s.period.Load()) }

// SetPeriod changes the period. It applies from the next (re)arm.
func (s *Source) SetPeriod(d time.Duration) {
	if d > 0 {
		s.period.Store(int64(d))
	}
}

// PeriodFor converts a target step duration into the timer period actually
// produced by a compare-match timer running at clockHz/prescaler, scaled by
// 100/resolutionPercent and clamped to the 16-bit compare register. It also
// returns the compare value.
func PeriodFor(step time.Duration, clockHz, prescaler, resolutionPercent int) (time.Duration, int) {
	if clockHz <= 0 || prescaler <= 0 || resolutionPercent <= 0 {
		return step, 0
	}
	tickNs := float64(time.Second) * float64(prescaler) / float64(clockHz)
	base := int(float64(step)/tickNs + 0.5)
	counts := base * 100 / resolutionPercent
	if counts > maxCompare {
		debug.Verbose("Compare value %d clamped to %d", counts, maxCompare)
		counts = maxCompare
	}
	if counts < 1 {
		counts = 1
	}
	return time.Duration(float64(counts) * tickNs), counts
}
