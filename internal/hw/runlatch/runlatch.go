// Package runlatch turns edges of the run/stop button into the run flag that
// starts scans and aborts them.
package runlatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/cjeanneret/RasterGo/internal/hw/gpio"
	"github.com/cjeanneret/RasterGo/internal/hw/irq"
)

// Latch holds the run flag. Edge is the interrupt handler and toggles it;
// the main loop only reads it and clears it when a run completes.
type Latch struct {
	run      irq.Flag
	debounce time.Duration
	lastEdge atomic.Int64 // unix nanos of the last accepted edge
	edges    atomic.Uint64
	ignored  atomic.Uint64

	now func() time.Time
}

// New creates a latch. Edges closer than debounce to the previously
// accepted edge are dropped; zero disables filtering.
func New(debounce time.Duration) *Latch {
	return &Latch{debounce: debounce, now: time.Now}
}

// Edge handles one rising edge.
func (l *Latch) Edge() {
	if l.debounce > 0 {
		now := l.now().UnixNano()
		last := l.lastEdge.Load()
		if last != 0 && time.Duration(now-last) < l.debounce {
			l.ignored.Add(1)
			return
		}
		if !l.lastEdge.CompareAndSwap(last, now) {
			l.ignored.Add(1)
			return
		}
	}
	l.edges.Add(1)
	running := l.run.Toggle()
	debug.Live("Run flag -> %v", running)
}

// Running reports the run flag.
func (l *Latch) Running() bool { return l.run.Load() }

// Clear lowers the run flag. It stays low until the next accepted edge.
func (l *Latch) Clear() { l.run.Clear() }

// Edges returns the number of accepted edges.
func (l *Latch) Edges() uint64 { return l.edges.Load() }

// Ignored returns the number of edges dropped by the debounce filter.
func (l *Latch) Ignored() uint64 { return l.ignored.Load() }

// Watch arms rising-edge detection on pin and forwards every detected edge
// to Edge until ctx is cancelled.
func (l *Latch) Watch(ctx context.Context, g gpio.Driver, pin int, poll time.Duration) error {
	if err := g.WatchRisingEdge(pin); err != nil {
		return fmt.Errorf("watch run pin %d: %w", pin, err)
	}
	if poll <= 0 {
		poll = 5 * time.Millisecond
	}
	debug.Verbose("Watching run pin %d every %v", pin, poll)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			detected, err := g.EdgeDetected(pin)
			if err != nil {
				return fmt.Errorf("read run pin %d: %w", pin, err)
			}
			if detected {
				l.Edge()
			}
		}
	}
}
