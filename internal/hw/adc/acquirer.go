// Package adc triggers analog-to-digital conversions and publishes the latest
// 10-bit result to the main loop.
package adc

import (
	"context"
	"sync/atomic"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/cjeanneret/RasterGo/internal/hw/irq"
)

// MaxValue is the largest 10-bit conversion result.
const MaxValue = 1023

// Converter performs one blocking conversion on the hardware.
type Converter interface {
	Convert() (uint16, error)
}

// Acquirer owns one analog input. StartConversion is called from the main
// loop; the completion handler (Run) stores the result and drops the busy
// flag. Values are not buffered: a slow reader only sees the latest one.
type Acquirer struct {
	conv    Converter
	channel int

	latest  irq.Word // written by Run only
	busy    irq.Flag // set by StartConversion, cleared by Run
	enabled irq.Flag
	lastErr atomic.Pointer[error]

	start chan struct{}
}

// NewAcquirer creates an enabled acquirer. channel is only used for logs.
func NewAcquirer(conv Converter, channel int) *Acquirer {
	a := &Acquirer{
		conv:    conv,
		channel: channel,
		start:   make(chan struct{}, 1),
	}
	a.enabled.Set()
	return a
}

// Run is the conversion-complete handler. It blocks until ctx is cancelled.
func (a *Acquirer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.start:
			v, err := a.conv.Convert()
			if err != nil {
				a.lastErr.Store(&err)
				debug.Error(err)
			} else {
				a.latest.Store(v & MaxValue)
				a.lastErr.Store(nil)
				debug.ADC(a.channel, v&MaxValue)
			}
			a.busy.Clear()
		}
	}
}

// StartConversion requests one conversion without waiting for it. It reports
// false, and starts nothing, while a conversion is in flight or the acquirer
// is disabled.
func (a *Acquirer) StartConversion() bool {
	if !a.enabled.Load() || a.busy.Load() {
		return false
	}
	a.busy.Set()
	select {
	case a.start <- struct{}{}:
	default:
	}
	return true
}

// IsBusy reports whether a conversion is in flight.
func (a *Acquirer) IsBusy() bool { return a.busy.Load() }

// Latest returns the most recent conversion result (0..1023).
func (a *Acquirer) Latest() uint16 { return a.latest.Load() }

// Err returns the error of the last conversion, or nil if it succeeded.
func (a *Acquirer) Err() error {
	if p := a.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Enable powers the converter on.
func (a *Acquirer) Enable() { a.enabled.Set() }

// Disable stops new conversions from starting.
func (a *Acquirer) Disable() { a.enabled.Clear() }

// Enabled reports whether conversions can be started.
func (a *Acquirer) Enabled() bool { return a.enabled.Load() }
