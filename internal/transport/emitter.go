// Package transport writes scan progress as a stream of short text tokens:
// "R<row>" and "C<value>" while scanning, countdown tokens while homing and
// "F<reason>" on faults. The stream is append-only and has no flow control.
package transport

import (
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/cjeanneret/RasterGo/internal/debug"
)

// Options controls token framing.
type Options struct {
	Separator string // written after every token, default "\n"
	PadWidth  int    // zero-pad decimal values to this width, 0 = no padding
}

// Emitter formats tokens onto a writer. It is used from the main loop only.
type Emitter struct {
	w        io.Writer
	sep      string
	pad      int
	buf      []byte
	tokens   atomic.Uint64
	failures atomic.Uint64
}

// NewEmitter wraps w.
func NewEmitter(w io.Writer, opts Options) *Emitter {
	if opts.Separator == "" {
		opts.Separator = "\n"
	}
	return &Emitter{
		w:   w,
		sep: opts.Separator,
		pad: opts.PadWidth,
		buf: make([]byte, 0, 64),
	}
}

// Row emits the index of the row being scanned.
func (e *Emitter) Row(row int) { e.number('R', row) }

// Sample emits one sensor value of the current row.
func (e *Emitter) Sample(v uint16) { e.number('C', int(v)) }

// HomeRow emits the row countdown while homing.
func (e *Emitter) HomeRow(row int) { e.number('R', row) }

// HomeColumn emits the column countdown while homing.
func (e *Emitter) HomeColumn(column int) { e.number('C', column) }

// Fault emits a fault token. Whitespace and separator characters in the
// reason become '_' so the token stays one token.
func (e *Emitter) Fault(err error) {
	e.buf = append(e.buf[:0], 'F')
	for _, r := range err.Error() {
		if unicode.IsSpace(r) || strings.ContainsRune(e.sep, r) {
			r = '_'
		}
		e.buf = append(e.buf, string(r)...)
	}
	e.flush()
}

// Banner emits a free-form line, used once at start-up.
func (e *Emitter) Banner(msg string) {
	e.buf = append(e.buf[:0], msg...)
	e.flush()
}

// Tokens returns the number of tokens written.
func (e *Emitter) Tokens() uint64 { return e.tokens.Load() }

// Failures returns the number of tokens the writer rejected.
func (e *Emitter) Failures() uint64 { return e.failures.Load() }

func (e *Emitter) number(prefix byte, v int) {
	e.buf = append(e.buf[:0], prefix)
	if e.pad > 0 {
		digits := 1
		for n := v; n >= 10; n /= 10 {
			digits++
		}
		for i := digits; i < e.pad; i++ {
			e.buf = append(e.buf, '0')
		}
	}
	e.buf = strconv.AppendInt(e.buf, int64(v), 10)
	e.flush()
}

func (e *Emitter) flush() {
	e.buf = append(e.buf, e.sep...)
	e.tokens.Add(1)
	if _, err := e.w.Write(e.buf); err != nil {
		e.failures.Add(1)
		debug.Error(err)
	}
}
