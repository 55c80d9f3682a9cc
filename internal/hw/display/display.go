package display

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cjeanneret/RasterGo/internal/debug"
)

// Display is the text screen the menu is drawn on. Text is placed at a pixel
// column and a text row; nothing becomes visible before Update.
type Display interface {
	Clear() error
	SetPosition(x, row int)
	DrawString(s string) error
	// HLine draws a horizontal rule at pixel row y.
	HLine(x, y, length int) error
	Update() error
	Close() error
}

// TextDisplay keeps a character grid in memory and prints it through the
// debug logger on Update. It backs "log" mode and is handy in tests.
type TextDisplay struct {
	mu     sync.Mutex
	cols   int
	lines  []string
	x, row int
	dirty  bool
	frames int
}

// charWidth converts pixel columns to character cells (7px font + 1px gap).
const charWidth = 8

// NewTextDisplay creates a grid of rows text rows, cols characters wide.
func NewTextDisplay(cols, rows int) *TextDisplay {
	d := &TextDisplay{cols: cols, lines: make([]string, rows)}
	d.reset()
	return d
}

func (d *TextDisplay) reset() {
	for i := range d.lines {
		d.lines[i] = strings.Repeat(" ", d.cols)
	}
}

func (d *TextDisplay) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
	d.dirty = true
	return nil
}

func (d *TextDisplay) SetPosition(x, row int) {
	d.mu.Lock()
	d.x, d.row = x, row
	d.mu.Unlock()
}

// DrawString blanks the rest of the row from the current position, then
// writes s there, like the SSD1306 implementation.
func (d *TextDisplay) DrawString(s string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.row < 0 || d.row >= len(d.lines) {
		return fmt.Errorf("text row %d out of range 0-%d", d.row, len(d.lines)-1)
	}
	col := d.x / charWidth
	line := []rune(d.lines[d.row])
	for i := col; i < len(line); i++ {
		line[i] = ' '
	}
	for i, r := range []rune(s) {
		if col+i >= len(line) {
			break
		}
		line[col+i] = r
	}
	d.lines[d.row] = string(line)
	d.x += len([]rune(s)) * charWidth
	d.dirty = true
	return nil
}

func (d *TextDisplay) HLine(x, y, length int) error {
	return nil
}

func (d *TextDisplay) Update() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dirty {
		return nil
	}
	d.dirty = false
	d.frames++
	if !debug.IsEnabled(debug.LevelVerbose) {
		return nil
	}
	for i, l := range d.lines {
		if t := strings.TrimRight(l, " "); t != "" {
			debug.Verbose("display[%d] %s", i, t)
		}
	}
	return nil
}

// Line returns text row i with trailing blanks removed.
func (d *TextDisplay) Line(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.lines) {
		return ""
	}
	return strings.TrimRight(d.lines[i], " ")
}

// Frames returns how many updates actually changed the screen.
func (d *TextDisplay) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

func (d *TextDisplay) Close() error { return nil }

// Nop discards everything.
type Nop struct{}

func (Nop) Clear() error              { return nil }
func (Nop) SetPosition(int, int)      {}
func (Nop) DrawString(string) error   { return nil }
func (Nop) HLine(int, int, int) error { return nil }
func (Nop) Update() error             { return nil }
func (Nop) Close() error              { return nil }
