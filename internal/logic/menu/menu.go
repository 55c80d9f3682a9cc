// Package menu maps the menu knob to one of three actions and draws the
// corresponding screens.
package menu

import (
	"fmt"

	"github.com/cjeanneret/RasterGo/internal/hw/display"
)

// Selection is the menu entry picked by the knob.
type Selection int

const (
	ScanAction Selection = iota
	ResolutionAction
	SleepAction
)

func (s Selection) String() string {
	switch s {
	case ScanAction:
		return "scan"
	case ResolutionAction:
		return "resolution"
	case SleepAction:
		return "sleep"
	default:
		return fmt.Sprintf("selection(%d)", int(s))
	}
}

// bandWidth is floor(1024/3): readings are split into three bands of this
// width, anything from the third band up selects Sleep.
const bandWidth = 341

// Select maps a 10-bit reading to a menu entry.
func Select(reading uint16) Selection {
	switch reading / bandWidth {
	case 0:
		return ScanAction
	case 1:
		return ResolutionAction
	default:
		return SleepAction
	}
}

var entries = [...]struct {
	sel  Selection
	text string
	row  int
}{
	{ScanAction, "Run 3D Scan", 3},
	{ResolutionAction, "Resolution", 4},
	{SleepAction, "Sleep", 5},
}

const textX = 5

// RenderFrame clears the screen and draws the static menu frame.
func RenderFrame(d display.Display) error {
	if err := d.Clear(); err != nil {
		return err
	}
	if err := d.HLine(4, 4, 115); err != nil {
		return err
	}
	d.SetPosition(textX, 1)
	if err := d.DrawString("Main Menu"); err != nil {
		return err
	}
	if err := d.HLine(4, 18, 115); err != nil {
		return err
	}
	return Render(d, ScanAction)
}

// Render draws the three entries with a marker on the selected one.
func Render(d display.Display, sel Selection) error {
	for _, e := range entries {
		marker := "  "
		if e.sel == sel {
			marker = "> "
		}
		d.SetPosition(textX, e.row)
		if err := d.DrawString(marker + e.text); err != nil {
			return err
		}
	}
	return d.Update()
}

// RenderResolution shows the resolution readout, e.g. "099%".
func RenderResolution(d display.Display, percent int) error {
	d.SetPosition(textX, 3)
	if err := d.DrawString("Resolution is:"); err != nil {
		return err
	}
	d.SetPosition(textX, 4)
	if err := d.DrawString(fmt.Sprintf("%03d%%", percent)); err != nil {
		return err
	}
	d.SetPosition(textX, 5)
	if err := d.DrawString(""); err != nil {
		return err
	}
	return d.Update()
}

// RenderSleep shows the sleep screen.
func RenderSleep(d display.Display) error {
	if err := d.Clear(); err != nil {
		return err
	}
	d.SetPosition(textX, 4)
	if err := d.DrawString("Sleep zzz"); err != nil {
		return err
	}
	return d.Update()
}
