package display

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/cjeanneret/RasterGo/internal/debug"
)

// SSD1306 renders text on a 128x64 I2C OLED through periph.io. Drawing
// happens on an in-memory 1-bit frame that Update pushes to the panel.
type SSD1306 struct {
	bus        i2c.BusCloser
	dev        *ssd1306.Dev
	frame      *image1bit.VerticalLSB
	face       font.Face
	lineHeight int
	x, row     int
}

// OpenSSD1306 initializes periph host drivers and opens the panel on the
// named I2C bus ("" picks the first one).
func OpenSSD1306(busName string, lineHeight int) (*SSD1306, error) {
	debug.Info("Initializing SSD1306 display (periph.io) on I2C bus %q", busName)

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	if lineHeight <= 0 {
		lineHeight = 10
	}
	face, err := FaceForLineHeight(lineHeight)
	if err != nil {
		bus.Close()
		return nil, err
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		face.Close()
		bus.Close()
		return nil, fmt.Errorf("open ssd1306: %w", err)
	}
	return &SSD1306{
		bus:        bus,
		dev:        dev,
		frame:      image1bit.NewVerticalLSB(dev.Bounds()),
		face:       face,
		lineHeight: lineHeight,
	}, nil
}

// minFontSize is the smallest Go Mono size tried, in points at 72 DPI.
const minFontSize = 4

// FaceForLineHeight returns a face whose glyphs, ascent plus descent, fit in
// one text row of lineHeight pixels. Rows of 13 px and more use the 7x13
// bitmap font; shorter rows get Go Mono scaled down until it fits.
func FaceForLineHeight(lineHeight int) (font.Face, error) {
	if fits(basicfont.Face7x13, lineHeight) {
		return basicfont.Face7x13, nil
	}
	f, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse go mono: %w", err)
	}
	for size := float64(lineHeight); size >= minFontSize; size -= 0.5 {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("go mono at %.1fpt: %w", size, err)
		}
		if fits(face, lineHeight) {
			debug.Verbose("Display font: Go Mono %.1fpt for %d px rows", size, lineHeight)
			return face, nil
		}
		face.Close()
	}
	return nil, fmt.Errorf("no font fits a %d px text row", lineHeight)
}

func fits(face font.Face, lineHeight int) bool {
	m := face.Metrics()
	return m.Ascent.Ceil()+m.Descent.Ceil() <= lineHeight
}

func (s *SSD1306) Clear() error {
	draw.Draw(s.frame, s.frame.Bounds(), &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)
	return nil
}

func (s *SSD1306) SetPosition(x, row int) {
	s.x, s.row = x, row
}

// DrawString blanks the rest of the text row, then renders s from the
// current position.
func (s *SSD1306) DrawString(str string) error {
	top := s.row * s.lineHeight
	b := s.frame.Bounds()
	if top < b.Min.Y || top >= b.Max.Y {
		return fmt.Errorf("text row %d outside the panel", s.row)
	}
	blank := image.Rect(s.x, top, b.Max.X, min(top+s.lineHeight, b.Max.Y))
	draw.Draw(s.frame, blank, &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  s.frame,
		Src:  &image.Uniform{C: image1bit.On},
		Face: s.face,
		Dot:  fixed.P(s.x, top+s.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(str)
	s.x = d.Dot.X.Ceil()
	return nil
}

func (s *SSD1306) HLine(x, y, length int) error {
	for i := x; i < x+length; i++ {
		s.frame.SetBit(i, y, image1bit.On)
	}
	return nil
}

func (s *SSD1306) Update() error {
	return s.dev.Draw(s.dev.Bounds(), s.frame, image.Point{})
}

func (s *SSD1306) Close() error {
	if err := s.dev.Halt(); err != nil {
		debug.Error(err)
	}
	s.face.Close()
	return s.bus.Close()
}
