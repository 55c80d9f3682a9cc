package adc

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/RasterGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// Exchanger performs a full-duplex SPI transfer in place.
type Exchanger interface {
	Exchange(buf []byte) error
}

// MCP3008 reads one single-ended channel of a Microchip MCP3008 (10-bit).
type MCP3008 struct {
	bus     Exchanger
	channel int
	buf     [3]byte
}

// NewMCP3008 binds a converter to channel 0..7 on bus.
func NewMCP3008(bus Exchanger, channel int) (*MCP3008, error) {
	if channel < 0 || channel > 7 {
		return nil, fmt.Errorf("mcp3008 channel must be 0-7, got %d", channel)
	}
	return &MCP3008{bus: bus, channel: channel}, nil
}

// Convert sends the start bit, single-ended mode and channel, and assembles
// the 10-bit answer from the last two bytes.
func (m *MCP3008) Convert() (uint16, error) {
	m.buf = [3]byte{0x01, byte(0x08|m.channel) << 4, 0x00}
	if err := m.bus.Exchange(m.buf[:]); err != nil {
		return 0, fmt.Errorf("mcp3008 channel %d: %w", m.channel, err)
	}
	return uint16(m.buf[1]&0x03)<<8 | uint16(m.buf[2]), nil
}

// RPiSPI is the SPI0 bus of a Raspberry Pi driven through go-rpio.
// GPIO memory must already be mapped (gpio.NewRPiRealDriver does that).
type RPiSPI struct {
	mu sync.Mutex
}

// OpenRPiSPI starts SPI0 on the given chip select.
func OpenRPiSPI(chipSelect uint8, speedHz int) (*RPiSPI, error) {
	debug.Info("Initializing SPI0 (go-rpio), CE%d at %d Hz", chipSelect, speedHz)
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		return nil, fmt.Errorf("failed to begin SPI0: %w", err)
	}
	rpio.SpiSpeed(speedHz)
	rpio.SpiChipSelect(chipSelect)
	return &RPiSPI{}, nil
}

// Exchange is safe for use by several converters sharing the bus.
func (s *RPiSPI) Exchange(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rpio.SpiExchange(buf)
	return nil
}

// Close releases SPI0 pins back to GPIO.
func (s *RPiSPI) Close() error {
	debug.Trace("SPI0 Close")
	rpio.SpiEnd(rpio.Spi0)
	return nil
}
