package transport

import (
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/cjeanneret/RasterGo/internal/debug"
)

// OpenSerial opens device as an 8N1 serial line at baud.
func OpenSerial(device string, baud int) (io.WriteCloser, error) {
	if baud <= 0 {
		baud = 9600
	}
	debug.Info("Opening serial output %s at %d baud", device, baud)

	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return port, nil
}
