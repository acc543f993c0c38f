package scanner

import (
	"time"

	"go.bug.st/serial"
)

// dialSerial opens the physical sensor port. A read timeout keeps the poll
// loop responsive when the sensor stops answering mid-capture.
func dialSerial(port string, baud int) (Port, error) {
	if baud <= 0 {
		baud = 57600
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(2 * time.Second); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}
