// Package device provides raw byte sources for the headset transport:
// a serial port for real hardware and a simulator that speaks the same
// framing.
package device

import (
	"fmt"
	"io"
	"log"

	serial "github.com/jacobsa/go-serial/serial"
)

// Source delivers raw headset bytes in arbitrary-sized chunks. The
// parser tolerates any chunking, so a Source only has to hand bytes
// over in arrival order.
type Source = io.ReadCloser

// OpenSerial opens the headset's serial presentation (RFCOMM bind or
// USB bridge, e.g. /dev/rfcomm0) and returns it as a byte source.
func OpenSerial(portName string, baudRate int) (Source, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("device: open serial port %s: %w", portName, err)
	}
	log.Printf("device: serial port opened on %s at %d baud", portName, baudRate)
	return port, nil
}
