package serialmux

import (
	"io"
	"time"
)

// SerialPorter defines the minimal interface needed for the actuator
// serial link. This abstraction enables unit testing without real
// hardware on the bench.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with timeout capabilities.
// This is an optional interface that serial ports may implement.
type TimeoutSerialPorter interface {
	SerialPorter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}
