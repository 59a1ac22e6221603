package maestro

import (
	"io"
	"time"
)

// Transport is the interface for low-level communication with one of the
// controller's serial ports. This abstraction allows for testing with
// mock implementations.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout sets the read timeout duration.
	SetReadTimeout(timeout time.Duration) error

	// Flush blocks until buffered writes have been handed to the device.
	// The session issues exactly one Flush per logical command.
	Flush() error
}
