package transport

import "time"

// Driver is the interface that wraps raw access to one HCI controller.
// Frames carry the leading packet type byte in both directions.
type Driver interface {
	// Filter returns the socket's current event filter as opaque bytes.
	Filter() ([]byte, error)
	SetFilter(f []byte) error
	Write(frame []byte) error
	// Read blocks for at most timeout and returns ErrReadTimeout when
	// nothing arrived.
	Read(timeout time.Duration) ([]byte, error)
	// Reset cycles the adapter down and up.
	Reset() error
	Close() error
}

// OpenFunc opens the driver for adapter index id (hci<id>).
type OpenFunc func(id int) (Driver, error)
