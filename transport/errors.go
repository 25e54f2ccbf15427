package transport

import "errors"

var (
	ErrTimeout            = errors.New("exchange deadline exceeded")
	ErrReadTimeout        = errors.New("no frame within read timeout")
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	ErrClosed             = errors.New("transport closed")
)
