package protocol

import "errors"

var (
	ErrMalformedInput = errors.New("malformed command input")
	ErrMalformedEvent = errors.New("malformed event")
)
