//go:build !linux || 386

// This file is built for hosts without raw HCI socket support.
package rssilock

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ystepanoff/rssilock/transport"
)

func OpenAdapter(id int, timeout time.Duration, log logrus.FieldLogger) (*Adapter, error) {
	tr, err := transport.Open(id, func(int) (transport.Driver, error) {
		return nil, errors.New("raw HCI sockets are not supported on this platform")
	}, log)
	if err != nil {
		return nil, err
	}
	return newAdapter(tr, timeout, log), nil
}
