//go:build linux && !386

// This file is built only for Linux hosts with raw HCI socket support.
package rssilock

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ystepanoff/rssilock/driver/hci"
	"github.com/ystepanoff/rssilock/transport"
)

// OpenAdapter opens hci<id>. Failure is always ErrAdapterUnavailable.
func OpenAdapter(id int, timeout time.Duration, log logrus.FieldLogger) (*Adapter, error) {
	tr, err := transport.Open(id, func(id int) (transport.Driver, error) {
		return hci.Open(id)
	}, log)
	if err != nil {
		return nil, err
	}
	return newAdapter(tr, timeout, log), nil
}
