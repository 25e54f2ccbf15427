// Package rssilock provides a façade to the proximity lock engine.
package rssilock

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ystepanoff/rssilock/driver/stub"
	"github.com/ystepanoff/rssilock/link"
	"github.com/ystepanoff/rssilock/presence"
	"github.com/ystepanoff/rssilock/protocol"
	"github.com/ystepanoff/rssilock/transport"
)

// The adapter constructor is split into build-tag specific files:
// - constructors_linux.go - raw HCI socket (//go:build linux && !386)
// - constructors_other.go - everything else, reports the adapter unavailable

// Re-export types for convenience
type (
	Address  = protocol.Address
	Action   = presence.Action
	Reading  = link.Reading
	Recovery = link.Recovery
	Peer     = stub.Peer
)

// Error constants exposed in the public API
var (
	ErrAdapterUnavailable   = transport.ErrAdapterUnavailable
	ErrTimeout              = transport.ErrTimeout
	ErrCommandRejected      = link.ErrCommandRejected
	ErrConnectionTimedOut   = link.ErrConnectionTimedOut
	ErrConnectionExists     = link.ErrConnectionExists
	ErrAuthenticationFailed = link.ErrAuthenticationFailed
	ErrMalformedInput       = protocol.ErrMalformedInput
	ErrMalformedEvent       = protocol.ErrMalformedEvent
)

// Constants exposed in the public API
const (
	NoChange = presence.NoChange
	Lock     = presence.Lock
	Unlock   = presence.Unlock

	RetryClean    = link.RetryClean
	ResetRequired = link.ResetRequired
	Fatal         = link.Fatal
)

// Adapter is an open controller with the link driven over it.
type Adapter struct {
	Transport *transport.Transport
	Link      *link.Link
}

func newAdapter(tr *transport.Transport, timeout time.Duration, log logrus.FieldLogger) *Adapter {
	return &Adapter{Transport: tr, Link: link.New(tr, timeout, log)}
}

func (a *Adapter) Close() error { return a.Transport.Close() }

// NewSimulatedAdapter runs against an in-process controller simulating
// peer. The returned driver lets callers move the peer around.
func NewSimulatedAdapter(peer Peer, timeout time.Duration, log logrus.FieldLogger) (*Adapter, *stub.Driver) {
	d := stub.New(peer)
	return newAdapter(transport.New(d, log), timeout, log), d
}

func ParseAddress(s string) (Address, error) { return protocol.ParseAddress(s) }
