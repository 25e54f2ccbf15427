// Package link drives a single BR/EDR ACL connection to the trusted device
// through its lifecycle: page, authenticate, sample signal strength and
// tear down. Every failure carries the recovery the caller must perform.
package link

import (
	"time"

	"github.com/sirupsen/logrus"

	proto "github.com/ystepanoff/rssilock/protocol"
	"github.com/ystepanoff/rssilock/transport"
)

// DefaultTimeout bounds one command exchange.
const DefaultTimeout = 4 * time.Second

// Exchanger is the transport surface a Link needs.
type Exchanger interface {
	Exchange(cmds []*proto.Command, timeout time.Duration, match transport.Match) (proto.Event, error)
	ResetAdapter() error
}

// Reading is one signal strength sample. Readable is false when the
// controller answered with an error status; RSSI is then RSSIUnreadable.
type Reading struct {
	RSSI     int
	Readable bool
}

type Link struct {
	tr      Exchanger
	timeout time.Duration
	log     logrus.FieldLogger

	state  State
	peer   proto.Address
	handle uint16
	live   bool
}

func New(tr Exchanger, timeout time.Duration, log logrus.FieldLogger) *Link {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Link{
		tr:      tr,
		timeout: timeout,
		log:     log.WithField("component", "link"),
	}
}

func (l *Link) State() State { return l.state }

// Handle returns the connection handle while one is held.
func (l *Link) Handle() (uint16, bool) { return l.handle, l.live }

// Connect pages addr and waits for the connection to complete.
func (l *Link) Connect(addr proto.Address) error {
	const op = "connect"
	if l.state != Idle {
		return l.invalid(op)
	}
	l.state = Connecting
	l.peer = addr

	ev, err := l.tr.Exchange([]*proto.Command{proto.NewCreateConnection(addr).Command()}, l.timeout,
		func(ev proto.Event) (bool, error) {
			switch e := ev.(type) {
			case *proto.CommandStatus:
				if e.Opcode == proto.OpCreateConnection && !e.Status.OK() {
					return true, statusError(op, ErrCommandRejected, e.Status, RetryClean)
				}
			case *proto.ConnectionComplete:
				return e.Address == addr, nil
			}
			return false, nil
		})
	if err != nil {
		return l.fail(op, err, Idle)
	}

	cc := ev.(*proto.ConnectionComplete)
	switch cc.Status {
	case proto.StatusSuccess:
		l.handle = cc.Handle
		l.live = true
		l.state = Connected
		l.log.WithFields(logrus.Fields{"peer": addr, "handle": cc.Handle}).Debug("connected")
		return nil
	case proto.StatusPageTimeout, proto.StatusLMPResponseTimeout:
		return l.fail(op, statusError(op, ErrConnectionTimedOut, cc.Status, ResetRequired), Idle)
	}
	return l.fail(op, statusError(op, ErrConnectionExists, cc.Status, ResetRequired), Idle)
}

// Authenticate requests authentication on the held connection. A failed
// authentication leaves the link Connected so it can be torn down cleanly.
func (l *Link) Authenticate() error {
	const op = "authenticate"
	if l.state != Connected {
		return l.invalid(op)
	}
	l.state = Authenticating
	handle := l.handle

	ev, err := l.tr.Exchange([]*proto.Command{proto.AuthenticationRequested(handle).Command()}, l.timeout,
		func(ev proto.Event) (bool, error) {
			switch e := ev.(type) {
			case *proto.CommandStatus:
				if e.Opcode == proto.OpAuthenticationRequested && !e.Status.OK() {
					return true, statusError(op, ErrCommandRejected, e.Status, RetryClean)
				}
			case *proto.AuthenticationComplete:
				return e.Handle == handle, nil
			case *proto.DisconnectionComplete:
				if e.Handle == handle {
					l.live = false
					return true, unexpected(op, ev)
				}
			case *proto.ConnectionComplete:
				if e.Address == l.peer {
					return true, unexpected(op, ev)
				}
			}
			return false, nil
		})
	if err != nil {
		return l.fail(op, err, Connected)
	}

	ac := ev.(*proto.AuthenticationComplete)
	if !ac.Status.OK() {
		return l.fail(op, statusError(op, ErrAuthenticationFailed, ac.Status, RetryClean), Connected)
	}
	l.state = Authenticated
	return nil
}

// ReadRSSI samples the signal strength of the authenticated connection.
func (l *Link) ReadRSSI() (Reading, error) {
	const op = "read rssi"
	if l.state != Authenticated {
		return Reading{}, l.invalid(op)
	}
	handle := l.handle

	var res proto.RSSIResult
	_, err := l.tr.Exchange([]*proto.Command{proto.ReadRSSI(handle).Command()}, l.timeout,
		func(ev proto.Event) (bool, error) {
			switch e := ev.(type) {
			case *proto.CommandStatus:
				if e.Opcode == proto.OpReadRSSI && !e.Status.OK() {
					return true, statusError(op, ErrCommandRejected, e.Status, RetryClean)
				}
			case *proto.CommandComplete:
				if e.Opcode != proto.OpReadRSSI {
					return false, nil
				}
				r, err := proto.ParseRSSIResult(e)
				if err != nil {
					l.log.WithError(err).Debug("skipping Read_RSSI completion")
					return false, nil
				}
				if r.Handle != handle {
					return false, nil
				}
				res = r
				return true, nil
			case *proto.DisconnectionComplete:
				if e.Handle == handle {
					l.live = false
					return true, unexpected(op, ev)
				}
			}
			return false, nil
		})
	if err != nil {
		return Reading{}, l.fail(op, err, Authenticated)
	}

	if !res.Status.OK() {
		l.log.WithField("status", res.Status).Debug("rssi unreadable")
		return Reading{RSSI: proto.RSSIUnreadable}, nil
	}
	return Reading{RSSI: int(res.RSSI), Readable: true}, nil
}

// Disconnect tears down the held connection, if any. The link is Idle
// afterwards whether or not the controller confirmed the teardown; the
// returned error is informational.
func (l *Link) Disconnect() error {
	const op = "disconnect"
	if !l.live {
		l.state = Idle
		return nil
	}
	l.state = Disconnecting
	handle := l.handle
	defer l.clear()

	_, err := l.tr.Exchange([]*proto.Command{proto.Disconnect{Handle: handle, Reason: proto.ReasonRemotePowerOff}.Command()}, l.timeout,
		func(ev proto.Event) (bool, error) {
			switch e := ev.(type) {
			case *proto.CommandStatus:
				if e.Opcode == proto.OpDisconnect && !e.Status.OK() {
					return true, statusError(op, ErrCommandRejected, e.Status, RetryClean)
				}
			case *proto.DisconnectionComplete:
				return e.Handle == handle, nil
			}
			return false, nil
		})
	if err != nil {
		return fromTransport(op, err)
	}
	return nil
}

// Reset power-cycles the adapter and forgets any held connection.
func (l *Link) Reset() error {
	defer l.clear()
	if err := l.tr.ResetAdapter(); err != nil {
		return fromTransport("reset", err)
	}
	return nil
}

// EnableAuthentication turns on controller-wide link-level authentication
// if it is not already on, and optionally disables Secure Simple Pairing.
func (l *Link) EnableAuthentication(disableSSP bool) error {
	const op = "enable authentication"
	if l.state != Idle {
		return l.invalid(op)
	}

	cc, err := l.command(op, proto.NoParams(proto.OpReadAuthenticationEnable))
	if err != nil {
		return err
	}
	if len(cc.ReturnParams) >= 2 && cc.ReturnParams[1] == 0x01 {
		l.log.Debug("authentication already enabled")
	} else {
		if _, err := l.command(op, proto.WriteByteParam(proto.OpWriteAuthenticationEnable, 0x01)); err != nil {
			return err
		}
		l.log.Info("authentication enabled")
	}

	if disableSSP {
		if _, err := l.command(op, proto.WriteByteParam(proto.OpWriteSimplePairingMode, 0x00)); err != nil {
			return err
		}
		l.log.Info("simple pairing disabled")
	}
	return nil
}

// command runs a single command answered by Command Complete.
func (l *Link) command(op string, cmd *proto.Command) (*proto.CommandComplete, error) {
	ev, err := l.tr.Exchange([]*proto.Command{cmd}, l.timeout, func(ev proto.Event) (bool, error) {
		switch e := ev.(type) {
		case *proto.CommandStatus:
			if e.Opcode == cmd.Opcode && !e.Status.OK() {
				return true, statusError(op, ErrCommandRejected, e.Status, RetryClean)
			}
		case *proto.CommandComplete:
			return e.Opcode == cmd.Opcode, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, fromTransport(op, err)
	}
	cc := ev.(*proto.CommandComplete)
	if s := cc.Status(); !s.OK() {
		return nil, statusError(op, ErrCommandRejected, s, RetryClean)
	}
	return cc, nil
}

// fail settles the state after a failed operation: back to stable when the
// link is still consistent, Faulted otherwise.
func (l *Link) fail(op string, err error, stable State) error {
	le := fromTransport(op, err)
	if le.Recovery == RetryClean {
		l.state = stable
	} else {
		l.state = Faulted
	}
	l.log.WithFields(logrus.Fields{
		"op":       op,
		"state":    l.state,
		"recovery": le.Recovery,
	}).Debug(le.Error())
	return le
}

func (l *Link) invalid(op string) error {
	return &Error{Op: op, Kind: ErrInvalidState, Err: errState(l.state), Recovery: ResetRequired}
}

func (l *Link) clear() {
	l.state = Idle
	l.handle = 0
	l.live = false
}

type errState State

func (e errState) Error() string { return "link is " + State(e).String() }
