package link

import (
	"errors"
	"fmt"
	"strings"

	proto "github.com/ystepanoff/rssilock/protocol"
	"github.com/ystepanoff/rssilock/transport"
)

// Recovery tells the caller how to get back to a usable link.
type Recovery int

const (
	// RetryClean: the link is consistent, the next cycle may proceed.
	RetryClean Recovery = iota
	// ResetRequired: controller state is unknown, cycle the adapter.
	ResetRequired
	// Fatal: the adapter is gone.
	Fatal
)

func (r Recovery) String() string {
	switch r {
	case RetryClean:
		return "retry"
	case ResetRequired:
		return "reset"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("Recovery(%d)", int(r))
}

var (
	ErrCommandRejected      = errors.New("command rejected by controller")
	ErrConnectionTimedOut   = errors.New("connection timed out")
	ErrConnectionExists     = errors.New("connection already exists")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUnexpectedEvent      = errors.New("unexpected event")
	ErrInvalidState         = errors.New("operation not valid in current link state")
	ErrTransport            = errors.New("transport failure")
	ErrTimeout              = transport.ErrTimeout
)

// Error is returned by every failing link operation.
type Error struct {
	Op       string
	Kind     error
	Status   proto.Status
	Recovery Recovery
	// Event is the offending event for ErrUnexpectedEvent.
	Event proto.Event
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Status != proto.StatusSuccess {
		fmt.Fprintf(&b, " (%v)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Classify maps any error from this package or the transport to the
// recovery the supervisor should perform.
func Classify(err error) Recovery {
	var le *Error
	switch {
	case err == nil:
		return RetryClean
	case errors.As(err, &le):
		return le.Recovery
	case errors.Is(err, transport.ErrAdapterUnavailable), errors.Is(err, transport.ErrClosed):
		return Fatal
	case errors.Is(err, transport.ErrTimeout):
		return ResetRequired
	}
	return RetryClean
}

// fromTransport wraps an error that did not originate in a match callback.
func fromTransport(op string, err error) *Error {
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	e := &Error{Op: op, Kind: ErrTransport, Err: err, Recovery: Classify(err)}
	if errors.Is(err, transport.ErrTimeout) {
		e.Kind = ErrTimeout
		e.Err = nil
	}
	return e
}

func statusError(op string, kind error, s proto.Status, r Recovery) *Error {
	return &Error{Op: op, Kind: kind, Status: s, Recovery: r}
}

func unexpected(op string, ev proto.Event) *Error {
	return &Error{Op: op, Kind: ErrUnexpectedEvent, Recovery: ResetRequired, Event: ev}
}
