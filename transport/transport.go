package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	proto "github.com/ystepanoff/rssilock/protocol"
)

// DefaultReadSlice bounds a single blocking read so the deadline is
// re-checked regularly even when the controller is silent.
const DefaultReadSlice = 100 * time.Millisecond

// Match inspects every decoded event of an exchange. It reports done once
// the terminal event has arrived, or an error to abort the exchange.
type Match func(ev proto.Event) (done bool, err error)

// Transport owns one controller handle and serialises exchanges on it.
type Transport struct {
	driver    Driver
	log       logrus.FieldLogger
	now       func() time.Time
	readSlice time.Duration
	closed    bool
}

func New(d Driver, log logrus.FieldLogger) *Transport {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transport{
		driver:    d,
		log:       log.WithField("component", "transport"),
		now:       time.Now,
		readSlice: DefaultReadSlice,
	}
}

// Open acquires adapter id through open. Any failure is reported as
// ErrAdapterUnavailable, which callers treat as fatal.
func Open(id int, open OpenFunc, log logrus.FieldLogger) (*Transport, error) {
	d, err := open(id)
	if err != nil {
		return nil, fmt.Errorf("%w: hci%d: %v", ErrAdapterUnavailable, id, err)
	}
	return New(d, log), nil
}

// Exchange installs an event-only filter, sends cmds in order and then
// feeds every decoded event to match until it reports completion or the
// timeout elapses. The previous filter is restored on every return path.
// Frames that fail to decode are logged and skipped.
func (t *Transport) Exchange(cmds []*proto.Command, timeout time.Duration, match Match) (ev proto.Event, err error) {
	if t.closed {
		return nil, ErrClosed
	}
	saved, err := t.driver.Filter()
	if err != nil {
		return nil, fmt.Errorf("save filter: %w", err)
	}
	defer func() {
		if rerr := t.driver.SetFilter(saved); rerr != nil {
			t.log.WithError(rerr).Warn("restore filter failed")
			if err == nil {
				err = fmt.Errorf("restore filter: %w", rerr)
			}
		}
	}()
	if err := t.driver.SetFilter(proto.EventFilter().Bytes()); err != nil {
		return nil, fmt.Errorf("install filter: %w", err)
	}

	deadline := t.now().Add(timeout)
	for _, c := range cmds {
		frame, err := proto.EncodeCommand(c)
		if err != nil {
			return nil, err
		}
		t.log.Debugf("tx opcode %v: % x", c.Opcode, frame)
		if err := t.driver.Write(frame); err != nil {
			return nil, fmt.Errorf("write opcode %v: %w", c.Opcode, err)
		}
	}

	for {
		remaining := deadline.Sub(t.now())
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		data, err := t.driver.Read(min(remaining, t.readSlice))
		if errors.Is(err, ErrReadTimeout) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		ev, err := proto.DecodeEvent(data)
		if err != nil {
			t.log.WithError(err).Debugf("skipping frame % x", data)
			continue
		}
		if other, ok := ev.(*proto.OtherEvent); ok {
			t.log.Debugf("rx opaque event 0x%02x: % x", uint8(other.EventCode), other.Params)
		} else {
			t.log.Debugf("rx event 0x%02x: % x", uint8(ev.Code()), data)
		}
		done, err := match(ev)
		if err != nil {
			return ev, err
		}
		if done {
			return ev, nil
		}
	}
}

// ResetAdapter power-cycles the controller. Any connection handle the
// caller held is gone afterwards.
func (t *Transport) ResetAdapter() error {
	if t.closed {
		return ErrClosed
	}
	t.log.Warn("resetting adapter")
	if err := t.driver.Reset(); err != nil {
		return fmt.Errorf("reset adapter: %w", err)
	}
	return nil
}

func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.driver.Close()
}
