// Package supervisor runs the polling loop: one link lifecycle per cycle,
// the measured sample fed to the presence engine, the resulting action
// handed to an actuator.
package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ystepanoff/rssilock/link"
	"github.com/ystepanoff/rssilock/presence"
	proto "github.com/ystepanoff/rssilock/protocol"
)

// Link is the subset of *link.Link the loop drives.
type Link interface {
	Connect(addr proto.Address) error
	Authenticate() error
	ReadRSSI() (link.Reading, error)
	Disconnect() error
	Reset() error
}

// Actuator executes lock and unlock actions. Failures are logged and never
// stop the loop.
type Actuator interface {
	Execute(ctx context.Context, a presence.Action) error
}

// Report describes one finished cycle.
type Report struct {
	Time   time.Time
	Peer   proto.Address
	Sample presence.Sample
	Action presence.Action
	State  presence.State
	// Err is the link failure behind a failed sample, if any.
	Err error
}

type Reporter interface {
	Report(ctx context.Context, r Report) error
}

type Config struct {
	Peer        proto.Address
	Presence    presence.Config
	LockOnStart bool
}

type Option func(*Supervisor)

func WithReporter(r Reporter) Option {
	return func(s *Supervisor) { s.reporter = r }
}

// WithSleep replaces the wait between cycles.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Supervisor) { s.sleep = f }
}

type Supervisor struct {
	cfg      Config
	link     Link
	engine   *presence.Engine
	act      Actuator
	reporter Reporter
	log      logrus.FieldLogger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

func New(cfg Config, l Link, act Actuator, log logrus.FieldLogger, opts ...Option) (*Supervisor, error) {
	engine, err := presence.NewEngine(cfg.Presence)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Supervisor{
		cfg:    cfg,
		link:   l,
		engine: engine,
		act:    act,
		log:    log.WithFields(logrus.Fields{"component": "supervisor", "peer": cfg.Peer}),
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Supervisor) State() presence.State { return s.engine.State() }

// Run polls until ctx is cancelled or the adapter becomes unusable. It
// returns nil on cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"lock":       s.cfg.Presence.LockThreshold,
		"unlock":     s.cfg.Presence.UnlockThreshold,
		"borderline": s.cfg.Presence.BorderlineLimit,
		"interval":   s.cfg.Presence.PollInterval,
	}).Info("supervisor started")

	if s.cfg.LockOnStart {
		s.execute(ctx, presence.Lock)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := s.Cycle(ctx); err != nil {
			return err
		}
		if err := s.sleep(ctx, s.cfg.Presence.PollInterval); err != nil {
			return nil
		}
	}
}

// Cycle runs one connect, authenticate, read, disconnect lifecycle and
// applies the outcome. Only fatal adapter errors are returned.
func (s *Supervisor) Cycle(ctx context.Context) (presence.Action, error) {
	sample, cause, err := s.measure()
	if err != nil {
		return presence.NoChange, err
	}

	action := s.engine.Observe(sample)
	st := s.engine.State()
	entry := s.log.WithFields(logrus.Fields{
		"sample":     sample,
		"borderline": st.Borderline,
		"unlocked":   st.Unlocked,
	})
	if action != presence.NoChange {
		entry.WithField("action", action).Info("presence changed")
		s.execute(ctx, action)
	} else {
		entry.Info("cycle")
	}

	if s.reporter != nil {
		r := Report{Time: s.now(), Peer: s.cfg.Peer, Sample: sample, Action: action, State: st, Err: cause}
		if err := s.reporter.Report(ctx, r); err != nil {
			s.log.WithError(err).Warn("status report failed")
		}
	}
	return action, nil
}

// measure drives the link through one lifecycle. A non-fatal failure is
// returned as cause alongside a failed sample.
func (s *Supervisor) measure() (sample presence.Sample, cause error, fatal error) {
	err := s.link.Connect(s.cfg.Peer)
	if err == nil {
		err = s.link.Authenticate()
	}
	var r link.Reading
	if err == nil {
		r, err = s.link.ReadRSSI()
	}
	if err != nil {
		return presence.Failed(), err, s.recoverLink(err)
	}

	if derr := s.link.Disconnect(); derr != nil {
		s.log.WithError(derr).Warn("disconnect did not complete")
	}
	if !r.Readable {
		return presence.Unreadable(), nil, nil
	}
	return presence.Reading(r.RSSI), nil, nil
}

// recoverLink brings the link back to Idle according to the classification of
// err. It returns an error only when the adapter is gone.
func (s *Supervisor) recoverLink(err error) error {
	rec := link.Classify(err)
	entry := s.log.WithError(err).WithField("recovery", rec)
	switch rec {
	case link.Fatal:
		entry.Error("adapter unusable")
		return err
	case link.ResetRequired:
		entry.Warn("cycle failed")
		if rerr := s.link.Reset(); rerr != nil {
			if link.Classify(rerr) == link.Fatal {
				s.log.WithError(rerr).Error("adapter reset failed")
				return rerr
			}
			s.log.WithError(rerr).Warn("adapter reset failed")
		}
	default:
		entry.Warn("cycle failed")
		if derr := s.link.Disconnect(); derr != nil {
			s.log.WithError(derr).Warn("disconnect did not complete")
		}
	}
	return nil
}

func (s *Supervisor) execute(ctx context.Context, a presence.Action) {
	if err := s.act.Execute(ctx, a); err != nil {
		s.log.WithError(err).WithField("action", a).Error("action failed")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsFatal reports whether err returned by Run means the adapter is gone.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && link.Classify(err) == link.Fatal
}
