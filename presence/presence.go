// Package presence turns a noisy stream of signal strength samples into a
// stable locked/unlocked decision using two thresholds and a grace count.
package presence

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidThresholds = errors.New("lock threshold must be below unlock threshold")
	ErrInvalidInterval   = errors.New("poll interval must be positive")
)

type Config struct {
	// Signal strengths in dBm; larger is stronger.
	LockThreshold   int
	UnlockThreshold int
	// BorderlineLimit is the number of weak samples tolerated while
	// unlocked before the engine locks.
	BorderlineLimit uint
	PollInterval    time.Duration
}

func (c Config) Validate() error {
	if c.LockThreshold >= c.UnlockThreshold {
		return fmt.Errorf("%w: lock %d, unlock %d", ErrInvalidThresholds, c.LockThreshold, c.UnlockThreshold)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, c.PollInterval)
	}
	return nil
}

type State struct {
	Unlocked   bool
	Borderline uint
}

type Action int

const (
	NoChange Action = iota
	Lock
	Unlock
)

func (a Action) String() string {
	switch a {
	case NoChange:
		return "none"
	case Lock:
		return "lock"
	case Unlock:
		return "unlock"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

type sampleKind uint8

const (
	kindReading sampleKind = iota
	kindFailed
	kindUnreadable
)

// Sample is one observation from a polling cycle.
type Sample struct {
	kind sampleKind
	RSSI int
}

// Reading is a successfully measured signal strength.
func Reading(rssi int) Sample { return Sample{kind: kindReading, RSSI: rssi} }

// Failed marks a cycle whose exchange failed.
func Failed() Sample { return Sample{kind: kindFailed} }

// Unreadable marks a cycle where the link was up but the controller could
// not report a strength. It is neutral.
func Unreadable() Sample { return Sample{kind: kindUnreadable} }

func (s Sample) IsFailed() bool     { return s.kind == kindFailed }
func (s Sample) IsUnreadable() bool { return s.kind == kindUnreadable }

func (s Sample) String() string {
	switch s.kind {
	case kindFailed:
		return "failed"
	case kindUnreadable:
		return "unreadable"
	}
	return fmt.Sprintf("%d dBm", s.RSSI)
}

// Decide applies one sample to st. Rules are evaluated in order; a reading
// at or below the lock threshold while already locked matches none of them
// and leaves the state untouched.
func Decide(cfg Config, st State, s Sample) (State, Action) {
	switch {
	case s.kind == kindUnreadable:
		return st, NoChange

	case s.kind == kindFailed:
		if st.Unlocked {
			st.Unlocked = false
			return st, Lock
		}
		return st, NoChange

	case s.RSSI >= cfg.UnlockThreshold:
		st.Borderline = 0
		if !st.Unlocked {
			st.Unlocked = true
			return st, Unlock
		}
		return st, NoChange

	case s.RSSI <= cfg.LockThreshold:
		if !st.Unlocked {
			return st, NoChange
		}
		if st.Borderline >= cfg.BorderlineLimit {
			st.Unlocked = false
			return st, Lock
		}
		st.Borderline++
		return st, NoChange
	}

	st.Borderline = 0
	return st, NoChange
}

// Engine holds the presence state across polling cycles.
type Engine struct {
	cfg   Config
	state State
}

// NewEngine starts locked with a zero borderline count.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Observe(s Sample) Action {
	var a Action
	e.state, a = Decide(e.cfg, e.state, s)
	return a
}

func (e *Engine) State() State   { return e.state }
func (e *Engine) Config() Config { return e.cfg }
