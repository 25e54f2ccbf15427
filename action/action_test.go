package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/ystepanoff/rssilock/config"
	"github.com/ystepanoff/rssilock/presence"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

func TestExecCommands(t *testing.T) {
	e := NewExec("sudo -u alice", []string{"xdg-screensaver lock"}, []string{"a", "b c"}, testLogger())
	tests := []struct {
		action presence.Action
		want   string
	}{
		{presence.Lock, `[[/bin/sh -c sudo -u alice xdg-screensaver lock]]`},
		{presence.Unlock, `[[/bin/sh -c sudo -u alice a] [/bin/sh -c sudo -u alice b c]]`},
		{presence.NoChange, `[]`},
	}
	for _, tt := range tests {
		if got := fmt.Sprint(e.Commands(tt.action)); got != tt.want {
			t.Errorf("Commands(%v) = %s, want %s", tt.action, got, tt.want)
		}
	}

	plain := NewExec("", []string{"lock"}, nil, testLogger())
	if got := fmt.Sprint(plain.Commands(presence.Lock)); got != "[[/bin/sh -c lock]]" {
		t.Errorf("Commands without run_as = %s", got)
	}
}

func TestExecStartsWithoutWaiting(t *testing.T) {
	e := NewExec("", []string{"one", "two", "three"}, nil, testLogger())
	var mu sync.Mutex
	var started []string
	release := make(chan struct{})
	e.start = func(argv []string) (func() error, error) {
		mu.Lock()
		defer mu.Unlock()
		started = append(started, argv[2])
		if argv[2] == "two" {
			return nil, errors.New("exec: not found")
		}
		return func() error { <-release; return nil }, nil
	}

	err := e.Execute(context.Background(), presence.Lock)
	close(release)
	if err == nil {
		t.Fatal("Execute() error = nil, want start failure")
	}
	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(started) != "[one two three]" {
		t.Errorf("started = %v", started)
	}
}

func TestExecNothingConfigured(t *testing.T) {
	e := NewExec("", nil, nil, testLogger())
	e.start = func([]string) (func() error, error) {
		t.Fatal("start called")
		return nil, nil
	}
	if err := e.Execute(context.Background(), presence.Unlock); err != nil {
		t.Errorf("Execute() error = %v", err)
	}
}

type fakeBus struct {
	calls []string
	err   error
}

func (f *fakeBus) CallWithContext(_ context.Context, method string, _ dbus.Flags, _ ...interface{}) *dbus.Call {
	f.calls = append(f.calls, method)
	return &dbus.Call{Method: method, Err: f.err}
}

func TestLogind(t *testing.T) {
	bus := &fakeBus{}
	l := &Logind{obj: bus, log: testLogger()}

	for _, a := range []presence.Action{presence.Lock, presence.NoChange, presence.Unlock} {
		if err := l.Execute(context.Background(), a); err != nil {
			t.Fatalf("Execute(%v) error = %v", a, err)
		}
	}
	want := "[org.freedesktop.login1.Manager.LockSessions org.freedesktop.login1.Manager.UnlockSessions]"
	if got := fmt.Sprint(bus.calls); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}

	bus.err = dbus.ErrClosed
	if err := l.Execute(context.Background(), presence.Lock); !errors.Is(err, dbus.ErrClosed) {
		t.Errorf("Execute() error = %v, want ErrClosed", err)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	if _, err := New(config.Actions{Backend: "xlock"}, testLogger()); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("New() error = %v", err)
	}
	a, err := New(config.Actions{Backend: config.BackendExec, Lock: []string{"x"}}, testLogger())
	if err != nil {
		t.Fatalf("New(exec) error = %v", err)
	}
	if _, ok := a.(*Exec); !ok {
		t.Errorf("New(exec) = %T", a)
	}
}
