// Package action executes the lock and unlock side effects.
package action

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/ystepanoff/rssilock/config"
	"github.com/ystepanoff/rssilock/presence"
)

type Actuator interface {
	Execute(ctx context.Context, a presence.Action) error
}

// New builds the actuator selected by cfg.Backend.
func New(cfg config.Actions, log logrus.FieldLogger) (Actuator, error) {
	switch cfg.Backend {
	case config.BackendExec, "":
		return NewExec(cfg.RunAs, cfg.Lock, cfg.Unlock, log), nil
	case config.BackendLogind:
		return NewLogind(log)
	}
	return nil, fmt.Errorf("%w: unknown action backend %q", config.ErrInvalidConfig, cfg.Backend)
}

// Exec runs shell command lines. Commands are started and not waited for;
// their exit status is only logged.
type Exec struct {
	runAs  string
	lock   []string
	unlock []string
	log    logrus.FieldLogger
	start  func(argv []string) (wait func() error, err error)
}

func NewExec(runAs string, lock, unlock []string, log logrus.FieldLogger) *Exec {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Exec{
		runAs:  runAs,
		lock:   lock,
		unlock: unlock,
		log:    log.WithField("component", "action"),
		start:  startCommand,
	}
}

// Commands returns the argv of every command configured for a.
func (e *Exec) Commands(a presence.Action) [][]string {
	var lines []string
	switch a {
	case presence.Lock:
		lines = e.lock
	case presence.Unlock:
		lines = e.unlock
	}
	out := make([][]string, 0, len(lines))
	for _, l := range lines {
		if e.runAs != "" {
			l = e.runAs + " " + l
		}
		out = append(out, []string{"/bin/sh", "-c", l})
	}
	return out
}

func (e *Exec) Execute(_ context.Context, a presence.Action) error {
	cmds := e.Commands(a)
	if len(cmds) == 0 {
		e.log.WithField("action", a).Debug("no commands configured")
		return nil
	}
	var errs []error
	for _, argv := range cmds {
		entry := e.log.WithFields(logrus.Fields{"action": a, "command": argv[len(argv)-1]})
		wait, err := e.start(argv)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", argv[len(argv)-1], err))
			continue
		}
		entry.Debug("started")
		go func() {
			if err := wait(); err != nil {
				entry.WithError(err).Warn("command failed")
			}
		}()
	}
	return errors.Join(errs...)
}

func startCommand(argv []string) (func() error, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Wait, nil
}
