package action

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/ystepanoff/rssilock/presence"
)

const (
	logindBus     = "org.freedesktop.login1"
	logindPath    = dbus.ObjectPath("/org/freedesktop/login1")
	logindManager = "org.freedesktop.login1.Manager"
)

type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Logind locks and unlocks every session through systemd-logind.
type Logind struct {
	obj caller
	log logrus.FieldLogger
}

func NewLogind(log logrus.FieldLogger) (*Logind, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system DBus: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logind{
		obj: conn.Object(logindBus, logindPath),
		log: log.WithField("component", "action"),
	}, nil
}

func logindMethod(a presence.Action) string {
	switch a {
	case presence.Lock:
		return logindManager + ".LockSessions"
	case presence.Unlock:
		return logindManager + ".UnlockSessions"
	}
	return ""
}

func (l *Logind) Execute(ctx context.Context, a presence.Action) error {
	method := logindMethod(a)
	if method == "" {
		return nil
	}
	call := l.obj.CallWithContext(ctx, method, 0)
	if call.Err != nil {
		return fmt.Errorf("%s failed: %w", method, call.Err)
	}
	l.log.WithField("action", a).Debug(method)
	return nil
}
