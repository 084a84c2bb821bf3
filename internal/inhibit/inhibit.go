// Package inhibit keeps the cabinet display awake while a game runs by
// holding a screensaver inhibition on the session bus.
package inhibit

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	screenSaverName = "org.freedesktop.ScreenSaver"
	screenSaverPath = dbus.ObjectPath("/org/freedesktop/ScreenSaver")

	methodInhibit   = screenSaverName + ".Inhibit"
	methodUnInhibit = screenSaverName + ".UnInhibit"
)

// caller is the part of dbus.BusObject the inhibitor uses.
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// ScreenSaver holds at most one org.freedesktop.ScreenSaver inhibition.
type ScreenSaver struct {
	conn   *dbus.Conn
	obj    caller
	app    string
	logger *slog.Logger

	mu     sync.Mutex
	cookie uint32
	held   bool
}

// Connect opens a private session bus connection for app.
func Connect(app string, logger *slog.Logger) (*ScreenSaver, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	s := newScreenSaver(conn.Object(screenSaverName, screenSaverPath), app, logger)
	s.conn = conn
	return s, nil
}

func newScreenSaver(obj caller, app string, logger *slog.Logger) *ScreenSaver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenSaver{obj: obj, app: app, logger: logger}
}

// Inhibit asks the screensaver to stay off. Calling it while an inhibition
// is held does nothing.
func (s *ScreenSaver) Inhibit(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return nil
	}

	var cookie uint32
	if err := s.obj.Call(methodInhibit, 0, s.app, reason).Store(&cookie); err != nil {
		return fmt.Errorf("inhibit screensaver: %w", err)
	}
	s.cookie = cookie
	s.held = true
	s.logger.Debug("screensaver inhibited", "cookie", cookie, "reason", reason)
	return nil
}

// Release drops the held inhibition, if any.
func (s *ScreenSaver) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.held {
		return nil
	}
	cookie := s.cookie
	s.held = false
	s.cookie = 0

	if call := s.obj.Call(methodUnInhibit, 0, cookie); call.Err != nil {
		return fmt.Errorf("release screensaver inhibition: %w", call.Err)
	}
	s.logger.Debug("screensaver released", "cookie", cookie)
	return nil
}

// Held reports whether an inhibition is currently held.
func (s *ScreenSaver) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// Close releases any inhibition and closes the bus connection.
func (s *ScreenSaver) Close() error {
	err := s.Release()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Noop satisfies the inhibitor contract without a session bus. It is used
// when inhibition is disabled or the bus is unreachable.
type Noop struct{}

// Inhibit does nothing.
func (Noop) Inhibit(string) error { return nil }

// Release does nothing.
func (Noop) Release() error { return nil }
