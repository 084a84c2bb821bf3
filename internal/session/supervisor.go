package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"retroswiper/internal/emulator"
	"retroswiper/internal/inhibit"
	"retroswiper/internal/keystroke"
	"retroswiper/internal/library"
	"retroswiper/internal/process"
	"retroswiper/internal/selector"
)

// Config wires a Supervisor to its collaborators.
type Config struct {
	Index     *library.Index
	Selector  *selector.Selector
	Launcher  Launcher
	Reader    SwipeReader
	Inhibitor Inhibitor

	// Grace is how long the emulator gets between SIGTERM and SIGKILL.
	Grace time.Duration

	// StartKey is played first. When empty a random playable key is drawn.
	StartKey string

	Logger *slog.Logger
}

// Supervisor owns at most one emulator at a time and hands the cabinet
// from game to game as cards are swiped.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	state State
}

// New validates cfg and returns a Supervisor.
func New(cfg Config) (*Supervisor, error) {
	switch {
	case cfg.Index == nil:
		return nil, errors.New("session: index is required")
	case cfg.Selector == nil:
		return nil, errors.New("session: selector is required")
	case cfg.Launcher == nil:
		return nil, errors.New("session: launcher is required")
	case cfg.Reader == nil:
		return nil, errors.New("session: reader is required")
	}
	if cfg.Inhibitor == nil {
		cfg.Inhibitor = inhibit.Noop{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{cfg: cfg, logger: logger}, nil
}

// State returns the phase the loop is in.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// SetPlatforms swaps the emulator table. It takes effect at the next launch.
func (s *Supervisor) SetPlatforms(platforms []emulator.Platform) {
	s.cfg.Launcher.SetPlatforms(platforms)
}

// Run loops until ctx is cancelled, which is a clean shutdown and returns
// nil. Failing to start the reader helper, the helper exiting without a
// swipe, or an emulator that survives SIGKILL ends the loop with an error.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.setState(StateIdle)

	key := s.cfg.StartKey
	if key == "" {
		var err error
		if key, err = s.cfg.Selector.PickRandom(); err != nil {
			return fmt.Errorf("pick starting game: %w", err)
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		next, err := s.iterate(ctx, key)
		if err != nil {
			if ctx.Err() != nil && !errors.Is(err, process.ErrNotReaped) {
				return nil
			}
			return err
		}
		key = next
	}
}

// iterate runs one Launching -> Listening -> Resolving -> TearingDown pass
// and returns the next key.
func (s *Supervisor) iterate(ctx context.Context, key string) (next string, err error) {
	sess := &Session{Key: key}
	defer func() {
		if terr := s.teardown(sess); terr != nil {
			next, err = "", terr
		}
	}()

	s.setState(StateLaunching)
	sess.emulator = s.launch(key)

	s.setState(StateListening)
	stream, err := s.cfg.Reader.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("start card reader: %w", err)
	}
	sess.reader = stream

	names, err := stream.ReadSwipe(ctx)
	if err != nil {
		return "", fmt.Errorf("read swipe: %w", err)
	}

	s.setState(StateResolving)
	selection := keystroke.Selection(keystroke.Decode(names))
	next, found := s.cfg.Selector.Resolve(selection)
	s.logger.Debug("swipe decoded", "keys", len(names), "selection", selection, "key", next, "found", found)
	return next, nil
}

// launch starts the emulator for key. Every failure is logged and leaves
// the iteration without an emulator.
func (s *Supervisor) launch(key string) Child {
	entry, ok := s.cfg.Index.Lookup(key)
	if !ok {
		s.logger.Warn("game not found", "key", key)
		return nil
	}

	s.logger.Info(">> LOADING", "path", entry.Path, "platform", entry.Platform)
	child, err := s.cfg.Launcher.Launch(entry)
	if err != nil {
		if errors.Is(err, emulator.ErrUnknownPlatform) {
			s.logger.Error("invalid system", "path", entry.Path)
		} else {
			s.logger.Error("emulator failed to start", "path", entry.Path, "error", err)
		}
		return nil
	}

	if err := s.cfg.Inhibitor.Inhibit("playing " + entry.Path); err != nil {
		s.logger.Debug("screensaver inhibit failed", "error", err)
	}
	return child
}

// teardown stops the reader, then the emulator, then drops the screensaver
// inhibition. Failures are logged, except an emulator that could not be
// reaped: no further game may start while it is alive.
func (s *Supervisor) teardown(sess *Session) error {
	s.setState(StateTearingDown)

	var stuck error
	if sess.reader != nil {
		if err := sess.reader.Close(); err != nil {
			s.logger.Debug("reader teardown", "error", err)
		}
		sess.reader = nil
	}
	if sess.emulator != nil {
		err := sess.emulator.Terminate(s.cfg.Grace)
		switch {
		case errors.Is(err, process.ErrNotReaped):
			s.logger.Error("emulator still running after kill", "key", sess.Key, "error", err)
			stuck = fmt.Errorf("stop emulator for %s: %w", sess.Key, err)
		case err != nil:
			s.logger.Debug("emulator teardown", "key", sess.Key, "error", err)
		}
		sess.emulator = nil
		if err := s.cfg.Inhibitor.Release(); err != nil {
			s.logger.Debug("screensaver release failed", "error", err)
		}
	}
	return stuck
}
