// Package session runs the cabinet loop: launch the current game, wait for
// a swipe, resolve it, tear everything down and start over.
package session

import (
	"context"
	"time"

	"retroswiper/internal/emulator"
	"retroswiper/internal/keystroke"
	"retroswiper/internal/library"
)

// State is a phase of one loop iteration.
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateListening
	StateResolving
	StateTearingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateListening:
		return "listening"
	case StateResolving:
		return "resolving"
	case StateTearingDown:
		return "tearing_down"
	default:
		return "unknown"
	}
}

// Child is an owned subprocess that can be stopped.
type Child interface {
	Terminate(grace time.Duration) error
}

// Launcher starts the emulator for a library entry.
type Launcher interface {
	Launch(entry library.Entry) (Child, error)
	SetPlatforms(platforms []emulator.Platform)
}

// SwipeStream is one running reader helper.
type SwipeStream interface {
	ReadSwipe(ctx context.Context) ([]string, error)
	Close() error
}

// SwipeReader spawns a fresh reader helper per iteration.
type SwipeReader interface {
	Open(ctx context.Context) (SwipeStream, error)
}

// Inhibitor keeps the display awake while a game runs.
type Inhibitor interface {
	Inhibit(reason string) error
	Release() error
}

// Session is the state of one iteration: the key being played and the two
// children it owns. Both handles are released when the iteration ends.
type Session struct {
	Key      string
	reader   SwipeStream
	emulator Child
}

// Emulators adapts an emulator.Launcher to Launcher.
func Emulators(l *emulator.Launcher) Launcher {
	return emulatorLauncher{l}
}

type emulatorLauncher struct {
	*emulator.Launcher
}

func (l emulatorLauncher) Launch(entry library.Entry) (Child, error) {
	proc, err := l.Launcher.Launch(entry)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

// Swipes adapts a keystroke.Reader to SwipeReader.
func Swipes(r *keystroke.Reader) SwipeReader {
	return swipeReader{r}
}

type swipeReader struct {
	r *keystroke.Reader
}

func (s swipeReader) Open(ctx context.Context) (SwipeStream, error) {
	stream, err := s.r.Open(ctx)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
