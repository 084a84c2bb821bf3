package keystroke

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"retroswiper/internal/process"
)

// DefaultHelper prints the key events of an input device, one per line.
const DefaultHelper = "evtest"

// ErrReaderClosed means the helper's output ended before any key was read,
// usually because the helper exited or lost the device.
var ErrReaderClosed = errors.New("keystroke: reader helper closed its output")

// Reader spawns the event helper against the card reader device.
type Reader struct {
	helper string
	device string
}

// NewReader returns a Reader that runs helper with device as its only
// argument.
func NewReader(helper, device string) *Reader {
	if helper == "" {
		helper = DefaultHelper
	}
	return &Reader{helper: helper, device: device}
}

// Open spawns a fresh helper and starts streaming its standard output.
// Standard error is discarded.
func (r *Reader) Open(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The pipe is owned here rather than by exec so reaping the child never
	// closes it under a pending read.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create reader pipe: %w", err)
	}

	cmd := exec.Command(r.helper, r.device)
	cmd.Stdout = pw
	proc, err := process.Start(cmd)
	pw.Close()
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("spawn reader helper: %w", err)
	}

	s := &Stream{
		proc:  proc,
		pipe:  pr,
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.scan()
	return s, nil
}

// Stream is one running helper. It is not safe for concurrent ReadSwipe
// calls.
type Stream struct {
	proc  *process.Process
	pipe  *os.File
	lines chan string
	done  chan struct{}
	wg    sync.WaitGroup

	// scanErr is written before lines is closed and read only after.
	scanErr error

	closeOnce sync.Once
	closeErr  error
}

func (s *Stream) scan() {
	defer s.wg.Done()
	defer close(s.lines)

	scanner := bufio.NewScanner(s.pipe)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.done:
			return
		}
	}
	select {
	case <-s.done:
	default:
		s.scanErr = scanner.Err()
	}
}

// Pid returns the helper's process id.
func (s *Stream) Pid() int { return s.proc.Pid() }

// ReadSwipe collects key names from release events until ENTER (inclusive)
// or the end of the stream. It returns ErrReaderClosed when the stream ends
// cleanly with no key read, the read error when the output could not be
// scanned, and ctx.Err() with the names read so far when ctx is cancelled
// first.
func (s *Stream) ReadSwipe(ctx context.Context) ([]string, error) {
	var names []string
	for {
		select {
		case <-ctx.Done():
			return names, ctx.Err()

		case line, ok := <-s.lines:
			if !ok {
				if s.scanErr != nil {
					return names, fmt.Errorf("read reader output: %w", s.scanErr)
				}
				if len(names) == 0 {
					return nil, ErrReaderClosed
				}
				return names, nil
			}
			name, ok := ParseEventLine(line)
			if !ok {
				continue
			}
			names = append(names, name)
			if name == KeyEnter {
				return names, nil
			}
		}
	}
}

// Close kills the helper, closes its output and waits for the scanning
// goroutine. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.proc.Terminate(0)
		s.pipe.Close()
		s.wg.Wait()
	})
	return s.closeErr
}
