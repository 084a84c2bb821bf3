// Package process owns the child processes the controller spawns: the
// emulator and the reader helper.
//
// Each child is started in its own process group so wrapper scripts and
// anything they fork are terminated together. The child is reaped in the
// background; Terminate returns once it has exited.
package process

import (
	"errors"
	"os/exec"
	"sync"
	"time"
)

// ReapTimeout bounds how long Terminate waits for a killed child to exit.
const ReapTimeout = 5 * time.Second

// ErrNotReaped is returned by Terminate when the child outlives ReapTimeout
// after SIGKILL.
var ErrNotReaped = errors.New("process: child did not exit after kill")

// Process is an owned child process.
type Process struct {
	cmd  *exec.Cmd
	pid  int
	done chan struct{}

	mu      sync.Mutex
	waitErr error
}

func newProcess(cmd *exec.Cmd) *Process {
	p := &Process{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go p.reap()
	return p
}

func (p *Process) reap() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()
	close(p.done)
}

// Pid returns the child's process id, which is also its process group id.
func (p *Process) Pid() int { return p.pid }

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the child has been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Err returns the result of waiting on the child. It is nil until Done is
// closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Wait blocks until the child exits and returns its wait error.
func (p *Process) Wait() error {
	<-p.done
	return p.Err()
}

// Terminate stops the child's process group. With a positive grace period
// the group gets SIGTERM first and SIGKILL only if it is still running when
// the period ends; otherwise it is killed right away. Terminating a child
// that already exited is a no-op.
func (p *Process) Terminate(grace time.Duration) error {
	if p.Exited() {
		return nil
	}

	if grace > 0 {
		if err := p.signalGroup(sigTerm); err != nil {
			return err
		}
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-p.done:
			return nil
		case <-timer.C:
		}
	}

	if err := p.signalGroup(sigKill); err != nil {
		return err
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(ReapTimeout):
		return ErrNotReaped
	}
}
