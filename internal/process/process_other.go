//go:build !unix

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

var (
	sigTerm = os.Interrupt
	sigKill = os.Kill
)

// Start launches cmd. Process groups are not available on this platform, so
// only the direct child is signalled.
func Start(cmd *exec.Cmd) (*Process, error) {
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	return newProcess(cmd), nil
}

func (p *Process) signalGroup(sig os.Signal) error {
	err := p.cmd.Process.Signal(sig)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return fmt.Errorf("signal process %d: %w", p.pid, err)
}
