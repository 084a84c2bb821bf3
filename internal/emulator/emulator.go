// Package emulator maps library entries to emulator invocations and starts
// them.
package emulator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"retroswiper/internal/config"
	"retroswiper/internal/library"
	"retroswiper/internal/process"
)

// ErrUnknownPlatform is returned when an entry's path lies under no
// configured platform directory.
var ErrUnknownPlatform = errors.New("emulator: invalid system")

// Platform is one row of the invocation table.
type Platform struct {
	Name   string
	Dir    string
	Binary string
	Args   []string
	Env    map[string]string
}

// Platforms converts the configured table into launcher platforms.
func Platforms(cfg *config.Config) []Platform {
	out := make([]Platform, 0, len(cfg.Platforms))
	for _, p := range cfg.Platforms {
		out = append(out, Platform{
			Name:   p.Name,
			Dir:    cfg.PlatformDir(p),
			Binary: p.Binary,
			Args:   slices.Clone(p.Args),
			Env:    p.Env,
		})
	}
	return out
}

// Groups returns the library groups the platforms are scanned from.
func Groups(platforms []Platform) []library.Group {
	groups := make([]library.Group, len(platforms))
	for i, p := range platforms {
		groups[i] = library.Group{Platform: p.Name, Dir: p.Dir}
	}
	return groups
}

// Launcher starts emulators from a swappable platform table.
type Launcher struct {
	mu        sync.RWMutex
	platforms []Platform

	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// New returns a Launcher for platforms. Emulator output goes to the
// controller's own stdout and stderr.
func New(platforms []Platform, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		platforms: slices.Clone(platforms),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		logger:    logger,
	}
}

// SetPlatforms replaces the invocation table. Running emulators are not
// affected.
func (l *Launcher) SetPlatforms(platforms []Platform) {
	l.mu.Lock()
	l.platforms = slices.Clone(platforms)
	l.mu.Unlock()
	l.logger.Debug("platform table replaced", "platforms", len(platforms))
}

// Classify finds the platform whose directory contains path.
func (l *Launcher) Classify(path string) (Platform, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	clean := filepath.Clean(path)
	for _, p := range l.platforms {
		dir := filepath.Clean(p.Dir)
		if strings.HasPrefix(clean, dir+string(filepath.Separator)) {
			return p, true
		}
	}
	return Platform{}, false
}

// Command builds the emulator command for entry without starting it.
func (l *Launcher) Command(entry library.Entry) (*exec.Cmd, error) {
	p, ok := l.Classify(entry.Path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, entry.Path)
	}

	cmd := exec.Command(p.Binary, Args(p.Args, entry.Path)...)
	cmd.Env = Environ(os.Environ(), p.Env)
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	return cmd, nil
}

// Launch starts the emulator for entry in its own process group.
func (l *Launcher) Launch(entry library.Entry) (*process.Process, error) {
	cmd, err := l.Command(entry)
	if err != nil {
		return nil, err
	}
	proc, err := process.Start(cmd)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("emulator started", "binary", cmd.Path, "pid", proc.Pid())
	return proc, nil
}

// Args substitutes rom for config.RomPlaceholder in args. When no argument
// carries the placeholder, rom is appended.
func Args(args []string, rom string) []string {
	out := make([]string, 0, len(args)+1)
	replaced := false
	for _, a := range args {
		if strings.Contains(a, config.RomPlaceholder) {
			a = strings.ReplaceAll(a, config.RomPlaceholder, rom)
			replaced = true
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, rom)
	}
	return out
}

// Environ returns base with overrides applied. Overridden variables are
// removed from base and appended in key order.
func Environ(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[k]; ok {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
