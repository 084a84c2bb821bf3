package emulator

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retroswiper/internal/config"
	"retroswiper/internal/library"
	"retroswiper/internal/logging"
)

func defaultLauncher() *Launcher {
	return New(Platforms(config.DefaultConfig()), logging.Discard().Logger)
}

func TestPlatformsFromDefaults(t *testing.T) {
	ps := Platforms(config.DefaultConfig())
	require.Len(t, ps, 3)

	byName := make(map[string]Platform)
	for _, p := range ps {
		byName[p.Name] = p
	}
	assert.Equal(t, filepath.Join("roms", "nes"), byName["nes"].Dir)
	assert.Equal(t, filepath.Join("bin", "osmose"), byName["sms"].Binary)
	assert.Equal(t, []string{"-fs", "-nn2x", "-joy", "{rom}"}, byName["sms"].Args)

	groups := Groups(ps)
	require.Len(t, groups, 3)
	assert.Equal(t, library.Group{Platform: "nes", Dir: filepath.Join("roms", "nes")}, groups[0])
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"placeholder", []string{"-f", "{rom}"}, []string{"-f", "roms/nes/mario.nes"}},
		{"placeholder only", []string{"{rom}"}, []string{"roms/nes/mario.nes"}},
		{"no placeholder appends", []string{"-fs", "-nn2x", "-joy"}, []string{"-fs", "-nn2x", "-joy", "roms/nes/mario.nes"}},
		{"no args", nil, []string{"roms/nes/mario.nes"}},
		{"embedded placeholder", []string{"--rom={rom}", "-v"}, []string{"--rom=roms/nes/mario.nes", "-v"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Args(tt.args, "roms/nes/mario.nes"))
		})
	}
}

func TestArgsDoesNotModifyInput(t *testing.T) {
	args := []string{"-f", "{rom}"}
	Args(args, "x")
	assert.Equal(t, []string{"-f", "{rom}"}, args)
}

func TestEnviron(t *testing.T) {
	base := []string{"HOME=/home/arcade", "MESA_GL_VERSION_OVERRIDE=2.1", "PATH=/usr/bin"}

	got := Environ(base, map[string]string{"MESA_GL_VERSION_OVERRIDE": "3.2", "SDL_VIDEODRIVER": "kmsdrm"})
	assert.Equal(t, []string{
		"HOME=/home/arcade",
		"PATH=/usr/bin",
		"MESA_GL_VERSION_OVERRIDE=3.2",
		"SDL_VIDEODRIVER=kmsdrm",
	}, got)

	assert.Equal(t, base, Environ(base, nil))
}

func TestClassify(t *testing.T) {
	l := defaultLauncher()

	tests := []struct {
		path     string
		platform string
		ok       bool
	}{
		{"roms/nes/mario.nes", "nes", true},
		{"roms/smc/mario.smc", "smc", true},
		{"roms/sms/sonic.sms", "sms", true},
		{"roms/nesx/mario.nes", "", false},
		{"roms/gba/zelda.gba", "", false},
		{"roms/nes", "", false},
		{"ROMS/NES/MARIO.NES", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, ok := l.Classify(filepath.FromSlash(tt.path))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.platform, p.Name)
		})
	}
}

func TestCommand(t *testing.T) {
	l := defaultLauncher()
	rom := filepath.Join("roms", "nes", "mario.nes")

	cmd, err := l.Command(library.Entry{Key: library.Normalize(rom), Path: rom, Platform: "nes"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("bin", "nestopia"), cmd.Path)
	assert.Equal(t, []string{filepath.Join("bin", "nestopia"), "-f", rom}, cmd.Args)
	assert.Contains(t, cmd.Env, "MESA_GL_VERSION_OVERRIDE=3.2")
}

func TestCommandUnknownPlatform(t *testing.T) {
	l := defaultLauncher()

	_, err := l.Command(library.Entry{Path: filepath.Join("roms", "gba", "zelda.gba")})
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestSetPlatforms(t *testing.T) {
	l := defaultLauncher()
	l.SetPlatforms([]Platform{{Name: "gba", Dir: filepath.Join("roms", "gba"), Binary: "mgba"}})

	cmd, err := l.Command(library.Entry{Path: filepath.Join("roms", "gba", "zelda.gba")})
	require.NoError(t, err)
	assert.Equal(t, []string{"mgba", filepath.Join("roms", "gba", "zelda.gba")}, cmd.Args)

	_, err = l.Command(library.Entry{Path: filepath.Join("roms", "nes", "mario.nes")})
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestLaunch(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell emulator stand-in")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "invocation")
	bin := filepath.Join(dir, "nestopia")
	require.NoError(t, os.WriteFile(bin, []byte(
		"#!/bin/sh\necho \"$MESA_GL_VERSION_OVERRIDE $*\" > "+out+"\n"), 0755))

	l := New([]Platform{{
		Name:   "nes",
		Dir:    filepath.Join("roms", "nes"),
		Binary: bin,
		Args:   []string{"-f", config.RomPlaceholder},
		Env:    map[string]string{"MESA_GL_VERSION_OVERRIDE": "3.2"},
	}}, logging.Discard().Logger)

	proc, err := l.Launch(library.Entry{Path: "roms/nes/mario.nes"})
	require.NoError(t, err)

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("emulator stand-in did not exit")
	}
	require.NoError(t, proc.Err())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "3.2 -f roms/nes/mario.nes\n", string(data))
}

func TestLaunchMissingBinary(t *testing.T) {
	l := New([]Platform{{
		Name:   "nes",
		Dir:    "roms/nes",
		Binary: filepath.Join(t.TempDir(), "nestopia"),
	}}, logging.Discard().Logger)

	_, err := l.Launch(library.Entry{Path: "roms/nes/mario.nes"})
	assert.Error(t, err)
}
