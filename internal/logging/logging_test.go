package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, level)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.Equal(t, "retroswiper", cfg.Component)
	assert.Positive(t, cfg.MaxSize)
	assert.Positive(t, cfg.MaxBackups)
}

func TestJSONOutputCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: LevelInfo, Format: FormatJSON, Component: "retroswiper"})

	l.WithComponent("session").Info("loading", "path", "roms/nes/mario.nes")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "loading", rec["msg"])
	assert.Equal(t, "session", rec["component"])
	assert.Equal(t, "roms/nes/mario.nes", rec["path"])
}

func TestSetLevelAffectsChildren(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: LevelInfo, Format: FormatText})
	child := l.WithComponent("keystroke")

	child.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, child.Level())
	child.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLoggerNewFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "retroswiper.log")

	l, err := New(cfg)
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestFileRotatorRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		FilePath:   filepath.Join(dir, "test.log"),
		MaxSize:    1,
		MaxAge:     7,
		MaxBackups: 3,
	}

	r, err := NewFileRotator(cfg)
	require.NoError(t, err)
	defer r.Close()

	line := []byte(strings.Repeat("x", 1023) + "\n")
	for i := 0; i < 1100; i++ {
		_, err := r.Write(line)
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, len(logFiles(t, dir)), 2, "expected a rotated file next to the live one")
}

func TestFileRotatorRotatesAtMidnight(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{FilePath: filepath.Join(dir, "day.log"), MaxSize: 10, MaxBackups: 3, MaxAge: 7}

	r, err := NewFileRotator(cfg)
	require.NoError(t, err)
	defer r.Close()

	tomorrow := time.Now().Add(24 * time.Hour)
	r.now = func() time.Time { return tomorrow }

	_, err = r.Write([]byte("next day\n"))
	require.NoError(t, err)

	assert.Len(t, logFiles(t, dir), 2)
}

func logFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.log*"))
	require.NoError(t, err)
	return files
}
