// Package config handles configuration loading, validation, and hot reload
// for retroswiper.
//
// Every field has a default that reproduces the stock cabinet layout, so a
// missing config file is not an error.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"retroswiper/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// RomPlaceholder in an emulator argument list is replaced by the ROM path.
// When no argument contains it, the path is appended.
const RomPlaceholder = "{rom}"

// Config holds the complete controller configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Device selects the card reader input node.
	Device DeviceConfig `toml:"device" json:"device" yaml:"device"`

	// Reader configures the helper process that prints key events.
	Reader ReaderConfig `toml:"reader" json:"reader" yaml:"reader"`

	// Library configures where ROMs live.
	Library LibraryConfig `toml:"library" json:"library" yaml:"library"`

	// Platforms is the per-platform emulator invocation table.
	Platforms []PlatformConfig `toml:"platforms" json:"platforms" yaml:"platforms"`

	// Kiosk holds cabinet behaviour knobs.
	Kiosk KioskConfig `toml:"kiosk" json:"kiosk" yaml:"kiosk"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// DeviceConfig locates the card reader.
type DeviceConfig struct {
	// Path is an explicit /dev/input/eventN node. When set, discovery is skipped.
	Path string `toml:"path" json:"path" yaml:"path"`

	// DescriptorPath is the pseudo-file listing connected input devices.
	DescriptorPath string `toml:"descriptor_path" json:"descriptor_path" yaml:"descriptor_path"`

	// Marker identifies the reader's block in DescriptorPath.
	Marker string `toml:"marker" json:"marker" yaml:"marker"`
}

// ReaderConfig configures the event helper.
type ReaderConfig struct {
	// Helper is the executable spawned with the device path as its only argument.
	Helper string `toml:"helper" json:"helper" yaml:"helper"`
}

// LibraryConfig configures the ROM tree.
type LibraryConfig struct {
	// Dir is the library root relative to the install root. Its uppercase
	// form prefixes swiped selections.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`
}

// PlatformConfig describes one emulated system.
type PlatformConfig struct {
	// Name is the platform tag; its ROMs live in <library.dir>/<name>.
	Name string `toml:"name" json:"name" yaml:"name"`

	// Binary is the emulator executable, relative to the install root or absolute.
	Binary string `toml:"binary" json:"binary" yaml:"binary"`

	// Args is the argument list. RomPlaceholder marks the ROM path.
	Args []string `toml:"args" json:"args" yaml:"args"`

	// Env holds environment overrides added to the inherited environment.
	Env map[string]string `toml:"env" json:"env" yaml:"env"`
}

// KioskConfig holds cabinet behaviour knobs.
type KioskConfig struct {
	// InhibitScreensaver asks the session bus to keep the display awake
	// while an emulator runs.
	InhibitScreensaver bool `toml:"inhibit_screensaver" json:"inhibit_screensaver" yaml:"inhibit_screensaver"`

	// TeardownGraceMs is how long a child gets after SIGTERM before SIGKILL.
	// Zero kills immediately.
	TeardownGraceMs int `toml:"teardown_grace_ms" json:"teardown_grace_ms" yaml:"teardown_grace_ms"`

	// WatchConfig enables hot reload of the platform table and log level.
	WatchConfig bool `toml:"watch_config" json:"watch_config" yaml:"watch_config"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the output format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stdout, stderr, file or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file, relative to the install root or absolute.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the size at which the log file rotates.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
}

// DefaultConfig returns the stock cabinet configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Device: DeviceConfig{
			DescriptorPath: "/proc/bus/input/devices",
			Marker:         "HID",
		},
		Reader: ReaderConfig{
			Helper: "evtest",
		},
		Library: LibraryConfig{
			Dir: "roms",
		},
		Platforms: DefaultPlatforms(),
		Kiosk: KioskConfig{
			InhibitScreensaver: true,
			TeardownGraceMs:    0,
			WatchConfig:        true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join("logs", "retroswiper.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// DefaultPlatforms returns the emulator table of the reference cabinet.
func DefaultPlatforms() []PlatformConfig {
	return []PlatformConfig{
		{
			Name:   "nes",
			Binary: filepath.Join("bin", "nestopia"),
			Args:   []string{"-f", RomPlaceholder},
			Env:    map[string]string{"MESA_GL_VERSION_OVERRIDE": "3.2"},
		},
		{
			Name:   "smc",
			Binary: filepath.Join("bin", "snes9x"),
			Args:   []string{RomPlaceholder},
		},
		{
			Name:   "sms",
			Binary: filepath.Join("bin", "osmose"),
			Args:   []string{"-fs", "-nn2x", "-joy", RomPlaceholder},
		},
	}
}

// PlatformDir returns the ROM directory of p relative to the install root.
func (c *Config) PlatformDir(p PlatformConfig) string {
	return filepath.Join(c.Library.Dir, p.Name)
}

// SelectionRoot is the uppercase prefix swiped selections are resolved under.
func (c *Config) SelectionRoot() string {
	return strings.ToUpper(filepath.ToSlash(filepath.Clean(c.Library.Dir)))
}

// TeardownGrace returns Kiosk.TeardownGraceMs as a duration.
func (c *Config) TeardownGrace() time.Duration {
	return time.Duration(c.Kiosk.TeardownGraceMs) * time.Millisecond
}

// LoggerConfig converts the logging section into a logging.Config, resolving
// relative file paths against root.
func (c *Config) LoggerConfig(root string) (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}

	out := logging.DefaultConfig()
	out.Level = level
	out.Format = format
	out.Output = c.Logging.Output
	out.FilePath = c.Logging.FilePath
	if !filepath.IsAbs(out.FilePath) && root != "" {
		out.FilePath = filepath.Join(root, out.FilePath)
	}
	out.MaxSize = int64(c.Logging.MaxSizeMB)
	out.MaxBackups = c.Logging.MaxBackups
	out.MaxAge = c.Logging.MaxAgeDays
	return out, nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with RETROSWIPER_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RETROSWIPER_DEVICE"); v != "" {
		c.Device.Path = v
	}
	if v := os.Getenv("RETROSWIPER_READER"); v != "" {
		c.Reader.Helper = v
	}
	if v := os.Getenv("RETROSWIPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RETROSWIPER_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
		if c.Logging.Output == "stderr" || c.Logging.Output == "stdout" {
			c.Logging.Output = "both"
		}
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Platforms = make([]PlatformConfig, len(c.Platforms))
	for i, p := range c.Platforms {
		p.Args = append([]string(nil), p.Args...)
		p.Env = maps.Clone(p.Env)
		clone.Platforms[i] = p
	}
	return &clone
}

// String summarises the config for startup logs.
func (c *Config) String() string {
	names := make([]string, len(c.Platforms))
	for i, p := range c.Platforms {
		names[i] = p.Name
	}
	return fmt.Sprintf("library=%s platforms=[%s] reader=%s", c.Library.Dir, strings.Join(names, ","), c.Reader.Helper)
}
