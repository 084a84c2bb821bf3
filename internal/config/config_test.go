package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retroswiper/internal/logging"
)

func TestDefaultConfigReproducesCabinetTable(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.NoError(t, ValidateSchema(cfg))

	nes := platformNamed(t, cfg, "nes")
	assert.Equal(t, filepath.Join("bin", "nestopia"), nes.Binary)
	assert.Equal(t, []string{"-f", RomPlaceholder}, nes.Args)
	assert.Equal(t, "3.2", nes.Env["MESA_GL_VERSION_OVERRIDE"])

	sms := platformNamed(t, cfg, "sms")
	assert.Equal(t, []string{"-fs", "-nn2x", "-joy", RomPlaceholder}, sms.Args)
	assert.Empty(t, sms.Env)

	smc := platformNamed(t, cfg, "smc")
	assert.Equal(t, []string{RomPlaceholder}, smc.Args)

	assert.Equal(t, "roms", cfg.Library.Dir)
	assert.Equal(t, "ROMS", cfg.SelectionRoot())
	assert.Equal(t, filepath.Join("roms", "nes"), cfg.PlatformDir(nes))
	assert.Equal(t, "evtest", cfg.Reader.Helper)
	assert.Equal(t, "/proc/bus/input/devices", cfg.Device.DescriptorPath)
	assert.Equal(t, "HID", cfg.Device.Marker)
	assert.Zero(t, cfg.TeardownGrace())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.toml")).Load()
	require.NoError(t, err)
	assert.Len(t, cfg.Platforms, 3)
}

func TestLoadTOMLReplacesPlatformTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retroswiper.toml")
	content := `
version = 1

[library]
dir = "games"

[[platforms]]
name = "gb"
binary = "bin/sameboy"

[kiosk]
teardown_grace_ms = 250

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	require.Len(t, cfg.Platforms, 1)
	assert.Equal(t, "gb", cfg.Platforms[0].Name)
	assert.Empty(t, cfg.Platforms[0].Args, "default args must not leak into a replaced table")
	assert.Empty(t, cfg.Platforms[0].Env)
	assert.Equal(t, "GAMES", cfg.SelectionRoot())
	assert.Equal(t, 250*time.Millisecond, cfg.TeardownGrace())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "evtest", cfg.Reader.Helper, "untouched sections keep defaults")
}

func TestLoadTOMLRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retroswiper.toml")
	require.NoError(t, os.WriteFile(path, []byte("[reader]\nhelpr = \"evtest\"\n"), 0600))

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
}

func TestLoadYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "retroswiper.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
version: 1
reader:
  helper: /usr/local/bin/evtest
platforms:
  - name: nes
    binary: bin/fceux
    args: ["{rom}"]
`), 0600))
	cfg, err := NewLoader(yamlPath).Load()
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/evtest", cfg.Reader.Helper)
	require.Len(t, cfg.Platforms, 1)
	assert.Equal(t, "bin/fceux", cfg.Platforms[0].Binary)

	jsonPath := filepath.Join(dir, "retroswiper.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"version":1,"device":{"path":"/dev/input/event7"}}`), 0600))
	cfg, err = NewLoader(jsonPath).Load()
	require.NoError(t, err)
	assert.Equal(t, "/dev/input/event7", cfg.Device.Path)
	assert.Len(t, cfg.Platforms, 3)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = 9
	cfg.Library.Dir = "/abs/roms"
	cfg.Platforms = append(cfg.Platforms, PlatformConfig{Name: "nes"})
	cfg.Kiosk.TeardownGraceMs = -1
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := make(map[string]bool)
	for _, e := range verrs {
		fields[e.Field] = true
	}
	assert.True(t, fields["version"])
	assert.True(t, fields["library.dir"])
	assert.True(t, fields["platforms[3].name"])
	assert.True(t, fields["platforms[3].binary"])
	assert.True(t, fields["kiosk.teardown_grace_ms"])
	assert.True(t, fields["logging.level"])
}

func TestValidateDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device.Path = "event3"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Device.Marker = " "
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Device.Path = "/dev/input/event3"
	cfg.Device.Marker = ""
	assert.NoError(t, cfg.Validate(), "an explicit path skips discovery settings")
}

func TestValidateSchemaRejectsOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.MaxSizeMB = 0
	err := ValidateSchema(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RETROSWIPER_DEVICE", "/dev/input/event9")
	t.Setenv("RETROSWIPER_READER", "/opt/evtest")
	t.Setenv("RETROSWIPER_LOG_LEVEL", "warn")
	t.Setenv("RETROSWIPER_LOG_PATH", "/var/log/retroswiper.log")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "/dev/input/event9", cfg.Device.Path)
	assert.Equal(t, "/opt/evtest", cfg.Reader.Helper)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/var/log/retroswiper.log", cfg.Logging.FilePath)
	assert.Equal(t, "both", cfg.Logging.Output)
}

func TestPathHonoursEnv(t *testing.T) {
	assert.Equal(t, filepath.Join("/opt/cab", DefaultFileName), Path("/opt/cab"))
	t.Setenv("RETROSWIPER_CONFIG", "/etc/retroswiper.yaml")
	assert.Equal(t, "/etc/retroswiper.yaml", Path("/opt/cab"))
}

func TestCloneIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()

	clone.Platforms[0].Args[0] = "--changed"
	clone.Platforms[0].Env["MESA_GL_VERSION_OVERRIDE"] = "4.5"

	assert.Equal(t, "-f", cfg.Platforms[0].Args[0])
	assert.Equal(t, "3.2", cfg.Platforms[0].Env["MESA_GL_VERSION_OVERRIDE"])
}

func TestLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	lc, err := cfg.LoggerConfig("/opt/cab")
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, logging.FormatJSON, lc.Format)
	assert.Equal(t, filepath.Join("/opt/cab", "logs", "retroswiper.log"), lc.FilePath)
	assert.Equal(t, int64(10), lc.MaxSize)
}

func platformNamed(t *testing.T, cfg *Config, name string) PlatformConfig {
	t.Helper()
	for _, p := range cfg.Platforms {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("platform %q not configured", name)
	return PlatformConfig{}
}
