package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match any non-empty collection.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && len(e) > 0
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ValidateConfig performs field-level validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateDevice(&c.Device)...)
	errs = append(errs, validateReader(&c.Reader)...)
	errs = append(errs, validateLibrary(&c.Library)...)
	errs = append(errs, validatePlatforms(c.Platforms)...)
	errs = append(errs, validateKiosk(&c.Kiosk)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateDevice(d *DeviceConfig) ValidationErrors {
	var errs ValidationErrors
	if d.Path != "" {
		if !filepath.IsAbs(d.Path) {
			errs = append(errs, ValidationError{
				Field:   "device.path",
				Message: fmt.Sprintf("must be absolute: %s", d.Path),
			})
		}
		return errs
	}
	if d.DescriptorPath == "" {
		errs = append(errs, ValidationError{
			Field:   "device.descriptor_path",
			Message: "required when device.path is not set",
		})
	}
	if strings.TrimSpace(d.Marker) == "" {
		errs = append(errs, ValidationError{
			Field:   "device.marker",
			Message: "required when device.path is not set",
		})
	}
	return errs
}

func validateReader(r *ReaderConfig) ValidationErrors {
	if r.Helper == "" {
		return ValidationErrors{{Field: "reader.helper", Message: "required"}}
	}
	return nil
}

func validateLibrary(l *LibraryConfig) ValidationErrors {
	var errs ValidationErrors
	switch {
	case l.Dir == "":
		errs = append(errs, ValidationError{Field: "library.dir", Message: "required"})
	case filepath.IsAbs(l.Dir):
		// Keys are resolved as <DIR>/<selection>; an absolute root would
		// never match a swiped selection.
		errs = append(errs, ValidationError{
			Field:   "library.dir",
			Message: "must be relative to the install root",
		})
	}
	return errs
}

func validatePlatforms(ps []PlatformConfig) ValidationErrors {
	var errs ValidationErrors
	if len(ps) == 0 {
		return ValidationErrors{{Field: "platforms", Message: "at least one platform is required"}}
	}

	seen := make(map[string]bool, len(ps))
	for i, p := range ps {
		field := fmt.Sprintf("platforms[%d]", i)
		if p.Name == "" || strings.ContainsAny(p.Name, `/\`) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("invalid platform name %q", p.Name),
			})
		}
		if seen[p.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate platform %q", p.Name),
			})
		}
		seen[p.Name] = true

		if p.Binary == "" {
			errs = append(errs, ValidationError{Field: field + ".binary", Message: "required"})
		}
		if strings.Count(strings.Join(p.Args, "\x00"), RomPlaceholder) > 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".args",
				Message: fmt.Sprintf("%s may appear at most once", RomPlaceholder),
			})
		}
		for k := range p.Env {
			if k == "" || strings.Contains(k, "=") {
				errs = append(errs, ValidationError{
					Field:   field + ".env",
					Message: fmt.Sprintf("invalid variable name %q", k),
				})
			}
		}
	}
	return errs
}

func validateKiosk(k *KioskConfig) ValidationErrors {
	if k.TeardownGraceMs < 0 || k.TeardownGraceMs > 30000 {
		return ValidationErrors{{
			Field:   "kiosk.teardown_grace_ms",
			Message: "must be between 0 and 30000",
		}}
	}
	return nil
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}
