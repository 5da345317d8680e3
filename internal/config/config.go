// Package config provides configuration loading for bookmarkd.
//
// Configuration is loaded from a YAML file, overridden by environment
// variables, and completed with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config holds the complete bookmarkd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Extension ExtensionConfig `koanf:"extension"`
	Settings  SettingsConfig  `koanf:"settings"`
	Places    PlacesConfig    `koanf:"places"`
	NATS      NATSConfig      `koanf:"nats"`
	Cleaning  CleaningConfig  `koanf:"cleaning"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ExtensionConfig identifies the trusted message sender.
type ExtensionConfig struct {
	ID string `koanf:"id"`
}

// SettingsConfig locates the YAML settings file holding the rules.
type SettingsConfig struct {
	Path string `koanf:"path"`
}

// PlacesConfig locates the SQLite bookmark and history database.
type PlacesConfig struct {
	Path string `koanf:"path"`
}

// NATSConfig holds the optional NATS transport configuration.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
	Token         Secret `koanf:"token"`
}

// CleaningConfig tunes cleaning passes.
type CleaningConfig struct {
	DeleteRate        float64 `koanf:"delete_rate"`  // deletions per second, 0 = unlimited
	DeleteBurst       int     `koanf:"delete_burst"` // limiter burst, defaults to 1 when rate is set
	HistoryMaxResults int     `koanf:"history_max_results"`
}

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig enables OTLP export of traces and metrics.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"` // grpc or http/protobuf
	Insecure       bool     `koanf:"insecure"`
	TLSSkipVerify  bool     `koanf:"tls_skip_verify"`
	SampleRate     *float64 `koanf:"sample_rate"`
	DisableMetrics bool     `koanf:"disable_metrics"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Validation limits.
const (
	maxExtensionIDLen = 128
)

var (
	// hostnamePattern allows only valid hostname characters (alphanumeric, dots, hyphens)
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*$`)
	// subjectPattern allows NATS subject tokens separated by dots, no wildcards
	subjectPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)*$`)
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}
	if c.Server.Host != "" && !hostnamePattern.MatchString(c.Server.Host) {
		errs = append(errs, fmt.Errorf("invalid server host: %q", c.Server.Host))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}

	if c.Extension.ID == "" {
		errs = append(errs, errors.New("extension id is required"))
	} else if len(c.Extension.ID) > maxExtensionIDLen {
		errs = append(errs, fmt.Errorf("extension id exceeds max length %d", maxExtensionIDLen))
	}

	if err := validatePath("settings path", c.Settings.Path); err != nil {
		errs = append(errs, err)
	}
	if c.Places.Path != ":memory:" {
		if err := validatePath("places path", c.Places.Path); err != nil {
			errs = append(errs, err)
		}
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats url is required when nats is enabled"))
		} else if u, err := url.Parse(c.NATS.URL); err != nil || u.Scheme == "" {
			errs = append(errs, fmt.Errorf("invalid nats url: %q", c.NATS.URL))
		}
		if !subjectPattern.MatchString(c.NATS.SubjectPrefix) {
			errs = append(errs, fmt.Errorf("invalid nats subject prefix: %q", c.NATS.SubjectPrefix))
		}
	}

	if c.Cleaning.DeleteRate < 0 {
		errs = append(errs, fmt.Errorf("cleaning delete rate cannot be negative: %v", c.Cleaning.DeleteRate))
	}
	if c.Cleaning.DeleteBurst < 0 {
		errs = append(errs, fmt.Errorf("cleaning delete burst cannot be negative: %d", c.Cleaning.DeleteBurst))
	}
	if c.Cleaning.HistoryMaxResults <= 0 {
		errs = append(errs, fmt.Errorf("cleaning history max results must be positive: %d", c.Cleaning.HistoryMaxResults))
	}

	if c.Telemetry.SampleRate != nil && (*c.Telemetry.SampleRate < 0 || *c.Telemetry.SampleRate > 1) {
		errs = append(errs, fmt.Errorf("telemetry sample rate must be between 0 and 1: %v", *c.Telemetry.SampleRate))
	}
	if c.Telemetry.ExportInterval < 0 {
		errs = append(errs, errors.New("telemetry export interval cannot be negative"))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("invalid logging format: %q (must be json or console)", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// validatePath rejects empty paths and paths containing traversal segments.
func validatePath(name, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required", name)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("%s contains path traversal: %q", name, path)
		}
	}
	return nil
}

// Default values applied by applyDefaults.
const (
	DefaultHTTPPort          = 9191
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultSubjectPrefix     = "bookmarkd"
	DefaultHistoryMaxResults = 1_000_000_000
)
