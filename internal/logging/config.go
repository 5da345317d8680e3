package logging

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/config"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level     `koanf:"level"`
	Format    string            `koanf:"format"` // json or console
	Output    OutputConfig      `koanf:"output"`
	Sampling  SamplingConfig    `koanf:"sampling"`
	Caller    bool              `koanf:"caller"`
	Fields    map[string]string `koanf:"fields"`
	Redaction RedactionConfig   `koanf:"redaction"`
}

// OutputConfig selects the log sinks.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	OTEL   bool `koanf:"otel"`

	// Writer replaces os.Stdout for the stdout sink.
	Writer io.Writer `koanf:"-"`
}

// SamplingConfig limits entries below Error to Initial per message and
// tick, then every Thereafter-th. Thereafter 0 drops the rest.
type SamplingConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Tick       config.Duration `koanf:"tick"`
	Initial    int             `koanf:"initial"`
	Thereafter int             `koanf:"thereafter"`
}

// RedactionConfig lists what is scrubbed from log fields.
type RedactionConfig struct {
	Enabled bool `koanf:"enabled"`
	// Keys are field names whose values are dropped, compared case-insensitively.
	Keys []string `koanf:"keys"`
	// QueryParams are URL query parameters whose values are dropped from
	// any URL-valued string field.
	QueryParams []string `koanf:"query_params"`
}

// NewDefaultConfig returns the production defaults: JSON to stdout at
// Info, sampled, with redaction on.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Second),
			Initial:    100,
			Thereafter: 10,
		},
		Caller: true,
		Fields: map[string]string{
			"service": "bookmarkd",
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Keys: []string{
				"password", "secret", "token", "api_key",
				"authorization", "credential", "cookie",
			},
			QueryParams: []string{
				"token", "access_token", "id_token", "refresh_token", "auth",
				"key", "api_key", "apikey", "password", "secret",
				"session", "sessionid", "sid", "code", "sig", "signature",
			},
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "json" && c.Format != "console" {
		errs = append(errs, fmt.Errorf("format must be json or console, got %q", c.Format))
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		errs = append(errs, errors.New("at least one output must be enabled (stdout or otel)"))
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick.Duration() <= 0 {
			errs = append(errs, errors.New("sampling tick must be positive"))
		}
		if c.Sampling.Initial <= 0 || c.Sampling.Thereafter < 0 {
			errs = append(errs, fmt.Errorf("invalid sampling initial=%d thereafter=%d", c.Sampling.Initial, c.Sampling.Thereafter))
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			errs = append(errs, fmt.Errorf("constant field %q=%q must have a key and a value", k, v))
		}
	}
	if c.Redaction.Enabled {
		for _, k := range append(append([]string{}, c.Redaction.Keys...), c.Redaction.QueryParams...) {
			if k == "" {
				errs = append(errs, errors.New("redaction entries cannot be empty"))
				break
			}
		}
	}
	return errors.Join(errs...)
}
