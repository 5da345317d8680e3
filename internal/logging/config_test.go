package logging

import (
	"testing"

	"github.com/fyrsmithlabs/bookmarkd/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Output.Stdout)
	assert.True(t, cfg.Redaction.Enabled)
	assert.Contains(t, cfg.Redaction.QueryParams, "access_token")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"format", func(c *Config) { c.Format = "text" }, "format must be json or console"},
		{"no output", func(c *Config) { c.Output = OutputConfig{} }, "at least one output"},
		{"tick", func(c *Config) { c.Sampling.Tick = 0 }, "tick must be positive"},
		{"initial", func(c *Config) { c.Sampling.Initial = 0 }, "invalid sampling"},
		{"thereafter", func(c *Config) { c.Sampling.Thereafter = -1 }, "invalid sampling"},
		{"empty field", func(c *Config) { c.Fields["env"] = "" }, "must have a key and a value"},
		{"empty key", func(c *Config) { c.Redaction.Keys = append(c.Redaction.Keys, "") }, "cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConfig_ValidateSkipsDisabledSections(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling = SamplingConfig{Enabled: false, Tick: config.Duration(0)}
	cfg.Redaction = RedactionConfig{Enabled: false, Keys: []string{""}}
	assert.NoError(t, cfg.Validate())
}
