package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "disabled is always valid", modify: func(c *Config) { c.Endpoint = "" }},
		{name: "enabled defaults", modify: func(c *Config) { c.Enabled = true }},
		{
			name:    "missing endpoint",
			modify:  func(c *Config) { c.Enabled = true; c.Endpoint = "" },
			wantErr: "endpoint is required",
		},
		{
			name:    "unknown protocol",
			modify:  func(c *Config) { c.Enabled = true; c.Protocol = "udp" },
			wantErr: "unsupported protocol",
		},
		{
			name:    "insecure remote endpoint",
			modify:  func(c *Config) { c.Enabled = true; c.Endpoint = "collector.example.com:4317" },
			wantErr: "insecure export",
		},
		{
			name: "tls remote endpoint",
			modify: func(c *Config) {
				c.Enabled = true
				c.Endpoint = "collector.example.com:4317"
				c.Insecure = false
			},
		},
		{
			name:    "sampling out of range",
			modify:  func(c *Config) { c.Enabled = true; c.Sampling.Rate = 1.5 },
			wantErr: "sampling rate",
		},
		{
			name:    "zero export interval",
			modify:  func(c *Config) { c.Enabled = true; c.Metrics.ExportInterval = 0 },
			wantErr: "export interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := map[string]bool{
		"localhost:4317":        true,
		"127.0.0.1:4317":        true,
		"127.8.0.1":             true,
		"[::1]:4317":            true,
		"http://localhost:4318": true,
		"10.0.0.5:4317":         false,
		"collector:4317":        false,
	}
	for endpoint, want := range tests {
		assert.Equal(t, want, isLoopback(endpoint), endpoint)
	}
}

func TestFromConfig(t *testing.T) {
	rate := 0.25
	cfg := FromConfig(config.TelemetryConfig{
		Enabled:        true,
		Endpoint:       "localhost:4318",
		Protocol:       ProtocolHTTP,
		Insecure:       true,
		SampleRate:     &rate,
		DisableMetrics: true,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, 0.25, cfg.Sampling.Rate)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "bookmarkd", cfg.ServiceName)
	assert.NoError(t, cfg.Validate())

	defaults := FromConfig(config.TelemetryConfig{}, "")
	assert.Equal(t, 1.0, defaults.Sampling.Rate)
	assert.True(t, defaults.Metrics.Enabled)
	assert.Equal(t, 15*time.Second, defaults.Metrics.ExportInterval.Duration())
}

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()
	res := newResource(cfg)

	found := false
	for _, kv := range res.Attributes() {
		if kv.Key == "service.name" {
			assert.Equal(t, "bookmarkd", kv.Value.AsString())
			found = true
		}
	}
	assert.True(t, found, "service.name attribute not found")
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig(), nil)
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNew_EnabledExportsSpans(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	tel, err := New(context.Background(), cfg, nil, WithSpanExporter(exporter), WithMetricReader(reader))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())

	_, span := tel.Tracer("test").Start(context.Background(), "cleaning.pass")
	span.End()

	require.NoError(t, tel.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "cleaning.pass", spans[0].Name)

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.IsEnabled())
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.True(t, tel.Health().Degraded)
	assert.False(t, tel.IsEnabled())
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.Tracer("test").Start(context.Background(), "cleaning.visit")
	span.End()
	assert.NotNil(t, tt.SpanByName("cleaning.visit"))

	counter, err := tt.Meter("test").Int64Counter("visits")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	rm, err := tt.Collect(context.Background())
	require.NoError(t, err)
	_, ok := FindMetric(rm, "visits")
	assert.True(t, ok)
}
