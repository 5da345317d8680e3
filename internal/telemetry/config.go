package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/config"
)

// Export protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string // grpc (default) or http/protobuf
	Insecure       bool   // plaintext, only allowed for loopback endpoints
	TLSSkipVerify  bool
	ServiceName    string
	ServiceVersion string
	Sampling       SamplingConfig
	Metrics        MetricsConfig
	Shutdown       ShutdownConfig
}

// SamplingConfig controls trace sampling.
type SamplingConfig struct {
	Rate float64 // 0.0-1.0
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Enabled        bool
	ExportInterval config.Duration
}

// ShutdownConfig bounds the final flush.
type ShutdownConfig struct {
	Timeout config.Duration
}

// NewDefaultConfig returns defaults for a local collector. Telemetry is
// disabled until explicitly enabled.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       ProtocolGRPC,
		Insecure:       true,
		ServiceName:    "bookmarkd",
		ServiceVersion: "dev",
		Sampling:       SamplingConfig{Rate: 1.0},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// FromConfig derives the telemetry configuration from the daemon config.
func FromConfig(c config.TelemetryConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = c.Enabled
	if c.Endpoint != "" {
		cfg.Endpoint = c.Endpoint
	}
	if c.Protocol != "" {
		cfg.Protocol = c.Protocol
	}
	cfg.Insecure = c.Insecure
	cfg.TLSSkipVerify = c.TLSSkipVerify
	if c.SampleRate != nil {
		cfg.Sampling.Rate = *c.SampleRate
	}
	cfg.Metrics.Enabled = !c.DisableMetrics
	if c.ExportInterval > 0 {
		cfg.Metrics.ExportInterval = c.ExportInterval
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required when telemetry is enabled"))
	}
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service name is required when telemetry is enabled"))
	}
	switch c.Protocol {
	case "", ProtocolGRPC, ProtocolHTTP:
	default:
		errs = append(errs, fmt.Errorf("unsupported protocol %q (must be %s or %s)", c.Protocol, ProtocolGRPC, ProtocolHTTP))
	}
	if c.Insecure && c.Endpoint != "" && !isLoopback(c.Endpoint) {
		errs = append(errs, fmt.Errorf("insecure export to non-local endpoint %q is not allowed", c.Endpoint))
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		errs = append(errs, fmt.Errorf("sampling rate must be between 0 and 1, got %v", c.Sampling.Rate))
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		errs = append(errs, errors.New("metrics export interval must be positive"))
	}
	if c.Shutdown.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	return errors.Join(errs...)
}

// isLoopback reports whether endpoint (host, host:port or URL) points at
// the local machine.
func isLoopback(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https:// from an endpoint. The OTLP
// exporters expect host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}
