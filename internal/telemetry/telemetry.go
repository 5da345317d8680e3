package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fyrsmithlabs/bookmarkd/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Telemetry holds the SDK providers for cleaning spans and HTTP metrics.
// A provider that fails to start leaves the instance degraded; the
// daemon keeps running with the global no-op providers.
type Telemetry struct {
	config *Config
	logger *logging.Logger

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	stopped  atomic.Bool
	degraded atomic.Bool
}

// New validates cfg and, when enabled, installs OTLP providers and the
// W3C propagator globally.
func New(ctx context.Context, cfg *Config, logger *logging.Logger, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	t := &Telemetry{config: cfg, logger: logger.Named("telemetry")}
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	res := newResource(cfg)

	if tp, err := newTracerProvider(ctx, cfg, res, &o); err != nil {
		t.degrade(ctx, "tracing disabled", err)
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}
	if mp, err := newMeterProvider(ctx, cfg, res, &o); err != nil {
		t.degrade(ctx, "metrics disabled", err)
	} else if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	t.logger.Info(ctx, "telemetry started",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", cfg.Protocol),
		zap.Float64("sampling_rate", cfg.Sampling.Rate),
		zap.Bool("metrics", t.meterProvider != nil))
	return t, nil
}

// Tracer falls back to the global provider when tracing is off.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter falls back to the global provider when metrics are off.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

type provider interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

// each applies fn to the running providers and joins the errors.
func (t *Telemetry) each(fn func(name string, p provider) error) error {
	var errs []error
	if t.tracerProvider != nil {
		errs = append(errs, fn("tracer", t.tracerProvider))
	}
	if t.meterProvider != nil {
		errs = append(errs, fn("meter", t.meterProvider))
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops the providers. The configured shutdown
// timeout applies when ctx has no deadline.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
		defer cancel()
	}
	t.stopped.Store(true)
	return t.each(func(name string, p provider) error {
		if err := p.Shutdown(ctx); err != nil {
			return fmt.Errorf("%s provider shutdown: %w", name, err)
		}
		return nil
	})
}

// ForceFlush exports pending spans and metrics.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.each(func(name string, p provider) error {
		if err := p.ForceFlush(ctx); err != nil {
			return fmt.Errorf("%s flush: %w", name, err)
		}
		return nil
	})
}

// HealthStatus is the JSON form of Health.
type HealthStatus struct {
	Healthy  bool `json:"healthy"`
	Degraded bool `json:"degraded"`
}

// Health reports whether the providers are running and whether one of
// them failed to start. A nil Telemetry is degraded.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Degraded: true}
	}
	return HealthStatus{Healthy: !t.stopped.Load(), Degraded: t.degraded.Load()}
}

// IsEnabled reports whether telemetry was enabled and is not shut down.
func (t *Telemetry) IsEnabled() bool {
	return t != nil && t.config != nil && t.config.Enabled && !t.stopped.Load()
}

func (t *Telemetry) degrade(ctx context.Context, msg string, err error) {
	t.degraded.Store(true)
	t.logger.Warn(ctx, msg, zap.Error(err))
}
