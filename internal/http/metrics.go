package http

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/bookmarkd/internal/http"

// HTTPMetrics counts API requests per route. Instruments that fail to
// register stay nil and are skipped.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	size     metric.Int64Histogram
	inflight metric.Int64UpDownCounter
}

// NewHTTPMetrics registers the instruments on mp, or on the global meter
// provider when mp is nil.
func NewHTTPMetrics(mp metric.MeterProvider, logger *zap.Logger) *HTTPMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(httpInstrumentationName)

	var m HTTPMetrics
	var err, errs error
	m.requests, err = meter.Int64Counter("bookmarkd.http.requests_total",
		metric.WithDescription("API requests by method, route and status."),
		metric.WithUnit("{request}"))
	errs = errors.Join(errs, err)
	m.duration, err = meter.Float64Histogram("bookmarkd.http.request_duration_seconds",
		metric.WithDescription("API request latency by method, route and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.025, 0.1, 0.25, 1, 5))
	errs = errors.Join(errs, err)
	m.size, err = meter.Int64Histogram("bookmarkd.http.response_size_bytes",
		metric.WithDescription("Response body size. Tree and plan responses grow with the bookmark count."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(256, 4096, 65536, 1<<20))
	errs = errors.Join(errs, err)
	m.inflight, err = meter.Int64UpDownCounter("bookmarkd.http.active_requests",
		metric.WithDescription("In-flight API requests."),
		metric.WithUnit("{request}"))
	errs = errors.Join(errs, err)

	if errs != nil && logger != nil {
		logger.Warn("some http instruments are unavailable", zap.Error(errs))
	}
	return &m
}

// MetricsMiddleware records each request once echo has rendered its
// final status.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inflight != nil {
				m.inflight.Add(ctx, 1)
				defer m.inflight.Add(ctx, -1)
			}

			if err := next(c); err != nil {
				c.Error(err)
			}

			res := c.Response()
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeLabel(c.Path())),
				attribute.Int("status", res.Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.size != nil {
				m.size.Record(ctx, res.Size, attrs)
			}
			return nil
		}
	}
}

// routeLabel keeps bookmark ids out of label values by using the route
// pattern. Requests that matched no route share one label.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
