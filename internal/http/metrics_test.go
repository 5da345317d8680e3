package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/bookmarkd/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	m := NewHTTPMetrics(tel.MeterProvider(), zap.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/api/v1/bookmarks/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	})
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "no")
	})

	for _, target := range []string{"/api/v1/bookmarks/1", "/api/v1/bookmarks/2", "/fail"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	}

	rm, err := tel.Collect(context.Background())
	require.NoError(t, err)

	requests, ok := telemetry.FindMetric(rm, "bookmarkd.http.requests_total")
	require.True(t, ok, "requests counter not found")
	sum, ok := requests.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byRoute := map[string]int64{}
	statuses := map[int64]int64{}
	for _, dp := range sum.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("route"))
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		byRoute[route.AsString()] += dp.Value
		statuses[status.AsInt64()] += dp.Value
	}
	assert.Equal(t, int64(2), byRoute["/api/v1/bookmarks/:id"], "ids must not become label values")
	assert.Equal(t, int64(1), byRoute["/fail"])
	assert.Equal(t, int64(1), statuses[http.StatusForbidden], "error status is recorded after rendering")

	duration, ok := telemetry.FindMetric(rm, "bookmarkd.http.request_duration_seconds")
	require.True(t, ok, "duration histogram not found")
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)

	_, ok = telemetry.FindMetric(rm, "bookmarkd.http.response_size_bytes")
	assert.True(t, ok, "response size histogram not found")
}

func TestHTTPMetrics_NilProviderUsesGlobal(t *testing.T) {
	m := NewHTTPMetrics(nil, nil)
	assert.NotNil(t, m.requests)
	assert.NotNil(t, m.inflight)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/health", routeLabel("/health"))
	assert.Equal(t, "/api/v1/bookmarks/:id", routeLabel("/api/v1/bookmarks/:id"))
}
