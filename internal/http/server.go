// Package http provides the HTTP API of bookmarkd: the extension message
// endpoint, read-only views of the bookmark tree and cleaning state, rule
// editing, and visit ingress.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"github.com/fyrsmithlabs/bookmarkd/internal/cleaning"
	"github.com/fyrsmithlabs/bookmarkd/internal/logging"
	"github.com/fyrsmithlabs/bookmarkd/internal/messaging"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HeaderExtensionID carries the sender id of extension messages.
const HeaderExtensionID = "X-Extension-Id"

// MessageHandler handles extension messages. Implemented by messaging.Handler.
type MessageHandler interface {
	Trusts(ctx context.Context, sender messaging.Sender, request string) bool
	Handle(ctx context.Context, sender messaging.Sender, msg messaging.Message) (*messaging.Response, error)
}

// CleaningState exposes per-category cleaning state. Implemented by cleaning.Coordinator.
type CleaningState interface {
	Running(category rules.Category) bool
	LastResult(category rules.Category) (cleaning.Result, bool)
}

// RuleStore reads and edits the rules. Implemented by rules.Loader.
type RuleStore interface {
	LoadCleaning(ctx context.Context) (*rules.RuleSet, error)
	LoadGrouping(ctx context.Context) (*rules.GroupingRules, error)
	LoadRewrite(ctx context.Context) (*rules.RewriteRules, error)
	AddCleaningRule(ctx context.Context, hostname string, props *rules.CleaningRuleProperties) (*rules.RuleSet, error)
	RemoveCleaningRule(ctx context.Context, hostname string) (bool, error)
}

// Preferences reports user preferences. Implemented by preferences.Tracker.
type Preferences interface {
	Enabled() bool
}

// VisitRecorder stores a visit and emits it on the visit stream.
// Implemented by places.Store.
type VisitRecorder interface {
	RecordVisit(ctx context.Context, v browser.Visit) error
}

// Dependencies are the services behind the API. Messages and Cleaning are
// required; routes whose dependency is nil are not registered.
type Dependencies struct {
	Messages    MessageHandler
	Cleaning    CleaningState
	Bookmarks   browser.BookmarkProvider
	Rules       RuleStore
	Preferences Preferences
	Visits      VisitRecorder
	Metrics     *HTTPMetrics
}

// Server provides HTTP endpoints for bookmarkd.
type Server struct {
	echo   *echo.Echo
	deps   Dependencies
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(deps Dependencies, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Messages == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}
	if deps.Cleaning == nil {
		return nil, fmt.Errorf("cleaning state cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			// client supplied ids are only propagated when well formed
			if logging.IsValidID(id) {
				req := c.Request()
				c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			}
		},
	}))
	if deps.Metrics != nil {
		e.Use(deps.Metrics.MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/messages", s.handleMessage)
	v1.GET("/cleaning/status", s.handleCleaningStatus)

	if s.deps.Bookmarks != nil {
		v1.GET("/bookmarks", s.handleBookmarks)
		v1.GET("/bookmarks/:id", s.handleBookmark)
		if s.deps.Rules != nil {
			v1.GET("/bookmarks/plan", s.handlePlan)
		}
	}
	if s.deps.Rules != nil {
		v1.GET("/rules/cleaning", s.handleListCleaningRules)
		v1.PUT("/rules/cleaning/:hostname", s.handlePutCleaningRule, s.requireTrustedSender, s.requireEditing)
		v1.DELETE("/rules/cleaning/:hostname", s.handleDeleteCleaningRule, s.requireTrustedSender, s.requireEditing)
	}
	if s.deps.Preferences != nil {
		v1.GET("/preferences", s.handlePreferences)
	}
	if s.deps.Visits != nil {
		v1.POST("/history/visits", s.handleRecordVisit)
	}
}

// Echo exposes the router so callers can mount extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleMessage dispatches an extension message. Untrusted senders get an
// empty 204 so that nothing is revealed to them.
func (s *Server) handleMessage(c echo.Context) error {
	sender := senderOf(c)
	if !s.deps.Messages.Trusts(c.Request().Context(), sender, "message") {
		return c.NoContent(http.StatusNoContent)
	}

	var msg messaging.Message
	if err := c.Bind(&msg); err != nil {
		s.logger.Warn("invalid message body", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.deps.Messages.Handle(c.Request().Context(), sender, msg)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, messaging.ErrUntrustedSender):
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, messaging.ErrUnknownMessage), errors.Is(err, cleaning.ErrUnknownCategory):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("message handling failed", zap.String("type", msg.Type), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "message handling failed")
	}
}

func senderOf(c echo.Context) messaging.Sender {
	return messaging.Sender{ID: c.Request().Header.Get(HeaderExtensionID)}
}

// requireTrustedSender drops requests from anything but the configured
// extension the same way /messages does: an empty 204.
func (s *Server) requireTrustedSender(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		request := c.Request().Method + " " + c.Path()
		if !s.deps.Messages.Trusts(c.Request().Context(), senderOf(c), request) {
			return c.NoContent(http.StatusNoContent)
		}
		return next(c)
	}
}

// handleCleaningStatus reports the running flag and last pass of each category.
func (s *Server) handleCleaningStatus(c echo.Context) error {
	resp := make(CleaningStatusResponse, len(rules.Categories))
	for _, category := range rules.Categories {
		st := CategoryStatus{Running: s.deps.Cleaning.Running(category)}
		if res, ok := s.deps.Cleaning.LastResult(category); ok {
			st.LastResult = &res
		}
		resp[string(category)] = st
	}
	return c.JSON(http.StatusOK, resp)
}

// handlePreferences returns the enableediting switch.
func (s *Server) handlePreferences(c echo.Context) error {
	return c.JSON(http.StatusOK, PreferencesResponse{EnableEditing: s.deps.Preferences.Enabled()})
}

// handleRecordVisit stores a visit, which also triggers visit-driven cleaning.
func (s *Server) handleRecordVisit(c echo.Context) error {
	var req VisitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url field is required")
	}

	visit := browser.Visit{URL: req.URL, Title: req.Title}
	if req.VisitedAt != nil {
		visit.VisitedAt = *req.VisitedAt
	}
	if err := s.deps.Visits.RecordVisit(c.Request().Context(), visit); err != nil {
		s.logger.Error("recording visit failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "recording visit failed")
	}
	return c.NoContent(http.StatusAccepted)
}
