// Package cleaning runs cleaning passes that delete bookmarks and history
// entries matching the configured hostname rules.
//
// A Coordinator keeps one Idle/Running flag per category. RequestClean starts
// a pass in the background only when the category is idle, so at most one
// pass per category runs at a time. Bookmarks and history passes are
// independent. HandleVisit applies the history rules to a single visit and
// never touches the flags.
package cleaning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"github.com/fyrsmithlabs/bookmarkd/internal/logging"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const instrumentationName = "github.com/fyrsmithlabs/bookmarkd/internal/cleaning"

// ErrUnknownCategory is returned for categories other than bookmarks and history.
var ErrUnknownCategory = rules.ErrUnknownCategory

// Status is the outcome of a clean request.
type Status string

const (
	// StatusStarted means a new pass was started.
	StatusStarted Status = "started"
	// StatusRunning means a pass for the category was already running.
	StatusRunning Status = "running"
)

// DefaultHistoryMaxResults bounds history searches.
const DefaultHistoryMaxResults = 1_000_000_000

// RuleLoader loads the cleaning rules. Implemented by rules.Loader.
type RuleLoader interface {
	LoadCleaning(ctx context.Context) (*rules.RuleSet, error)
}

// Config tunes the coordinator.
type Config struct {
	// DeleteRate limits deletions per second. Zero means unlimited.
	DeleteRate float64
	// DeleteBurst is the limiter burst. Defaults to 1 when DeleteRate is set.
	DeleteBurst int
	// HistoryMaxResults bounds each history search. Defaults to DefaultHistoryMaxResults.
	HistoryMaxResults int
	// Tracer records a span per pass and per visit. Defaults to the global provider.
	Tracer trace.Tracer
	// OnFinish, if set, receives every finished pass after the category is idle again.
	OnFinish func(ctx context.Context, res Result)
}

// Result summarises a finished pass.
type Result struct {
	PassID     string         `json:"pass_id"`
	Category   rules.Category `json:"category"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   time.Duration  `json:"duration"`
	Rules      int            `json:"rules"`
	Candidates int            `json:"candidates"`
	Deleted    int            `json:"deleted"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Error      string         `json:"error,omitempty"`
}

// Coordinator owns the per-category cleaning state.
type Coordinator struct {
	loader    RuleLoader
	bookmarks browser.BookmarkProvider
	history   browser.HistoryProvider
	logger    *logging.Logger
	tracer    trace.Tracer
	metrics   *Metrics
	limiter   *rate.Limiter
	maxHist   int
	onFinish  func(context.Context, Result)
	now       func() time.Time

	mu      sync.Mutex
	running map[rules.Category]bool
	last    map[rules.Category]Result
	wg      sync.WaitGroup
}

// NewCoordinator creates a coordinator. A nil provider disables the
// corresponding category: requests for it fail.
func NewCoordinator(loader RuleLoader, bm browser.BookmarkProvider, hp browser.HistoryProvider, logger *logging.Logger, cfg Config) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.DeleteRate > 0 {
		burst := cfg.DeleteBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.DeleteRate), burst)
	}

	maxHist := cfg.HistoryMaxResults
	if maxHist <= 0 {
		maxHist = DefaultHistoryMaxResults
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &Coordinator{
		loader:    loader,
		bookmarks: bm,
		history:   hp,
		logger:    logger.Named("cleaning"),
		tracer:    tracer,
		metrics:   NewMetrics(),
		limiter:   limiter,
		maxHist:   maxHist,
		onFinish:  cfg.OnFinish,
		now:       time.Now,
		running:   make(map[rules.Category]bool),
		last:      make(map[rules.Category]Result),
	}
}

func (c *Coordinator) checkCategory(category rules.Category) error {
	if _, err := rules.ParseCategory(string(category)); err != nil {
		return err
	}
	if category == rules.CategoryBookmarks && c.bookmarks == nil ||
		category == rules.CategoryHistory && c.history == nil {
		return fmt.Errorf("%w: %s has no provider", ErrUnknownCategory, category)
	}
	return nil
}

// RequestClean starts a pass for category unless one is already running.
// The pass runs detached from ctx: cancelling the request does not stop it.
func (c *Coordinator) RequestClean(ctx context.Context, category rules.Category) (Status, error) {
	if err := c.checkCategory(category); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.running[category] {
		c.mu.Unlock()
		c.metrics.RecordRequest(string(category), StatusRunning)
		c.logger.Debug(ctx, "cleaning already running", zap.String("category", string(category)))
		return StatusRunning, nil
	}
	c.running[category] = true
	c.wg.Add(1)
	c.mu.Unlock()

	c.metrics.RecordRequest(string(category), StatusStarted)

	passID := uuid.NewString()
	passCtx := logging.WithPassID(context.WithoutCancel(ctx), passID)
	passCtx = logging.WithCategory(passCtx, string(category))

	go c.runPass(passCtx, category, passID)
	return StatusStarted, nil
}

// Running reports whether a pass for category is in progress.
func (c *Coordinator) Running(category rules.Category) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running[category]
}

// LastResult returns the summary of the last finished pass for category.
func (c *Coordinator) LastResult(category rules.Category) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.last[category]
	return r, ok
}

// Wait blocks until every started pass has finished or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) runPass(ctx context.Context, category rules.Category, passID string) {
	res := Result{PassID: passID, Category: category, StartedAt: c.now()}

	ctx, span := c.tracer.Start(ctx, "cleaning.pass", trace.WithAttributes(
		attribute.String("pass.id", passID),
		attribute.String("category", string(category)),
	))

	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("panic: %v", r)
			c.logger.Error(ctx, "cleaning pass panicked", zap.Any("panic", r))
		}
		res.FinishedAt = c.now()
		res.Duration = res.FinishedAt.Sub(res.StartedAt)

		span.SetAttributes(
			attribute.Int("rules", res.Rules),
			attribute.Int("candidates", res.Candidates),
			attribute.Int("deleted", res.Deleted),
			attribute.Int("failed", res.Failed),
			attribute.Int("skipped", res.Skipped),
		)
		if res.Error != "" {
			span.SetStatus(codes.Error, res.Error)
		}
		span.End()

		c.mu.Lock()
		c.running[category] = false
		c.last[category] = res
		c.mu.Unlock()

		c.metrics.RecordPass(string(category), res.Error != "", res.Duration.Seconds())
		if c.onFinish != nil {
			c.onFinish(ctx, res)
		}
		c.wg.Done()
	}()

	c.logger.Info(ctx, "cleaning started")

	rs, err := c.loader.LoadCleaning(ctx)
	if err != nil {
		res.Error = err.Error()
		c.logger.Error(ctx, "cleaning aborted: loading rules failed", zap.Error(err))
		return
	}

	deleted := make(map[string]struct{})
	for hostname, props := range rs.Enabled(category) {
		res.Rules++
		switch category {
		case rules.CategoryBookmarks:
			c.cleanBookmarks(ctx, hostname, props, deleted, &res)
		case rules.CategoryHistory:
			c.cleanHistory(ctx, hostname, props, deleted, &res)
		}
	}

	c.logger.Info(ctx, "cleaning finished",
		zap.Int("rules", res.Rules),
		zap.Int("candidates", res.Candidates),
		zap.Int("deleted", res.Deleted),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped))
}

func (c *Coordinator) cleanBookmarks(ctx context.Context, hostname string, props rules.CleaningRuleProperties, deleted map[string]struct{}, res *Result) {
	nodes, err := c.bookmarks.Search(ctx, hostname)
	if err != nil {
		c.logger.Warn(ctx, "bookmark search failed", zap.String("hostname", hostname), zap.Error(err))
		return
	}

	for _, n := range nodes {
		if n.URL == "" {
			continue
		}
		res.Candidates++
		if _, ok := deleted[n.ID]; ok {
			continue
		}
		if !c.matches(ctx, n.URL, hostname, props, res) {
			continue
		}

		c.logger.Info(ctx, "deleting bookmark",
			zap.String("id", n.ID),
			zap.String("url", n.URL),
			zap.String("hostname", hostname))
		deleted[n.ID] = struct{}{}
		c.delete(ctx, rules.CategoryBookmarks, "pass", res, func() error {
			return c.bookmarks.Remove(ctx, n.ID)
		})
	}
}

func (c *Coordinator) cleanHistory(ctx context.Context, hostname string, props rules.CleaningRuleProperties, deleted map[string]struct{}, res *Result) {
	items, err := c.history.Search(ctx, browser.HistoryQuery{Text: hostname, MaxResults: c.maxHist})
	if err != nil {
		c.logger.Warn(ctx, "history search failed", zap.String("hostname", hostname), zap.Error(err))
		return
	}

	for _, item := range items {
		if item.URL == "" {
			continue
		}
		res.Candidates++
		if _, ok := deleted[item.URL]; ok {
			continue
		}
		if !c.matches(ctx, item.URL, hostname, props, res) {
			continue
		}

		c.logger.Info(ctx, "deleting history entry",
			zap.String("url", item.URL),
			zap.String("hostname", hostname))
		deleted[item.URL] = struct{}{}
		c.delete(ctx, rules.CategoryHistory, "pass", res, func() error {
			return c.history.DeleteURL(ctx, item.URL)
		})
	}
}

func (c *Coordinator) matches(ctx context.Context, rawURL, hostname string, props rules.CleaningRuleProperties, res *Result) bool {
	ok, err := rules.Matches(rawURL, hostname, props)
	if err != nil {
		res.Skipped++
		c.logger.Warn(ctx, "skipping entry with invalid url", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	if !ok {
		c.logger.Trace(ctx, "candidate does not match", zap.String("url", rawURL), zap.String("hostname", hostname))
	}
	return ok
}

// delete paces and performs one deletion, recording the outcome.
func (c *Coordinator) delete(ctx context.Context, category rules.Category, source string, res *Result, fn func() error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			res.Failed++
			c.logger.Warn(ctx, "delete rate limiter", zap.Error(err))
			return
		}
	}

	err := fn()
	switch {
	case err == nil:
		res.Deleted++
		c.metrics.RecordDeletion(string(category), source)
	case errors.Is(err, browser.ErrNotFound):
		res.Skipped++
		c.logger.Info(ctx, "entry already deleted", zap.Error(err))
	default:
		res.Failed++
		c.metrics.RecordDeleteError(string(category))
		c.logger.Warn(ctx, "delete failed", zap.Error(err))
	}
}

// HandleVisit applies the history rules to a single visit: the first rule
// enabled for history that matches deletes the visited URL. It reports
// whether a deletion was attempted.
func (c *Coordinator) HandleVisit(ctx context.Context, visit browser.Visit) (bool, error) {
	if c.history == nil {
		return false, fmt.Errorf("%w: history has no provider", ErrUnknownCategory)
	}
	ctx = logging.WithCategory(ctx, string(rules.CategoryHistory))

	ctx, span := c.tracer.Start(ctx, "cleaning.visit")
	defer span.End()

	rs, err := c.loader.LoadCleaning(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error(ctx, "visit ignored: loading rules failed", zap.Error(err))
		return false, err
	}

	m, err := rs.Match(visit.URL, rules.CategoryHistory)
	if err != nil {
		c.logger.Debug(ctx, "visit ignored: invalid url", zap.String("url", visit.URL), zap.Error(err))
		return false, err
	}
	if !m.Matched {
		return false, nil
	}

	span.SetAttributes(attribute.String("hostname", m.Hostname))
	c.logger.Info(ctx, "deleting visited history entry",
		zap.String("url", visit.URL),
		zap.String("hostname", m.Hostname))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return true, err
		}
	}
	if err := c.history.DeleteURL(ctx, visit.URL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordDeleteError(string(rules.CategoryHistory))
		c.logger.Warn(ctx, "delete failed", zap.String("url", visit.URL), zap.Error(err))
		return true, err
	}
	c.metrics.RecordDeletion(string(rules.CategoryHistory), "visit")
	return true, nil
}

// Subscribe feeds visits from source into HandleVisit until ctx is done or
// the source closes. Errors are logged by HandleVisit.
func (c *Coordinator) Subscribe(ctx context.Context, source browser.VisitSource) {
	for v := range source.Visits(ctx) {
		_, _ = c.HandleVisit(ctx, v)
	}
}
