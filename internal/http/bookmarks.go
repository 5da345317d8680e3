package http

import (
	"net/http"

	"github.com/fyrsmithlabs/bookmarkd/internal/bookmarks"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// materialize loads the provider tree into a fresh model.
func (s *Server) materialize(c echo.Context) (*bookmarks.Materializer, []*bookmarks.Node, error) {
	tree, err := s.deps.Bookmarks.Tree(c.Request().Context())
	if err != nil {
		s.logger.Error("loading bookmark tree failed", zap.Error(err))
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, "loading bookmark tree failed")
	}
	m := bookmarks.NewMaterializer(bookmarks.NewModel())
	return m, m.MaterializeAll(tree), nil
}

// handleBookmarks returns the materialized bookmark tree.
func (s *Server) handleBookmarks(c echo.Context) error {
	m, roots, err := s.materialize(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TreeResponse{Roots: roots, Count: m.Model().Len()})
}

// handleBookmark returns a single node. Folders list their children by id;
// the children themselves are not included.
func (s *Server) handleBookmark(c echo.Context) error {
	m, _, err := s.materialize(c)
	if err != nil {
		return err
	}
	node, ok := m.Model().Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "bookmark not found")
	}
	return c.JSON(http.StatusOK, node)
}

// handlePlan reports where grouping rules would move each bookmark and how
// rewrite rules would change its URL. Nothing is applied.
func (s *Server) handlePlan(c echo.Context) error {
	ctx := c.Request().Context()

	grouping, err := s.deps.Rules.LoadGrouping(ctx)
	if err != nil {
		s.logger.Error("loading grouping rules failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading grouping rules failed")
	}
	rewrite, err := s.deps.Rules.LoadRewrite(ctx)
	if err != nil {
		s.logger.Error("loading rewrite rules failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading rewrite rules failed")
	}

	m, _, err := s.materialize(c)
	if err != nil {
		return err
	}

	resp := PlanResponse{Entries: []PlanEntry{}}
	model := m.Model()
	for _, id := range model.IDs() {
		node, _ := model.Get(id)
		if !node.IsItem() {
			continue
		}

		entry := PlanEntry{ID: node.ID, Title: node.Title, URL: node.URL}
		match, ok, err := grouping.FolderFor(node.URL)
		if err != nil {
			s.logger.Debug("plan: skipping grouping for invalid url", zap.String("url", node.URL), zap.Error(err))
		} else if ok {
			entry.TargetFolder = match.FolderID
			entry.Hostname = match.Hostname
			resp.Moves++
		}
		if rewritten, ok := rewrite.Rewrite(node.URL); ok && rewritten != node.URL {
			entry.RewrittenURL = rewritten
			resp.Rewrites++
		}
		if entry.TargetFolder != "" || entry.RewrittenURL != "" {
			resp.Entries = append(resp.Entries, entry)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// requireEditing rejects rule changes unless enableediting is on.
func (s *Server) requireEditing(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.deps.Preferences == nil || !s.deps.Preferences.Enabled() {
			return echo.NewHTTPError(http.StatusForbidden, "rule editing is disabled")
		}
		return next(c)
	}
}

// handleListCleaningRules returns the cleaning rules in document order.
func (s *Server) handleListCleaningRules(c echo.Context) error {
	rs, err := s.deps.Rules.LoadCleaning(c.Request().Context())
	if err != nil {
		s.logger.Error("loading cleaning rules failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading cleaning rules failed")
	}
	return c.JSON(http.StatusOK, rs)
}

// handlePutCleaningRule adds or replaces a rule. An empty body stores the
// default rule.
func (s *Server) handlePutCleaningRule(c echo.Context) error {
	hostname := c.Param("hostname")
	if hostname == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "hostname is required")
	}

	var props *rules.CleaningRuleProperties
	if c.Request().ContentLength != 0 {
		props = &rules.CleaningRuleProperties{}
		if err := c.Bind(props); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	rs, err := s.deps.Rules.AddCleaningRule(c.Request().Context(), hostname, props)
	if err != nil {
		s.logger.Error("saving cleaning rule failed", zap.String("hostname", hostname), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "saving cleaning rule failed")
	}
	stored, _ := rs.Get(hostname)
	return c.JSON(http.StatusOK, RuleResponse{Hostname: hostname, Rule: stored})
}

// handleDeleteCleaningRule removes a rule.
func (s *Server) handleDeleteCleaningRule(c echo.Context) error {
	hostname := c.Param("hostname")
	removed, err := s.deps.Rules.RemoveCleaningRule(c.Request().Context(), hostname)
	if err != nil {
		s.logger.Error("removing cleaning rule failed", zap.String("hostname", hostname), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "removing cleaning rule failed")
	}
	if !removed {
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	}
	return c.NoContent(http.StatusNoContent)
}
