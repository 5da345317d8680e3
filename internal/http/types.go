package http

import (
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/bookmarks"
	"github.com/fyrsmithlabs/bookmarkd/internal/cleaning"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// CategoryStatus is the cleaning state of one category.
type CategoryStatus struct {
	Running    bool             `json:"running"`
	LastResult *cleaning.Result `json:"last_result,omitempty"`
}

// CleaningStatusResponse is the response body for GET /api/v1/cleaning/status,
// keyed by category.
type CleaningStatusResponse map[string]CategoryStatus

// PreferencesResponse is the response body for GET /api/v1/preferences.
type PreferencesResponse struct {
	EnableEditing bool `json:"enableediting"`
}

// VisitRequest is the request body for POST /api/v1/history/visits.
type VisitRequest struct {
	URL       string     `json:"url"`
	Title     string     `json:"title,omitempty"`
	VisitedAt *time.Time `json:"visited_at,omitempty"`
}

// TreeResponse is the response body for GET /api/v1/bookmarks.
type TreeResponse struct {
	Roots []*bookmarks.Node `json:"roots"`
	Count int               `json:"count"`
}

// PlanEntry describes what grouping and rewriting would do to one bookmark.
type PlanEntry struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	TargetFolder string `json:"target_folder,omitempty"`
	Hostname     string `json:"hostname,omitempty"`
	RewrittenURL string `json:"rewritten_url,omitempty"`
}

// PlanResponse is the response body for GET /api/v1/bookmarks/plan.
type PlanResponse struct {
	Entries  []PlanEntry `json:"entries"`
	Moves    int         `json:"moves"`
	Rewrites int         `json:"rewrites"`
}

// RuleResponse is the response body for PUT /api/v1/rules/cleaning/:hostname.
type RuleResponse struct {
	Hostname string                       `json:"hostname"`
	Rule     rules.CleaningRuleProperties `json:"rule"`
}
