// Package browser defines the contracts for the browser-side bookmark and
// history stores that cleaning operates on.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/bookmarks"
)

// ErrNotFound indicates the bookmark or history entry no longer exists.
var ErrNotFound = errors.New("not found")

// BookmarkProvider reads and deletes bookmarks.
type BookmarkProvider interface {
	// Tree returns the root nodes with children attached.
	Tree(ctx context.Context) ([]bookmarks.NativeNode, error)

	// Search returns the bookmarks and folders whose URL or title contains
	// query. Children are not populated.
	Search(ctx context.Context, query string) ([]bookmarks.NativeNode, error)

	// Remove deletes a bookmark or an empty folder. Returns ErrNotFound when
	// id does not exist.
	Remove(ctx context.Context, id string) error
}

// HistoryItem is one history entry.
type HistoryItem struct {
	ID            string     `json:"id"`
	URL           string     `json:"url,omitempty"`
	Title         string     `json:"title,omitempty"`
	LastVisitTime *time.Time `json:"last_visit_time,omitempty"`
	VisitCount    int        `json:"visit_count"`
}

// HistoryQuery selects history entries by substring.
type HistoryQuery struct {
	Text       string
	MaxResults int
}

// HistoryProvider reads and deletes history entries.
type HistoryProvider interface {
	// Search returns entries whose URL or title contains query.Text, most
	// recent first, at most query.MaxResults.
	Search(ctx context.Context, query HistoryQuery) ([]HistoryItem, error)

	// DeleteURL removes every visit to url. Returns ErrNotFound when url has
	// no history.
	DeleteURL(ctx context.Context, url string) error
}

// Visit is a page visit event.
type Visit struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	VisitedAt time.Time `json:"visited_at"`
}

// VisitSource streams visit events.
type VisitSource interface {
	// Visits returns a channel of visits that is closed when ctx is done.
	Visits(ctx context.Context) <-chan Visit
}
