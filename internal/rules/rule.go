// Package rules holds the per-hostname rules that drive cleaning, grouping
// and URL rewriting, and the matcher that applies them to URLs.
package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL indicates a URL that cannot be parsed or has no scheme.
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnknownCategory indicates a cleaning category other than bookmarks or history.
	ErrUnknownCategory = errors.New("unknown cleaning category")

	// ErrInvalidPattern indicates a rewrite rule whose pattern does not compile.
	ErrInvalidPattern = errors.New("invalid rewrite pattern")
)

// Category selects what a cleaning pass deletes.
type Category string

const (
	CategoryBookmarks Category = "bookmarks"
	CategoryHistory   Category = "history"
)

// Categories lists every category.
var Categories = []Category{CategoryBookmarks, CategoryHistory}

// ParseCategory validates s as a Category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryBookmarks, CategoryHistory:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// CleaningRuleProperties configures a cleaning rule for one hostname.
type CleaningRuleProperties struct {
	Subdomains bool `json:"subdomains" yaml:"subdomains"`
	Bookmarks  bool `json:"bookmarks" yaml:"bookmarks"`
	History    bool `json:"history" yaml:"history"`
}

// DefaultCleaningRule is applied to newly created rules.
var DefaultCleaningRule = CleaningRuleProperties{
	Subdomains: true,
	Bookmarks:  false,
	History:    true,
}

// Enabled reports whether the rule applies to category.
func (p CleaningRuleProperties) Enabled(category Category) bool {
	switch category {
	case CategoryBookmarks:
		return p.Bookmarks
	case CategoryHistory:
		return p.History
	}
	return false
}
