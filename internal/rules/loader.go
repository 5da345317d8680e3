package rules

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/bookmarkd/internal/settings"
)

// Settings keys holding the rules.
const (
	KeyCleaningRules = "cleaningrules"
	KeyGroupingRules = "groupingrules"
	KeyRewriteRules  = "rewriterules"
)

// Loader reads rules from the settings store. Nothing is cached: every call
// reads the store again.
type Loader struct {
	store settings.Store
}

// NewLoader creates a loader over store.
func NewLoader(store settings.Store) *Loader {
	return &Loader{store: store}
}

// LoadCleaning returns the cleaning rules, empty when unset.
func (l *Loader) LoadCleaning(ctx context.Context) (*RuleSet, error) {
	rs := NewRuleSet()
	if err := l.store.Get(ctx, KeyCleaningRules, rs); err != nil {
		return nil, fmt.Errorf("loading cleaning rules: %w", err)
	}
	return rs, nil
}

// LoadGrouping returns the grouping rules, empty when unset.
func (l *Loader) LoadGrouping(ctx context.Context) (*GroupingRules, error) {
	g := &GroupingRules{}
	if err := l.store.Get(ctx, KeyGroupingRules, g); err != nil {
		return nil, fmt.Errorf("loading grouping rules: %w", err)
	}
	return g, nil
}

// LoadRewrite returns the rewrite rules, empty when unset.
func (l *Loader) LoadRewrite(ctx context.Context) (*RewriteRules, error) {
	r := &RewriteRules{}
	if err := l.store.Get(ctx, KeyRewriteRules, r); err != nil {
		return nil, fmt.Errorf("loading rewrite rules: %w", err)
	}
	return r, nil
}

// SaveCleaning replaces the stored cleaning rules.
func (l *Loader) SaveCleaning(ctx context.Context, rs *RuleSet) error {
	if err := l.store.Set(ctx, KeyCleaningRules, rs); err != nil {
		return fmt.Errorf("saving cleaning rules: %w", err)
	}
	return nil
}

// AddCleaningRule appends a rule for hostname with DefaultCleaningRule, or
// with props when given. An existing rule keeps its position.
func (l *Loader) AddCleaningRule(ctx context.Context, hostname string, props *CleaningRuleProperties) (*RuleSet, error) {
	if hostname == "" {
		return nil, fmt.Errorf("adding cleaning rule: empty hostname")
	}
	rs, err := l.LoadCleaning(ctx)
	if err != nil {
		return nil, err
	}
	p := DefaultCleaningRule
	if props != nil {
		p = *props
	}
	rs.Set(hostname, p)
	if err := l.SaveCleaning(ctx, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// RemoveCleaningRule deletes the rule for hostname. It reports whether a
// rule was removed.
func (l *Loader) RemoveCleaningRule(ctx context.Context, hostname string) (bool, error) {
	rs, err := l.LoadCleaning(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := rs.Get(hostname); !ok {
		return false, nil
	}
	rs.Delete(hostname)
	if err := l.SaveCleaning(ctx, rs); err != nil {
		return false, err
	}
	return true, nil
}
