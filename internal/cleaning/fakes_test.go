package cleaning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/bookmarkd/internal/bookmarks"
	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
)

type staticLoader struct {
	mu    sync.Mutex
	rules *rules.RuleSet
	err   error
	calls int
}

func (l *staticLoader) LoadCleaning(context.Context) (*rules.RuleSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	// fresh copy per call, as the settings-backed loader does
	rs := rules.NewRuleSet()
	for host, props := range l.rules.All() {
		rs.Set(host, props)
	}
	return rs, nil
}

func ruleSet(entries ...any) *rules.RuleSet {
	rs := rules.NewRuleSet()
	for i := 0; i+1 < len(entries); i += 2 {
		rs.Set(entries[i].(string), entries[i+1].(rules.CleaningRuleProperties))
	}
	return rs
}

type fakeBookmarks struct {
	mu      sync.Mutex
	nodes   []bookmarks.NativeNode
	removed []string
	fail    map[string]error
	gate    chan struct{} // Search blocks until closed, when set
	entered chan struct{}
}

func (f *fakeBookmarks) Tree(context.Context) ([]bookmarks.NativeNode, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBookmarks) Search(ctx context.Context, query string) ([]bookmarks.NativeNode, error) {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bookmarks.NativeNode
	for _, n := range f.nodes {
		if strings.Contains(n.URL, query) || strings.Contains(n.Title, query) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeBookmarks) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[id]; ok {
		return err
	}
	for _, r := range f.removed {
		if r == id {
			return fmt.Errorf("%w: %s", browser.ErrNotFound, id)
		}
	}
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeBookmarks) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

type fakeHistory struct {
	mu      sync.Mutex
	items   []browser.HistoryItem
	queries []browser.HistoryQuery
	deleted []string
	err     error
}

func (f *fakeHistory) Search(ctx context.Context, q browser.HistoryQuery) ([]browser.HistoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	var out []browser.HistoryItem
	for _, it := range f.items {
		if strings.Contains(it.URL, q.Text) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeHistory) DeleteURL(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeHistory) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type chanVisits chan browser.Visit

func (c chanVisits) Visits(context.Context) <-chan browser.Visit {
	return c
}
