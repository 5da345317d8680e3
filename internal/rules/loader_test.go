package rules

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/bookmarkd/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	settings.Store
}

func (failingStore) Get(context.Context, string, any) error {
	return errors.New("disk unavailable")
}

func TestLoader_LoadCleaning(t *testing.T) {
	ctx := context.Background()
	store := settings.NewMemoryStore()
	l := NewLoader(store)

	rs, err := l.LoadCleaning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())

	require.NoError(t, store.SetRaw(ctx, KeyCleaningRules, json.RawMessage(
		`{"b.test":{"bookmarks":true},"a.test":{"history":true}}`)))

	rs, err = l.LoadCleaning(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.test", "a.test"}, rs.Hostnames())
}

func TestLoader_NotCached(t *testing.T) {
	ctx := context.Background()
	store := settings.NewMemoryStore()
	l := NewLoader(store)

	require.NoError(t, store.SetRaw(ctx, KeyCleaningRules, json.RawMessage(`{"a.test":{}}`)))
	first, err := l.LoadCleaning(ctx)
	require.NoError(t, err)

	require.NoError(t, store.SetRaw(ctx, KeyCleaningRules, json.RawMessage(`{"b.test":{}}`)))
	second, err := l.LoadCleaning(ctx)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, []string{"b.test"}, second.Hostnames())
}

func TestLoader_Errors(t *testing.T) {
	l := NewLoader(failingStore{})
	ctx := context.Background()

	_, err := l.LoadCleaning(ctx)
	assert.ErrorContains(t, err, "loading cleaning rules")
	_, err = l.LoadGrouping(ctx)
	assert.ErrorContains(t, err, "loading grouping rules")
	_, err = l.LoadRewrite(ctx)
	assert.ErrorContains(t, err, "loading rewrite rules")
}

func TestLoader_GroupingAndRewrite(t *testing.T) {
	ctx := context.Background()
	store := settings.NewMemoryStore()
	l := NewLoader(store)

	require.NoError(t, store.SetRaw(ctx, KeyGroupingRules, json.RawMessage(`{"9":{"example.com":{"subdomains":true}}}`)))
	require.NoError(t, store.SetRaw(ctx, KeyRewriteRules, json.RawMessage(`{"^http:":"https:"}`)))

	g, err := l.LoadGrouping(ctx)
	require.NoError(t, err)
	m, ok, err := g.FolderFor("https://www.example.com/")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "9", m.FolderID)

	r, err := l.LoadRewrite(ctx)
	require.NoError(t, err)
	got, ok := r.Rewrite("http://x.test/")
	assert.True(t, ok)
	assert.Equal(t, "https://x.test/", got)

	require.NoError(t, store.SetRaw(ctx, KeyRewriteRules, json.RawMessage(`{"(":"x"}`)))
	_, err = l.LoadRewrite(ctx)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestLoader_AddAndRemoveCleaningRule(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(settings.NewMemoryStore())

	rs, err := l.AddCleaningRule(ctx, "example.com", nil)
	require.NoError(t, err)
	props, ok := rs.Get("example.com")
	require.True(t, ok)
	assert.Equal(t, DefaultCleaningRule, props)

	custom := CleaningRuleProperties{Bookmarks: true}
	_, err = l.AddCleaningRule(ctx, "other.test", &custom)
	require.NoError(t, err)

	rs, err = l.LoadCleaning(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "other.test"}, rs.Hostnames())

	removed, err := l.RemoveCleaningRule(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = l.RemoveCleaningRule(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = l.AddCleaningRule(ctx, "", nil)
	assert.Error(t, err)
}
