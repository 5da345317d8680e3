package cleaning

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/bookmarkd/internal/bookmarks"
	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/fyrsmithlabs/bookmarkd/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
)

func TestRunPass_RecordsSpan(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	loader := &staticLoader{rules: ruleSet("example.com", bookmarksOnly)}
	bm := &fakeBookmarks{nodes: []bookmarks.NativeNode{
		{ID: "1", URL: "https://example.com/a"},
		{ID: "2", URL: "https://other.test/example.com"},
	}}
	c := NewCoordinator(loader, bm, nil, nil, Config{Tracer: tel.Tracer(instrumentationName)})

	_, err := c.RequestClean(context.Background(), rules.CategoryBookmarks)
	require.NoError(t, err)
	waitPasses(t, c)

	spans := tel.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "cleaning.pass", spans[0].Name())

	res, _ := c.LastResult(rules.CategoryBookmarks)
	tel.AssertSpanAttribute(t, "cleaning.pass", "pass.id", res.PassID)
	tel.AssertSpanAttribute(t, "cleaning.pass", "category", "bookmarks")
	tel.AssertSpanAttribute(t, "cleaning.pass", "deleted", int64(1))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestRunPass_SpanMarksLoadFailure(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	loader := &staticLoader{err: errors.New("settings unreadable")}
	c := NewCoordinator(loader, &fakeBookmarks{}, nil, nil, Config{Tracer: tel.Tracer(instrumentationName)})

	_, err := c.RequestClean(context.Background(), rules.CategoryBookmarks)
	require.NoError(t, err)
	waitPasses(t, c)

	spans := tel.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Status().Description, "settings unreadable")
}

func TestHandleVisit_RecordsSpan(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	loader := &staticLoader{rules: ruleSet("example.com", historyOnly)}
	hp := &fakeHistory{}
	c := NewCoordinator(loader, nil, hp, nil, Config{Tracer: tel.Tracer(instrumentationName)})

	deleted, err := c.HandleVisit(context.Background(), browser.Visit{URL: "https://example.com/x"})
	require.NoError(t, err)
	assert.True(t, deleted)

	spans := tel.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "cleaning.visit", spans[0].Name())
	tel.AssertSpanAttribute(t, "cleaning.visit", "hostname", "example.com")
}
