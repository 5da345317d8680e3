package places

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_RecordSearchDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	h := s.History()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordVisit(ctx, browser.Visit{URL: "https://example.com/a", Title: "A", VisitedAt: base}))
	require.NoError(t, s.RecordVisit(ctx, browser.Visit{URL: "https://sub.example.com/", VisitedAt: base.Add(time.Hour)}))
	require.NoError(t, s.RecordVisit(ctx, browser.Visit{URL: "https://other.org/", VisitedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, s.RecordVisit(ctx, browser.Visit{URL: "https://example.com/a", VisitedAt: base.Add(3 * time.Hour)}))

	items, err := h.Search(ctx, browser.HistoryQuery{Text: "example.com", MaxResults: 1e9})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "https://example.com/a", items[0].URL, "most recent first")
	assert.Equal(t, "A", items[0].Title, "empty title keeps previous")
	assert.Equal(t, 2, items[0].VisitCount)
	assert.Equal(t, base.Add(3*time.Hour), *items[0].LastVisitTime)

	limited, err := h.Search(ctx, browser.HistoryQuery{Text: "", MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	all, err := h.Search(ctx, browser.HistoryQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, h.DeleteURL(ctx, "https://example.com/a"))
	assert.ErrorIs(t, h.DeleteURL(ctx, "https://example.com/a"), browser.ErrNotFound)

	items, err = h.Search(ctx, browser.HistoryQuery{Text: "example", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://sub.example.com/", items[0].URL)
}

func TestHistory_RecordVisitDefaultsTime(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.RecordVisit(ctx, browser.Visit{URL: "https://x.test/"}))
	items, err := s.SearchHistory(ctx, browser.HistoryQuery{Text: "x.test"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, fixedNow, *items[0].LastVisitTime)

	assert.Error(t, s.RecordVisit(ctx, browser.Visit{}))
}

func TestVisits_Stream(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	visits := s.Visits(ctx)
	require.NoError(t, s.RecordVisit(context.Background(), browser.Visit{URL: "https://example.com/x"}))

	select {
	case v := <-visits:
		assert.Equal(t, "https://example.com/x", v.URL)
		assert.Equal(t, fixedNow, v.VisitedAt)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for visit")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-visits:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestVisits_SlowSubscriberDropsVisits(t *testing.T) {
	s := openTestStore(t, WithVisitBuffer(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	visits := s.Visits(ctx)
	require.NoError(t, s.RecordVisit(ctx, browser.Visit{URL: "https://1.test/"}))
	require.NoError(t, s.RecordVisit(ctx, browser.Visit{URL: "https://2.test/"}))

	v := <-visits
	assert.Equal(t, "https://1.test/", v.URL)
	select {
	case v := <-visits:
		t.Fatalf("unexpected visit %v", v)
	default:
	}
}
