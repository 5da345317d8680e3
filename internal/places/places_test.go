package places

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/bookmarks"
	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s, err := Open(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_SeedsRoots(t *testing.T) {
	s := openTestStore(t)

	tree, err := s.Tree(context.Background())
	require.NoError(t, err)
	require.Len(t, tree, 1)

	root := tree[0]
	assert.Equal(t, RootID, root.ID)
	assert.Equal(t, "root", root.Unmodifiable)
	require.Len(t, root.Children, 2)
	assert.Equal(t, BookmarksBarID, root.Children[0].ID)
	assert.Equal(t, "Bookmarks bar", root.Children[0].Title)
	assert.Equal(t, OtherBookmarkID, root.Children[1].ID)
	assert.Equal(t, RootID, root.Children[1].ParentID)
	require.NotNil(t, root.DateAdded)
	assert.Equal(t, fixedNow.UnixMilli(), *root.DateAdded)
}

func TestOpen_FileReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "places.db")
	ctx := context.Background()

	s, err := Open(path, WithMkdirAll())
	require.NoError(t, err)
	id, err := s.AddBookmark(ctx, BookmarksBarID, "Example", "https://example.com/")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", n.URL)

	tree, err := s.Tree(ctx)
	require.NoError(t, err)
	assert.Len(t, tree[0].Children, 2, "roots are seeded once")
}

func TestTree_NestedOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	folder, err := s.AddFolder(ctx, BookmarksBarID, "Work")
	require.NoError(t, err)
	a, err := s.AddBookmark(ctx, folder, "A", "https://a.example/")
	require.NoError(t, err)
	b, err := s.AddBookmark(ctx, folder, "B", "https://b.example/")
	require.NoError(t, err)
	top, err := s.AddBookmark(ctx, BookmarksBarID, "Top", "https://top.example/")
	require.NoError(t, err)

	tree, err := s.Tree(ctx)
	require.NoError(t, err)

	bar := tree[0].Children[0]
	require.Len(t, bar.Children, 2)
	assert.Equal(t, folder, bar.Children[0].ID)
	assert.Equal(t, top, bar.Children[1].ID)

	work := bar.Children[0]
	require.Len(t, work.Children, 2)
	assert.Equal(t, a, work.Children[0].ID)
	assert.Equal(t, b, work.Children[1].ID)
	assert.Equal(t, 1, *work.Children[1].Index)
	assert.Nil(t, work.Children[0].Children)

	model := bookmarks.NewModel()
	bookmarks.NewMaterializer(model).MaterializeAll(tree)
	assert.Equal(t, 7, model.Len())
}

func TestAdd_Errors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.AddBookmark(ctx, "999", "x", "https://x.test/")
	assert.ErrorIs(t, err, browser.ErrNotFound)

	item, err := s.AddBookmark(ctx, BookmarksBarID, "x", "https://x.test/")
	require.NoError(t, err)
	_, err = s.AddBookmark(ctx, item, "child", "https://y.test/")
	assert.ErrorIs(t, err, ErrNotFolder)

	_, err = s.AddBookmark(ctx, BookmarksBarID, "no url", "")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Import(ctx, OtherBookmarkID, []bookmarks.NativeNode{
		{Title: "Example", URL: "https://example.com/"},
		{Title: "Example docs", URL: "https://docs.example.com/"},
		{Title: "Other", URL: "https://other.org/?q=example"},
		{Title: "Percent", URL: "https://p.test/100%_off"},
		{Title: "example folder", Children: []bookmarks.NativeNode{
			{Title: "nested", URL: "https://deep.example.com/"},
		}},
	}))

	got, err := s.Search(ctx, "example.com")
	require.NoError(t, err)
	var urls []string
	for _, n := range got {
		urls = append(urls, n.URL)
	}
	assert.Equal(t, []string{"https://example.com/", "https://docs.example.com/", "https://deep.example.com/"}, urls)

	got, err = s.Search(ctx, "EXAMPLE")
	require.NoError(t, err)
	assert.Len(t, got, 5, "case-insensitive, folder titles included")

	got, err = s.Search(ctx, "100%_")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Percent", got[0].Title)

	got, err = s.Search(ctx, "%")
	require.NoError(t, err)
	assert.Len(t, got, 1, "wildcards are escaped")
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	folder, err := s.AddFolder(ctx, BookmarksBarID, "F")
	require.NoError(t, err)
	first, err := s.AddBookmark(ctx, folder, "1", "https://1.test/")
	require.NoError(t, err)
	second, err := s.AddBookmark(ctx, folder, "2", "https://2.test/")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Remove(ctx, folder), ErrFolderNotEmpty)
	assert.ErrorIs(t, s.Remove(ctx, RootID), ErrUnmodifiable)
	assert.ErrorIs(t, s.Remove(ctx, BookmarksBarID), ErrUnmodifiable)

	require.NoError(t, s.Remove(ctx, first))
	assert.ErrorIs(t, s.Remove(ctx, first), browser.ErrNotFound)
	assert.ErrorIs(t, s.Remove(ctx, "not-a-number"), browser.ErrNotFound)

	n, err := s.Get(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 0, *n.Index, "positions are compacted")

	require.NoError(t, s.Remove(ctx, second))
	require.NoError(t, s.Remove(ctx, folder))
}

func TestMarkUsed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.AddBookmark(ctx, BookmarksBarID, "x", "https://x.test/")
	require.NoError(t, err)
	require.NoError(t, s.MarkUsed(ctx, id))

	n, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, n.DateLastUsed)
	assert.Equal(t, fixedNow.UnixMilli(), *n.DateLastUsed)

	assert.ErrorIs(t, s.MarkUsed(ctx, BookmarksBarID), browser.ErrNotFound)
}
