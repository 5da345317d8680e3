package places

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/bookmarkd/internal/bookmarks"
	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"go.uber.org/zap"
)

const bookmarkColumns = `id, parent_id, position, title, url, date_added, date_group_modified, date_last_used, unmodifiable`

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row scanner) (bookmarks.NativeNode, error) {
	var (
		id                             int64
		parent                         sql.NullInt64
		position                       int
		title                          string
		url                            sql.NullString
		added, groupModified, lastUsed sql.NullInt64
		unmodifiable                   string
	)
	if err := row.Scan(&id, &parent, &position, &title, &url, &added, &groupModified, &lastUsed, &unmodifiable); err != nil {
		return bookmarks.NativeNode{}, err
	}

	n := bookmarks.NativeNode{
		ID:                strconv.FormatInt(id, 10),
		Index:             &position,
		Title:             title,
		URL:               url.String,
		DateAdded:         nullMillis(added),
		DateGroupModified: nullMillis(groupModified),
		DateLastUsed:      nullMillis(lastUsed),
		Unmodifiable:      unmodifiable,
	}
	if parent.Valid {
		n.ParentID = strconv.FormatInt(parent.Int64, 10)
	}
	return n, nil
}

func nullMillis(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	ms := v.Int64
	return &ms
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bookmark %q", browser.ErrNotFound, id)
	}
	return n, nil
}

// Tree implements browser.BookmarkProvider.
func (s *Store) Tree(ctx context.Context) ([]bookmarks.NativeNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks ORDER BY parent_id, position, id`)
	if err != nil {
		return nil, fmt.Errorf("places: tree: %w", err)
	}
	defer rows.Close()

	var (
		all      []bookmarks.NativeNode
		children = make(map[string][]int)
		roots    []int
	)
	for rows.Next() {
		n, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("places: tree: %w", err)
		}
		all = append(all, n)
		idx := len(all) - 1
		if n.ParentID == "" {
			roots = append(roots, idx)
		} else {
			children[n.ParentID] = append(children[n.ParentID], idx)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("places: tree: %w", err)
	}

	tree := make([]bookmarks.NativeNode, 0, len(roots))
	for _, idx := range roots {
		tree = append(tree, assemble(all, children, idx))
	}
	return tree, nil
}

// assemble attaches children to all[idx] bottom-up without recursion.
func assemble(all []bookmarks.NativeNode, children map[string][]int, idx int) bookmarks.NativeNode {
	// post-order over indices, then build each node after its children
	var order []int
	stack := []int{idx}
	seen := make(map[int]bool)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		order = append(order, cur)
		stack = append(stack, children[all[cur].ID]...)
	}

	built := make(map[int]bookmarks.NativeNode, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		cur := order[i]
		n := all[cur]
		if n.URL == "" {
			kids := children[n.ID]
			n.Children = make([]bookmarks.NativeNode, 0, len(kids))
			for _, k := range kids {
				if c, ok := built[k]; ok {
					n.Children = append(n.Children, c)
				}
			}
		}
		built[cur] = n
	}
	return built[idx]
}

// Get returns a single node without children.
func (s *Store) Get(ctx context.Context, id string) (bookmarks.NativeNode, error) {
	nid, err := parseID(id)
	if err != nil {
		return bookmarks.NativeNode{}, err
	}
	n, err := scanBookmark(s.db.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ?`, nid))
	if errors.Is(err, sql.ErrNoRows) {
		return bookmarks.NativeNode{}, fmt.Errorf("%w: bookmark %s", browser.ErrNotFound, id)
	}
	if err != nil {
		return bookmarks.NativeNode{}, fmt.Errorf("places: get %s: %w", id, err)
	}
	return n, nil
}

// Search implements browser.BookmarkProvider. Matching is a case-insensitive
// substring match on URL or title.
func (s *Store) Search(ctx context.Context, query string) ([]bookmarks.NativeNode, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks
		 WHERE parent_id IS NOT NULL
		   AND (url LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\')
		 ORDER BY id`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("places: search: %w", err)
	}
	defer rows.Close()

	var out []bookmarks.NativeNode
	for rows.Next() {
		n, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("places: search: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("places: search: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// AddFolder creates a folder as the last child of parentID.
func (s *Store) AddFolder(ctx context.Context, parentID, title string) (string, error) {
	return s.insert(ctx, parentID, title, "")
}

// AddBookmark creates a bookmark as the last child of parentID.
func (s *Store) AddBookmark(ctx context.Context, parentID, title, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("places: add bookmark: empty url")
	}
	return s.insert(ctx, parentID, title, url)
}

func (s *Store) insert(ctx context.Context, parentID, title, url string) (string, error) {
	pid, err := parseID(parentID)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("places: insert: %w", err)
	}
	defer tx.Rollback()

	var parentURL sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT url FROM bookmarks WHERE id = ?`, pid).Scan(&parentURL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: parent %s", browser.ErrNotFound, parentID)
	}
	if err != nil {
		return "", fmt.Errorf("places: insert: %w", err)
	}
	if parentURL.Valid {
		return "", fmt.Errorf("%w: %s", ErrNotFolder, parentID)
	}

	var position int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM bookmarks WHERE parent_id = ?`, pid).Scan(&position); err != nil {
		return "", fmt.Errorf("places: insert: %w", err)
	}

	now := s.cfg.now().UnixMilli()
	var (
		urlArg           any
		groupModifiedArg any
	)
	if url == "" {
		groupModifiedArg = now
	} else {
		urlArg = url
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookmarks (parent_id, position, title, url, date_added, date_group_modified)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		pid, position, title, urlArg, now, groupModifiedArg)
	if err != nil {
		return "", fmt.Errorf("places: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("places: insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookmarks SET date_group_modified = ? WHERE id = ?`, now, pid); err != nil {
		return "", fmt.Errorf("places: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("places: insert: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Import adds nodes, with their children, under parentID. Node ids, dates
// and positions of the input are ignored.
func (s *Store) Import(ctx context.Context, parentID string, nodes []bookmarks.NativeNode) error {
	type pending struct {
		parent string
		node   *bookmarks.NativeNode
	}
	queue := make([]pending, 0, len(nodes))
	for i := range nodes {
		queue = append(queue, pending{parentID, &nodes[i]})
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		var (
			id  string
			err error
		)
		if p.node.URL == "" {
			id, err = s.AddFolder(ctx, p.parent, p.node.Title)
		} else {
			id, err = s.AddBookmark(ctx, p.parent, p.node.Title, p.node.URL)
		}
		if err != nil {
			return err
		}
		for i := range p.node.Children {
			queue = append(queue, pending{id, &p.node.Children[i]})
		}
	}
	return nil
}

// Remove implements browser.BookmarkProvider. Unmodifiable nodes and
// non-empty folders are refused.
func (s *Store) Remove(ctx context.Context, id string) error {
	nid, err := parseID(id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("places: remove: %w", err)
	}
	defer tx.Rollback()

	n, err := scanBookmark(tx.QueryRowContext(ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ?`, nid))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: bookmark %s", browser.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("places: remove: %w", err)
	}
	if n.Unmodifiable != "" {
		return fmt.Errorf("%w: %s (%s)", ErrUnmodifiable, id, n.Unmodifiable)
	}

	if n.URL == "" {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookmarks WHERE parent_id = ?`, nid).Scan(&count); err != nil {
			return fmt.Errorf("places: remove: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrFolderNotEmpty, id)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, nid); err != nil {
		return fmt.Errorf("places: remove: %w", err)
	}
	if n.ParentID != "" {
		pid, _ := strconv.ParseInt(n.ParentID, 10, 64)
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookmarks SET position = position - 1 WHERE parent_id = ? AND position > ?`,
			pid, *n.Index); err != nil {
			return fmt.Errorf("places: remove: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookmarks SET date_group_modified = ? WHERE id = ?`,
			s.cfg.now().UnixMilli(), pid); err != nil {
			return fmt.Errorf("places: remove: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("places: remove: %w", err)
	}

	s.logger.Debug(ctx, "bookmark removed", zap.String("id", id), zap.String("url", n.URL))
	return nil
}

// MarkUsed records that the bookmark was opened.
func (s *Store) MarkUsed(ctx context.Context, id string) error {
	nid, err := parseID(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookmarks SET date_last_used = ? WHERE id = ? AND url IS NOT NULL`,
		s.cfg.now().UnixMilli(), nid)
	if err != nil {
		return fmt.Errorf("places: mark used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: bookmark %s", browser.ErrNotFound, id)
	}
	return nil
}
