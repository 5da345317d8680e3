// Package places stores bookmarks and browsing history in SQLite and
// implements the browser provider contracts on top of it.
//
// A new database is seeded with the root folder and the two standard
// top-level folders, which cannot be removed.
//
//	store, err := places.Open("places.db", places.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package places

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"github.com/fyrsmithlabs/bookmarkd/internal/logging"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var (
	// ErrUnmodifiable indicates an attempt to remove a protected node.
	ErrUnmodifiable = errors.New("bookmark node is unmodifiable")

	// ErrFolderNotEmpty indicates an attempt to remove a folder with children.
	ErrFolderNotEmpty = errors.New("bookmark folder is not empty")

	// ErrNotFolder indicates a parent id that refers to a bookmark item.
	ErrNotFolder = errors.New("parent is not a folder")
)

// Well-known node ids of the seeded tree.
const (
	RootID          = "1"
	BookmarksBarID  = "2"
	OtherBookmarkID = "3"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_id           INTEGER REFERENCES bookmarks(id),
	position            INTEGER NOT NULL DEFAULT 0,
	title               TEXT    NOT NULL DEFAULT '',
	url                 TEXT,
	date_added          INTEGER,
	date_group_modified INTEGER,
	date_last_used      INTEGER,
	unmodifiable        TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS bookmarks_parent ON bookmarks(parent_id, position);

CREATE TABLE IF NOT EXISTS history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	url             TEXT    NOT NULL UNIQUE,
	title           TEXT    NOT NULL DEFAULT '',
	last_visit_time INTEGER NOT NULL,
	visit_count     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS history_last_visit ON history(last_visit_time DESC);
`

type config struct {
	logger      *logging.Logger
	busyTimeout int
	mkdirAll    bool
	visitBuffer int
	now         func() time.Time
}

func defaults() config {
	return config{
		busyTimeout: 10_000,
		visitBuffer: 64,
		now:         time.Now,
	}
}

// Option customises Open behaviour.
type Option func(*config)

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *logging.Logger) Option { return func(c *config) { c.logger = l } }

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithVisitBuffer sets the per-subscriber visit channel capacity. Default: 64.
func WithVisitBuffer(n int) Option { return func(c *config) { c.visitBuffer = n } }

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option { return func(c *config) { c.now = now } }

// Store is a SQLite-backed bookmark and history store.
type Store struct {
	db     *sql.DB
	cfg    config
	logger *logging.Logger

	mu          sync.Mutex
	subscribers map[chan browser.Visit]struct{}
}

var (
	_ browser.BookmarkProvider = (*Store)(nil)
	_ browser.HistoryProvider  = historyView{}
	_ browser.VisitSource      = (*Store)(nil)
)

// Open opens or creates the database at path. Use ":memory:" for an
// in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}

	memory := path == ":memory:"
	if cfg.mkdirAll && !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("places: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("places: open: %w", err)
	}
	if memory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("places: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("places: exec schema: %w", err)
	}

	s := &Store{
		db:          db,
		cfg:         cfg,
		logger:      cfg.logger.Named("places"),
		subscribers: make(map[chan browser.Visit]struct{}),
	}
	if err := s.seed(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) seed(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookmarks`).Scan(&n); err != nil {
		return fmt.Errorf("places: seed: %w", err)
	}
	if n > 0 {
		return nil
	}

	now := s.cfg.now().UnixMilli()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("places: seed: %w", err)
	}
	defer tx.Rollback()

	rows := []struct {
		id       int64
		parent   any
		position int
		title    string
	}{
		{1, nil, 0, ""},
		{2, 1, 0, "Bookmarks bar"},
		{3, 1, 1, "Other bookmarks"},
	}
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bookmarks (id, parent_id, position, title, date_added, date_group_modified, unmodifiable)
			 VALUES (?, ?, ?, ?, ?, ?, 'root')`,
			r.id, r.parent, r.position, r.title, now, now); err != nil {
			return fmt.Errorf("places: seed: %w", err)
		}
	}
	return tx.Commit()
}
