package places

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"go.uber.org/zap"
)

// History returns the store as a browser.HistoryProvider. The bookmark
// Search method occupies the name on Store itself.
func (s *Store) History() browser.HistoryProvider {
	return historyView{s}
}

type historyView struct{ s *Store }

func (h historyView) Search(ctx context.Context, q browser.HistoryQuery) ([]browser.HistoryItem, error) {
	return h.s.SearchHistory(ctx, q)
}

func (h historyView) DeleteURL(ctx context.Context, url string) error {
	return h.s.DeleteURL(ctx, url)
}

// SearchHistory returns entries whose URL or title contains q.Text, most
// recently visited first. MaxResults <= 0 means no limit.
func (s *Store) SearchHistory(ctx context.Context, q browser.HistoryQuery) ([]browser.HistoryItem, error) {
	limit := int64(q.MaxResults)
	if limit <= 0 {
		limit = -1
	}
	pattern := "%" + escapeLike(q.Text) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, last_visit_time, visit_count FROM history
		 WHERE url LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\'
		 ORDER BY last_visit_time DESC, id DESC
		 LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("places: search history: %w", err)
	}
	defer rows.Close()

	var out []browser.HistoryItem
	for rows.Next() {
		var (
			id        int64
			item      browser.HistoryItem
			lastVisit int64
		)
		if err := rows.Scan(&id, &item.URL, &item.Title, &lastVisit, &item.VisitCount); err != nil {
			return nil, fmt.Errorf("places: search history: %w", err)
		}
		item.ID = strconv.FormatInt(id, 10)
		t := time.UnixMilli(lastVisit).UTC()
		item.LastVisitTime = &t
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("places: search history: %w", err)
	}
	return out, nil
}

// DeleteURL implements browser.HistoryProvider.
func (s *Store) DeleteURL(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("places: delete url: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("places: delete url: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: history %s", browser.ErrNotFound, url)
	}
	s.logger.Debug(ctx, "history entry removed", zap.String("url", url))
	return nil
}

// RecordVisit adds a visit to the history and publishes it to Visits
// subscribers. A zero VisitedAt is replaced with the current time.
func (s *Store) RecordVisit(ctx context.Context, v browser.Visit) error {
	if v.URL == "" {
		return fmt.Errorf("places: record visit: empty url")
	}
	if v.VisitedAt.IsZero() {
		v.VisitedAt = s.cfg.now()
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO history (url, title, last_visit_time, visit_count)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT(url) DO UPDATE SET
			visit_count     = visit_count + 1,
			last_visit_time = MAX(last_visit_time, excluded.last_visit_time),
			title           = CASE WHEN excluded.title <> '' THEN excluded.title ELSE title END`,
		v.URL, v.Title, v.VisitedAt.UnixMilli()); err != nil {
		return fmt.Errorf("places: record visit: %w", err)
	}

	s.publish(ctx, v)
	return nil
}

// Visits implements browser.VisitSource. A subscriber that falls behind
// misses visits.
func (s *Store) Visits(ctx context.Context) <-chan browser.Visit {
	ch := make(chan browser.Visit, s.cfg.visitBuffer)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers, ch)
		s.mu.Unlock()
		close(ch)
	}()
	return ch
}

func (s *Store) publish(ctx context.Context, v browser.Visit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- v:
		default:
			s.logger.Warn(ctx, "visit subscriber full, dropping visit", zap.String("url", v.URL))
		}
	}
}
