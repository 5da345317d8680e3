package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store, used in tests and as a fallback when
// no settings file is configured.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]json.RawMessage
	watchers map[string]map[chan Change]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]json.RawMessage),
		watchers: make(map[string]map[chan Change]struct{}),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string, dst any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding setting %q: %w", key, err)
	}
	return nil
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %q: %w", key, err)
	}
	return s.SetRaw(ctx, key, raw)
}

// SetRaw stores an already encoded JSON value.
func (s *MemoryStore) SetRaw(ctx context.Context, key string, raw json.RawMessage) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if !json.Valid(raw) {
		return fmt.Errorf("encoding setting %q: invalid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.values[key]
	if bytes.Equal(old, raw) {
		return nil
	}
	s.values[key] = raw

	change := Change{Key: key, Old: old, New: raw}
	for ch := range s.watchers[key] {
		select {
		case ch <- change:
		default:
			// watcher is not keeping up; drop
		}
	}
	return nil
}

// Watch implements Store. Changes are dropped for a watcher whose buffer
// is full.
func (s *MemoryStore) Watch(ctx context.Context, key string) (<-chan Change, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	ch := make(chan Change, 16)
	s.mu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[chan Change]struct{})
	}
	s.watchers[key][ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers[key], ch)
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
