package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/bookmarkd/internal/logging"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileStore keeps settings as top-level keys of a YAML document.
//
// Every Get reads the file again, so external edits take effect on the next
// read. A missing file behaves as an empty document.
type FileStore struct {
	path   string
	logger *logging.Logger
	mu     sync.Mutex // serializes writers
}

// NewFileStore creates a store backed by the YAML file at path.
func NewFileStore(path string, logger *logging.Logger) *FileStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileStore{
		path:   filepath.Clean(path),
		logger: logger.Named("settings"),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get implements Store.
func (s *FileStore) Get(ctx context.Context, key string, dst any) error {
	raw, err := s.raw(key)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding setting %q: %w", key, err)
	}
	return nil
}

// Set implements Store. The file is rewritten atomically with 0600
// permissions; comments on other keys are preserved.
func (s *FileStore) Set(ctx context.Context, key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %q: %w", key, err)
	}
	valueNode, err := jsonToNode(raw)
	if err != nil {
		return fmt.Errorf("encoding setting %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.readDocument()
	if err != nil {
		return err
	}

	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = valueNode
			replaced = true
			break
		}
	}
	if !replaced {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			valueNode,
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return fmt.Errorf("encoding settings file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding settings file: %w", err)
	}

	return writeFileAtomic(s.path, buf.Bytes())
}

// Watch implements Store. It watches the parent directory so that editors
// replacing the file by rename are observed.
func (s *FileStore) Watch(ctx context.Context, key string) (<-chan Change, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	last, err := s.raw(key)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating settings watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	ch := make(chan Change, 16)
	go s.watchLoop(ctx, watcher, key, last, ch)
	return ch, nil
}

func (s *FileStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, key string, last json.RawMessage, ch chan<- Change) {
	defer close(ch)
	defer func() { _ = watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			current, err := s.raw(key)
			if err != nil {
				s.logger.Warn(ctx, "reading settings after change",
					zap.String("path", s.path),
					zap.String("key", key),
					zap.Error(err))
				continue
			}
			if bytes.Equal(current, last) {
				continue
			}

			change := Change{Key: key, Old: last, New: current}
			last = current
			select {
			case ch <- change:
			case <-ctx.Done():
				return
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn(ctx, "settings watcher error", zap.String("path", s.path), zap.Error(err))
		}
	}
}

// raw returns the JSON encoding of key, or nil when unset.
func (s *FileStore) raw(key string) (json.RawMessage, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	root, err := s.readDocument()
	if err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			raw, err := nodeToJSON(root.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("decoding setting %q: %w", key, err)
			}
			return raw, nil
		}
	}
	return nil, nil
}

// readDocument parses the settings file and returns its top-level mapping.
func (s *FileStore) readDocument() (*yaml.Node, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", s.path, err)
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing settings file %s: top level must be a mapping", s.path)
	}
	return root, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing settings file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}
