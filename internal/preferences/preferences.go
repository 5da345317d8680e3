// Package preferences tracks user preferences kept in the settings store.
package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/fyrsmithlabs/bookmarkd/internal/logging"
	"github.com/fyrsmithlabs/bookmarkd/internal/settings"
	"go.uber.org/zap"
)

// KeyEnableEditing is the settings key of the rule-editing switch.
const KeyEnableEditing = "enableediting"

// Tracker holds the current enableediting value and follows changes to it.
type Tracker struct {
	store   settings.Store
	logger  *logging.Logger
	enabled atomic.Bool
}

// NewTracker reads the initial value and follows the key until ctx is done.
// A missing key means editing is disabled.
func NewTracker(ctx context.Context, store settings.Store, logger *logging.Logger) (*Tracker, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	t := &Tracker{store: store, logger: logger.Named("preferences")}

	enabled := false
	if err := store.Get(ctx, KeyEnableEditing, &enabled); err != nil {
		return nil, fmt.Errorf("reading %s: %w", KeyEnableEditing, err)
	}
	t.enabled.Store(enabled)

	changes, err := store.Watch(ctx, KeyEnableEditing)
	if err != nil {
		return nil, fmt.Errorf("watching %s: %w", KeyEnableEditing, err)
	}
	go t.follow(ctx, changes)

	return t, nil
}

// Enabled reports whether rule editing is enabled.
func (t *Tracker) Enabled() bool {
	return t.enabled.Load()
}

// SetEnabled persists a new value. The tracked value follows once the
// store reports the change.
func (t *Tracker) SetEnabled(ctx context.Context, enabled bool) error {
	if err := t.store.Set(ctx, KeyEnableEditing, enabled); err != nil {
		return fmt.Errorf("writing %s: %w", KeyEnableEditing, err)
	}
	return nil
}

func (t *Tracker) follow(ctx context.Context, changes <-chan settings.Change) {
	for change := range changes {
		// Only explicit booleans are applied; removal or other values keep
		// the current state.
		var enabled bool
		if err := json.Unmarshal(change.New, &enabled); err != nil {
			t.logger.Debug(ctx, "ignoring non-boolean preference", zap.ByteString("value", change.New))
			continue
		}
		if t.enabled.Swap(enabled) != enabled {
			t.logger.Info(ctx, "preference changed", zap.String("key", KeyEnableEditing), zap.Bool("value", enabled))
		}
	}
}
