package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/bookmarkd/internal/cleaning"
	"github.com/fyrsmithlabs/bookmarkd/internal/logging"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const trusted = "abcdefghijklmnop"

type fakeCleaner struct {
	mu       sync.Mutex
	requests []rules.Category
	running  map[rules.Category]bool
	err      error
}

func (f *fakeCleaner) RequestClean(_ context.Context, category rules.Category) (cleaning.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.requests = append(f.requests, category)
	if f.running == nil {
		f.running = make(map[rules.Category]bool)
	}
	if f.running[category] {
		return cleaning.StatusRunning, nil
	}
	f.running[category] = true
	return cleaning.StatusStarted, nil
}

func TestHandle_CleanRequests(t *testing.T) {
	tests := []struct {
		msgType  string
		category rules.Category
	}{
		{TypeCleanBookmarks, rules.CategoryBookmarks},
		{TypeCleanHistory, rules.CategoryHistory},
	}

	for _, tt := range tests {
		t.Run(tt.msgType, func(t *testing.T) {
			cleaner := &fakeCleaner{}
			h := NewHandler(trusted, cleaner, nil)

			resp, err := h.Handle(context.Background(), Sender{ID: trusted}, Message{Type: tt.msgType})
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, cleaning.StatusStarted, resp.Status)

			resp, err = h.Handle(context.Background(), Sender{ID: trusted}, Message{Type: tt.msgType})
			require.NoError(t, err)
			assert.Equal(t, cleaning.StatusRunning, resp.Status)

			assert.Equal(t, []rules.Category{tt.category, tt.category}, cleaner.requests)
		})
	}
}

func TestHandle_UntrustedSender(t *testing.T) {
	cleaner := &fakeCleaner{}
	logger := logging.NewTestLogger()
	h := NewHandler(trusted, cleaner, logger.Logger)

	resp, err := h.Handle(context.Background(), Sender{ID: "evil"}, Message{Type: TypeCleanBookmarks})
	assert.ErrorIs(t, err, ErrUntrustedSender)
	assert.Nil(t, resp)
	assert.Empty(t, cleaner.requests, "untrusted messages must not start a pass")

	logger.AssertLogged(t, zapcore.WarnLevel, "unknown sender")
	logger.AssertField(t, "received message from unknown sender", "sender.id", "evil")
}

func TestHandle_EmptySenderIsUntrusted(t *testing.T) {
	h := NewHandler(trusted, &fakeCleaner{}, nil)

	_, err := h.Handle(context.Background(), Sender{}, Message{Type: TypeCleanHistory})
	assert.ErrorIs(t, err, ErrUntrustedSender)
}

func TestTrusts(t *testing.T) {
	logger := logging.NewTestLogger()
	h := NewHandler(trusted, &fakeCleaner{}, logger.Logger)

	assert.True(t, h.Trusts(context.Background(), Sender{ID: trusted}, "rules.put"))
	assert.Equal(t, 0, logger.FilterMessage("received message from unknown sender").Len())

	assert.False(t, h.Trusts(context.Background(), Sender{ID: "evil"}, "rules.put"))
	logger.AssertField(t, "received message from unknown sender", "sender.id", "evil")
	logger.AssertField(t, "received message from unknown sender", "type", "rules.put")
}

func TestHandle_UnknownMessage(t *testing.T) {
	cleaner := &fakeCleaner{}
	h := NewHandler(trusted, cleaner, nil)

	resp, err := h.Handle(context.Background(), Sender{ID: trusted}, Message{Type: "clean.everything"})
	assert.ErrorIs(t, err, ErrUnknownMessage)
	assert.Nil(t, resp)
	assert.Empty(t, cleaner.requests)
}

func TestHandle_CleanerError(t *testing.T) {
	cleaner := &fakeCleaner{err: cleaning.ErrUnknownCategory}
	h := NewHandler(trusted, cleaner, nil)

	resp, err := h.Handle(context.Background(), Sender{ID: trusted}, Message{Type: TypeCleanHistory})
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, cleaning.ErrUnknownCategory))
}

func TestMessageJSON(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"type":"clean.history"}`), &msg))
	assert.Equal(t, TypeCleanHistory, msg.Type)

	data, err := json.Marshal(Response{Status: cleaning.StatusStarted})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"started"}`, string(data))
}
