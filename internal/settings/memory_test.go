package settings

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetUnsetKeepsDefault(t *testing.T) {
	s := NewMemoryStore()

	dst := map[string]bool{"default": true}
	require.NoError(t, s.Get(context.Background(), "cleaningrules", &dst))
	assert.Equal(t, map[string]bool{"default": true}, dst)
}

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "enableediting", true))

	var got bool
	require.NoError(t, s.Get(ctx, "enableediting", &got))
	assert.True(t, got)
}

func TestMemoryStore_InvalidKey(t *testing.T) {
	s := NewMemoryStore()
	var v any
	assert.ErrorIs(t, s.Get(context.Background(), "", &v), ErrInvalidKey)
	assert.ErrorIs(t, s.Set(context.Background(), "", 1), ErrInvalidKey)
	_, err := s.Watch(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryStore_DecodeError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SetRaw(ctx, "k", json.RawMessage(`"text"`)))

	var n int
	err := s.Get(ctx, "k", &n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `decoding setting "k"`)
}

func TestMemoryStore_SetRawRejectsInvalidJSON(t *testing.T) {
	assert.Error(t, NewMemoryStore().SetRaw(context.Background(), "k", json.RawMessage(`{`)))
}

func TestMemoryStore_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemoryStore()

	ch, err := s.Watch(ctx, "enableediting")
	require.NoError(t, err)

	require.NoError(t, s.Set(context.Background(), "enableediting", true))
	require.NoError(t, s.Set(context.Background(), "enableediting", true)) // unchanged, no event
	require.NoError(t, s.Set(context.Background(), "other", 1))
	require.NoError(t, s.Set(context.Background(), "enableediting", false))

	select {
	case c := <-ch:
		assert.Equal(t, "enableediting", c.Key)
		assert.Nil(t, c.Old)
		assert.JSONEq(t, `true`, string(c.New))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}

	select {
	case c := <-ch:
		assert.JSONEq(t, `true`, string(c.Old))
		assert.JSONEq(t, `false`, string(c.New))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}
