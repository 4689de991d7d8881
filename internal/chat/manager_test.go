package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(staticReply("advice"), nil, zap.NewNop())

	id, c := m.Create(ctx)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = c.Submit(ctx, "google")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, id))
	assert.Equal(t, 0, m.Len())

	_, err = m.Get(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(ctx, id), ErrSessionNotFound)
}

func TestManagerUnknownSession(t *testing.T) {
	m := NewManager(staticReply("advice"), nil, nil)

	_, err := m.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Get(context.Background(), "8f14e45f-ceea-467f-a0e6-7c5c2bd2c7a1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerRestoresFromRedis(t *testing.T) {
	ctx := context.Background()
	_, rdb := setupTestRedis(t)
	store := NewRedisStore(rdb, "", time.Hour)

	first := NewManager(staticReply("advice"), store, nil)
	id, c := first.Create(ctx)
	_, err := c.Submit(ctx, "system design tips")
	require.NoError(t, err)

	// A second process sharing the store picks the session up.
	second := NewManager(staticReply("advice"), store, nil)
	restored, err := second.Get(ctx, id)
	require.NoError(t, err)

	messages := restored.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "system design tips", messages[0].Text)
	assert.Equal(t, "advice", messages[1].Text)
}

func TestManagerDeleteDropsKeptHistory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(staticReply("advice"), store, nil, WithKeepHistory(true))

	id, c := m.Create(ctx)
	_, err := c.Submit(ctx, "google")
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, id))

	_, err = m.Get(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	messages, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, messages)
}

func TestManagerEvictIdle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(staticReply("advice"), store, nil)

	id, c := m.Create(ctx)
	_, err := c.Submit(ctx, "amazon")
	require.NoError(t, err)

	assert.Equal(t, 0, m.EvictIdle(time.Hour))
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, 1, m.EvictIdle(0))
	assert.Equal(t, 0, m.Len())

	// The log outlives eviction, so the session comes back on the next request.
	restored, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, restored.Messages(), 2)
	assert.Equal(t, 1, m.Len())
}
