package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The MemoryStore backs unit tests of the layers above the store, so its
// behavior must track SQLiteStore for the cases those layers depend on.

func TestMemoryStore_ImplementsStore(t *testing.T) {
	var _ Store = NewMemoryStore()
}

func TestMemoryStore_UserLifecycle(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.UpsertUser(ctx, testUser(100)))

	got, err := m.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Anna Berg", got.FullName)

	// Returned copies must not alias internal state
	got.FullName = "mutated"
	again, err := m.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Anna Berg", again.FullName)

	byAlias, err := m.GetUserByUsername(ctx, "@Resident")
	require.NoError(t, err)
	assert.Equal(t, int64(100), byAlias.ID)

	_, err = m.GetUser(ctx, 200)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_BlockConflict(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, m.AddBlock(ctx, &BlockRecord{UserID: 5, BlockedBy: 1, Reason: "spam", CreatedAt: now}))
	assert.ErrorIs(t, m.AddBlock(ctx, &BlockRecord{UserID: 5, BlockedBy: 2, CreatedAt: now}), ErrAlreadyExists)

	got, err := m.GetBlock(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "spam", got.Reason, "original record preserved")
}

func TestMemoryStore_AdminConflict(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, m.AddAdmin(ctx, &Admin{UserID: 1, Tier: TierMain, CreatedAt: now}))
	assert.ErrorIs(t, m.AddAdmin(ctx, &Admin{UserID: 1, Tier: TierStandard, CreatedAt: now}), ErrAlreadyExists)
	assert.ErrorIs(t, m.RemoveAdmin(ctx, 42), ErrNotFound)
}

func TestMemoryStore_StateCopySemantics(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	data := []byte(`{"address":"Main st 1"}`)
	require.NoError(t, m.SetState(ctx, &ConversationState{
		UserID:    7,
		State:     "awaiting_media",
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}))

	// Mutating the caller's slice must not affect the stored bag
	data[2] = 'X'

	got, err := m.GetState(ctx, 7)
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"Main st 1"}`, string(got.Data))
}
