package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/desk-gateway/internal/store"
)

func TestGuard_NotBlocked(t *testing.T) {
	g := New(store.NewMemoryStore(), nil)

	block, err := g.Check(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestGuard_Blocked(t *testing.T) {
	m := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.AddBlock(ctx, &store.BlockRecord{
		UserID:    100,
		BlockedBy: 1,
		Reason:    "spam",
		CreatedAt: time.Now().UTC(),
	}))

	g := New(m, nil)

	block, err := g.Check(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, "spam", block.Reason)
}

type failingBlockStore struct{}

func (failingBlockStore) GetBlock(ctx context.Context, id int64) (*store.BlockRecord, error) {
	return nil, errors.New("disk on fire")
}

func TestGuard_StoreFailurePropagates(t *testing.T) {
	g := New(failingBlockStore{}, nil)

	_, err := g.Check(context.Background(), 100)
	assert.Error(t, err)
}

func TestMessage(t *testing.T) {
	withReason := Message(&store.BlockRecord{Reason: "spam"})
	assert.Contains(t, withReason, "spam")

	withoutReason := Message(&store.BlockRecord{})
	assert.NotContains(t, withoutReason, "Reason")
}
