package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func testUser(id int64) *User {
	now := time.Now().UTC().Truncate(time.Second)
	return &User{
		ID:        id,
		Username:  "resident",
		FullName:  "Anna Berg",
		Phone:     "+79991234567",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_UpsertUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, testUser(100)))

	got, err := store.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Anna Berg", got.FullName)
	assert.Equal(t, "+79991234567", got.Phone)
}

func TestStore_UpsertUser_ReplacesExisting(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	u := testUser(100)
	require.NoError(t, store.UpsertUser(ctx, u))

	u.FullName = "Anna Lindberg"
	u.UpdatedAt = u.UpdatedAt.Add(time.Minute)
	require.NoError(t, store.UpsertUser(ctx, u))

	got, err := store.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Anna Lindberg", got.FullName)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetUser(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetUserByUsername(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, testUser(100)))

	// Bare, prefixed, and differently-cased aliases all resolve
	for _, alias := range []string{"resident", "@resident", "Resident"} {
		got, err := store.GetUserByUsername(ctx, alias)
		require.NoError(t, err, "alias %q", alias)
		assert.Equal(t, int64(100), got.ID)
	}

	_, err := store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetUserByUsername_IgnoresEmptyAlias(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	u := testUser(100)
	u.Username = ""
	require.NoError(t, store.UpsertUser(ctx, u))

	_, err := store.GetUserByUsername(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateUserNameAndPhone(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, testUser(100)))

	require.NoError(t, store.UpdateUserName(ctx, 100, "Berta Krause"))
	require.NoError(t, store.UpdateUserPhone(ctx, 100, "+79990000000"))

	got, err := store.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Berta Krause", got.FullName)
	assert.Equal(t, "+79990000000", got.Phone)

	assert.ErrorIs(t, store.UpdateUserName(ctx, 200, "x"), ErrNotFound)
	assert.ErrorIs(t, store.UpdateUserPhone(ctx, 200, "+79991112233"), ErrNotFound)
}

func TestStore_ListUsers_Order(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []int64{3, 1, 2} {
		u := testUser(id)
		u.Username = ""
		u.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		u.UpdatedAt = u.CreatedAt
		require.NoError(t, store.UpsertUser(ctx, u))
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, int64(3), users[0].ID)
	assert.Equal(t, int64(2), users[2].ID)
}

func TestStore_Admins(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.AddAdmin(ctx, &Admin{UserID: 1, Tier: TierMain, CreatedAt: now}))
	require.NoError(t, store.AddAdmin(ctx, &Admin{UserID: 2, Username: "helper", Tier: TierStandard, CreatedAt: now}))

	// Duplicate insert is a conflict
	err := store.AddAdmin(ctx, &Admin{UserID: 2, Tier: TierStandard, CreatedAt: now})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := store.GetAdmin(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, TierMain, got.Tier)

	admins, err := store.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, TierMain, admins[0].Tier, "main admin sorts first")

	require.NoError(t, store.RemoveAdmin(ctx, 2))
	assert.ErrorIs(t, store.RemoveAdmin(ctx, 2), ErrNotFound)
}

func TestStore_Blocks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.AddBlock(ctx, &BlockRecord{UserID: 5, BlockedBy: 1, Reason: "spam", CreatedAt: now}))

	// A second insert must not replace the original record
	err := store.AddBlock(ctx, &BlockRecord{UserID: 5, BlockedBy: 2, Reason: "other", CreatedAt: now.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := store.GetBlock(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.BlockedBy)
	assert.Equal(t, "spam", got.Reason)

	require.NoError(t, store.RemoveBlock(ctx, 5))
	assert.ErrorIs(t, store.RemoveBlock(ctx, 5), ErrNotFound)
	_, err = store.GetBlock(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ConversationState_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	cs := &ConversationState{
		UserID:    100,
		State:     "awaiting_phone",
		Data:      []byte(`{"full_name":"Anna Berg"}`),
		UpdatedAt: now,
	}
	require.NoError(t, store.SetState(ctx, cs))

	got, err := store.GetState(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_phone", got.State)
	assert.JSONEq(t, `{"full_name":"Anna Berg"}`, string(got.Data))

	// Overwrite advances the state in place
	cs.State = "awaiting_address"
	cs.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.SetState(ctx, cs))

	got, err = store.GetState(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_address", got.State)
}

func TestStore_ConversationState_SurvivesReopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SetState(ctx, &ConversationState{
		UserID:    7,
		State:     "in_live_chat",
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetState(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "in_live_chat", got.State)
}

func TestStore_ClearState(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetState(ctx, &ConversationState{
		UserID:    100,
		State:     "awaiting_name",
		UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.ClearState(ctx, 100))

	_, err := store.GetState(ctx, 100)
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing an absent state is not an error
	require.NoError(t, store.ClearState(ctx, 100))
}
