// ABOUTME: In-memory Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation for testing.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[int64]*User
	admins map[int64]*Admin
	blocks map[int64]*BlockRecord
	states map[int64]*ConversationState
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int64]*User),
		admins: make(map[int64]*Admin),
		blocks: make(map[int64]*BlockRecord),
		states: make(map[int64]*ConversationState),
	}
}

// GetUser retrieves a user by identity.
func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// GetUserByUsername retrieves a user by alias, ignoring "@" prefix and case.
func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(username, "@")
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username != "" && strings.EqualFold(u.Username, username) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// UpsertUser inserts or replaces a user record.
func (m *MemoryStore) UpsertUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *user
	if existing, ok := m.users[user.ID]; ok {
		copied.CreatedAt = existing.CreatedAt
	}
	m.users[user.ID] = &copied
	return nil
}

// UpdateUserName changes only the display name of an existing user.
func (m *MemoryStore) UpdateUserName(ctx context.Context, id int64, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FullName = fullName
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateUserPhone changes only the phone of an existing user.
func (m *MemoryStore) UpdateUserPhone(ctx context.Context, id int64, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Phone = phone
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// ListUsers returns every registered user, oldest first.
func (m *MemoryStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// GetAdmin retrieves an admin roster entry by identity.
func (m *MemoryStore) GetAdmin(ctx context.Context, id int64) (*Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.admins[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *a
	return &copied, nil
}

// AddAdmin inserts an admin roster entry.
func (m *MemoryStore) AddAdmin(ctx context.Context, admin *Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.admins[admin.UserID]; ok {
		return ErrAlreadyExists
	}
	copied := *admin
	m.admins[admin.UserID] = &copied
	return nil
}

// RemoveAdmin deletes an admin roster entry.
func (m *MemoryStore) RemoveAdmin(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.admins[id]; !ok {
		return ErrNotFound
	}
	delete(m.admins, id)
	return nil
}

// ListAdmins returns the full admin roster, main admin first.
func (m *MemoryStore) ListAdmins(ctx context.Context) ([]*Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	admins := make([]*Admin, 0, len(m.admins))
	for _, a := range m.admins {
		copied := *a
		admins = append(admins, &copied)
	}
	sort.Slice(admins, func(i, j int) bool {
		if admins[i].Tier != admins[j].Tier {
			return admins[i].Tier == TierMain
		}
		return admins[i].UserID < admins[j].UserID
	})
	return admins, nil
}

// GetBlock retrieves a block record by target identity.
func (m *MemoryStore) GetBlock(ctx context.Context, id int64) (*BlockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *b
	return &copied, nil
}

// AddBlock inserts a block record, leaving any existing one untouched.
func (m *MemoryStore) AddBlock(ctx context.Context, block *BlockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[block.UserID]; ok {
		return ErrAlreadyExists
	}
	copied := *block
	m.blocks[block.UserID] = &copied
	return nil
}

// RemoveBlock deletes a block record.
func (m *MemoryStore) RemoveBlock(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[id]; !ok {
		return ErrNotFound
	}
	delete(m.blocks, id)
	return nil
}

// GetState retrieves the persisted conversation state for a user.
func (m *MemoryStore) GetState(ctx context.Context, id int64) (*ConversationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	copied.Data = append([]byte(nil), s.Data...)
	return &copied, nil
}

// SetState stores the conversation state for a user.
func (m *MemoryStore) SetState(ctx context.Context, state *ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *state
	copied.Data = append([]byte(nil), state.Data...)
	m.states[state.UserID] = &copied
	return nil
}

// ClearState removes the conversation state for a user.
func (m *MemoryStore) ClearState(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
