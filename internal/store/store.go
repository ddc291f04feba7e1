// ABOUTME: Store interface and data types for desk-gateway persistence
// ABOUTME: Defines User, Admin, BlockRecord, ConversationState and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when inserting an entity that is already present
var ErrAlreadyExists = errors.New("already exists")

// Admin tiers. Exactly one admin holds TierMain at any time; it is seeded
// from configuration at startup and cannot be removed.
const (
	TierStandard = "standard"
	TierMain     = "main"
)

// User is a directory record for anyone who has completed registration.
// Users are never hard-deleted.
type User struct {
	ID        int64  // transport-assigned identity
	Username  string // optional public alias, without "@" prefix
	FullName  string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Admin is a staff roster entry.
type Admin struct {
	UserID    int64
	Username  string
	Tier      string // TierStandard or TierMain
	CreatedAt time.Time
}

// BlockRecord marks a user as blocked. Presence of a record means blocked.
type BlockRecord struct {
	UserID    int64
	BlockedBy int64
	Reason    string // optional free text
	CreatedAt time.Time
}

// ConversationState is the persisted position of one user's conversation.
// State names and the data bag schema are owned by the conversation package;
// the store treats both as opaque.
type ConversationState struct {
	UserID    int64
	State     string
	Data      []byte // JSON-encoded data bag
	UpdatedAt time.Time
}

// Store defines the interface for directory and conversation-state persistence.
// Every method is a single read-modify-write against the backing database.
type Store interface {
	// Users
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpsertUser(ctx context.Context, user *User) error
	UpdateUserName(ctx context.Context, id int64, fullName string) error
	UpdateUserPhone(ctx context.Context, id int64, phone string) error
	ListUsers(ctx context.Context) ([]*User, error)

	// Admins
	GetAdmin(ctx context.Context, id int64) (*Admin, error)
	AddAdmin(ctx context.Context, admin *Admin) error
	RemoveAdmin(ctx context.Context, id int64) error
	ListAdmins(ctx context.Context) ([]*Admin, error)

	// Blocks
	GetBlock(ctx context.Context, id int64) (*BlockRecord, error)
	AddBlock(ctx context.Context, block *BlockRecord) error
	RemoveBlock(ctx context.Context, id int64) error

	// Conversation state
	GetState(ctx context.Context, id int64) (*ConversationState, error)
	SetState(ctx context.Context, state *ConversationState) error
	ClearState(ctx context.Context, id int64) error

	// Close releases any resources held by the store
	Close() error
}
