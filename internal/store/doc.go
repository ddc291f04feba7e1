// Package store provides persistent storage for desk-gateway using SQLite.
//
// # Data Models
//
//   - User: Directory record created when registration completes
//   - Admin: Staff roster entry with a tier (standard or main)
//   - BlockRecord: Presence of a record marks the user as blocked
//   - ConversationState: Persisted FSM position plus opaque JSON data bag
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrAlreadyExists: Insert collided with an existing row
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMemoryStore() for unit tests of the layers above the store.
// Use NewSQLiteStore with a t.TempDir() path for integration tests with
// real SQLite.
package store
