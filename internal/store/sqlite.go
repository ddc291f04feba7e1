// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/admin/block/state persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			user_id    INTEGER PRIMARY KEY,
			username   TEXT NOT NULL DEFAULT '',
			full_name  TEXT NOT NULL,
			phone      TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

		CREATE TABLE IF NOT EXISTS admins (
			user_id    INTEGER PRIMARY KEY,
			username   TEXT NOT NULL DEFAULT '',
			tier       TEXT NOT NULL,
			created_at DATETIME NOT NULL,

			CHECK (tier IN ('standard', 'main'))
		);

		CREATE TABLE IF NOT EXISTS blocks (
			user_id    INTEGER PRIMARY KEY,
			blocked_by INTEGER NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversation_states (
			user_id    INTEGER PRIMARY KEY,
			state      TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '{}',
			updated_at DATETIME NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// GetUser retrieves a user by identity.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, full_name, phone, created_at, updated_at
		 FROM users WHERE user_id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by alias. The comparison ignores a
// leading "@" and letter case, matching how aliases are typed by staff.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	username = strings.TrimPrefix(username, "@")
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, full_name, phone, created_at, updated_at
		 FROM users WHERE username = ? COLLATE NOCASE AND username != ''`, username)
	return scanUser(row)
}

// UpsertUser inserts or replaces a user record. CreatedAt is preserved for
// existing rows.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username, full_name, phone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			full_name = excluded.full_name,
			phone = excluded.phone,
			updated_at = excluded.updated_at`,
		user.ID, user.Username, user.FullName, user.Phone, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// UpdateUserName changes only the display name of an existing user.
func (s *SQLiteStore) UpdateUserName(ctx context.Context, id int64, fullName string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, updated_at = ? WHERE user_id = ?`,
		fullName, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating user name: %w", err)
	}
	return requireRow(res)
}

// UpdateUserPhone changes only the phone of an existing user.
func (s *SQLiteStore) UpdateUserPhone(ctx context.Context, id int64, phone string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET phone = ?, updated_at = ? WHERE user_id = ?`,
		phone, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating user phone: %w", err)
	}
	return requireRow(res)
}

// ListUsers returns every registered user, oldest first.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, full_name, phone, created_at, updated_at
		 FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Phone, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetAdmin retrieves an admin roster entry by identity.
func (s *SQLiteStore) GetAdmin(ctx context.Context, id int64) (*Admin, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, tier, created_at FROM admins WHERE user_id = ?`, id)
	a := &Admin{}
	if err := row.Scan(&a.UserID, &a.Username, &a.Tier, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning admin: %w", err)
	}
	return a, nil
}

// AddAdmin inserts an admin roster entry. Returns ErrAlreadyExists if the
// identity already holds a roster entry.
func (s *SQLiteStore) AddAdmin(ctx context.Context, admin *Admin) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (user_id, username, tier, created_at) VALUES (?, ?, ?, ?)`,
		admin.UserID, admin.Username, admin.Tier, admin.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting admin: %w", err)
	}
	return nil
}

// RemoveAdmin deletes an admin roster entry. Returns ErrNotFound if absent.
func (s *SQLiteStore) RemoveAdmin(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting admin: %w", err)
	}
	return requireRow(res)
}

// ListAdmins returns the full admin roster, main admin first.
func (s *SQLiteStore) ListAdmins(ctx context.Context) ([]*Admin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, tier, created_at FROM admins
		 ORDER BY CASE tier WHEN 'main' THEN 0 ELSE 1 END, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}
	defer rows.Close()

	var admins []*Admin
	for rows.Next() {
		a := &Admin{}
		if err := rows.Scan(&a.UserID, &a.Username, &a.Tier, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// GetBlock retrieves a block record by target identity.
func (s *SQLiteStore) GetBlock(ctx context.Context, id int64) (*BlockRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, blocked_by, reason, created_at FROM blocks WHERE user_id = ?`, id)
	b := &BlockRecord{}
	if err := row.Scan(&b.UserID, &b.BlockedBy, &b.Reason, &b.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning block: %w", err)
	}
	return b, nil
}

// AddBlock inserts a block record. Returns ErrAlreadyExists if the identity
// is already blocked; the existing record is left untouched.
func (s *SQLiteStore) AddBlock(ctx context.Context, block *BlockRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocks (user_id, blocked_by, reason, created_at) VALUES (?, ?, ?, ?)`,
		block.UserID, block.BlockedBy, block.Reason, block.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting block: %w", err)
	}
	return nil
}

// RemoveBlock deletes a block record. Returns ErrNotFound if absent.
func (s *SQLiteStore) RemoveBlock(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE user_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting block: %w", err)
	}
	return requireRow(res)
}

// GetState retrieves the persisted conversation state for a user.
// Returns ErrNotFound when the user has no state (idle).
func (s *SQLiteStore) GetState(ctx context.Context, id int64) (*ConversationState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, state, data, updated_at FROM conversation_states WHERE user_id = ?`, id)
	cs := &ConversationState{}
	var data string
	if err := row.Scan(&cs.UserID, &cs.State, &data, &cs.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning state: %w", err)
	}
	cs.Data = []byte(data)
	return cs, nil
}

// SetState stores the conversation state for a user, replacing any previous one.
func (s *SQLiteStore) SetState(ctx context.Context, state *ConversationState) error {
	data := state.Data
	if len(data) == 0 {
		data = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_states (user_id, state, data, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			state = excluded.state,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		state.UserID, state.State, string(data), state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("setting state: %w", err)
	}
	return nil
}

// ClearState removes the conversation state for a user (back to idle).
// Clearing an absent state is not an error.
func (s *SQLiteStore) ClearState(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_states WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("clearing state: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanUser scans a single user row, mapping sql.ErrNoRows to ErrNotFound.
func scanUser(row *sql.Row) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Phone, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return u, nil
}

// requireRow maps a zero-row UPDATE/DELETE to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
