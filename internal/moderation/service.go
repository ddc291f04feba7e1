// ABOUTME: Moderation engine for desk-gateway staff operations
// ABOUTME: Admin roster, block/unblock with conflict rules, and user lookup

package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/2389/desk-gateway/internal/store"
)

// Conflict and authorization errors. All are expected, reported to the
// acting staff member, and leave the store unchanged.
var (
	ErrAlreadyAdmin       = errors.New("user is already an admin")
	ErrNotAnAdmin         = errors.New("user is not an admin")
	ErrProtectedMainAdmin = errors.New("the main admin cannot be removed")
	ErrTargetIsAdmin      = errors.New("admins cannot be blocked")
	ErrAlreadyBlocked     = errors.New("user is already blocked")
	ErrNotBlocked         = errors.New("user is not blocked")
)

// ErrMainAdminTaken means the roster already holds a main admin under a
// different identity than the configured one. Returned by SeedMainAdmin;
// startup fails rather than leaving two main admins or an orphaned one.
var ErrMainAdminTaken = errors.New("a different main admin already exists")

// Directory defines what the moderation engine needs from storage.
type Directory interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
	ListUsers(ctx context.Context) ([]*store.User, error)

	GetAdmin(ctx context.Context, id int64) (*store.Admin, error)
	AddAdmin(ctx context.Context, admin *store.Admin) error
	RemoveAdmin(ctx context.Context, id int64) error
	ListAdmins(ctx context.Context) ([]*store.Admin, error)

	GetBlock(ctx context.Context, id int64) (*store.BlockRecord, error)
	AddBlock(ctx context.Context, block *store.BlockRecord) error
	RemoveBlock(ctx context.Context, id int64) error
}

// Service implements the staff-tier operations: roster checks and
// mutation, blocking, lookup, and broadcast.
type Service struct {
	store  Directory
	logger *slog.Logger
}

// New creates a moderation Service. Pass nil logger for default.
func New(directory Directory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  directory,
		logger: logger.With("component", "moderation"),
	}
}

// SeedMainAdmin ensures the configured identity holds the main tier, and
// that no other identity does. Called once at startup. A main admin already
// seeded under a different ID fails startup with ErrMainAdminTaken; a
// standard-tier entry for the configured ID is upgraded in place.
func (s *Service) SeedMainAdmin(ctx context.Context, id int64) error {
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("seeding main admin: %w", err)
	}

	var existing *store.Admin
	for _, a := range admins {
		if a.Tier == store.TierMain && a.UserID != id {
			return fmt.Errorf("seeding main admin %d: user %d holds the main tier: %w",
				id, a.UserID, ErrMainAdminTaken)
		}
		if a.UserID == id {
			existing = a
		}
	}

	username := ""
	if existing != nil {
		if existing.Tier == store.TierMain {
			return nil
		}
		// Promoted to standard before being configured as main. Replace the
		// entry so the roster holds exactly one main admin.
		username = existing.Username
		if err := s.store.RemoveAdmin(ctx, id); err != nil {
			return fmt.Errorf("seeding main admin: %w", err)
		}
	}

	if err := s.store.AddAdmin(ctx, &store.Admin{
		UserID:    id,
		Username:  username,
		Tier:      store.TierMain,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("seeding main admin: %w", err)
	}
	s.logger.Info("main admin seeded", "user_id", id)
	return nil
}

// IsAdmin reports whether id holds any roster entry. Pure lookup.
func (s *Service) IsAdmin(ctx context.Context, id int64) (bool, error) {
	_, err := s.store.GetAdmin(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("admin lookup: %w", err)
	}
	return true, nil
}

// IsMainAdmin reports whether id holds the main tier. Pure lookup.
func (s *Service) IsMainAdmin(ctx context.Context, id int64) (bool, error) {
	admin, err := s.store.GetAdmin(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("admin lookup: %w", err)
	}
	return admin.Tier == store.TierMain, nil
}

// AddAdmin inserts target into the roster at the standard tier.
// Returns ErrAlreadyAdmin if a roster entry already exists.
func (s *Service) AddAdmin(ctx context.Context, target *store.User) error {
	err := s.store.AddAdmin(ctx, &store.Admin{
		UserID:    target.ID,
		Username:  target.Username,
		Tier:      store.TierStandard,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrAlreadyAdmin
	}
	if err != nil {
		return fmt.Errorf("adding admin: %w", err)
	}
	s.logger.Info("admin added", "user_id", target.ID)
	return nil
}

// RemoveAdmin deletes a standard admin from the roster. The main admin is
// protected; removing an absent entry reports ErrNotAnAdmin.
func (s *Service) RemoveAdmin(ctx context.Context, id int64) error {
	admin, err := s.store.GetAdmin(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotAnAdmin
	}
	if err != nil {
		return fmt.Errorf("admin lookup: %w", err)
	}
	if admin.Tier == store.TierMain {
		return ErrProtectedMainAdmin
	}

	if err := s.store.RemoveAdmin(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotAnAdmin
		}
		return fmt.Errorf("removing admin: %w", err)
	}
	s.logger.Info("admin removed", "user_id", id)
	return nil
}

// BlockUser inserts a block record for target. Admins of either tier are
// never blockable; blocking an already-blocked identity reports
// ErrAlreadyBlocked and leaves the existing record unchanged.
func (s *Service) BlockUser(ctx context.Context, target, by int64, reason string) error {
	isAdmin, err := s.IsAdmin(ctx, target)
	if err != nil {
		return err
	}
	if isAdmin {
		return ErrTargetIsAdmin
	}

	err = s.store.AddBlock(ctx, &store.BlockRecord{
		UserID:    target,
		BlockedBy: by,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrAlreadyBlocked
	}
	if err != nil {
		return fmt.Errorf("blocking user: %w", err)
	}
	s.logger.Info("user blocked", "user_id", target, "by", by)
	return nil
}

// UnblockUser deletes the block record for id, reporting ErrNotBlocked if
// none exists.
func (s *Service) UnblockUser(ctx context.Context, id int64) error {
	if err := s.store.RemoveBlock(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotBlocked
		}
		return fmt.Errorf("unblocking user: %w", err)
	}
	s.logger.Info("user unblocked", "user_id", id)
	return nil
}

// IsBlocked reports whether id currently holds a block record.
func (s *Service) IsBlocked(ctx context.Context, id int64) (bool, error) {
	_, err := s.store.GetBlock(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("block lookup: %w", err)
	}
	return true, nil
}

// LookupUser resolves a staff-typed identifier: a numeric identity or an
// alias with or without the "@" prefix. Used uniformly by the info, block,
// unblock, promote, and demote flows.
func (s *Service) LookupUser(ctx context.Context, query string) (*store.User, error) {
	query = strings.TrimSpace(query)
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		return s.store.GetUser(ctx, id)
	}
	return s.store.GetUserByUsername(ctx, query)
}

// ListAdmins returns the roster, main admin first.
func (s *Service) ListAdmins(ctx context.Context) ([]*store.Admin, error) {
	return s.store.ListAdmins(ctx)
}

// ListUsers returns the full user directory.
func (s *Service) ListUsers(ctx context.Context) ([]*store.User, error) {
	return s.store.ListUsers(ctx)
}

// UserInfo renders the staff-facing summary for a user: identity, contact
// details, role, and block status.
func (s *Service) UserInfo(ctx context.Context, user *store.User) (string, error) {
	role := "user"
	admin, err := s.store.GetAdmin(ctx, user.ID)
	switch {
	case err == nil && admin.Tier == store.TierMain:
		role = "main admin"
	case err == nil:
		role = "admin"
	case !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("admin lookup: %w", err)
	}

	status := "active"
	blocked, err := s.IsBlocked(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if blocked {
		status = "blocked"
	}

	alias := "-"
	if user.Username != "" {
		alias = "@" + user.Username
	}

	return fmt.Sprintf("ID: %d\nAlias: %s\nName: %s\nPhone: %s\nRole: %s\nStatus: %s",
		user.ID, alias, user.FullName, user.Phone, role, status), nil
}
