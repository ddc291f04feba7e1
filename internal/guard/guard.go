// ABOUTME: Access guard consulted before any event dispatch
// ABOUTME: Short-circuits every inbound event from a blocked identity

package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/desk-gateway/internal/store"
)

// BlockStore provides access to block records.
type BlockStore interface {
	GetBlock(ctx context.Context, id int64) (*store.BlockRecord, error)
}

// Guard is the single choke point that checks block status for the acting
// identity. It runs before any other component for every inbound event,
// messages and inline actions alike.
type Guard struct {
	blocks BlockStore
	logger *slog.Logger
}

// New creates a Guard. Pass nil logger for default.
func New(blocks BlockStore, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		blocks: blocks,
		logger: logger.With("component", "guard"),
	}
}

// Check returns the block record for id if one exists, nil otherwise.
// A store failure propagates so the caller can degrade to a generic reply
// instead of silently letting traffic through.
func (g *Guard) Check(ctx context.Context, id int64) (*store.BlockRecord, error) {
	block, err := g.blocks.GetBlock(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking block status: %w", err)
	}

	g.logger.Debug("blocked identity rejected", "user_id", id)
	return block, nil
}

// Message renders the fixed blocked-user reply, including the reason when
// one was recorded.
func Message(block *store.BlockRecord) string {
	if block.Reason != "" {
		return fmt.Sprintf("You are blocked and cannot use this service. Reason: %s", block.Reason)
	}
	return "You are blocked and cannot use this service."
}
