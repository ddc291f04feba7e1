// ABOUTME: Broadcast fan-out with partial-failure accounting
// ABOUTME: Sends a staff payload to every user, editing a progress message in place

package moderation

import (
	"context"
	"fmt"

	"github.com/2389/desk-gateway/internal/transport"
)

// progressEvery is how many attempts pass between progress edits.
const progressEvery = 10

// Payload is the message a broadcast delivers to each user.
type Payload struct {
	Text  string
	Media *transport.MediaRef
}

// Result accounts for a completed (or cancelled) broadcast.
// Success + Failed equals the number of attempted recipients.
type Result struct {
	Success int
	Failed  int
}

// Broadcast sends payload to every directory user except the sender.
// The user list is snapshotted up front, so the fan-out holds no locks and
// races no live cursor. Sends run sequentially to keep progress counts
// exact; a per-recipient failure is logged, counted, and never aborts the
// rest. Cancelling ctx stops the fan-out early with counts so far.
//
// Progress is reported by editing a status message in the sender's chat
// every progressEvery attempts, then once more with the final summary.
func (s *Service) Broadcast(ctx context.Context, sender transport.Sender, senderID int64, payload Payload) (Result, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing broadcast recipients: %w", err)
	}

	recipients := make([]int64, 0, len(users))
	for _, u := range users {
		if u.ID != senderID {
			recipients = append(recipients, u.ID)
		}
	}
	if len(recipients) == 0 {
		return Result{}, nil
	}

	statusHandle, err := sender.Send(ctx, &transport.Outbound{
		Target: senderID,
		Text:   "Starting broadcast...",
	})
	if err != nil {
		// Progress reporting is best effort; the fan-out still runs.
		s.logger.Warn("failed to send broadcast status message", "error", err)
	}

	var res Result
	for _, recipient := range recipients {
		if ctx.Err() != nil {
			s.logger.Info("broadcast cancelled",
				"success", res.Success,
				"failed", res.Failed,
				"remaining", len(recipients)-res.Success-res.Failed)
			break
		}

		out := &transport.Outbound{
			Target: recipient,
			Text:   payload.Text,
			Media:  payload.Media,
		}
		if _, err := sender.Send(ctx, out); err != nil {
			res.Failed++
			s.logger.Warn("broadcast delivery failed",
				"recipient", recipient,
				"error", err)
		} else {
			res.Success++
		}

		if statusHandle != "" && (res.Success+res.Failed)%progressEvery == 0 {
			s.editStatus(ctx, sender, senderID, statusHandle, fmt.Sprintf(
				"Broadcast in progress...\nDelivered: %d\nFailed: %d",
				res.Success, res.Failed))
		}
	}

	if statusHandle != "" {
		s.editStatus(ctx, sender, senderID, statusHandle, fmt.Sprintf(
			"Broadcast finished.\nDelivered: %d\nFailed: %d",
			res.Success, res.Failed))
	}

	s.logger.Info("broadcast complete",
		"sender", senderID,
		"success", res.Success,
		"failed", res.Failed)
	return res, nil
}

// editStatus rewrites the progress message, tolerating edit failures.
func (s *Service) editStatus(ctx context.Context, sender transport.Sender, target int64, handle, text string) {
	if err := sender.Edit(ctx, target, handle, text); err != nil {
		s.logger.Debug("failed to edit broadcast status", "error", err)
	}
}
