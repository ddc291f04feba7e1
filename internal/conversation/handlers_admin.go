// ABOUTME: State handlers for the staff flows
// ABOUTME: Reply correlation, broadcast, lookup, block/unblock, roster changes

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/2389/desk-gateway/internal/moderation"
	"github.com/2389/desk-gateway/internal/relay"
	"github.com/2389/desk-gateway/internal/store"
	"github.com/2389/desk-gateway/internal/transport"
)

// sendAdminPanel renders the admin menu. Roster-management entries appear
// only for the main admin.
func (e *Engine) sendAdminPanel(ctx context.Context, sess *session) error {
	isAdmin, err := e.moderation.IsAdmin(ctx, sess.userID)
	if err != nil {
		return err
	}
	if !isAdmin {
		e.sendText(ctx, sess.userID, "You do not have admin privileges.")
		return nil
	}

	actions := []string{
		transport.ActionAdminBroadcast,
		transport.ActionAdminUsers,
		transport.ActionAdminUserInfo,
		transport.ActionAdminBlock,
		transport.ActionAdminUnblock,
	}
	isMain, err := e.moderation.IsMainAdmin(ctx, sess.userID)
	if err != nil {
		return err
	}
	if isMain {
		actions = append(actions, transport.ActionAdminPromote, transport.ActionAdminDemote)
	}

	e.send(ctx, sess.userID, &transport.Outbound{
		Text:    "Admin panel",
		Actions: actions,
	})
	return nil
}

// adminTransition enters a staff prompt state after an authorization check.
// Unauthorized presses get a refusal instead of a transition.
func (e *Engine) adminTransition(ctx context.Context, sess *session, next State, mainOnly bool) error {
	check := e.moderation.IsAdmin
	refusal := "You do not have admin privileges."
	if mainOnly {
		check = e.moderation.IsMainAdmin
		refusal = "Only the main admin can manage the admin roster."
	}

	ok, err := check(ctx, sess.userID)
	if err != nil {
		return err
	}
	if !ok {
		e.sendText(ctx, sess.userID, refusal)
		return nil
	}

	sess.bag = &Bag{}
	return e.transition(ctx, sess, next)
}

// sendUserList renders the full directory for the admin panel. Stays in the
// current state; the list is a lookup, not a flow.
func (e *Engine) sendUserList(ctx context.Context, sess *session) error {
	isAdmin, err := e.moderation.IsAdmin(ctx, sess.userID)
	if err != nil {
		return err
	}
	if !isAdmin {
		e.sendText(ctx, sess.userID, "You do not have admin privileges.")
		return nil
	}

	users, err := e.moderation.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		e.sendText(ctx, sess.userID, "No registered users yet.")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Registered users (%d):\n", len(users))
	for _, u := range users {
		fmt.Fprintf(&b, "  %d. %s", u.ID, u.FullName)
		if u.Username != "" {
			fmt.Fprintf(&b, " (@%s)", u.Username)
		}
		fmt.Fprintf(&b, ", %s\n", u.Phone)
	}
	e.sendText(ctx, sess.userID, b.String())
	return nil
}

// sendAdminRoster lists the current roster so the demote prompt has
// something to pick from.
func (e *Engine) sendAdminRoster(ctx context.Context, sess *session) error {
	admins, err := e.moderation.ListAdmins(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("Current admins:\n")
	for _, a := range admins {
		fmt.Fprintf(&b, "  %d", a.UserID)
		if a.Username != "" {
			fmt.Fprintf(&b, " (@%s)", a.Username)
		}
		if a.Tier == store.TierMain {
			b.WriteString(" [main]")
		}
		b.WriteString("\n")
	}
	e.sendText(ctx, sess.userID, b.String())
	return nil
}

// handleReplyAction resolves a reply press on a relayed staff-group message
// and moves the pressing admin into the reply-composition state. It runs
// before state dispatch, so it works regardless of what the admin was doing.
func (e *Engine) handleReplyAction(ctx context.Context, ev *transport.Event) error {
	isAdmin, err := e.moderation.IsAdmin(ctx, ev.Sender)
	if err != nil {
		return err
	}
	if !isAdmin {
		return nil
	}

	entry, err := e.relay.Resolve(ev.ActionHandle)
	if errors.Is(err, relay.ErrNoConversation) {
		// The table is bounded; old entries age out. Not fatal.
		e.sendText(ctx, ev.Sender, "No pending conversation found for that message. It may have expired.")
		return nil
	}
	if err != nil {
		return err
	}

	sess := &session{
		userID:   ev.Sender,
		username: ev.Username,
		bag: &Bag{
			ReplyTo:     entry.UserID,
			ReplyToName: entry.FullName,
		},
	}
	return e.transition(ctx, sess, StateAwaitingReplyText)
}

func (e *Engine) handleReplyText(ctx context.Context, sess *session, ev *transport.Event) error {
	if ev.IsAction() || (strings.TrimSpace(ev.Text) == "" && ev.Media == nil) {
		e.rePrompt(ctx, sess)
		return nil
	}

	msg := &transport.Outbound{Text: ev.Text, Media: ev.Media}
	// Threading onto the user's own message keeps context when more than
	// one exchange is in flight.
	if handle, ok := e.relay.ResolveLatestFor(sess.bag.ReplyTo); ok {
		msg.ReplyTo = handle
	}

	handle := e.send(ctx, sess.bag.ReplyTo, msg)
	replyToName := sess.bag.ReplyToName
	if err := e.reset(ctx, sess); err != nil {
		return err
	}
	if handle == "" {
		e.sendText(ctx, sess.userID, fmt.Sprintf("Could not deliver the reply to %s.", replyToName))
		return nil
	}
	e.sendText(ctx, sess.userID, fmt.Sprintf("Reply delivered to %s.", replyToName))
	return nil
}

// handleBroadcastInput launches the fan-out on the engine's run context so
// the dispatch lock for this admin is released while deliveries proceed.
func (e *Engine) handleBroadcastInput(ctx context.Context, sess *session, ev *transport.Event) error {
	if ev.IsAction() || (strings.TrimSpace(ev.Text) == "" && ev.Media == nil) {
		e.rePrompt(ctx, sess)
		return nil
	}

	payload := moderation.Payload{Text: ev.Text, Media: ev.Media}
	senderID := sess.userID
	if err := e.reset(ctx, sess); err != nil {
		return err
	}

	go func() {
		if _, err := e.moderation.Broadcast(e.runCtx, e.sender, senderID, payload); err != nil {
			e.logger.Error("broadcast failed", "sender_id", senderID, "error", err)
		}
	}()
	return nil
}

func (e *Engine) handleUserInfoInput(ctx context.Context, sess *session, ev *transport.Event) error {
	target, ok := e.lookupTarget(ctx, sess, ev)
	if !ok {
		return nil
	}

	info, err := e.moderation.UserInfo(ctx, target)
	if err != nil {
		return err
	}
	if err := e.reset(ctx, sess); err != nil {
		return err
	}
	e.sendText(ctx, sess.userID, info)
	return nil
}

func (e *Engine) handleBlockTarget(ctx context.Context, sess *session, ev *transport.Event) error {
	target, ok := e.lookupTarget(ctx, sess, ev)
	if !ok {
		return nil
	}

	isAdmin, err := e.moderation.IsAdmin(ctx, target.ID)
	if err != nil {
		return err
	}
	if isAdmin {
		if err := e.reset(ctx, sess); err != nil {
			return err
		}
		e.sendText(ctx, sess.userID, "Admins cannot be blocked. Demote first.")
		return nil
	}

	blocked, err := e.moderation.IsBlocked(ctx, target.ID)
	if err != nil {
		return err
	}
	if blocked {
		if err := e.reset(ctx, sess); err != nil {
			return err
		}
		e.sendText(ctx, sess.userID, fmt.Sprintf("%s is already blocked.", target.FullName))
		return nil
	}

	sess.bag.BlockTarget = target.ID
	sess.bag.BlockTargetName = target.FullName
	return e.transition(ctx, sess, StateAwaitingBlockReason)
}

func (e *Engine) handleBlockReason(ctx context.Context, sess *session, ev *transport.Event) error {
	var reason string
	switch {
	case ev.Action == transport.ActionSkip:
		reason = ""
	case !ev.IsAction() && strings.TrimSpace(ev.Text) != "":
		reason = strings.TrimSpace(ev.Text)
	default:
		e.rePrompt(ctx, sess)
		return nil
	}

	targetID := sess.bag.BlockTarget
	targetName := sess.bag.BlockTargetName
	err := e.moderation.BlockUser(ctx, targetID, sess.userID, reason)
	if err := e.reset(ctx, sess); err != nil {
		return err
	}

	switch {
	case errors.Is(err, moderation.ErrTargetIsAdmin):
		e.sendText(ctx, sess.userID, "Admins cannot be blocked. Demote first.")
	case errors.Is(err, moderation.ErrAlreadyBlocked):
		e.sendText(ctx, sess.userID, fmt.Sprintf("%s is already blocked.", targetName))
	case err != nil:
		return err
	default:
		msg := fmt.Sprintf("%s is now blocked.", targetName)
		if reason != "" {
			msg += fmt.Sprintf(" Reason: %s", reason)
		}
		e.sendText(ctx, sess.userID, msg)
	}
	return nil
}

func (e *Engine) handleUnblockTarget(ctx context.Context, sess *session, ev *transport.Event) error {
	target, ok := e.lookupTarget(ctx, sess, ev)
	if !ok {
		return nil
	}

	err := e.moderation.UnblockUser(ctx, target.ID)
	if err := e.reset(ctx, sess); err != nil {
		return err
	}

	switch {
	case errors.Is(err, moderation.ErrNotBlocked):
		e.sendText(ctx, sess.userID, fmt.Sprintf("%s is not blocked.", target.FullName))
	case err != nil:
		return err
	default:
		e.sendText(ctx, sess.userID, fmt.Sprintf("%s is unblocked.", target.FullName))
	}
	return nil
}

func (e *Engine) handlePromoteTarget(ctx context.Context, sess *session, ev *transport.Event) error {
	target, ok := e.lookupTarget(ctx, sess, ev)
	if !ok {
		return nil
	}

	err := e.moderation.AddAdmin(ctx, target)
	if err := e.reset(ctx, sess); err != nil {
		return err
	}

	switch {
	case errors.Is(err, moderation.ErrAlreadyAdmin):
		e.sendText(ctx, sess.userID, fmt.Sprintf("%s is already an admin.", target.FullName))
	case err != nil:
		return err
	default:
		e.sendText(ctx, sess.userID, fmt.Sprintf("%s is now an admin.", target.FullName))
	}
	return nil
}

// handleDemoteTarget accepts a raw numeric ID even when no directory record
// exists, since the seeded main admin may never have registered.
func (e *Engine) handleDemoteTarget(ctx context.Context, sess *session, ev *transport.Event) error {
	if ev.IsAction() || strings.TrimSpace(ev.Text) == "" {
		e.rePrompt(ctx, sess)
		return nil
	}

	query := strings.TrimSpace(ev.Text)
	targetID, label, found, err := e.resolveRosterTarget(ctx, query)
	if err != nil {
		return err
	}
	if !found {
		e.sendText(ctx, sess.userID, "User not found. Send a user ID or @alias, or go back.")
		return nil
	}

	err = e.moderation.RemoveAdmin(ctx, targetID)
	if err := e.reset(ctx, sess); err != nil {
		return err
	}

	switch {
	case errors.Is(err, moderation.ErrProtectedMainAdmin):
		e.sendText(ctx, sess.userID, "The main admin cannot be demoted.")
	case errors.Is(err, moderation.ErrNotAnAdmin):
		e.sendText(ctx, sess.userID, fmt.Sprintf("%s is not an admin.", label))
	case err != nil:
		return err
	default:
		e.sendText(ctx, sess.userID, fmt.Sprintf("%s is no longer an admin.", label))
	}
	return nil
}

// lookupTarget resolves the typed ID or alias for the target-prompt states.
// On a miss the prompt state is kept so the admin can correct the input.
func (e *Engine) lookupTarget(ctx context.Context, sess *session, ev *transport.Event) (*store.User, bool) {
	if ev.IsAction() || strings.TrimSpace(ev.Text) == "" {
		e.rePrompt(ctx, sess)
		return nil, false
	}

	target, err := e.moderation.LookupUser(ctx, strings.TrimSpace(ev.Text))
	if errors.Is(err, store.ErrNotFound) {
		e.sendText(ctx, sess.userID, "User not found. Send a user ID or @alias, or go back.")
		return nil, false
	}
	if err != nil {
		e.logger.Error("target lookup failed", "query", ev.Text, "error", err)
		e.sendText(ctx, sess.userID, "Something went wrong. Please try again later.")
		return nil, false
	}
	return target, true
}

// resolveRosterTarget resolves a demote query, falling back to the bare
// numeric ID when the directory has no record.
func (e *Engine) resolveRosterTarget(ctx context.Context, query string) (int64, string, bool, error) {
	target, err := e.moderation.LookupUser(ctx, query)
	if err == nil {
		return target.ID, target.FullName, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, "", false, err
	}
	id, parseErr := strconv.ParseInt(query, 10, 64)
	if parseErr != nil {
		return 0, "", false, nil
	}
	return id, fmt.Sprintf("User %d", id), true, nil
}
