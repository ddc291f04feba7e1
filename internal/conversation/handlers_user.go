// ABOUTME: State handlers for the user-facing flows
// ABOUTME: Registration, the request wizard, contact flows, and settings

package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/desk-gateway/internal/relay"
	"github.com/2389/desk-gateway/internal/store"
	"github.com/2389/desk-gateway/internal/transport"
)

// handleIdle routes main-menu and admin-panel action presses. The sender is
// known to be registered; first contact is diverted to registration before
// dispatch reaches here.
func (e *Engine) handleIdle(ctx context.Context, sess *session, ev *transport.Event) error {
	switch ev.Action {
	case transport.ActionSubmitRequest:
		sess.bag = &Bag{}
		return e.transition(ctx, sess, StateAwaitingApplicationChoice)

	case transport.ActionContactStaff:
		sess.bag = &Bag{}
		return e.transition(ctx, sess, StateAwaitingContactChoice)

	case transport.ActionSettings:
		sess.bag = &Bag{}
		return e.transition(ctx, sess, StateAwaitingSettingsChoice)

	case transport.ActionContacts:
		e.sendText(ctx, sess.userID, e.contacts.Render())
		return nil

	case transport.ActionAdminPanel:
		return e.sendAdminPanel(ctx, sess)

	case transport.ActionAdminBroadcast:
		return e.adminTransition(ctx, sess, StateAwaitingBroadcast, false)
	case transport.ActionAdminUsers:
		return e.sendUserList(ctx, sess)
	case transport.ActionAdminUserInfo:
		return e.adminTransition(ctx, sess, StateAwaitingUserInfo, false)
	case transport.ActionAdminBlock:
		return e.adminTransition(ctx, sess, StateAwaitingBlockTarget, false)
	case transport.ActionAdminUnblock:
		return e.adminTransition(ctx, sess, StateAwaitingUnblockTarget, false)
	case transport.ActionAdminPromote:
		return e.adminTransition(ctx, sess, StateAwaitingPromoteTarget, true)
	case transport.ActionAdminDemote:
		if err := e.sendAdminRoster(ctx, sess); err != nil {
			return err
		}
		return e.adminTransition(ctx, sess, StateAwaitingDemoteTarget, true)
	}

	return e.sendMainMenu(ctx, sess)
}

func (e *Engine) handleAwaitingName(ctx context.Context, sess *session, ev *transport.Event) error {
	if ev.IsAction() || !ValidName(ev.Text) {
		e.sendText(ctx, sess.userID, `That does not look like a full name. Send your first and last name, e.g. "Anna Berg".`)
		return nil
	}
	sess.bag.FullName = strings.TrimSpace(ev.Text)
	return e.transition(ctx, sess, StateAwaitingPhone)
}

func (e *Engine) handleAwaitingPhone(ctx context.Context, sess *session, ev *transport.Event) error {
	phone := strings.TrimSpace(ev.Text)
	if ev.IsAction() || !ValidPhone(phone) {
		e.sendText(ctx, sess.userID, "That phone number is not valid. Use the format +7XXXXXXXXXX.")
		return nil
	}

	now := time.Now().UTC()
	if err := e.store.UpsertUser(ctx, &store.User{
		ID:        sess.userID,
		Username:  sess.username,
		FullName:  sess.bag.FullName,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("registering user %d: %w", sess.userID, err)
	}

	fullName := sess.bag.FullName
	if err := e.reset(ctx, sess); err != nil {
		return err
	}
	e.sendText(ctx, sess.userID, fmt.Sprintf("Thanks, %s. You are all set.", fullName))
	return e.sendMainMenu(ctx, sess)
}

func (e *Engine) handleApplicationChoice(ctx context.Context, sess *session, ev *transport.Event) error {
	switch ev.Action {
	case transport.ActionNewRequest:
		sess.bag.IsSuggestion = false
		return e.transition(ctx, sess, StateAwaitingAddress)
	case transport.ActionNewSuggestion:
		// Suggestions skip the address and media steps.
		sess.bag.IsSuggestion = true
		return e.transition(ctx, sess, StateAwaitingDescription)
	}
	e.rePrompt(ctx, sess)
	return nil
}

func (e *Engine) handleAwaitingAddress(ctx context.Context, sess *session, ev *transport.Event) error {
	switch {
	case ev.Action == transport.ActionSkip:
		sess.bag.Address = ""
	case !ev.IsAction() && strings.TrimSpace(ev.Text) != "":
		sess.bag.Address = strings.TrimSpace(ev.Text)
	default:
		e.rePrompt(ctx, sess)
		return nil
	}
	return e.transition(ctx, sess, StateAwaitingMedia)
}

func (e *Engine) handleAwaitingMedia(ctx context.Context, sess *session, ev *transport.Event) error {
	if ev.Media == nil {
		e.sendText(ctx, sess.userID, "A photo or video is required here. Text alone is not enough.")
		return nil
	}
	sess.bag.Media = ev.Media
	return e.transition(ctx, sess, StateAwaitingDescription)
}

func (e *Engine) handleAwaitingDescription(ctx context.Context, sess *session, ev *transport.Event) error {
	description := strings.TrimSpace(ev.Text)
	if ev.IsAction() || description == "" {
		e.rePrompt(ctx, sess)
		return nil
	}

	user, err := e.store.GetUser(ctx, sess.userID)
	if err != nil {
		return fmt.Errorf("loading submitter %d: %w", sess.userID, err)
	}

	kind := "Request"
	if sess.bag.IsSuggestion {
		kind = "Suggestion"
	}
	ticket := uuid.NewString()[:8]

	var b strings.Builder
	fmt.Fprintf(&b, "%s #%s\n", kind, ticket)
	fmt.Fprintf(&b, "From: %s (ID %d)\n", user.FullName, user.ID)
	if user.Username != "" {
		fmt.Fprintf(&b, "Alias: @%s\n", user.Username)
	}
	fmt.Fprintf(&b, "Phone: %s\n", user.Phone)
	if sess.bag.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", sess.bag.Address)
	}
	fmt.Fprintf(&b, "\n%s", description)

	e.relayToStaff(ctx, user, &transport.Outbound{
		Text:  b.String(),
		Media: sess.bag.Media,
	}, ev.Handle)

	if err := e.reset(ctx, sess); err != nil {
		return err
	}
	e.sendText(ctx, sess.userID,
		fmt.Sprintf("Your %s #%s has been passed to staff. Thank you!", strings.ToLower(kind), ticket))
	return e.sendMainMenu(ctx, sess)
}

func (e *Engine) handleContactChoice(ctx context.Context, sess *session, ev *transport.Event) error {
	switch ev.Action {
	case transport.ActionCallMe:
		user, err := e.store.GetUser(ctx, sess.userID)
		if err != nil {
			return fmt.Errorf("loading user %d: %w", sess.userID, err)
		}
		sess.bag.PendingPhone = user.Phone
		return e.transition(ctx, sess, StateAwaitingCallConfirm)
	case transport.ActionLiveChat:
		return e.transition(ctx, sess, StateInLiveChat)
	}
	e.rePrompt(ctx, sess)
	return nil
}

func (e *Engine) handleCallConfirm(ctx context.Context, sess *session, ev *transport.Event) error {
	switch ev.Action {
	case transport.ActionPhoneCorrect:
		user, err := e.store.GetUser(ctx, sess.userID)
		if err != nil {
			return fmt.Errorf("loading user %d: %w", sess.userID, err)
		}
		e.relayToStaff(ctx, user, &transport.Outbound{
			Text: fmt.Sprintf("Call request\nFrom: %s (ID %d)\nPhone: %s",
				user.FullName, user.ID, sess.bag.PendingPhone),
		}, ev.Handle)
		if err := e.reset(ctx, sess); err != nil {
			return err
		}
		e.sendText(ctx, sess.userID, "Got it. Staff will call you soon.")
		return e.sendMainMenu(ctx, sess)

	case transport.ActionPhoneChange:
		e.sendText(ctx, sess.userID, "Send the number we should call instead, in the format +7XXXXXXXXXX.")
		return nil
	}

	// A typed phone number replaces the one on record and re-renders the
	// confirmation with the new number.
	phone := strings.TrimSpace(ev.Text)
	if !ev.IsAction() && ValidPhone(phone) {
		if err := e.store.UpdateUserPhone(ctx, sess.userID, phone); err != nil {
			return fmt.Errorf("updating phone for %d: %w", sess.userID, err)
		}
		sess.bag.PendingPhone = phone
		if err := e.save(ctx, sess); err != nil {
			return err
		}
		e.rePrompt(ctx, sess)
		return nil
	}

	e.rePrompt(ctx, sess)
	return nil
}

// handleLiveChat relays user messages to the staff group verbatim, each one
// carrying the reply affordance and a fresh correlation entry.
func (e *Engine) handleLiveChat(ctx context.Context, sess *session, ev *transport.Event) error {
	if ev.Action == transport.ActionEndChat {
		if err := e.reset(ctx, sess); err != nil {
			return err
		}
		e.sendText(ctx, sess.userID, "Chat ended.")
		return e.sendMainMenu(ctx, sess)
	}
	if ev.IsAction() || (strings.TrimSpace(ev.Text) == "" && ev.Media == nil) {
		return nil
	}

	user, err := e.store.GetUser(ctx, sess.userID)
	if err != nil {
		return fmt.Errorf("loading user %d: %w", sess.userID, err)
	}

	text := ev.Text
	header := fmt.Sprintf("%s (ID %d):", user.FullName, user.ID)
	if text != "" {
		text = header + "\n" + text
	} else {
		text = header
	}
	e.relayToStaff(ctx, user, &transport.Outbound{Text: text, Media: ev.Media}, ev.Handle)
	return nil
}

func (e *Engine) handleSettingsChoice(ctx context.Context, sess *session, ev *transport.Event) error {
	switch ev.Action {
	case transport.ActionChangeName:
		return e.transition(ctx, sess, StateAwaitingNewName)
	case transport.ActionChangePhone:
		return e.transition(ctx, sess, StateAwaitingNewPhone)
	}
	e.rePrompt(ctx, sess)
	return nil
}

func (e *Engine) handleNewName(ctx context.Context, sess *session, ev *transport.Event) error {
	if ev.IsAction() || !ValidName(ev.Text) {
		e.sendText(ctx, sess.userID, "That does not look like a full name. Send your first and last name.")
		return nil
	}
	name := strings.TrimSpace(ev.Text)
	if err := e.store.UpdateUserName(ctx, sess.userID, name); err != nil {
		return fmt.Errorf("updating name for %d: %w", sess.userID, err)
	}
	if err := e.reset(ctx, sess); err != nil {
		return err
	}
	e.sendText(ctx, sess.userID, fmt.Sprintf("Your name is now %s.", name))
	return e.sendMainMenu(ctx, sess)
}

func (e *Engine) handleNewPhone(ctx context.Context, sess *session, ev *transport.Event) error {
	phone := strings.TrimSpace(ev.Text)
	if ev.IsAction() || !ValidPhone(phone) {
		e.sendText(ctx, sess.userID, "That phone number is not valid. Use the format +7XXXXXXXXXX.")
		return nil
	}
	if err := e.store.UpdateUserPhone(ctx, sess.userID, phone); err != nil {
		return fmt.Errorf("updating phone for %d: %w", sess.userID, err)
	}
	if err := e.reset(ctx, sess); err != nil {
		return err
	}
	e.sendText(ctx, sess.userID, fmt.Sprintf("Your phone number is now %s.", phone))
	return e.sendMainMenu(ctx, sess)
}

// relayToStaff forwards a message to the staff group with the reply
// affordance attached and records the correlation entry so staff replies can
// find their way back. Delivery failures are logged, not surfaced; the user
// keeps a working conversation either way.
func (e *Engine) relayToStaff(ctx context.Context, user *store.User, msg *transport.Outbound, inboundHandle string) {
	msg.Actions = append(msg.Actions, transport.ActionReply)
	handle := e.send(ctx, e.staffGroup, msg)
	if handle == "" {
		return
	}
	e.relay.Record(handle, relay.Entry{
		UserID:        user.ID,
		Username:      user.Username,
		FullName:      user.FullName,
		InboundHandle: inboundHandle,
	})
}
