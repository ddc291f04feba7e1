// ABOUTME: Conversation engine: routes every inbound event to one state handler
// ABOUTME: Owns transitions, persistence of state, and outbound sends

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/desk-gateway/internal/contacts"
	"github.com/2389/desk-gateway/internal/moderation"
	"github.com/2389/desk-gateway/internal/relay"
	"github.com/2389/desk-gateway/internal/store"
	"github.com/2389/desk-gateway/internal/transport"
)

// Store defines what the engine needs from persistence.
type Store interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
	UpsertUser(ctx context.Context, user *store.User) error
	UpdateUserName(ctx context.Context, id int64, fullName string) error
	UpdateUserPhone(ctx context.Context, id int64, phone string) error

	GetState(ctx context.Context, id int64) (*store.ConversationState, error)
	SetState(ctx context.Context, state *store.ConversationState) error
	ClearState(ctx context.Context, id int64) error
}

// Engine dispatches inbound events to state handlers. State is loaded from
// the store on every event, so a restarted process resumes users exactly
// where they left off.
type Engine struct {
	store      Store
	relay      *relay.Table
	moderation *moderation.Service
	contacts   *contacts.Directory
	sender     transport.Sender
	staffGroup int64
	logger     *slog.Logger

	// runCtx outlives individual dispatches; broadcasts run on it so they
	// are not cut short when the triggering event finishes, yet still stop
	// on process shutdown.
	runCtx context.Context

	handlers map[State]handlerFunc
}

type handlerFunc func(ctx context.Context, sess *session, ev *transport.Event) error

// session is the per-dispatch view of one user's conversation.
type session struct {
	userID   int64
	username string
	state    State
	bag      *Bag
}

// Config collects the engine's dependencies.
type Config struct {
	Store      Store
	Relay      *relay.Table
	Moderation *moderation.Service
	Contacts   *contacts.Directory
	Sender     transport.Sender
	StaffGroup int64
	RunCtx     context.Context
	Logger     *slog.Logger
}

// New creates a conversation Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runCtx := cfg.RunCtx
	if runCtx == nil {
		runCtx = context.Background()
	}
	contactsDir := cfg.Contacts
	if contactsDir == nil {
		contactsDir = &contacts.Directory{}
	}

	e := &Engine{
		store:      cfg.Store,
		relay:      cfg.Relay,
		moderation: cfg.Moderation,
		contacts:   contactsDir,
		sender:     cfg.Sender,
		staffGroup: cfg.StaffGroup,
		logger:     logger.With("component", "conversation"),
		runCtx:     runCtx,
	}

	e.handlers = map[State]handlerFunc{
		StateIdle:          e.handleIdle,
		StateAwaitingName:  e.handleAwaitingName,
		StateAwaitingPhone: e.handleAwaitingPhone,

		StateAwaitingApplicationChoice: e.handleApplicationChoice,
		StateAwaitingAddress:           e.handleAwaitingAddress,
		StateAwaitingMedia:             e.handleAwaitingMedia,
		StateAwaitingDescription:       e.handleAwaitingDescription,

		StateAwaitingContactChoice: e.handleContactChoice,
		StateAwaitingCallConfirm:   e.handleCallConfirm,
		StateInLiveChat:            e.handleLiveChat,

		StateAwaitingSettingsChoice: e.handleSettingsChoice,
		StateAwaitingNewName:        e.handleNewName,
		StateAwaitingNewPhone:       e.handleNewPhone,

		StateAwaitingBroadcast:     e.handleBroadcastInput,
		StateAwaitingUserInfo:      e.handleUserInfoInput,
		StateAwaitingBlockTarget:   e.handleBlockTarget,
		StateAwaitingBlockReason:   e.handleBlockReason,
		StateAwaitingUnblockTarget: e.handleUnblockTarget,
		StateAwaitingPromoteTarget: e.handlePromoteTarget,
		StateAwaitingDemoteTarget:  e.handleDemoteTarget,
		StateAwaitingReplyText:     e.handleReplyText,
	}

	return e
}

// HandleEvent routes one inbound event to exactly one state handler.
// Returned errors are persistence failures; the caller degrades them to a
// generic reply. Everything user-correctable is handled inside.
func (e *Engine) HandleEvent(ctx context.Context, ev *transport.Event) error {
	// The reply affordance on relayed staff-group messages works from any
	// state, so it is resolved before state dispatch.
	if ev.Action == transport.ActionReply {
		return e.handleReplyAction(ctx, ev)
	}

	sess, err := e.loadSession(ctx, ev)
	if err != nil {
		return err
	}

	// An existing directory record always skips registration. Checked
	// before any state dispatch so a stale registration state cannot
	// shadow a completed registration.
	if sess.state == StateAwaitingName || sess.state == StateAwaitingPhone || sess.state == StateIdle {
		_, err := e.store.GetUser(ctx, ev.Sender)
		switch {
		case err == nil && sess.state != StateIdle:
			if err := e.reset(ctx, sess); err != nil {
				return err
			}
		case errors.Is(err, store.ErrNotFound):
			if sess.state == StateIdle {
				return e.beginRegistration(ctx, sess)
			}
		case err != nil:
			return fmt.Errorf("registration bypass lookup: %w", err)
		}
	}

	// Back navigation is uniform across states; live chat ends only via
	// its explicit end action.
	if ev.Action == transport.ActionBack && sess.state != StateIdle && sess.state != StateInLiveChat {
		return e.back(ctx, sess)
	}

	handler, ok := e.handlers[sess.state]
	if !ok {
		// Unknown persisted state, e.g. written by a newer build. Reset
		// rather than trap the user.
		e.logger.Warn("unknown conversation state, resetting",
			"user_id", sess.userID,
			"state", sess.state)
		if err := e.reset(ctx, sess); err != nil {
			return err
		}
		return e.sendMainMenu(ctx, sess)
	}

	return handler(ctx, sess, ev)
}

// loadSession reads the persisted state and bag for the event's sender.
func (e *Engine) loadSession(ctx context.Context, ev *transport.Event) (*session, error) {
	sess := &session{
		userID:   ev.Sender,
		username: ev.Username,
		state:    StateIdle,
		bag:      &Bag{},
	}

	st, err := e.store.GetState(ctx, ev.Sender)
	if errors.Is(err, store.ErrNotFound) {
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation state: %w", err)
	}

	bag, err := decodeBag(st.Data)
	if err != nil {
		// A corrupt bag would otherwise wedge the user permanently.
		e.logger.Error("corrupt data bag, resetting", "user_id", ev.Sender, "error", err)
		if clearErr := e.store.ClearState(ctx, ev.Sender); clearErr != nil {
			return nil, clearErr
		}
		return sess, nil
	}

	sess.state = State(st.State)
	sess.bag = bag
	return sess, nil
}

// transition persists the next state and sends its entry prompt.
func (e *Engine) transition(ctx context.Context, sess *session, next State) error {
	data, err := encodeBag(sess.bag)
	if err != nil {
		return err
	}
	if err := e.store.SetState(ctx, &store.ConversationState{
		UserID:    sess.userID,
		State:     string(next),
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	e.logger.Debug("state transition",
		"user_id", sess.userID,
		"from", sess.state,
		"to", next)
	sess.state = next

	if prompt := e.entryPrompt(sess, next); prompt != nil {
		e.send(ctx, sess.userID, prompt)
	}
	return nil
}

// save persists the current state with an updated bag, without re-sending
// the entry prompt.
func (e *Engine) save(ctx context.Context, sess *session) error {
	data, err := encodeBag(sess.bag)
	if err != nil {
		return err
	}
	return e.store.SetState(ctx, &store.ConversationState{
		UserID:    sess.userID,
		State:     string(sess.state),
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	})
}

// reset clears the state back to idle and empties the bag.
func (e *Engine) reset(ctx context.Context, sess *session) error {
	if err := e.store.ClearState(ctx, sess.userID); err != nil {
		return err
	}
	sess.state = StateIdle
	sess.bag = &Bag{}
	return nil
}

// back re-renders the predecessor recorded in the transition table.
func (e *Engine) back(ctx context.Context, sess *session) error {
	prev := Predecessor(sess.state)
	if prev == StateIdle {
		if err := e.reset(ctx, sess); err != nil {
			return err
		}
		return e.sendMainMenu(ctx, sess)
	}
	return e.transition(ctx, sess, prev)
}

// beginRegistration starts the name/phone flow for a first-contact user.
func (e *Engine) beginRegistration(ctx context.Context, sess *session) error {
	sess.bag = &Bag{}
	return e.transition(ctx, sess, StateAwaitingName)
}

// send delivers one outbound message to target, logging delivery failures.
// Prompt delivery is best effort; state is already persisted and the user
// can always re-trigger the prompt.
func (e *Engine) send(ctx context.Context, target int64, msg *transport.Outbound) string {
	msg.Target = target
	handle, err := e.sender.Send(ctx, msg)
	if err != nil {
		e.logger.Warn("outbound send failed", "target", target, "error", err)
		return ""
	}
	return handle
}

// sendText is send for a plain text message with no actions.
func (e *Engine) sendText(ctx context.Context, target int64, text string) {
	e.send(ctx, target, &transport.Outbound{Text: text})
}

// sendMainMenu renders the idle prompt, including the admin panel entry
// for roster members.
func (e *Engine) sendMainMenu(ctx context.Context, sess *session) error {
	isAdmin, err := e.moderation.IsAdmin(ctx, sess.userID)
	if err != nil {
		return err
	}

	actions := []string{
		transport.ActionSubmitRequest,
		transport.ActionContactStaff,
		transport.ActionSettings,
		transport.ActionContacts,
	}
	if isAdmin {
		actions = append(actions, transport.ActionAdminPanel)
	}

	e.send(ctx, sess.userID, &transport.Outbound{
		Text:    "What would you like to do?",
		Actions: actions,
	})
	return nil
}
