// ABOUTME: Matrix implementation of the transport boundary
// ABOUTME: Syncs inbound events to the dispatcher and sends outbound messages

package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/desk-gateway/internal/transport"
)

// Config holds everything the adapter needs to connect.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// RecoveryKey enables E2EE when set
	RecoveryKey string
	// StateDir holds the crypto store
	StateDir string
	// StaffRoom is the room whose members act as staff
	StaffRoom string
	// StaffGroupID is the numeric identity outbound staff sends target
	StaffGroupID int64
	Logger       *slog.Logger
}

// Adapter bridges Matrix to the gateway dispatcher. Inbound direct messages
// become events for their sender's derived identity; messages in the staff
// room are only interpreted as replies to relayed conversations.
type Adapter struct {
	client  *mautrix.Client
	handler transport.Handler
	logger  *slog.Logger

	botID        id.UserID
	staffRoom    id.RoomID
	staffGroupID int64
	recoveryKey  string
	stateDir     string

	ids     *identityMap
	prompts *promptTracker
}

// New creates a Matrix adapter. The handler must be set with SetHandler
// before Run.
func New(cfg Config) (*Adapter, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		client:       client,
		logger:       logger.With("component", "matrix"),
		botID:        id.UserID(cfg.UserID),
		staffRoom:    id.RoomID(cfg.StaffRoom),
		staffGroupID: cfg.StaffGroupID,
		recoveryKey:  cfg.RecoveryKey,
		stateDir:     cfg.StateDir,
		ids:          newIdentityMap(),
		prompts:      newPromptTracker(),
	}, nil
}

// SetHandler wires the inbound event consumer.
func (a *Adapter) SetHandler(h transport.Handler) {
	a.handler = h
}

// Run connects, joins the staff room, and blocks syncing until the context
// is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	if a.handler == nil {
		return fmt.Errorf("no handler set")
	}

	a.logger.Info("starting matrix transport",
		"homeserver", a.client.HomeserverURL.String(),
		"user_id", a.botID,
		"staff_room", a.staffRoom)

	if a.recoveryKey != "" {
		cm, err := setupCrypto(ctx, a.client, string(a.botID), a.recoveryKey, a.stateDir, a.logger)
		if err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		defer cm.Close()
	} else {
		a.logger.Info("encryption disabled (no recovery key)")
	}

	if _, err := a.client.JoinRoomByID(ctx, a.staffRoom); err != nil {
		a.logger.Warn("joining staff room failed", "room", a.staffRoom, "error", err)
	}

	syncer, ok := a.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", a.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, a.handleMessageEvent)
	syncer.OnEventType(event.StateMember, a.handleMemberEvent)

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- a.client.SyncWithContext(ctx)
	}()

	a.logger.Info("matrix transport running")

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down matrix transport")
		return nil
	case err := <-syncErr:
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// handleMemberEvent auto-joins rooms the gateway is invited to, so users can
// open a direct conversation by inviting the bot.
func (a *Adapter) handleMemberEvent(ctx context.Context, evt *event.Event) {
	if id.UserID(evt.GetStateKey()) != a.botID {
		return
	}
	content, ok := evt.Content.Parsed.(*event.MemberEventContent)
	if !ok || content.Membership != event.MembershipInvite {
		return
	}

	a.logger.Info("accepting room invite", "room", evt.RoomID, "from", evt.Sender)
	if _, err := a.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		a.logger.Warn("joining invited room failed", "room", evt.RoomID, "error", err)
	}
}

// handleMessageEvent converts one Matrix message into gateway events.
func (a *Adapter) handleMessageEvent(ctx context.Context, evt *event.Event) {
	if evt.Sender == a.botID {
		return
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}

	if evt.RoomID == a.staffRoom {
		a.handleStaffRoomMessage(ctx, evt, content)
		return
	}
	a.handleDirectMessage(ctx, evt, content)
}

// handleDirectMessage turns a DM into a message or action event.
func (a *Adapter) handleDirectMessage(ctx context.Context, evt *event.Event, content *event.MessageEventContent) {
	numeric := a.ids.record(evt.Sender, evt.RoomID)

	ev := &transport.Event{
		Sender:   numeric,
		Username: localpart(evt.Sender),
		Handle:   evt.ID.String(),
	}

	switch content.MsgType {
	case event.MsgText:
		if token, handle, ok := a.prompts.resolve(numeric, content.Body); ok {
			ev.Action = token
			ev.ActionHandle = handle
		} else {
			ev.Text = content.Body
		}
	case event.MsgImage:
		ev.Media = &transport.MediaRef{Kind: transport.MediaPhoto, Ref: string(content.URL)}
		ev.Text = mediaCaption(content)
	case event.MsgVideo:
		ev.Media = &transport.MediaRef{Kind: transport.MediaVideo, Ref: string(content.URL)}
		ev.Text = mediaCaption(content)
	default:
		return
	}

	go a.handler.HandleEvent(ctx, ev)
}

// handleStaffRoomMessage interprets staff-room traffic. Only native replies
// to relayed messages matter: the reply press and the reply text are
// delivered as two consecutive events for the replying staff member. Plain
// chatter between staff stays in the room.
func (a *Adapter) handleStaffRoomMessage(ctx context.Context, evt *event.Event, content *event.MessageEventContent) {
	replyTo := content.RelatesTo.GetReplyTo()
	if replyTo == "" {
		return
	}

	numeric := a.ids.record(evt.Sender, "")
	username := localpart(evt.Sender)

	press := &transport.Event{
		Sender:       numeric,
		Username:     username,
		Action:       transport.ActionReply,
		ActionHandle: replyTo.String(),
	}

	body := stripReplyFallback(content.Body)
	var text *transport.Event
	if body != "" || content.MsgType == event.MsgImage || content.MsgType == event.MsgVideo {
		text = &transport.Event{
			Sender:   numeric,
			Username: username,
			Text:     body,
			Handle:   evt.ID.String(),
		}
		switch content.MsgType {
		case event.MsgImage:
			text.Media = &transport.MediaRef{Kind: transport.MediaPhoto, Ref: string(content.URL)}
		case event.MsgVideo:
			text.Media = &transport.MediaRef{Kind: transport.MediaVideo, Ref: string(content.URL)}
		}
	}

	// The press must land before the text so the composition state exists
	// when the text arrives.
	go func() {
		a.handler.HandleEvent(ctx, press)
		if text != nil {
			a.handler.HandleEvent(ctx, text)
		}
	}()
}

// Send delivers one outbound message and returns the Matrix event ID as the
// handle.
func (a *Adapter) Send(ctx context.Context, msg *transport.Outbound) (string, error) {
	room, err := a.resolveRoom(ctx, msg.Target)
	if err != nil {
		return "", err
	}

	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    msg.Text,
	}
	if msg.Media != nil {
		switch msg.Media.Kind {
		case transport.MediaVideo:
			content.MsgType = event.MsgVideo
		default:
			content.MsgType = event.MsgImage
		}
		content.URL = id.ContentURIString(msg.Media.Ref)
		if content.Body == "" {
			content.Body = "attachment"
		}
	}
	if len(msg.Actions) > 0 {
		content.Body = renderActions(content.Body, msg.Actions)
	}
	if msg.ReplyTo != "" {
		content.RelatesTo = &event.RelatesTo{
			InReplyTo: &event.InReplyTo{EventID: id.EventID(msg.ReplyTo)},
		}
	}

	resp, err := a.client.SendMessageEvent(ctx, room, event.EventMessage, content)
	if err != nil {
		return "", fmt.Errorf("%w: sending to %d: %v", transport.ErrDelivery, msg.Target, err)
	}

	handle := resp.EventID.String()
	if len(msg.Actions) > 0 {
		a.prompts.record(msg.Target, handle, msg.Actions)
	}
	return handle, nil
}

// Edit rewrites a previously sent message in place.
func (a *Adapter) Edit(ctx context.Context, target int64, handle, text string) error {
	room, err := a.resolveRoom(ctx, target)
	if err != nil {
		return err
	}

	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	content.SetEdit(id.EventID(handle))

	if _, err := a.client.SendMessageEvent(ctx, room, event.EventMessage, content); err != nil {
		return fmt.Errorf("%w: editing %s for %d: %v", transport.ErrDelivery, handle, target, err)
	}
	return nil
}

// resolveRoom maps a numeric identity to the room to deliver into. Unknown
// identities are undeliverable until their user messages the gateway once;
// known users without a live direct room get a fresh one.
func (a *Adapter) resolveRoom(ctx context.Context, target int64) (id.RoomID, error) {
	if target == a.staffGroupID {
		return a.staffRoom, nil
	}
	if room, ok := a.ids.room(target); ok {
		return room, nil
	}

	uid, ok := a.ids.user(target)
	if !ok {
		return "", fmt.Errorf("%w: no known room for identity %d", transport.ErrDelivery, target)
	}

	resp, err := a.client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Invite:   []id.UserID{uid},
		IsDirect: true,
		Preset:   "trusted_private_chat",
	})
	if err != nil {
		return "", fmt.Errorf("%w: creating direct room for %d: %v", transport.ErrDelivery, target, err)
	}
	a.ids.setRoom(target, resp.RoomID)
	return resp.RoomID, nil
}

// mediaCaption returns the user-entered caption for a media message, empty
// when the body is just the filename.
func mediaCaption(content *event.MessageEventContent) string {
	if content.Body == "" || content.Body == content.FileName {
		return ""
	}
	return content.Body
}

// stripReplyFallback drops the quoted-fallback lines Matrix clients prepend
// to reply bodies.
func stripReplyFallback(body string) string {
	lines := strings.Split(body, "\n")
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], "> ") {
		i++
	}
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	return strings.TrimSpace(strings.Join(lines[i:], "\n"))
}
