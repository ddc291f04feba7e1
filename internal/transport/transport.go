// ABOUTME: Transport boundary types for desk-gateway
// ABOUTME: Defines inbound events, outbound sends, and the Sender interface

package transport

import (
	"context"
	"errors"
)

// ErrDelivery is returned by Sender implementations when a specific
// recipient cannot be reached. Callers treat it as per-recipient and
// never fatal to a batch.
var ErrDelivery = errors.New("delivery failed")

// Media kinds accepted by the request wizard and live chat.
const (
	MediaPhoto = "photo"
	MediaVideo = "video"
)

// Inline action tokens. These form a closed set: the gateway renders them
// as buttons and delivers the token back verbatim when pressed. Free text
// is never interpreted as an action.
const (
	ActionBack         = "back"
	ActionSkip         = "skip"
	ActionPhoneCorrect = "phone_correct"
	ActionPhoneChange  = "phone_change"
	ActionEndChat      = "end_chat"
	ActionReply        = "reply"

	// Main menu
	ActionSubmitRequest = "menu_request"
	ActionContactStaff  = "menu_contact"
	ActionSettings      = "menu_settings"
	ActionContacts      = "menu_contacts"
	ActionAdminPanel    = "menu_admin"

	// Request wizard
	ActionNewRequest    = "request_new"
	ActionNewSuggestion = "request_suggestion"

	// Contact flow
	ActionCallMe   = "contact_call"
	ActionLiveChat = "contact_chat"

	// Settings
	ActionChangeName  = "settings_name"
	ActionChangePhone = "settings_phone"

	// Admin panel
	ActionAdminBroadcast = "admin_broadcast"
	ActionAdminUsers     = "admin_users"
	ActionAdminUserInfo  = "admin_user_info"
	ActionAdminBlock     = "admin_block"
	ActionAdminUnblock   = "admin_unblock"
	ActionAdminPromote   = "admin_promote"
	ActionAdminDemote    = "admin_demote"
)

// MediaRef points at an uploaded photo or video held by the gateway.
type MediaRef struct {
	Kind string `json:"kind"` // MediaPhoto or MediaVideo
	Ref  string `json:"ref"`  // gateway-opaque handle
}

// Event is a single inbound occurrence delivered by the gateway: a message
// (text and/or media) or a pressed inline action. Exactly one dispatch runs
// per event.
type Event struct {
	Sender       int64  // transport-assigned identity, stable across sessions
	Username     string // displayed alias, may be empty
	DisplayName  string // gateway-side display name, may be empty
	Text         string
	Media        *MediaRef
	Action       string // inline action token, empty for plain messages
	ActionHandle string // handle of the message the action was attached to
	Handle       string // handle of this inbound message
}

// IsAction reports whether the event is a pressed inline action rather
// than a message.
func (e *Event) IsAction() bool {
	return e.Action != ""
}

// Outbound describes one message to deliver. Target is a user identity or
// the staff group identity from configuration.
type Outbound struct {
	Target  int64
	Text    string
	Media   *MediaRef // caption carried in Text when set
	ReplyTo string    // inbound handle to thread under, best effort
	Actions []string  // inline action tokens to offer with the message
}

// Sender is the outbound half of the gateway collaborator. Send returns the
// handle of the delivered message so it can be correlated later; Edit
// rewrites a previously sent message in place (used for broadcast progress).
type Sender interface {
	Send(ctx context.Context, msg *Outbound) (handle string, err error)
	Edit(ctx context.Context, target int64, handle string, text string) error
}

// Handler consumes inbound events. Implemented by the gateway dispatcher.
type Handler interface {
	HandleEvent(ctx context.Context, ev *Event)
}
