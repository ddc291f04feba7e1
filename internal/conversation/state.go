// ABOUTME: Conversation states, the back-navigation transition table, and the data bag
// ABOUTME: The state set is fixed at build time; the bag is persisted as JSON

package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/2389/desk-gateway/internal/transport"
)

// State identifies one position in a user's conversation. The empty state
// is idle: the user sits at the main menu and no row is persisted.
type State string

const (
	StateIdle State = ""

	// Registration
	StateAwaitingName  State = "awaiting_name"
	StateAwaitingPhone State = "awaiting_phone"

	// Request wizard
	StateAwaitingApplicationChoice State = "awaiting_application_choice"
	StateAwaitingAddress           State = "awaiting_address"
	StateAwaitingMedia             State = "awaiting_media"
	StateAwaitingDescription       State = "awaiting_description"

	// Contact flow
	StateAwaitingContactChoice State = "awaiting_contact_choice"
	StateAwaitingCallConfirm   State = "awaiting_call_phone_confirmation"
	StateInLiveChat            State = "in_live_chat"

	// Settings
	StateAwaitingSettingsChoice State = "awaiting_settings_choice"
	StateAwaitingNewName        State = "awaiting_new_name"
	StateAwaitingNewPhone       State = "awaiting_new_phone"

	// Staff prompt states
	StateAwaitingBroadcast     State = "awaiting_broadcast"
	StateAwaitingUserInfo      State = "awaiting_user_info"
	StateAwaitingBlockTarget   State = "awaiting_block_target"
	StateAwaitingBlockReason   State = "awaiting_block_reason"
	StateAwaitingUnblockTarget State = "awaiting_unblock_target"
	StateAwaitingPromoteTarget State = "awaiting_promote_target"
	StateAwaitingDemoteTarget  State = "awaiting_demote_target"
	StateAwaitingReplyText     State = "awaiting_reply_text"
)

// predecessors maps every non-idle state to its single logical predecessor
// for back-navigation. A predecessor of StateIdle means back returns to the
// main menu. The table is fixed; handlers never invent transitions that
// bypass it.
var predecessors = map[State]State{
	StateAwaitingName:  StateIdle,
	StateAwaitingPhone: StateAwaitingName,

	StateAwaitingApplicationChoice: StateIdle,
	StateAwaitingAddress:           StateAwaitingApplicationChoice,
	StateAwaitingMedia:             StateAwaitingAddress,
	StateAwaitingDescription:       StateAwaitingMedia,

	StateAwaitingContactChoice: StateIdle,
	StateAwaitingCallConfirm:   StateAwaitingContactChoice,
	StateInLiveChat:            StateAwaitingContactChoice,

	StateAwaitingSettingsChoice: StateIdle,
	StateAwaitingNewName:        StateAwaitingSettingsChoice,
	StateAwaitingNewPhone:       StateAwaitingSettingsChoice,

	StateAwaitingBroadcast:     StateIdle,
	StateAwaitingUserInfo:      StateIdle,
	StateAwaitingBlockTarget:   StateIdle,
	StateAwaitingBlockReason:   StateAwaitingBlockTarget,
	StateAwaitingUnblockTarget: StateIdle,
	StateAwaitingPromoteTarget: StateIdle,
	StateAwaitingDemoteTarget:  StateIdle,
	StateAwaitingReplyText:     StateIdle,
}

// Predecessor returns the back-navigation target for s.
func Predecessor(s State) State {
	return predecessors[s]
}

// Bag is the per-user scratch data carried between states. The schema
// varies per state; unused fields stay zero and are omitted from the
// persisted JSON.
type Bag struct {
	// Registration
	FullName string `json:"full_name,omitempty"`

	// Request wizard
	Address      string              `json:"address,omitempty"`
	Media        *transport.MediaRef `json:"media,omitempty"`
	IsSuggestion bool                `json:"is_suggestion,omitempty"`

	// Contact flow
	PendingPhone string `json:"pending_phone,omitempty"`

	// Staff reply routing
	ReplyTo     int64  `json:"reply_to,omitempty"`
	ReplyToName string `json:"reply_to_name,omitempty"`

	// Block flow
	BlockTarget     int64  `json:"block_target,omitempty"`
	BlockTargetName string `json:"block_target_name,omitempty"`
}

// encodeBag serializes a bag for the state store.
func encodeBag(bag *Bag) ([]byte, error) {
	data, err := json.Marshal(bag)
	if err != nil {
		return nil, fmt.Errorf("encoding data bag: %w", err)
	}
	return data, nil
}

// decodeBag deserializes a bag from the state store. Empty data yields a
// zero bag.
func decodeBag(data []byte) (*Bag, error) {
	bag := &Bag{}
	if len(data) == 0 {
		return bag, nil
	}
	if err := json.Unmarshal(data, bag); err != nil {
		return nil, fmt.Errorf("decoding data bag: %w", err)
	}
	return bag, nil
}
