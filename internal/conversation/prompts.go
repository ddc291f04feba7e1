// ABOUTME: Entry prompts for every conversation state
// ABOUTME: Rendered on transition and re-rendered by back-navigation

package conversation

import (
	"context"
	"fmt"

	"github.com/2389/desk-gateway/internal/transport"
)

// entryPrompt renders the message a user sees on entering a state. Back
// navigation re-renders the same prompt, so wording lives here and nowhere
// else. Returns nil for states without a fixed entry prompt.
func (e *Engine) entryPrompt(sess *session, s State) *transport.Outbound {
	switch s {
	case StateAwaitingName:
		return &transport.Outbound{
			Text: "Welcome! To get started, send your full name (first and last).",
		}
	case StateAwaitingPhone:
		return &transport.Outbound{
			Text:    "Now send your phone number in the format +7XXXXXXXXXX.",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingApplicationChoice:
		return &transport.Outbound{
			Text: "Would you like to submit a request or share a suggestion?",
			Actions: []string{
				transport.ActionNewRequest,
				transport.ActionNewSuggestion,
				transport.ActionBack,
			},
		}
	case StateAwaitingAddress:
		return &transport.Outbound{
			Text:    "Send the address the request concerns, or skip this step.",
			Actions: []string{transport.ActionSkip, transport.ActionBack},
		}
	case StateAwaitingMedia:
		return &transport.Outbound{
			Text:    "Attach a photo or video showing the issue.",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingDescription:
		text := "Describe the issue."
		if sess.bag.IsSuggestion {
			text = "Describe your suggestion."
		}
		return &transport.Outbound{
			Text:    text,
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingContactChoice:
		return &transport.Outbound{
			Text: "How should we get in touch?",
			Actions: []string{
				transport.ActionCallMe,
				transport.ActionLiveChat,
				transport.ActionBack,
			},
		}
	case StateAwaitingCallConfirm:
		return &transport.Outbound{
			Text: fmt.Sprintf("We will call you at %s. Is that correct?", sess.bag.PendingPhone),
			Actions: []string{
				transport.ActionPhoneCorrect,
				transport.ActionPhoneChange,
				transport.ActionBack,
			},
		}
	case StateInLiveChat:
		return &transport.Outbound{
			Text:    "You are connected to staff. Send your messages here; end the chat when you are done.",
			Actions: []string{transport.ActionEndChat},
		}
	case StateAwaitingSettingsChoice:
		return &transport.Outbound{
			Text: "What would you like to change?",
			Actions: []string{
				transport.ActionChangeName,
				transport.ActionChangePhone,
				transport.ActionBack,
			},
		}
	case StateAwaitingNewName:
		return &transport.Outbound{
			Text:    "Send your new full name (first and last).",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingNewPhone:
		return &transport.Outbound{
			Text:    "Send your new phone number in the format +7XXXXXXXXXX.",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingBroadcast:
		return &transport.Outbound{
			Text:    "Send the message to broadcast to all users. Text, photo, or video.",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingUserInfo:
		return &transport.Outbound{
			Text:    "Send a user ID or @alias.",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingBlockTarget:
		return &transport.Outbound{
			Text:    "Send the user ID or @alias to block.",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingBlockReason:
		return &transport.Outbound{
			Text:    fmt.Sprintf("Send a reason for blocking %s, or skip.", sess.bag.BlockTargetName),
			Actions: []string{transport.ActionSkip, transport.ActionBack},
		}
	case StateAwaitingUnblockTarget:
		return &transport.Outbound{
			Text:    "Send the user ID or @alias to unblock.",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingPromoteTarget:
		return &transport.Outbound{
			Text:    "Send the user ID or @alias to promote to admin.",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingDemoteTarget:
		return &transport.Outbound{
			Text:    "Send the ID or @alias of the admin to demote.",
			Actions: []string{transport.ActionBack},
		}
	case StateAwaitingReplyText:
		return &transport.Outbound{
			Text:    fmt.Sprintf("Type your reply to %s.", sess.bag.ReplyToName),
			Actions: []string{transport.ActionBack},
		}
	}
	return nil
}

// rePrompt re-sends the current state's entry prompt without advancing.
func (e *Engine) rePrompt(ctx context.Context, sess *session) {
	if prompt := e.entryPrompt(sess, sess.state); prompt != nil {
		e.send(ctx, sess.userID, prompt)
	}
}
