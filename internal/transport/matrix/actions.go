// ABOUTME: Renders inline action tokens as numbered options in message text
// ABOUTME: Translates numbered or labeled replies back into action tokens

package matrix

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/2389/desk-gateway/internal/transport"
)

// actionLabels maps each action token to the label users see. The token set
// is closed, so an unlabeled token is a programming error caught in tests.
var actionLabels = map[string]string{
	transport.ActionBack:         "Back",
	transport.ActionSkip:         "Skip",
	transport.ActionPhoneCorrect: "Yes, that number is right",
	transport.ActionPhoneChange:  "Use a different number",
	transport.ActionEndChat:      "End chat",

	transport.ActionSubmitRequest: "Submit a request",
	transport.ActionContactStaff:  "Contact staff",
	transport.ActionSettings:      "Settings",
	transport.ActionContacts:      "Contacts",
	transport.ActionAdminPanel:    "Admin panel",

	transport.ActionNewRequest:    "New request",
	transport.ActionNewSuggestion: "New suggestion",

	transport.ActionCallMe:   "Request a call",
	transport.ActionLiveChat: "Live chat",

	transport.ActionChangeName:  "Change name",
	transport.ActionChangePhone: "Change phone",

	transport.ActionAdminBroadcast: "Broadcast",
	transport.ActionAdminUsers:     "User list",
	transport.ActionAdminUserInfo:  "User info",
	transport.ActionAdminBlock:     "Block user",
	transport.ActionAdminUnblock:   "Unblock user",
	transport.ActionAdminPromote:   "Promote admin",
	transport.ActionAdminDemote:    "Demote admin",
}

// renderActions appends the numbered option list to a message body. The
// reply affordance is not a pickable option and renders as a hint instead.
func renderActions(text string, actions []string) string {
	var b strings.Builder
	b.WriteString(text)

	n := 0
	for _, token := range actions {
		if token == transport.ActionReply {
			continue
		}
		n++
		label, ok := actionLabels[token]
		if !ok {
			label = token
		}
		fmt.Fprintf(&b, "\n%d. %s", n, label)
	}

	for _, token := range actions {
		if token == transport.ActionReply {
			b.WriteString("\n\nReply to this message to respond to the user.")
			break
		}
	}
	return b.String()
}

// prompt is the last option-bearing message sent to one target.
type prompt struct {
	handle  string
	actions []string
}

// promptTracker keeps, per target, the options of the most recent prompt so
// a numbered reply can be resolved back to its token.
type promptTracker struct {
	mu      sync.RWMutex
	prompts map[int64]prompt
}

func newPromptTracker() *promptTracker {
	return &promptTracker{prompts: make(map[int64]prompt)}
}

// record remembers the prompt just sent to target. Reply-only affordances
// are not pickable and do not overwrite the current prompt.
func (p *promptTracker) record(target int64, handle string, actions []string) {
	pickable := make([]string, 0, len(actions))
	for _, token := range actions {
		if token != transport.ActionReply {
			pickable = append(pickable, token)
		}
	}
	if len(pickable) == 0 {
		return
	}

	p.mu.Lock()
	p.prompts[target] = prompt{handle: handle, actions: pickable}
	p.mu.Unlock()
}

// resolve translates a typed reply into an action token against the last
// prompt shown to target. Accepts the option number, the token itself, or
// the label, case-insensitively.
func (p *promptTracker) resolve(target int64, text string) (token, handle string, ok bool) {
	p.mu.RLock()
	pr, exists := p.prompts[target]
	p.mu.RUnlock()
	if !exists {
		return "", "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}

	if n, err := strconv.Atoi(strings.TrimSuffix(text, ".")); err == nil {
		// Single-option prompts accompany free-text states, where a bare
		// number is the message, not a pick. Labels still resolve there.
		if len(pr.actions) > 1 && n >= 1 && n <= len(pr.actions) {
			return pr.actions[n-1], pr.handle, true
		}
		return "", "", false
	}

	for _, candidate := range pr.actions {
		if strings.EqualFold(text, candidate) || strings.EqualFold(text, actionLabels[candidate]) {
			return candidate, pr.handle, true
		}
	}
	return "", "", false
}
