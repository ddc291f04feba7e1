package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/desk-gateway/internal/transport"
)

func TestRenderActionsNumbersOptions(t *testing.T) {
	out := renderActions("Pick one:", []string{transport.ActionNewRequest, transport.ActionBack})
	assert.Contains(t, out, "Pick one:")
	assert.Contains(t, out, "1. New request")
	assert.Contains(t, out, "2. Back")
}

func TestRenderActionsReplyHint(t *testing.T) {
	out := renderActions("Request #abc", []string{transport.ActionReply})
	assert.Contains(t, out, "Reply to this message")
	assert.NotContains(t, out, "1.")
}

func TestEveryTokenHasALabel(t *testing.T) {
	tokens := []string{
		transport.ActionBack, transport.ActionSkip,
		transport.ActionPhoneCorrect, transport.ActionPhoneChange,
		transport.ActionEndChat,
		transport.ActionSubmitRequest, transport.ActionContactStaff,
		transport.ActionSettings, transport.ActionContacts, transport.ActionAdminPanel,
		transport.ActionNewRequest, transport.ActionNewSuggestion,
		transport.ActionCallMe, transport.ActionLiveChat,
		transport.ActionChangeName, transport.ActionChangePhone,
		transport.ActionAdminBroadcast, transport.ActionAdminUsers,
		transport.ActionAdminUserInfo,
		transport.ActionAdminBlock, transport.ActionAdminUnblock,
		transport.ActionAdminPromote, transport.ActionAdminDemote,
	}
	for _, token := range tokens {
		assert.Contains(t, actionLabels, token, "token %q has no label", token)
	}
}

func TestPromptResolveByNumber(t *testing.T) {
	p := newPromptTracker()
	p.record(1, "h-1", []string{transport.ActionNewRequest, transport.ActionBack})

	token, handle, ok := p.resolve(1, "2")
	require.True(t, ok)
	assert.Equal(t, transport.ActionBack, token)
	assert.Equal(t, "h-1", handle)

	token, _, ok = p.resolve(1, "1.")
	require.True(t, ok)
	assert.Equal(t, transport.ActionNewRequest, token)
}

func TestPromptResolveByLabelAndToken(t *testing.T) {
	p := newPromptTracker()
	p.record(1, "h-1", []string{transport.ActionNewRequest, transport.ActionBack})

	token, _, ok := p.resolve(1, "back")
	require.True(t, ok)
	assert.Equal(t, transport.ActionBack, token)

	token, _, ok = p.resolve(1, "new request")
	require.True(t, ok)
	assert.Equal(t, transport.ActionNewRequest, token)
}

func TestPromptResolveMisses(t *testing.T) {
	p := newPromptTracker()

	_, _, ok := p.resolve(1, "1")
	assert.False(t, ok, "no prompt recorded for target")

	p.record(1, "h-1", []string{transport.ActionBack})
	_, _, ok = p.resolve(1, "7")
	assert.False(t, ok, "out-of-range number")

	_, _, ok = p.resolve(1, "free text about my heating")
	assert.False(t, ok, "free text is never an action")

	_, _, ok = p.resolve(2, "1")
	assert.False(t, ok, "prompts are per target")
}

func TestPromptRecordSkipsReplyOnly(t *testing.T) {
	p := newPromptTracker()
	p.record(1, "h-1", []string{transport.ActionNewRequest, transport.ActionBack})
	p.record(1, "h-2", []string{transport.ActionReply})

	// The reply-only message must not clobber the pickable prompt
	token, handle, ok := p.resolve(1, "2")
	require.True(t, ok)
	assert.Equal(t, transport.ActionBack, token)
	assert.Equal(t, "h-1", handle)
}

func TestPromptResolveSingleOptionKeepsNumbersAsText(t *testing.T) {
	p := newPromptTracker()
	p.record(1, "h-1", []string{transport.ActionBack})

	// A free-text state offers only Back; a message of "1" is input
	_, _, ok := p.resolve(1, "1")
	assert.False(t, ok)

	// The label still works as an explicit escape hatch
	token, _, ok := p.resolve(1, "back")
	require.True(t, ok)
	assert.Equal(t, transport.ActionBack, token)
}
