package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/id"
)

func TestDeriveIDStableAndPositive(t *testing.T) {
	uid := id.UserID("@anna:example.org")

	first := deriveID(uid)
	assert.Equal(t, first, deriveID(uid), "same user, same identity")
	assert.Positive(t, first)

	other := deriveID(id.UserID("@boris:example.org"))
	assert.NotEqual(t, first, other)
}

func TestLocalpart(t *testing.T) {
	assert.Equal(t, "anna", localpart(id.UserID("@anna:example.org")))
	assert.Equal(t, "anna", localpart(id.UserID("anna")))
}

func TestIdentityMapRoundTrip(t *testing.T) {
	m := newIdentityMap()

	numeric := m.record(id.UserID("@anna:example.org"), id.RoomID("!dm:example.org"))

	uid, ok := m.user(numeric)
	require.True(t, ok)
	assert.Equal(t, id.UserID("@anna:example.org"), uid)

	room, ok := m.room(numeric)
	require.True(t, ok)
	assert.Equal(t, id.RoomID("!dm:example.org"), room)
}

func TestIdentityMapEmptyRoomNotRecorded(t *testing.T) {
	m := newIdentityMap()
	numeric := m.record(id.UserID("@staffer:example.org"), "")

	_, ok := m.room(numeric)
	assert.False(t, ok)

	m.setRoom(numeric, id.RoomID("!created:example.org"))
	room, ok := m.room(numeric)
	require.True(t, ok)
	assert.Equal(t, id.RoomID("!created:example.org"), room)
}

func TestStripReplyFallback(t *testing.T) {
	body := "> <@anna:example.org> my heating is off\n> second quoted line\n\nwe are on it"
	assert.Equal(t, "we are on it", stripReplyFallback(body))

	assert.Equal(t, "plain", stripReplyFallback("plain"))
	assert.Equal(t, "", stripReplyFallback("> only a quote"))
}
