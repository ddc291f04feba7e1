// ABOUTME: Stable numeric identities for Matrix users
// ABOUTME: FNV-64a over the Matrix user ID, plus the room bookkeeping around it

package matrix

import (
	"hash/fnv"
	"strings"
	"sync"

	"maunium.net/go/mautrix/id"
)

// deriveID maps a Matrix user ID to a stable positive int64. The hash is
// deterministic, so the same Matrix user resolves to the same identity
// across restarts and across gateway instances.
func deriveID(uid id.UserID) int64 {
	h := fnv.New64a()
	h.Write([]byte(uid))
	return int64(h.Sum64() >> 1)
}

// localpart strips the leading @ and the homeserver from a Matrix user ID.
func localpart(uid id.UserID) string {
	s := strings.TrimPrefix(string(uid), "@")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}

// identityMap remembers which Matrix user and direct room belong to a
// numeric identity. Entries appear as users message the gateway; outbound
// sends to an identity never seen this run fail as undeliverable.
type identityMap struct {
	mu    sync.RWMutex
	users map[int64]id.UserID
	rooms map[int64]id.RoomID
}

func newIdentityMap() *identityMap {
	return &identityMap{
		users: make(map[int64]id.UserID),
		rooms: make(map[int64]id.RoomID),
	}
}

// record registers a sender and the room the message arrived in, returning
// the numeric identity. The room is only recorded for direct rooms; pass an
// empty room ID to skip it.
func (m *identityMap) record(uid id.UserID, room id.RoomID) int64 {
	numeric := deriveID(uid)

	m.mu.Lock()
	m.users[numeric] = uid
	if room != "" {
		m.rooms[numeric] = room
	}
	m.mu.Unlock()

	return numeric
}

func (m *identityMap) user(numeric int64) (id.UserID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.users[numeric]
	return uid, ok
}

func (m *identityMap) room(numeric int64) (id.RoomID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[numeric]
	return room, ok
}

func (m *identityMap) setRoom(numeric int64, room id.RoomID) {
	m.mu.Lock()
	m.rooms[numeric] = room
	m.mu.Unlock()
}
