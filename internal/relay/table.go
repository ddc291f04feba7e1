// ABOUTME: Thread-safe correlation table for staff-group relays
// ABOUTME: Maps outbound staff-group handles back to the originating user

package relay

import (
	"container/list"
	"errors"
	"sync"
)

// ErrNoConversation is returned when a staff reply references a handle the
// table does not know, e.g. after an eviction or a process restart. Callers
// surface it to the staff member and keep the dispatch loop running.
var ErrNoConversation = errors.New("no pending conversation found")

// DefaultCapacity bounds the table. The source kept an unbounded map for
// the process lifetime; a bounded oldest-first eviction keeps long uptimes
// from leaking while preserving the resolve semantics for active traffic.
const DefaultCapacity = 4096

// Entry correlates one relayed user message with its staff-group copy.
type Entry struct {
	UserID        int64
	Username      string
	FullName      string
	InboundHandle string // handle of the user's original message
}

// tableEntry wraps an Entry with its eviction-order list element.
type tableEntry struct {
	entry   Entry
	element *list.Element
}

// Table is a thread-safe, size-limited correlation table keyed by the
// outbound staff-group message handle. Uses a doubly-linked list to
// maintain insertion order for O(1) eviction.
type Table struct {
	mu       sync.RWMutex
	entries  map[string]*tableEntry
	order    *list.List       // outbound handles in insertion order (oldest at front)
	latest   map[int64]string // user identity -> most recent inbound handle
	capacity int
}

// New creates a correlation table holding at most capacity entries.
// A capacity of zero or less falls back to DefaultCapacity.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		entries:  make(map[string]*tableEntry),
		order:    list.New(),
		latest:   make(map[int64]string),
		capacity: capacity,
	}
}

// Record stores the correlation for a user message just forwarded to the
// staff group. Recording an already-known outbound handle refreshes it.
func (t *Table) Record(outboundHandle string, entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[outboundHandle]; ok {
		existing.entry = entry
		t.order.MoveToBack(existing.element)
		t.latest[entry.UserID] = entry.InboundHandle
		return
	}

	if len(t.entries) >= t.capacity {
		t.evictOldest()
	}

	elem := t.order.PushBack(outboundHandle)
	t.entries[outboundHandle] = &tableEntry{entry: entry, element: elem}
	t.latest[entry.UserID] = entry.InboundHandle
}

// Resolve returns the originating user for a staff-group message handle.
func (t *Table) Resolve(outboundHandle string) (Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	te, ok := t.entries[outboundHandle]
	if !ok {
		return Entry{}, ErrNoConversation
	}
	return te.entry, nil
}

// ResolveLatestFor returns the handle of the user's most recently relayed
// message, for threading a staff answer under it. Best effort: overlapping
// sessions for one identity resolve to the latest message.
func (t *Table) ResolveLatestFor(userID int64) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	handle, ok := t.latest[userID]
	return handle, ok
}

// Len reports the number of live correlations.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (t *Table) evictOldest() {
	front := t.order.Front()
	if front == nil {
		return
	}

	handle, _ := front.Value.(string)
	te := t.entries[handle]
	t.order.Remove(front)
	delete(t.entries, handle)

	// Drop the latest-message index only if it still points at the
	// evicted correlation.
	if te != nil && t.latest[te.entry.UserID] == te.entry.InboundHandle {
		delete(t.latest, te.entry.UserID)
	}
}
