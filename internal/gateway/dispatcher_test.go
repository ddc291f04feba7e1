package gateway

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/desk-gateway/internal/guard"
	"github.com/2389/desk-gateway/internal/store"
	"github.com/2389/desk-gateway/internal/transport"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*transport.Outbound
}

func (r *recordingSender) Send(ctx context.Context, msg *transport.Outbound) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return fmt.Sprintf("h-%d", len(r.sent)), nil
}

func (r *recordingSender) Edit(ctx context.Context, target int64, handle, text string) error {
	return nil
}

func (r *recordingSender) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.sent))
	for i, msg := range r.sent {
		out[i] = msg.Text
	}
	return out
}

type fakeEngine struct {
	mu      sync.Mutex
	events  []*transport.Event
	err     error
	inside  int
	maxIn   int
	onEvent func()
}

func (f *fakeEngine) HandleEvent(ctx context.Context, ev *transport.Event) error {
	f.mu.Lock()
	f.inside++
	if f.inside > f.maxIn {
		f.maxIn = f.inside
	}
	f.events = append(f.events, ev)
	f.mu.Unlock()

	if f.onEvent != nil {
		f.onEvent()
	}

	f.mu.Lock()
	f.inside--
	f.mu.Unlock()
	return f.err
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func setupDispatcher(t *testing.T) (*Dispatcher, *store.MemoryStore, *fakeEngine, *recordingSender) {
	t.Helper()
	m := store.NewMemoryStore()
	engine := &fakeEngine{}
	sender := &recordingSender{}
	d := New(guard.New(m, nil), engine, sender, nil)
	return d, m, engine, sender
}

func TestDispatchReachesEngine(t *testing.T) {
	d, _, engine, _ := setupDispatcher(t)

	d.HandleEvent(context.Background(), &transport.Event{Sender: 1, Text: "hi"})
	assert.Equal(t, 1, engine.count())
}

func TestBlockedSenderShortCircuits(t *testing.T) {
	d, m, engine, sender := setupDispatcher(t)
	require.NoError(t, m.AddBlock(context.Background(), &store.BlockRecord{
		UserID: 1, BlockedBy: 900, Reason: "spam", CreatedAt: time.Now().UTC(),
	}))

	d.HandleEvent(context.Background(), &transport.Event{Sender: 1, Text: "hi"})

	assert.Zero(t, engine.count(), "blocked traffic never reaches the engine")
	texts := sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "blocked")
	assert.Contains(t, texts[0], "spam")

	// Inline actions are guarded the same way
	d.HandleEvent(context.Background(), &transport.Event{Sender: 1, Action: transport.ActionSubmitRequest})
	assert.Zero(t, engine.count())
}

func TestEngineErrorDegradesToGenericReply(t *testing.T) {
	d, _, engine, sender := setupDispatcher(t)
	engine.err = fmt.Errorf("database on fire")

	d.HandleEvent(context.Background(), &transport.Event{Sender: 1, Text: "hi"})

	texts := sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "try again later")
	assert.NotContains(t, texts[0], "database", "internals never leak to users")
}

func TestPerUserSerialization(t *testing.T) {
	d, _, engine, _ := setupDispatcher(t)

	release := make(chan struct{})
	engine.onEvent = func() { <-release }

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.HandleEvent(context.Background(), &transport.Event{Sender: 1, Text: "x"})
		}()
	}

	// Only one dispatch for the same user may be inside the engine
	assert.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return engine.inside == 1
	}, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 4, engine.count())
	assert.Equal(t, 1, engine.maxIn, "same-user dispatches never overlap")
}

func TestDifferentUsersDispatchConcurrently(t *testing.T) {
	d, _, engine, _ := setupDispatcher(t)

	release := make(chan struct{})
	engine.onEvent = func() { <-release }

	var wg sync.WaitGroup
	for i := int64(1); i <= 3; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			d.HandleEvent(context.Background(), &transport.Event{Sender: id, Text: "x"})
		}(i)
	}

	assert.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return engine.inside == 3
	}, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
}

func TestLockMapDoesNotLeak(t *testing.T) {
	d, _, _, _ := setupDispatcher(t)

	for i := int64(1); i <= 100; i++ {
		d.HandleEvent(context.Background(), &transport.Event{Sender: i, Text: "x"})
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.locks)
}
