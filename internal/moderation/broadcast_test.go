package moderation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/desk-gateway/internal/store"
	"github.com/2389/desk-gateway/internal/transport"
)

// fakeSender records sends and can be told to fail for specific targets.
type fakeSender struct {
	mu      sync.Mutex
	sent    []*transport.Outbound
	edits   []string
	failFor map[int64]bool
	nextID  int
	onSend  func(target int64)
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[int64]bool)}
}

func (f *fakeSender) Send(ctx context.Context, msg *transport.Outbound) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.onSend != nil {
		f.onSend(msg.Target)
	}
	if f.failFor[msg.Target] {
		return "", fmt.Errorf("%w: recipient %d unreachable", transport.ErrDelivery, msg.Target)
	}
	f.nextID++
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("handle-%d", f.nextID), nil
}

func (f *fakeSender) Edit(ctx context.Context, target int64, handle, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeSender) sentTo(target int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, msg := range f.sent {
		if msg.Target == target {
			n++
		}
	}
	return n
}

func seedUsers(t *testing.T, m *store.MemoryStore, n int) {
	t.Helper()
	now := time.Now().UTC()
	for i := 1; i <= n; i++ {
		require.NoError(t, m.UpsertUser(context.Background(), &store.User{
			ID:        int64(i),
			FullName:  "User",
			Phone:     "+79990000000",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
			UpdatedAt: now,
		}))
	}
}

func TestBroadcast_Accounting(t *testing.T) {
	svc, m := setupService(t)
	seedUsers(t, m, 25)

	sender := newFakeSender()
	sender.failFor[3] = true
	sender.failFor[17] = true

	// Sender identity 1 is excluded from the fan-out
	res, err := svc.Broadcast(context.Background(), sender, 1, Payload{Text: "maintenance tonight"})
	require.NoError(t, err)

	assert.Equal(t, 24, res.Success+res.Failed, "success + failure covers every recipient")
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 22, res.Success)
	assert.Equal(t, 1, sender.sentTo(1), "sender receives only the status message")
}

func TestBroadcast_FailuresDoNotAbort(t *testing.T) {
	svc, m := setupService(t)
	seedUsers(t, m, 5)

	sender := newFakeSender()
	for i := int64(2); i <= 5; i++ {
		sender.failFor[i] = true
	}

	res, err := svc.Broadcast(context.Background(), sender, 99, Payload{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 4, res.Failed)
}

func TestBroadcast_ProgressEdits(t *testing.T) {
	svc, m := setupService(t)
	seedUsers(t, m, 21)

	sender := newFakeSender()
	_, err := svc.Broadcast(context.Background(), sender, 99, Payload{Text: "hi"})
	require.NoError(t, err)

	// 21 recipients: progress edits at 10 and 20, plus the final summary
	require.Len(t, sender.edits, 3)
	assert.Contains(t, sender.edits[0], "Delivered: 10")
	assert.Contains(t, sender.edits[1], "Delivered: 20")
	assert.Contains(t, sender.edits[2], "Broadcast finished")
	assert.Contains(t, sender.edits[2], "Delivered: 21")
}

func TestBroadcast_NoRecipients(t *testing.T) {
	svc, m := setupService(t)
	seedUsers(t, m, 1)

	sender := newFakeSender()
	res, err := svc.Broadcast(context.Background(), sender, 1, Payload{Text: "hi"})
	require.NoError(t, err)
	assert.Zero(t, res.Success)
	assert.Zero(t, res.Failed)
	assert.Empty(t, sender.sent, "no status message when there is nobody to reach")
}

func TestBroadcast_MediaPayload(t *testing.T) {
	svc, m := setupService(t)
	seedUsers(t, m, 2)

	sender := newFakeSender()
	media := &transport.MediaRef{Kind: transport.MediaPhoto, Ref: "photo-1"}
	_, err := svc.Broadcast(context.Background(), sender, 1, Payload{Text: "caption", Media: media})
	require.NoError(t, err)

	require.Equal(t, 1, sender.sentTo(2))
	for _, msg := range sender.sent {
		if msg.Target == 2 {
			assert.Equal(t, media, msg.Media)
			assert.Equal(t, "caption", msg.Text)
		}
	}
}

func TestBroadcast_CancelStopsEarly(t *testing.T) {
	svc, m := setupService(t)
	seedUsers(t, m, 50)

	ctx, cancel := context.WithCancel(context.Background())
	sender := newFakeSender()
	attempts := 0
	sender.onSend = func(target int64) {
		if target == 99 {
			return // status message
		}
		attempts++
		if attempts == 5 {
			cancel()
		}
	}

	res, err := svc.Broadcast(ctx, sender, 99, Payload{Text: "hi"})
	require.NoError(t, err)
	assert.Less(t, res.Success+res.Failed, 50, "fan-out stopped before completing")
	assert.GreaterOrEqual(t, res.Success+res.Failed, 5)
}
