// ABOUTME: Event dispatcher sitting between the transport and the engine
// ABOUTME: Serializes per-user dispatch and runs the block guard first

package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/desk-gateway/internal/guard"
	"github.com/2389/desk-gateway/internal/transport"
)

// Engine consumes one event at a time for a given user. Implemented by the
// conversation engine.
type Engine interface {
	HandleEvent(ctx context.Context, ev *transport.Event) error
}

// Dispatcher implements transport.Handler. It serializes events per user
// identity so two racing events cannot interleave a read-modify-write of the
// same conversation state, while events for different users run unhindered.
type Dispatcher struct {
	guard  *guard.Guard
	engine Engine
	sender transport.Sender
	logger *slog.Logger

	mu    sync.Mutex
	locks map[int64]*userLock
}

// userLock is refcounted so idle identities do not accumulate in the map.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Dispatcher.
func New(g *guard.Guard, engine Engine, sender transport.Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		guard:  g,
		engine: engine,
		sender: sender,
		logger: logger.With("component", "dispatcher"),
		locks:  make(map[int64]*userLock),
	}
}

// HandleEvent runs one event through the guard and the engine under the
// sender's dispatch lock. Persistence failures degrade to a generic reply;
// the loop itself never stops.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev *transport.Event) {
	l := d.acquire(ev.Sender)
	defer d.release(ev.Sender, l)

	block, err := d.guard.Check(ctx, ev.Sender)
	if err != nil {
		d.logger.Error("guard check failed", "user_id", ev.Sender, "error", err)
		d.replyGeneric(ctx, ev.Sender)
		return
	}
	if block != nil {
		if _, err := d.sender.Send(ctx, &transport.Outbound{
			Target: ev.Sender,
			Text:   guard.Message(block),
		}); err != nil {
			d.logger.Warn("blocked-user reply failed", "user_id", ev.Sender, "error", err)
		}
		return
	}

	if err := d.engine.HandleEvent(ctx, ev); err != nil {
		d.logger.Error("event dispatch failed", "user_id", ev.Sender, "error", err)
		d.replyGeneric(ctx, ev.Sender)
	}
}

// replyGeneric tells the user something went wrong without leaking internals.
func (d *Dispatcher) replyGeneric(ctx context.Context, target int64) {
	if _, err := d.sender.Send(ctx, &transport.Outbound{
		Target: target,
		Text:   "Something went wrong. Please try again later.",
	}); err != nil {
		d.logger.Warn("generic error reply failed", "target", target, "error", err)
	}
}

func (d *Dispatcher) acquire(id int64) *userLock {
	d.mu.Lock()
	l, ok := d.locks[id]
	if !ok {
		l = &userLock{}
		d.locks[id] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return l
}

func (d *Dispatcher) release(id int64, l *userLock) {
	l.mu.Unlock()

	d.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(d.locks, id)
	}
	d.mu.Unlock()
}
