package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a closed transport.
var ErrClosed = errors.New("broadcast: transport closed")

// Transport moves opaque payloads between contexts.
type Transport interface {
	Name() string
	Publish(ctx context.Context, payload []byte) error
	// Subscribe registers deliver and returns once the subscription is live.
	// deliver is called from a single goroutine until ctx is cancelled.
	Subscribe(ctx context.Context, deliver func([]byte)) error
	Close() error
}

// Hub is an in-process bus. Each HubTransport sees every payload published
// by the others but never its own.
type Hub struct {
	mu   sync.Mutex
	subs []*hubSub
}

type hubSub struct {
	owner   *HubTransport
	ctx     context.Context
	deliver func([]byte)
}

func NewHub() *Hub {
	return &Hub{}
}

// Transport returns a new endpoint on the hub.
func (h *Hub) Transport() *HubTransport {
	return &HubTransport{hub: h}
}

func (h *Hub) publish(from *HubTransport, payload []byte) {
	h.mu.Lock()
	targets := make([]*hubSub, 0, len(h.subs))
	live := h.subs[:0]
	for _, s := range h.subs {
		if s.ctx.Err() != nil || s.owner.isClosed() {
			continue
		}
		live = append(live, s)
		if s.owner != from {
			targets = append(targets, s)
		}
	}
	h.subs = live
	h.mu.Unlock()

	for _, s := range targets {
		s.deliver(append([]byte(nil), payload...))
	}
}

// HubTransport is one endpoint of a Hub. Delivery is synchronous with
// Publish, which keeps per-sender order.
type HubTransport struct {
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

func (t *HubTransport) Name() string {
	return "hub"
}

func (t *HubTransport) Publish(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.isClosed() {
		return ErrClosed
	}
	t.hub.publish(t, payload)
	return nil
}

func (t *HubTransport) Subscribe(ctx context.Context, deliver func([]byte)) error {
	if t.isClosed() {
		return ErrClosed
	}
	t.hub.mu.Lock()
	t.hub.subs = append(t.hub.subs, &hubSub{owner: t, ctx: ctx, deliver: deliver})
	t.hub.mu.Unlock()
	return nil
}

func (t *HubTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *HubTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
