package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/metrics"
	"github.com/Garsondee/Pixel-Planet/internal/store"
)

const (
	defaultInboxSize  = 256
	defaultOutboxSize = 1024
	drainTimeout      = 5 * time.Second
)

type commit struct {
	snap grid.Snapshot
	msg  Message
}

// Channel is the sync endpoint of one execution context. The owner
// goroutine calls Commit and drains Inbox; persistence, publishing and
// receiving all happen on the channel's own goroutines.
type Channel struct {
	origin    string
	transport Transport
	store     store.Store
	log       *slog.Logger
	metrics   *metrics.Metrics

	inbox  chan Message
	outbox chan commit

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

type Option func(*Channel)

func WithLogger(log *slog.Logger) Option {
	return func(c *Channel) {
		c.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Channel) {
		c.metrics = m
	}
}

func WithInboxSize(n int) Option {
	return func(c *Channel) {
		c.inbox = make(chan Message, n)
	}
}

// NewChannel wires a channel. origin identifies this context on the wire.
func NewChannel(origin string, t Transport, s store.Store, opts ...Option) *Channel {
	c := &Channel{
		origin:    origin,
		transport: t,
		store:     s,
		log:       slog.New(slog.DiscardHandler),
		inbox:     make(chan Message, defaultInboxSize),
		outbox:    make(chan commit, defaultOutboxSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	return c
}

func (c *Channel) Origin() string {
	return c.origin
}

// TransportName reports which transport was selected.
func (c *Channel) TransportName() string {
	return c.transport.Name()
}

// Inbox yields decoded inbound events from other contexts.
func (c *Channel) Inbox() <-chan Message {
	return c.inbox
}

// Start subscribes to the transport and runs the outbox writer until ctx is
// cancelled. It returns once the subscription is live.
func (c *Channel) Start(ctx context.Context) error {
	if err := c.transport.Subscribe(ctx, func(raw []byte) { c.receive(ctx, raw) }); err != nil {
		return err
	}
	c.log.Info("sync channel started", "transport", c.transport.Name(), "origin", c.origin)
	go c.writer(ctx)
	return nil
}

// Load reads the persisted snapshot.
func (c *Channel) Load(ctx context.Context) (grid.Snapshot, error) {
	return c.store.LoadSnapshot(ctx)
}

// Commit queues snap for persistence followed by msg for broadcast. It never
// blocks; if the writer is hopelessly behind the commit is dropped, and the
// next one persists the full state again.
func (c *Channel) Commit(snap grid.Snapshot, msg Message) {
	msg.Origin = c.origin
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending.Add(1)
	select {
	case c.outbox <- commit{snap: snap, msg: msg}:
	default:
		c.pending.Done()
		c.log.Warn("outbox full, dropping commit", "type", msg.Type)
		c.metrics.IncPersistenceFailure()
	}
}

// Flush waits until every queued commit has been persisted and published.
func (c *Channel) Flush() {
	c.pending.Wait()
}

// writer persists and publishes commits in order. Writes run on a context
// detached from ctx, so a commit queued before cancellation is still
// written; once ctx is done the remaining queue is drained.
func (c *Channel) writer(ctx context.Context) {
	wctx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			c.drain(wctx)
			return
		case cm := <-c.outbox:
			c.write(wctx, cm)
			c.pending.Done()
		}
	}
}

// drain refuses further commits and writes the queued ones, giving up on
// whatever is left after drainTimeout.
func (c *Channel) drain(ctx context.Context) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	written, dropped := 0, 0
	for {
		select {
		case cm := <-c.outbox:
			if ctx.Err() == nil {
				c.write(ctx, cm)
				written++
			} else {
				dropped++
				c.metrics.IncPersistenceFailure()
			}
			c.pending.Done()
		default:
			if written+dropped > 0 {
				c.log.Info("sync channel drained", "written", written, "dropped", dropped)
			}
			return
		}
	}
}

func (c *Channel) write(ctx context.Context, cm commit) {
	if err := c.store.SaveSnapshot(ctx, cm.snap); err != nil {
		c.log.Warn("persist snapshot", "err", err, "cells", len(cm.snap.Cells))
		c.metrics.IncPersistenceFailure()
	}
	raw, err := Encode(cm.msg)
	if err != nil {
		c.log.Error("encode message", "err", err)
		return
	}
	if err := c.transport.Publish(ctx, raw); err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Warn("publish", "transport", c.transport.Name(), "type", cm.msg.Type, "err", err)
		}
		return
	}
	c.metrics.IncSync(string(cm.msg.Type), "out")
}

func (c *Channel) receive(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic handling inbound message", "panic", r)
			c.metrics.IncMalformed()
		}
	}()

	msg, err := Decode(raw)
	if err != nil {
		c.log.Debug("dropping inbound message", "err", err)
		c.metrics.IncMalformed()
		return
	}
	if msg.Origin == c.origin {
		return
	}
	if msg.Type == KindSync {
		snap, err := c.store.LoadSnapshot(ctx)
		if err != nil {
			c.log.Warn("load snapshot for sync", "err", err)
			return
		}
		msg.Snapshot = &snap
	}
	c.metrics.IncSync(string(msg.Type), "in")
	select {
	case c.inbox <- msg:
	case <-ctx.Done():
	}
}
