package canvas

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/input"
)

// ErrMailboxClosed is returned by Do after the owner loop stopped.
var ErrMailboxClosed = errors.New("canvas: owner loop stopped")

// Session is everything the owner goroutine holds: the canvas and the view
// it is looked at through.
type Session struct {
	*Canvas
	Input *input.Controller
}

// PlaceAt places at a screen point using the current view.
func (s *Session) PlaceAt(p geom.Point, color string) (grid.Placement, error) {
	return s.Canvas.PlaceAtScreen(p, s.Input.View(), s.Input.Screen(), color)
}

const (
	reqPending int32 = iota
	reqRunning
	reqAbandoned
)

type request struct {
	fn    func(*Session)
	done  chan struct{}
	state atomic.Int32
}

// run executes fn unless the caller already gave up on it.
func (r *request) run(s *Session) {
	if !r.state.CompareAndSwap(reqPending, reqRunning) {
		return
	}
	defer close(r.done)
	r.fn(s)
}

// abandon withdraws a queued request. It reports false when the owner has
// already started it, in which case the caller must wait for done.
func (r *request) abandon() bool {
	return r.state.CompareAndSwap(reqPending, reqAbandoned)
}

// Mailbox lets other goroutines run code on the owner goroutine.
type Mailbox struct {
	ch     chan *request
	closed chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan *request, 64), closed: make(chan struct{})}
}

// Do queues fn for the owner and waits until it ran. When Do returns an
// error fn has not run and never will; once the owner has started fn, Do
// waits for it and returns nil.
func (m *Mailbox) Do(ctx context.Context, fn func(*Session)) error {
	req := &request{fn: fn, done: make(chan struct{})}
	select {
	case m.ch <- req:
	case <-m.closed:
		return ErrMailboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	var err error
	select {
	case <-req.done:
		return nil
	case <-m.closed:
		err = ErrMailboxClosed
	case <-ctx.Done():
		err = ctx.Err()
	}
	if req.abandon() {
		return err
	}
	<-req.done
	return nil
}

// Drain runs every queued request. Only the owner calls it.
func (m *Mailbox) Drain(s *Session) {
	for n := len(m.ch); n > 0; n-- {
		(<-m.ch).run(s)
	}
}

// Close makes pending and future Do calls fail.
func (m *Mailbox) Close() {
	select {
	case <-m.closed:
	default:
		close(m.closed)
	}
}

// RunHeadless is the owner loop of a windowless context. It pumps the canvas
// and the mailbox every tick until ctx is cancelled.
func RunHeadless(ctx context.Context, s *Session, mb *Mailbox, tick time.Duration) error {
	defer mb.Close()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	s.log.Info("headless loop running", "tick", tick)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Pump()
			mb.Drain(s)
		case req := <-mb.ch:
			// Serve requests promptly instead of waiting for the next tick.
			req.run(s)
		}
	}
}
