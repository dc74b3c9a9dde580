package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Garsondee/Pixel-Planet/internal/store"
)

// SignalTransport is the fallback used when no bus is reachable. Publishing
// appends to the store's bounded signal log; every other context polls the
// log and dispatches each envelope newer than the last one it saw, in
// sequence order. The writer never sees its own signals.
//
// When a reader falls further behind than the log reaches, the envelopes it
// missed are gone and it first receives a synthesized sync to reload the
// store.
type SignalTransport struct {
	store    store.Store
	origin   string
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewSignalTransport(s store.Store, origin string, interval time.Duration, log *slog.Logger) *SignalTransport {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SignalTransport{store: s, origin: origin, interval: interval, log: log, now: time.Now}
}

func (t *SignalTransport) Name() string {
	return "store-signal"
}

func (t *SignalTransport) Publish(ctx context.Context, payload []byte) error {
	_, err := t.store.WriteSignal(ctx, t.origin, payload)
	return err
}

func (t *SignalTransport) Subscribe(ctx context.Context, deliver func([]byte)) error {
	var last uint64
	log, err := t.store.ReadSignals(ctx)
	switch {
	case err == nil:
		last = log[len(log)-1].Seq
	case errors.Is(err, store.ErrNoSignal):
	default:
		return err
	}

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			last = t.poll(ctx, last, deliver)
		}
	}()
	return nil
}

func (t *SignalTransport) poll(ctx context.Context, last uint64, deliver func([]byte)) uint64 {
	log, err := t.store.ReadSignals(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoSignal) && ctx.Err() == nil {
			t.log.Debug("read signal", "err", err)
		}
		return last
	}
	newest := log[len(log)-1].Seq
	switch {
	case newest == last:
		return last
	case newest < last || log[0].Seq > last+1:
		// Evicted envelopes, or a store whose sequence restarted.
		t.log.Debug("signal log gap, resyncing", "last", last, "oldest", log[0].Seq, "newest", newest)
		if raw, err := Encode(Sync(t.now().UnixMilli())); err == nil {
			deliver(raw)
		}
		if newest < last {
			return newest
		}
	}
	for _, sig := range log {
		if sig.Seq <= last || sig.Origin == t.origin {
			continue
		}
		deliver(sig.Payload)
	}
	return newest
}

// Close leaves the store open; its owner closes it.
func (t *SignalTransport) Close() error {
	return nil
}
