package canvas

import (
	"errors"
	"time"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
)

// ErrNothingToReplay is returned by StartReplay on an empty history.
var ErrNothingToReplay = errors.New("canvas: no history to replay")

// Replay is a running time-lapse. It paints the history, one record per
// delay, onto its own empty grid; the real grid is left alone meanwhile.
type Replay struct {
	model   *grid.Model
	records []grid.Placement
	next    int
	due     time.Time
	delay   time.Duration
}

// Progress returns how many records have been shown out of the total.
func (r *Replay) Progress() (done, total int) {
	return r.next, len(r.records)
}

// Replaying reports whether a replay is in progress.
func (c *Canvas) Replaying() bool {
	return c.replay != nil
}

// ReplayProgress returns the progress of the running replay, if any.
func (c *Canvas) ReplayProgress() (done, total int, ok bool) {
	if c.replay == nil {
		return 0, 0, false
	}
	done, total = c.replay.Progress()
	return done, total, true
}

// StartReplay begins a time-lapse of the current history. Pump advances it.
func (c *Canvas) StartReplay() error {
	if c.replay != nil {
		return ErrReplaying
	}
	records := c.model.Recent(c.model.HistoryLen())
	if len(records) == 0 {
		return ErrNothingToReplay
	}
	c.replay = &Replay{
		model:   grid.New(c.model.Size(), c.model.HistoryCap()),
		records: records,
		due:     c.now(),
		delay:   c.replayDelay,
	}
	c.log.Info("replay started", "records", len(records), "delay", c.replayDelay)
	c.emit(Event{Kind: broadcast.KindClear, Source: SourceReplay})
	return nil
}

// StopReplay ends a running replay immediately.
func (c *Canvas) StopReplay() {
	if c.replay == nil {
		return
	}
	c.finishReplay(c.now())
}

func (c *Canvas) advanceReplay(now time.Time) {
	r := c.replay
	for r.next < len(r.records) && !now.Before(r.due) {
		p := r.records[r.next]
		r.model.Set(p.Cell(), p.Color, p.Timestamp, p.Label)
		r.next++
		r.due = r.due.Add(r.delay)
		c.emit(Event{Kind: broadcast.KindPlace, Placement: p, Source: SourceReplay})
	}
	if r.next == len(r.records) && !now.Before(r.due) {
		c.finishReplay(now)
	}
}

// finishReplay switches back to the real grid, applies remote events that
// arrived meanwhile and tells the other contexts to resync.
func (c *Canvas) finishReplay(now time.Time) {
	c.replay = nil
	deferred := c.deferred
	c.deferred = nil
	for _, msg := range deferred {
		c.apply(msg)
	}
	c.channel.Commit(c.model.Snapshot(), broadcast.Sync(now.UnixMilli()))
	c.metrics.SetCells(c.model.Len())
	c.log.Info("replay finished", "deferred", len(deferred))
	c.emit(Event{Kind: broadcast.KindSync, Source: SourceReplay})
}
