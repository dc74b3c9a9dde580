// Package canvas owns the planet state of one execution context: the grid,
// the cooldown gate, the replay state and the sync channel endpoint.
//
// A Canvas is not safe for concurrent use. Exactly one goroutine (the game
// loop or the headless ticker) calls its methods; everything else reaches
// it through the inbox drained by Pump.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/config"
	"github.com/Garsondee/Pixel-Planet/internal/cooldown"
	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/metrics"
	"github.com/Garsondee/Pixel-Planet/internal/store"
)

var (
	ErrOffPlanet    = errors.New("canvas: cell is not on the planet")
	ErrReplaying    = errors.New("canvas: replay in progress")
	ErrCoolingDown  = errors.New("canvas: cooling down")
	ErrInvalidColor = errors.New("canvas: invalid color")
)

// CooldownError reports a placement denied by the gate.
type CooldownError struct {
	Remaining int // whole seconds, rounded up
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("canvas: cooling down, %ds remaining", e.Remaining)
}

func (e *CooldownError) Unwrap() error {
	return ErrCoolingDown
}

// Source says where an applied event came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	SourceReplay Source = "replay"
)

// Event describes a mutation that was applied to the displayed grid.
type Event struct {
	Kind      broadcast.Kind
	Placement grid.Placement
	Source    Source
}

// Canvas is the per-context owner.
type Canvas struct {
	planet  geom.Planet
	model   *grid.Model
	gate    *cooldown.Gate
	channel *broadcast.Channel
	store   store.Store
	replay  *Replay
	label   string

	replayDelay time.Duration
	deferred    []broadcast.Message
	observers   []func(Event)

	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Canvas)

func WithLogger(log *slog.Logger) Option {
	return func(c *Canvas) {
		c.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Canvas) {
		c.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Canvas) {
		c.now = now
	}
}

// New builds a canvas. ch carries mutations to other contexts; s holds the
// display label.
func New(cfg config.Config, s store.Store, ch *broadcast.Channel, opts ...Option) *Canvas {
	c := &Canvas{
		planet:      cfg.Planet(),
		model:       grid.New(cfg.GridSize, cfg.HistoryCap),
		gate:        cooldown.New(cfg.Cooldown),
		channel:     ch,
		store:       s,
		replayDelay: cfg.ReplayDelay,
		log:         slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	if cfg.Label != "" {
		c.label = grid.SanitizeLabel(cfg.Label)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.New()
	}
	return c
}

// Load restores the persisted snapshot and, when none was configured, the
// persisted display label.
func (c *Canvas) Load(ctx context.Context) error {
	snap, err := c.channel.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	c.model.RestoreSnapshot(c.sanitize(snap))
	c.metrics.SetCells(c.model.Len())

	if c.label == "" {
		label, err := c.store.LoadLabel(ctx)
		if err != nil {
			return fmt.Errorf("load label: %w", err)
		}
		c.label = label
	}
	if c.label == "" {
		c.label = grid.AnonymousLabel
	}
	c.log.Info("planet loaded", "cells", c.model.Len(), "history", c.model.HistoryLen(), "label", c.label)
	return nil
}

// sanitize drops cells that violate the mask so a hand-edited or foreign
// store cannot break the invariant.
func (c *Canvas) sanitize(s grid.Snapshot) grid.Snapshot {
	for cell := range s.Cells {
		if !c.planet.IsOnPlanet(cell) {
			delete(s.Cells, cell)
		}
	}
	return s
}

// OnEvent registers fn to be called for every applied event.
func (c *Canvas) OnEvent(fn func(Event)) {
	c.observers = append(c.observers, fn)
}

func (c *Canvas) emit(e Event) {
	for _, fn := range c.observers {
		fn(e)
	}
}

func (c *Canvas) Planet() geom.Planet {
	return c.planet
}

// Model returns the displayed grid: the replay grid while a replay runs.
func (c *Canvas) Model() *grid.Model {
	if c.replay != nil {
		return c.replay.model
	}
	return c.model
}

func (c *Canvas) Label() string {
	return c.label
}

// SetLabel sanitizes and persists the display label.
func (c *Canvas) SetLabel(ctx context.Context, label string) error {
	c.label = grid.SanitizeLabel(label)
	if err := c.store.SaveLabel(ctx, c.label); err != nil {
		return fmt.Errorf("save label: %w", err)
	}
	return nil
}

// Cooldown returns the seconds until the next local placement is admitted.
func (c *Canvas) Cooldown() int {
	return c.gate.Remaining(c.now())
}

func (c *Canvas) TransportName() string {
	return c.channel.TransportName()
}

// PlaceAtScreen hit-tests a screen point and places there.
func (c *Canvas) PlaceAtScreen(s geom.Point, v geom.View, screen geom.Size, color string) (grid.Placement, error) {
	return c.Place(c.planet.CellAtScreen(s, v, screen), color)
}

// Place performs a local placement: admission checks, mutation, then
// persist and broadcast.
func (c *Canvas) Place(cell grid.Cell, color string) (grid.Placement, error) {
	if c.replay != nil {
		c.metrics.IncRejection("replaying")
		return grid.Placement{}, ErrReplaying
	}
	if !c.planet.IsOnPlanet(cell) {
		c.metrics.IncRejection("off_planet")
		return grid.Placement{}, fmt.Errorf("%w: %s", ErrOffPlanet, cell)
	}
	if !grid.ValidColor(color) {
		c.metrics.IncRejection("invalid_color")
		return grid.Placement{}, fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	now := c.now()
	if d := c.gate.TryAdmit(now); !d.Admitted {
		c.metrics.IncRejection("cooldown")
		return grid.Placement{}, &CooldownError{Remaining: d.Remaining}
	}

	p := c.model.Set(cell, color, now.UnixMilli(), c.label)
	c.channel.Commit(c.model.Snapshot(), broadcast.Place(p))
	c.metrics.IncPlacement(string(SourceLocal))
	c.metrics.SetCells(c.model.Len())
	c.log.Debug("placed", "cell", cell, "color", color)
	c.emit(Event{Kind: broadcast.KindPlace, Placement: p, Source: SourceLocal})
	return p, nil
}

// Clear empties the planet for every context.
func (c *Canvas) Clear() error {
	if c.replay != nil {
		return ErrReplaying
	}
	c.model.Clear()
	c.channel.Commit(c.model.Snapshot(), broadcast.Clear())
	c.metrics.SetCells(0)
	c.log.Info("planet cleared")
	c.emit(Event{Kind: broadcast.KindClear, Source: SourceLocal})
	return nil
}

// ApplyRemote applies an event received from another context. It never
// re-broadcasts and bypasses the cooldown. While a replay runs the event is
// held back and applied when the replay ends.
func (c *Canvas) ApplyRemote(msg broadcast.Message) {
	if c.replay != nil {
		c.deferred = append(c.deferred, msg)
		return
	}
	c.apply(msg)
}

func (c *Canvas) apply(msg broadcast.Message) {
	switch msg.Type {
	case broadcast.KindPlace:
		p := msg.Placement()
		if !c.planet.IsOnPlanet(p.Cell()) {
			c.log.Debug("dropping remote placement off the planet", "cell", p.Cell())
			c.metrics.IncMalformed()
			return
		}
		p = c.model.Set(p.Cell(), p.Color, p.Timestamp, p.Label)
		c.metrics.IncPlacement(string(SourceRemote))
		c.emit(Event{Kind: broadcast.KindPlace, Placement: p, Source: SourceRemote})
	case broadcast.KindClear:
		c.model.Clear()
		c.emit(Event{Kind: broadcast.KindClear, Source: SourceRemote})
	case broadcast.KindSync:
		if msg.Snapshot == nil {
			return
		}
		c.model.RestoreSnapshot(c.sanitize(*msg.Snapshot))
		c.emit(Event{Kind: broadcast.KindSync, Source: SourceRemote})
	}
	c.metrics.SetCells(c.model.Len())
}

// Pump drains pending inbound events and advances a running replay. The
// owner calls it once per tick.
func (c *Canvas) Pump() {
	inbox := c.channel.Inbox()
	for n := len(inbox); n > 0; n-- {
		c.ApplyRemote(<-inbox)
	}
	if c.replay != nil {
		c.advanceReplay(c.now())
	}
}

// State is a read-only summary for the HUD and the control API.
type State struct {
	Label             string
	Transport         string
	Cells             int
	HistoryLen        int
	CooldownRemaining int
	Replaying         bool
	ReplayDone        int
	ReplayTotal       int
	Recent            []grid.Placement
	Snapshot          grid.Snapshot
}

// State summarizes the displayed grid. recent bounds the activity list.
func (c *Canvas) State(recent int) State {
	m := c.Model()
	st := State{
		Label:             c.label,
		Transport:         c.channel.TransportName(),
		Cells:             m.Len(),
		HistoryLen:        m.HistoryLen(),
		CooldownRemaining: c.Cooldown(),
		Replaying:         c.replay != nil,
		Recent:            m.Recent(recent),
		Snapshot:          m.Snapshot(),
	}
	if c.replay != nil {
		st.ReplayDone, st.ReplayTotal = c.replay.Progress()
	}
	return st
}
