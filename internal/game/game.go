// Package game is the ebiten shell of a windowed context. It polls devices,
// drives the canvas owner loop each Update and draws the planet, the HUD and
// the activity panel.
package game

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/canvas"
	"github.com/Garsondee/Pixel-Planet/internal/config"
	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/metrics"
	"github.com/Garsondee/Pixel-Planet/internal/render"
)

const (
	noticeDuration = 2500 * time.Millisecond
	recentHistory  = 20
	hudFontSize    = 14
	smallFontSize  = 11
)

type Option func(*Game)

func WithLogger(log *slog.Logger) Option {
	return func(g *Game) {
		g.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Game) {
		g.metrics = m
	}
}

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option {
	return func(g *Game) {
		g.clip = c
	}
}

// WithDone ends the game loop once done is closed.
func WithDone(done <-chan struct{}) Option {
	return func(g *Game) {
		g.done = done
	}
}

// WithClock replaces time.Now for animations and notices.
func WithClock(now func() time.Time) Option {
	return func(g *Game) {
		g.now = now
	}
}

// Game implements ebiten.Game for one context. Every method runs on the
// ebiten goroutine; other goroutines go through Do.
type Game struct {
	session  *canvas.Session
	mailbox  *canvas.Mailbox
	engine   *render.Engine
	activity *ActivityLog
	clip     Clipboard
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	done     <-chan struct{}

	width  int
	height int

	planetImg *ebiten.Image // allocated on first Draw, refreshed with WritePixels
	face      *text.GoTextFace
	small     *text.GoTextFace

	prevKeys      map[ebiten.Key]bool
	prevMouseLeft bool
	touchIDs      []ebiten.TouchID
	touchID       ebiten.TouchID
	touching      bool
	touchAt       geom.Point
	swatchPress   bool

	selected    int
	custom      string
	notice      string
	noticeUntil time.Time
	lastFrame   time.Time
}

// New wires a game around an already loaded session. mb is drained once per
// Update.
func New(cfg config.Config, s *canvas.Session, mb *canvas.Mailbox, opts ...Option) (*Game, error) {
	src, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, fmt.Errorf("load HUD font: %w", err)
	}
	g := &Game{
		session: s,
		mailbox: mb,
		engine: render.NewEngine(render.Options{
			Planet:            cfg.Planet(),
			AngularRate:       cfg.AngularRate(),
			AnimationDuration: cfg.AnimationDuration,
			StarCount:         cfg.StarCount,
			Seed:              cfg.Seed,
		}),
		activity: NewActivityLog(),
		clip:     systemClipboard{},
		log:      slog.New(slog.DiscardHandler),
		now:      time.Now,
		width:    cfg.WindowWidth,
		height:   cfg.WindowHeight,
		face:     &text.GoTextFace{Source: src, Size: hudFontSize},
		small:    &text.GoTextFace{Source: src, Size: smallFontSize},
		prevKeys: map[ebiten.Key]bool{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = metrics.New()
	}
	s.OnEvent(g.onEvent)
	s.Input.SetScreen(g.viewSize())
	return g, nil
}

func (g *Game) onEvent(ev canvas.Event) {
	now := g.now()
	switch ev.Kind {
	case broadcast.KindPlace:
		g.engine.Animate(ev.Placement.Cell(), now)
	case broadcast.KindClear, broadcast.KindSync:
		g.engine.ClearAnimations()
	}
	g.activity.Record(ev, now)
}

func (g *Game) Update() error {
	select {
	case <-g.done:
		return ebiten.Termination
	default:
	}
	now := g.now()
	if !g.lastFrame.IsZero() {
		g.engine.Advance(now.Sub(g.lastFrame))
	}
	g.lastFrame = now

	g.handleInput()
	g.tick()
	return nil
}

// tick is the device-independent half of Update.
func (g *Game) tick() {
	g.session.Pump()
	g.mailbox.Drain(g.session)
	cell, ok := g.session.Input.HoverCell()
	g.engine.SetHover(cell, ok)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.width || outsideHeight != g.height {
		g.width, g.height = outsideWidth, outsideHeight
		g.session.Input.SetScreen(g.viewSize())
	}
	return g.width, g.height
}

// viewWidth is the planet viewport width, excluding the activity panel.
func (g *Game) viewWidth() int {
	return max(g.width-logPanelWidth, 1)
}

func (g *Game) viewSize() geom.Size {
	return geom.Size{W: float64(g.viewWidth()), H: float64(g.height)}
}

// Do runs fn on the ebiten goroutine during the next Update.
func (g *Game) Do(ctx context.Context, fn func(*canvas.Session)) error {
	return g.mailbox.Do(ctx, fn)
}

// PlaceAtScreen places the given colour at a viewport point. Owner goroutine
// only; other goroutines wrap it in Do.
func (g *Game) PlaceAtScreen(x, y float64, color string) (grid.Placement, error) {
	p, err := g.session.PlaceAt(geom.Point{X: x, Y: y}, color)
	if err != nil {
		g.report(err)
	}
	return p, err
}

// State summarizes the displayed planet. Owner goroutine only.
func (g *Game) State() canvas.State {
	return g.session.State(recentHistory)
}

// Activity exposes the side panel log.
func (g *Game) Activity() *ActivityLog {
	return g.activity
}

// Notice returns the transient message currently shown, if any.
func (g *Game) Notice() string {
	if g.notice == "" || !g.now().Before(g.noticeUntil) {
		return ""
	}
	return g.notice
}

func (g *Game) setNotice(msg string) {
	g.notice = msg
	g.noticeUntil = g.now().Add(noticeDuration)
}
