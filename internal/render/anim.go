package render

import (
	"time"

	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
)

const (
	backC1 = 1.70158
	backC3 = backC1 + 1

	glowMaxAlpha  = 0.85
	glowMaxRadius = 3.0 // in cells
)

// Token is a running placement animation.
type Token struct {
	Cell     grid.Cell
	Start    time.Time
	Duration time.Duration
}

// Progress returns the normalized time in [0,1].
func (t Token) Progress(now time.Time) float64 {
	if t.Duration <= 0 {
		return 1
	}
	return clamp01(float64(now.Sub(t.Start)) / float64(t.Duration))
}

func (t Token) expired(now time.Time) bool {
	return !now.Before(t.Start.Add(t.Duration))
}

// EaseOutBack overshoots slightly past 1 before settling.
func EaseOutBack(t float64) float64 {
	u := t - 1
	return 1 + backC3*u*u*u + backC1*u*u
}

// Glow is one animation sample, in world coordinates.
type Glow struct {
	Center geom.Point
	Radius float64
	Alpha  float64
	Color  string
}

// Animate starts a glow on c.
func (e *Engine) Animate(c grid.Cell, now time.Time) {
	e.tokens = append(e.tokens, Token{Cell: c, Start: now, Duration: e.animDuration})
}

// ClearAnimations drops every running token.
func (e *Engine) ClearAnimations() {
	e.tokens = e.tokens[:0]
}

// Tokens returns the live tokens.
func (e *Engine) Tokens() []Token {
	return e.tokens
}

// Glows prunes expired tokens and returns one glow per live token. Alpha and
// radius shrink with 1-EaseOutBack(t).
func (e *Engine) Glows(now time.Time, m *grid.Model) []Glow {
	live := e.tokens[:0]
	glows := make([]Glow, 0, len(e.tokens))
	cs := float64(e.planet.CellSize)
	for _, tok := range e.tokens {
		if tok.expired(now) {
			continue
		}
		live = append(live, tok)
		scale := clamp01(1 - EaseOutBack(tok.Progress(now)))
		g := Glow{
			Center: e.planet.GridToWorldCenter(tok.Cell),
			Radius: cs * (0.5 + glowMaxRadius*scale),
			Alpha:  glowMaxAlpha * scale,
			Color:  "#ffffff",
		}
		if px, ok := m.Get(tok.Cell); ok {
			g.Color = px.Color
		}
		glows = append(glows, g)
	}
	e.tokens = live
	return glows
}
