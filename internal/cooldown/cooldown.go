// Package cooldown rate-limits local placements of one client context.
//
// The gate is a two-state machine:
//
//	Ready --admit--> Cooling(expiry) --now >= expiry--> Ready
//
// It is never consulted for remote placements and its state is never sent
// to other contexts.
package cooldown

import (
	"time"
)

// Decision is the outcome of TryAdmit.
type Decision struct {
	Admitted bool
	// Remaining is the whole seconds left, rounded up, when denied.
	Remaining int
}

// Gate admits at most one placement per Duration.
type Gate struct {
	duration time.Duration
	expiry   time.Time
	cooling  bool
}

// New creates a Ready gate.
func New(d time.Duration) *Gate {
	return &Gate{duration: d}
}

// TryAdmit admits when Ready and starts a new cooling period.
func (g *Gate) TryAdmit(now time.Time) Decision {
	if g.Cooling(now) {
		return Decision{Remaining: g.Remaining(now)}
	}
	g.expiry = now.Add(g.duration)
	g.cooling = g.duration > 0
	return Decision{Admitted: true}
}

// Cooling reports whether placements are currently denied. Reaching the
// expiry moves the gate back to Ready.
func (g *Gate) Cooling(now time.Time) bool {
	if g.cooling && !now.Before(g.expiry) {
		g.cooling = false
	}
	return g.cooling
}

// Remaining returns the whole seconds until Ready, rounded up; 0 when Ready.
func (g *Gate) Remaining(now time.Time) int {
	if !g.Cooling(now) {
		return 0
	}
	ms := g.expiry.Sub(now).Milliseconds()
	return int((ms + 999) / 1000)
}

// Expiry returns the end of the current cooling period, zero when Ready.
func (g *Gate) Expiry(now time.Time) time.Time {
	if !g.Cooling(now) {
		return time.Time{}
	}
	return g.expiry
}

// Reset returns the gate to Ready.
func (g *Gate) Reset() {
	g.cooling = false
	g.expiry = time.Time{}
}
