package render

import (
	"math"
	"math/rand/v2"
)

// Star is a background point. X and Y are fractions of the surface so the
// field survives window resizes; only the twinkle phase animates.
type Star struct {
	X, Y  float64
	Size  float64
	Phase float64
	Speed float64 // radians per ms
}

func newStars(n int, seed int64) []Star {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	stars := make([]Star, n)
	for i := range stars {
		stars[i] = Star{
			X:     rng.Float64(),
			Y:     rng.Float64(),
			Size:  1 + rng.Float64()*1.2,
			Phase: rng.Float64() * 2 * math.Pi,
			Speed: 0.0008 + rng.Float64()*0.0025,
		}
	}
	return stars
}

// Stars returns the field generated at construction.
func (e *Engine) Stars() []Star {
	return e.stars
}

// Twinkle returns the star's current alpha in [0.35, 1].
func (e *Engine) Twinkle(s Star) float64 {
	return 0.35 + 0.65*(0.5+0.5*math.Sin(s.Phase+e.clock*s.Speed))
}
