// Package geom maps between screen, world and grid coordinates and owns the
// circular planet mask.
//
// World space is centred on the planet: the world origin is the planet centre
// and one world unit is one unzoomed screen pixel.
//
//	screen = (world + pan) * zoom + canvas/2
//	world  = (screen - canvas/2) / zoom - pan
package geom

import (
	"math"

	"github.com/Garsondee/Pixel-Planet/internal/grid"
)

// Point is a position in screen or world space.
type Point struct {
	X float64
	Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Size is a canvas size in screen pixels.
type Size struct {
	W float64
	H float64
}

// View is the pan/zoom state owned by the input layer.
type View struct {
	PanX float64
	PanY float64
	Zoom float64
}

// Planet describes the grid lattice: N×N cells of CellSize world units.
type Planet struct {
	GridSize int
	CellSize int
}

// Diameter returns the planet's pixel diameter at zoom 1.
func (p Planet) Diameter() float64 {
	return float64(p.GridSize * p.CellSize)
}

// ScreenToWorld converts a screen point. No bounds checking.
func ScreenToWorld(s Point, v View, canvas Size) Point {
	return Point{
		X: (s.X-canvas.W/2)/v.Zoom - v.PanX,
		Y: (s.Y-canvas.H/2)/v.Zoom - v.PanY,
	}
}

// WorldToScreen is the inverse of ScreenToWorld.
func WorldToScreen(w Point, v View, canvas Size) Point {
	return Point{
		X: (w.X+v.PanX)*v.Zoom + canvas.W/2,
		Y: (w.Y+v.PanY)*v.Zoom + canvas.H/2,
	}
}

// WorldToGrid returns the cell under a world point. The result may lie
// outside [0, GridSize); callers range-check.
func (p Planet) WorldToGrid(w Point) grid.Cell {
	half := p.Diameter() / 2
	cs := float64(p.CellSize)
	return grid.Cell{
		X: int(math.Floor((w.X + half) / cs)),
		Y: int(math.Floor((w.Y + half) / cs)),
	}
}

// GridToWorldCenter returns the world position of a cell's centre.
func (p Planet) GridToWorldCenter(c grid.Cell) Point {
	half := p.Diameter() / 2
	cs := float64(p.CellSize)
	return Point{
		X: (float64(c.X)+0.5)*cs - half,
		Y: (float64(c.Y)+0.5)*cs - half,
	}
}

// InBounds reports whether c lies inside the square lattice.
func (p Planet) InBounds(c grid.Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < p.GridSize && c.Y < p.GridSize
}

// IsOnPlanet is the single source of truth for valid placement targets and
// for which cells get content when rendered. The centre sits at N/2 - 0.5 so
// an even-sized grid produces a symmetric circle.
func (p Planet) IsOnPlanet(c grid.Cell) bool {
	if !p.InBounds(c) {
		return false
	}
	n := float64(p.GridSize)
	center := n/2 - 0.5
	r := n / 2
	dx := float64(c.X) - center
	dy := float64(c.Y) - center
	return dx*dx+dy*dy <= r*r
}

// CellAtScreen is the hit-test used by pointer input.
func (p Planet) CellAtScreen(s Point, v View, canvas Size) grid.Cell {
	return p.WorldToGrid(ScreenToWorld(s, v, canvas))
}

// ClampZoom bounds z to [min, max].
func ClampZoom(z, min, max float64) float64 {
	return math.Max(min, math.Min(max, z))
}

// ZoomAt scales the zoom by factor while keeping the world point under the
// screen point s fixed on screen.
func ZoomAt(v View, s Point, canvas Size, factor, min, max float64) View {
	before := ScreenToWorld(s, v, canvas)
	next := v
	next.Zoom = ClampZoom(v.Zoom*factor, min, max)
	// New zoom, old pan.
	after := ScreenToWorld(s, next, canvas)
	next.PanX += after.X - before.X
	next.PanY += after.Y - before.Y
	return next
}

// FitView centres the planet and picks a zoom that fills 80% of the shorter
// canvas side.
func FitView(p Planet, canvas Size, min, max float64) View {
	side := math.Min(canvas.W, canvas.H)
	zoom := 1.0
	if d := p.Diameter(); d > 0 && side > 0 {
		zoom = side * 0.8 / d
	}
	return View{Zoom: ClampZoom(zoom, min, max)}
}
