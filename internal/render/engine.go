// Package render composes the planet image on the CPU: grid rasterization,
// circular clipping, rotating overlay lighting, rim darkening, placement
// glows and the starfield. The result is a plain *image.RGBA that the game
// uploads to the GPU and the report tool writes to PNG.
package render

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
)

const (
	lightStrength = 0.35
	rimStart      = 0.72
	rimDepth      = 0.55
)

// Options configures an Engine.
type Options struct {
	Planet            geom.Planet
	AngularRate       float64 // radians per millisecond
	AnimationDuration time.Duration
	StarCount         int
	Seed              int64
}

type pixelGeo struct {
	inside bool
	nx, ny float64 // offset from centre, unit radius
	rim    float64 // brightness multiplier
}

// Engine owns every render-side buffer of one context. Buffers are sized at
// construction and reused for every frame.
type Engine struct {
	planet   geom.Planet
	diameter int

	raster *image.RGBA // grid colours, rebuilt each frame
	out    *image.RGBA // lit and clipped result
	geo    []pixelGeo
	colors colorCache

	rate     float64
	rotation float64
	clock    float64 // ms since start, drives twinkle

	animDuration time.Duration
	tokens       []Token
	stars        []Star

	hover   grid.Cell
	hoverOK bool
}

func NewEngine(opts Options) *Engine {
	d := opts.Planet.GridSize * opts.Planet.CellSize
	e := &Engine{
		planet:       opts.Planet,
		diameter:     d,
		raster:       image.NewRGBA(image.Rect(0, 0, d, d)),
		out:          image.NewRGBA(image.Rect(0, 0, d, d)),
		geo:          make([]pixelGeo, d*d),
		colors:       colorCache{},
		rate:         opts.AngularRate,
		animDuration: opts.AnimationDuration,
		stars:        newStars(opts.StarCount, opts.Seed),
	}
	e.buildGeometry()
	return e
}

// buildGeometry precomputes, per output pixel, whether it lies inside the
// planet disc, its normalized offset and its rim factor.
func (e *Engine) buildGeometry() {
	r := float64(e.diameter) / 2
	for y := 0; y < e.diameter; y++ {
		for x := 0; x < e.diameter; x++ {
			dx := (float64(x) + 0.5 - r) / r
			dy := (float64(y) + 0.5 - r) / r
			dist := math.Hypot(dx, dy)
			g := &e.geo[y*e.diameter+x]
			if dist > 1 {
				continue
			}
			g.inside = true
			g.nx, g.ny = dx, dy
			g.rim = 1 - rimDepth*smoothstep(rimStart, 1, dist)
		}
	}
}

// Diameter returns the buffer side in pixels.
func (e *Engine) Diameter() int {
	return e.diameter
}

// Rotation returns the accumulated light angle in radians. It is never wrapped.
func (e *Engine) Rotation() float64 {
	return e.rotation
}

// Advance moves the light and the twinkle clock forward.
func (e *Engine) Advance(elapsed time.Duration) {
	ms := float64(elapsed) / float64(time.Millisecond)
	e.rotation += ms * e.rate
	e.clock += ms
}

// Render rebuilds the planet image from m and returns it. The returned image
// is owned by the engine and overwritten by the next call.
func (e *Engine) Render(m *grid.Model) *image.RGBA {
	e.Rasterize(m)
	e.Compose()
	return e.out
}

// Rasterize paints every on-planet cell into the raster buffer: the stored
// colour, or the filler when empty.
func (e *Engine) Rasterize(m *grid.Model) {
	n, cs := e.planet.GridSize, e.planet.CellSize
	for gy := 0; gy < n; gy++ {
		for gx := 0; gx < n; gx++ {
			if e.planet.IsOnPlanet(grid.Cell{X: gx, Y: gy}) {
				e.fillCell(gx*cs, gy*cs, cs, FillerColor)
			}
		}
	}
	m.Each(func(c grid.Cell, px grid.Pixel) {
		if e.planet.IsOnPlanet(c) {
			e.fillCell(c.X*cs, c.Y*cs, cs, e.colors.get(px.Color))
		}
	})
}

func (e *Engine) fillCell(x0, y0, cs int, col color.RGBA) {
	stride := e.raster.Stride
	for y := y0; y < y0+cs; y++ {
		row := e.raster.Pix[y*stride+x0*4 : y*stride+(x0+cs)*4]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+1], row[i+2], row[i+3] = col.R, col.G, col.B, col.A
		}
	}
}

// Compose clips the raster to the disc and applies lighting and rim
// darkening into the output buffer.
func (e *Engine) Compose() {
	lx, ly := math.Cos(e.rotation), math.Sin(e.rotation)
	src, dst := e.raster.Pix, e.out.Pix
	for i, g := range e.geo {
		o := i * 4
		if !g.inside {
			dst[o], dst[o+1], dst[o+2], dst[o+3] = 0, 0, 0, 0
			continue
		}
		a := src[o+3]
		if a == 0 {
			dst[o], dst[o+1], dst[o+2], dst[o+3] = 0, 0, 0, 0
			continue
		}
		light := 0.5 + lightStrength*(lx*g.nx+ly*g.ny)
		af := float64(a) / 255
		for ch := 0; ch < 3; ch++ {
			base := float64(src[o+ch]) / 255 / af
			v := overlay(base, light) * g.rim
			dst[o+ch] = uint8(clamp01(v)*af*255 + 0.5)
		}
		dst[o+3] = a
	}
}

// Output returns the last composed image.
func (e *Engine) Output() *image.RGBA {
	return e.out
}

// SetHover records the cell under the pointer. ok=false hides the outline.
func (e *Engine) SetHover(c grid.Cell, ok bool) {
	e.hover, e.hoverOK = c, ok && e.planet.IsOnPlanet(c)
}

// Hover returns the outlined cell, if any.
func (e *Engine) Hover() (grid.Cell, bool) {
	return e.hover, e.hoverOK
}

// overlay is the standard overlay blend of base b with light l.
func overlay(b, l float64) float64 {
	if b < 0.5 {
		return 2 * b * l
	}
	return 1 - 2*(1-b)*(1-l)
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
