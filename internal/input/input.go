// Package input turns raw pointer, wheel and key events into view changes and
// intents. It knows nothing about ebiten; the game layer translates polled
// device state into calls on a Controller.
package input

import (
	"math"

	"github.com/Garsondee/Pixel-Planet/internal/config"
	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
)

// IntentKind enumerates what the user asked for.
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentPlace
	IntentTogglePalette
	IntentClearPrompt
	IntentClearConfirm
	IntentClearCancel
	IntentRecenter
	IntentReplay
	IntentStopReplay
	IntentSelectColor
	IntentPasteColor
	IntentCopyColor
)

func (k IntentKind) String() string {
	switch k {
	case IntentPlace:
		return "place"
	case IntentTogglePalette:
		return "toggle-palette"
	case IntentClearPrompt:
		return "clear-prompt"
	case IntentClearConfirm:
		return "clear-confirm"
	case IntentClearCancel:
		return "clear-cancel"
	case IntentRecenter:
		return "recenter"
	case IntentReplay:
		return "replay"
	case IntentStopReplay:
		return "stop-replay"
	case IntentSelectColor:
		return "select-color"
	case IntentPasteColor:
		return "paste-color"
	case IntentCopyColor:
		return "copy-color"
	default:
		return "none"
	}
}

// Intent is one user request.
type Intent struct {
	Kind   IntentKind
	Screen geom.Point // IntentPlace: release point
	Index  int        // IntentSelectColor: palette index
}

// Key identifies the keys the controller reacts to.
type Key int

const (
	KeyUnknown Key = iota
	KeyP
	KeyX
	KeyY
	KeyN
	KeyR
	KeyT
	KeyC
	KeyV
	KeyEscape
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
)

// Controller owns the view state of one context and interprets input.
type Controller struct {
	planet geom.Planet
	screen geom.Size
	view   geom.View

	zoomMin, zoomMax, zoomStep float64
	slop                       float64

	dragging bool
	downAt   geom.Point
	last     geom.Point

	hover   geom.Point
	hoverOK bool

	paletteOpen     bool
	confirmingClear bool
	sized           bool
}

func New(cfg config.Config) *Controller {
	return &Controller{
		planet:   cfg.Planet(),
		view:     geom.View{Zoom: 1},
		zoomMin:  cfg.ZoomMin,
		zoomMax:  cfg.ZoomMax,
		zoomStep: cfg.ZoomStep,
		slop:     cfg.ClickSlop,
	}
}

// SetScreen updates the surface size. The first call fits the planet.
func (c *Controller) SetScreen(s geom.Size) {
	c.screen = s
	if !c.sized {
		c.sized = true
		c.Recenter()
	}
}

func (c *Controller) Screen() geom.Size {
	return c.screen
}

func (c *Controller) View() geom.View {
	return c.view
}

// SetView replaces the view, clamping zoom.
func (c *Controller) SetView(v geom.View) {
	v.Zoom = geom.ClampZoom(v.Zoom, c.zoomMin, c.zoomMax)
	c.view = v
}

// Recenter resets pan and fits the planet to the surface.
func (c *Controller) Recenter() {
	c.view = geom.FitView(c.planet, c.screen, c.zoomMin, c.zoomMax)
}

func (c *Controller) Dragging() bool {
	return c.dragging
}

func (c *Controller) PaletteOpen() bool {
	return c.paletteOpen
}

func (c *Controller) ConfirmingClear() bool {
	return c.confirmingClear
}

// Hover returns the last pointer position, if the pointer is over the surface.
func (c *Controller) Hover() (geom.Point, bool) {
	return c.hover, c.hoverOK
}

// HoverCell returns the on-planet cell under the pointer.
func (c *Controller) HoverCell() (grid.Cell, bool) {
	if !c.hoverOK || c.dragging {
		return grid.Cell{}, false
	}
	cell := c.planet.CellAtScreen(c.hover, c.view, c.screen)
	return cell, c.planet.IsOnPlanet(cell)
}

// PointerDown starts a potential drag.
func (c *Controller) PointerDown(p geom.Point) {
	c.dragging = true
	c.downAt, c.last = p, p
	c.hover, c.hoverOK = p, true
}

// PointerMove pans while dragging, otherwise just tracks hover.
func (c *Controller) PointerMove(p geom.Point) {
	if c.dragging {
		d := p.Sub(c.last)
		c.view.PanX += d.X / c.view.Zoom
		c.view.PanY += d.Y / c.view.Zoom
		c.last = p
	}
	c.hover, c.hoverOK = p, true
}

// PointerLeave hides the hover outline.
func (c *Controller) PointerLeave() {
	c.hoverOK = false
}

// PointerUp ends the drag. Travel under the click slop on both axes is a
// click and yields a place intent at p.
func (c *Controller) PointerUp(p geom.Point) (Intent, bool) {
	if !c.dragging {
		return Intent{}, false
	}
	c.PointerMove(p)
	c.dragging = false
	if math.Abs(p.X-c.downAt.X) < c.slop && math.Abs(p.Y-c.downAt.Y) < c.slop {
		return Intent{Kind: IntentPlace, Screen: p}, true
	}
	return Intent{}, false
}

// Wheel zooms by ZoomStep per notch, anchored at p. Positive notches zoom in.
func (c *Controller) Wheel(p geom.Point, notches float64) {
	if notches == 0 {
		return
	}
	factor := math.Pow(c.zoomStep, notches)
	c.view = geom.ZoomAt(c.view, p, c.screen, factor, c.zoomMin, c.zoomMax)
}

// Key handles a key press. ctrl reports whether Control (or Command) is held.
func (c *Controller) Key(k Key, ctrl bool) (Intent, bool) {
	if c.confirmingClear {
		switch k {
		case KeyY:
			c.confirmingClear = false
			return Intent{Kind: IntentClearConfirm}, true
		case KeyN, KeyEscape:
			c.confirmingClear = false
			return Intent{Kind: IntentClearCancel}, true
		}
		return Intent{}, false
	}

	if ctrl {
		switch k {
		case KeyV:
			return Intent{Kind: IntentPasteColor}, true
		case KeyC:
			return Intent{Kind: IntentCopyColor}, true
		}
		return Intent{}, false
	}

	switch k {
	case KeyP:
		c.paletteOpen = !c.paletteOpen
		return Intent{Kind: IntentTogglePalette}, true
	case KeyX:
		c.confirmingClear = true
		return Intent{Kind: IntentClearPrompt}, true
	case KeyR:
		c.Recenter()
		return Intent{Kind: IntentRecenter}, true
	case KeyT:
		return Intent{Kind: IntentReplay}, true
	case KeyEscape:
		if c.paletteOpen {
			c.paletteOpen = false
			return Intent{Kind: IntentTogglePalette}, true
		}
		return Intent{Kind: IntentStopReplay}, true
	}
	if k >= Key0 && k <= Key9 {
		// 1..9 map to the first nine swatches, 0 to the tenth.
		idx := int(k-Key1)
		if k == Key0 {
			idx = 9
		}
		return Intent{Kind: IntentSelectColor, Index: idx}, true
	}
	return Intent{}, false
}
