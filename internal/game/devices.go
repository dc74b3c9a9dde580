package game

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/input"
)

var keyBindings = []struct {
	key  ebiten.Key
	want input.Key
}{
	{ebiten.KeyP, input.KeyP},
	{ebiten.KeyX, input.KeyX},
	{ebiten.KeyY, input.KeyY},
	{ebiten.KeyN, input.KeyN},
	{ebiten.KeyR, input.KeyR},
	{ebiten.KeyT, input.KeyT},
	{ebiten.KeyC, input.KeyC},
	{ebiten.KeyV, input.KeyV},
	{ebiten.KeyEscape, input.KeyEscape},
	{ebiten.Key0, input.Key0},
	{ebiten.Key1, input.Key1},
	{ebiten.Key2, input.Key2},
	{ebiten.Key3, input.Key3},
	{ebiten.Key4, input.Key4},
	{ebiten.Key5, input.Key5},
	{ebiten.Key6, input.Key6},
	{ebiten.Key7, input.Key7},
	{ebiten.Key8, input.Key8},
	{ebiten.Key9, input.Key9},
}

// handleInput polls keyboard, mouse and touch state and feeds edges into the
// input controller.
func (g *Game) handleInput() {
	ctrlHeld := ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyMeta)
	currentKeys := make(map[ebiten.Key]bool, len(keyBindings))
	for _, b := range keyBindings {
		currentKeys[b.key] = ebiten.IsKeyPressed(b.key)
		if currentKeys[b.key] && !g.prevKeys[b.key] {
			if in, ok := g.session.Input.Key(b.want, ctrlHeld); ok {
				g.apply(in)
			}
		}
	}
	g.prevKeys = currentKeys

	if g.handleTouch() {
		return
	}
	g.handleMouse()
}

func (g *Game) handleMouse() {
	ctrl := g.session.Input
	mx, my := ebiten.CursorPosition()
	p := geom.Point{X: float64(mx), Y: float64(my)}
	inView := mx >= 0 && my >= 0 && mx < g.viewWidth() && my < g.height

	down := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	switch {
	case down && !g.prevMouseLeft:
		g.pointerDown(p)
	case !down && g.prevMouseLeft:
		g.pointerUp(p)
	case inView || ctrl.Dragging():
		ctrl.PointerMove(p)
	default:
		ctrl.PointerLeave()
	}
	g.prevMouseLeft = down

	if _, wy := ebiten.Wheel(); wy != 0 && inView {
		ctrl.Wheel(p, wy)
	}
}

// handleTouch tracks the first finger as a pointer. It reports whether a
// touch is in progress so the synthesized mouse state is ignored.
func (g *Game) handleTouch() bool {
	if !g.touching {
		g.touchIDs = inpututil.AppendJustPressedTouchIDs(g.touchIDs[:0])
		if len(g.touchIDs) == 0 {
			return false
		}
		g.touchID, g.touching = g.touchIDs[0], true
		x, y := ebiten.TouchPosition(g.touchID)
		g.touchAt = geom.Point{X: float64(x), Y: float64(y)}
		g.pointerDown(g.touchAt)
		return true
	}
	if inpututil.IsTouchJustReleased(g.touchID) {
		// The position of a released touch is gone; use the last one seen.
		g.touching = false
		g.pointerUp(g.touchAt)
		g.session.Input.PointerLeave()
		return true
	}
	x, y := ebiten.TouchPosition(g.touchID)
	g.touchAt = geom.Point{X: float64(x), Y: float64(y)}
	g.session.Input.PointerMove(g.touchAt)
	return true
}
