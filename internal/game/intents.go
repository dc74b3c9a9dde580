package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Garsondee/Pixel-Planet/internal/canvas"
	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/input"
)

// Color returns the colour the next placement uses: a pasted custom colour
// if there is one, otherwise the selected swatch.
func (g *Game) Color() string {
	if g.custom != "" {
		return g.custom
	}
	return grid.Palette[g.selected]
}

func (g *Game) selectColor(idx int) {
	if idx < 0 || idx >= len(grid.Palette) {
		return
	}
	g.selected = idx
	g.custom = ""
}

func (g *Game) pasteColor() {
	raw, err := g.clip.ReadAll()
	if err != nil {
		g.log.Warn("clipboard read failed", "err", err)
		g.setNotice("Clipboard unavailable")
		return
	}
	c := strings.ToLower(strings.TrimSpace(raw))
	if !grid.ValidColor(c) {
		g.setNotice(fmt.Sprintf("Not a colour: %.24q", raw))
		return
	}
	g.custom = c
	g.setNotice("Custom colour " + c)
}

func (g *Game) copyColor() {
	c := g.Color()
	if err := g.clip.WriteAll(c); err != nil {
		g.log.Warn("clipboard write failed", "err", err)
		g.setNotice("Clipboard unavailable")
		return
	}
	g.setNotice("Copied " + c)
}

// apply carries out an intent produced by the input controller.
func (g *Game) apply(in input.Intent) {
	switch in.Kind {
	case input.IntentPlace:
		_, _ = g.PlaceAtScreen(in.Screen.X, in.Screen.Y, g.Color())
	case input.IntentClearConfirm:
		if err := g.session.Clear(); err != nil {
			g.report(err)
		}
	case input.IntentReplay:
		if err := g.session.StartReplay(); err != nil {
			g.report(err)
		}
	case input.IntentStopReplay:
		g.session.StopReplay()
	case input.IntentSelectColor:
		g.selectColor(in.Index)
	case input.IntentPasteColor:
		g.pasteColor()
	case input.IntentCopyColor:
		g.copyColor()
	}
}

// report turns an action error into a notice.
func (g *Game) report(err error) {
	var cd *canvas.CooldownError
	switch {
	case errors.As(err, &cd):
		g.setNotice(fmt.Sprintf("Cooling down: %ds", cd.Remaining))
	case errors.Is(err, canvas.ErrOffPlanet):
		g.setNotice("That spot is off the planet")
	case errors.Is(err, canvas.ErrReplaying):
		g.setNotice("Replay in progress, Esc stops it")
	case errors.Is(err, canvas.ErrNothingToReplay):
		g.setNotice("Nothing to replay yet")
	default:
		g.log.Warn("action failed", "err", err)
		g.setNotice(err.Error())
	}
}

// Palette layout, in screen pixels from the top-left of the viewport.
const (
	paletteX    = 12
	paletteY    = 12
	swatchSize  = 28
	swatchGap   = 4
	paletteCols = 8
)

func swatchRect(i int) (x, y float64) {
	col, row := i%paletteCols, i/paletteCols
	return float64(paletteX + col*(swatchSize+swatchGap)), float64(paletteY + row*(swatchSize+swatchGap))
}

// swatchAt returns the swatch under p while the palette is open.
func (g *Game) swatchAt(p geom.Point) (int, bool) {
	if !g.session.Input.PaletteOpen() {
		return 0, false
	}
	for i := range grid.Palette {
		x, y := swatchRect(i)
		if p.X >= x && p.X < x+swatchSize && p.Y >= y && p.Y < y+swatchSize {
			return i, true
		}
	}
	return 0, false
}

func (g *Game) pointerDown(p geom.Point) {
	ctrl := g.session.Input
	if ctrl.ConfirmingClear() {
		return
	}
	if idx, ok := g.swatchAt(p); ok {
		g.selectColor(idx)
		g.swatchPress = true
		return
	}
	if p.X < 0 || p.Y < 0 || p.X >= float64(g.viewWidth()) || p.Y >= float64(g.height) {
		return
	}
	ctrl.PointerDown(p)
}

func (g *Game) pointerUp(p geom.Point) {
	if g.swatchPress {
		g.swatchPress = false
		return
	}
	if in, ok := g.session.Input.PointerUp(p); ok {
		g.apply(in)
	}
}
