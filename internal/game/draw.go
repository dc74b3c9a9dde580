package game

import (
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/render"
)

var (
	spaceColor = color.RGBA{R: 4, G: 6, B: 14, A: 255}
	hoverColor = color.RGBA{R: 255, G: 255, B: 255, A: 220}
	panelFill  = color.RGBA{R: 6, G: 8, B: 16, A: 215}
	panelEdge  = color.RGBA{R: 60, G: 80, B: 130, A: 180}
	panelShine = color.RGBA{R: 90, G: 120, B: 190, A: 80}
	textColor  = color.RGBA{R: 220, G: 228, B: 240, A: 255}
	dimText    = color.RGBA{R: 140, G: 150, B: 170, A: 255}
	warnText   = color.RGBA{R: 255, G: 196, B: 90, A: 255}
)

// withAlpha scales an opaque colour to premultiplied alpha a.
func withAlpha(c color.RGBA, a float64) color.RGBA {
	a = max(0, min(1, a))
	return color.RGBA{
		R: uint8(float64(c.R) * a),
		G: uint8(float64(c.G) * a),
		B: uint8(float64(c.B) * a),
		A: uint8(float64(c.A) * a),
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(spaceColor)
	g.drawStars(screen)
	g.drawPlanet(screen)
	g.drawGlows(screen)
	g.drawHover(screen)

	g.activity.Draw(screen, g.viewWidth(), g.height)
	g.drawHUD(screen)
	if g.session.Input.PaletteOpen() {
		g.drawPalette(screen)
	}
	if g.session.Input.ConfirmingClear() {
		g.drawClearDialog(screen)
	}
	g.drawNotice(screen)
}

func (g *Game) drawStars(screen *ebiten.Image) {
	w, h := float64(g.viewWidth()), float64(g.height)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, s := range g.engine.Stars() {
		col := withAlpha(white, g.engine.Twinkle(s))
		vector.FillRect(screen, float32(s.X*w), float32(s.Y*h), float32(s.Size), float32(s.Size), col, false)
	}
}

// drawPlanet composes the lit planet on the CPU, uploads it and blits it with
// the view transform.
func (g *Game) drawPlanet(screen *ebiten.Image) {
	start := time.Now()
	img := g.engine.Render(g.session.Model())
	g.metrics.ObserveFrame(time.Since(start).Seconds())

	d := g.engine.Diameter()
	if g.planetImg == nil {
		g.planetImg = ebiten.NewImage(d, d)
	}
	g.planetImg.WritePixels(img.Pix)

	ctrl := g.session.Input
	v := ctrl.View()
	half := float64(d) / 2
	origin := geom.WorldToScreen(geom.Point{X: -half, Y: -half}, v, ctrl.Screen())

	var op ebiten.DrawImageOptions
	op.GeoM.Scale(v.Zoom, v.Zoom)
	op.GeoM.Translate(origin.X, origin.Y)
	screen.DrawImage(g.planetImg, &op)
}

func (g *Game) drawGlows(screen *ebiten.Image) {
	ctrl := g.session.Input
	v, size := ctrl.View(), ctrl.Screen()
	for _, gl := range g.engine.Glows(g.now(), g.session.Model()) {
		c := geom.WorldToScreen(gl.Center, v, size)
		col := withAlpha(render.ParseColor(gl.Color), gl.Alpha)
		vector.FillCircle(screen, float32(c.X), float32(c.Y), float32(gl.Radius*v.Zoom), col, true)
	}
}

func (g *Game) drawHover(screen *ebiten.Image) {
	cell, ok := g.engine.Hover()
	if !ok {
		return
	}
	ctrl := g.session.Input
	v := ctrl.View()
	planet := g.session.Planet()
	cs := float64(planet.CellSize)
	center := planet.GridToWorldCenter(cell)
	tl := geom.WorldToScreen(geom.Point{X: center.X - cs/2, Y: center.Y - cs/2}, v, ctrl.Screen())
	side := float32(cs * v.Zoom)
	vector.StrokeRect(screen, float32(tl.X), float32(tl.Y), side, side, 1.5, hoverColor, false)
}

func (g *Game) drawText(dst *ebiten.Image, s string, face *text.GoTextFace, x, y float64, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(dst, s, face, op)
}

// drawPanel draws the shared box chrome: fill, border and a highlight along
// the top edge.
func drawPanel(dst *ebiten.Image, x, y, w, h float32) {
	vector.FillRect(dst, x, y, w, h, panelFill, false)
	vector.StrokeRect(dst, x, y, w, h, 1.0, panelEdge, false)
	vector.StrokeLine(dst, x+1, y+1, x+w-1, y+1, 1.0, panelShine, false)
}

type hudLine struct {
	s   string
	col color.Color
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	s := g.session
	ctrl := s.Input
	m := s.Model()

	cooldown := hudLine{"ready", textColor}
	if left := s.Cooldown(); left > 0 {
		cooldown = hudLine{fmt.Sprintf("next pixel in %ds", left), warnText}
	}
	lines := []hudLine{
		{fmt.Sprintf("PIXEL PLANET  %s", s.Label()), textColor},
		{fmt.Sprintf("sync: %s   pixels: %d   history: %d", s.TransportName(), m.Len(), m.HistoryLen()), dimText},
		cooldown,
		{fmt.Sprintf("colour: %s", g.Color()), textColor},
	}
	if done, total, ok := s.ReplayProgress(); ok {
		lines = append(lines, hudLine{fmt.Sprintf("replay %d/%d  [Esc] stop", done, total), warnText})
	}
	help := []string{
		"[P] palette  [X] clear  [R] recenter  [T] replay",
		fmt.Sprintf("drag=pan  scroll=zoom  click=place  %.2fx", ctrl.View().Zoom),
	}

	const lineH = 18
	const padX = 10
	const padY = 8
	maxW := 0.0
	for _, l := range lines {
		w, _ := text.Measure(l.s, g.face, 0)
		maxW = max(maxW, w)
	}
	for _, l := range help {
		w, _ := text.Measure(l, g.small, 0)
		maxW = max(maxW, w)
	}
	boxW := float32(maxW + padX*2 + swatchSize)
	boxH := float32((len(lines)+len(help))*lineH + padY*2)
	bx := float32(8)
	by := float32(g.height) - boxH - 8
	drawPanel(screen, bx, by, boxW, boxH)

	y := float64(by) + padY
	for _, l := range lines {
		g.drawText(screen, l.s, g.face, float64(bx)+padX, y, l.col)
		y += lineH
	}
	for _, l := range help {
		g.drawText(screen, l, g.small, float64(bx)+padX, y+2, dimText)
		y += lineH
	}

	// Current colour swatch in the top-right corner of the panel.
	sx := bx + boxW - swatchSize*0.75 - padX
	vector.FillRect(screen, sx, by+padY, swatchSize*0.75, swatchSize*0.75, render.ParseColor(g.Color()), false)
	vector.StrokeRect(screen, sx, by+padY, swatchSize*0.75, swatchSize*0.75, 1.0, panelEdge, false)
}

func (g *Game) drawPalette(screen *ebiten.Image) {
	rows := (len(grid.Palette) + paletteCols - 1) / paletteCols
	w := float32(paletteCols*(swatchSize+swatchGap) - swatchGap + 12)
	h := float32(rows*(swatchSize+swatchGap) - swatchGap + 12 + 18)
	drawPanel(screen, paletteX-6, paletteY-6, w, h)

	for i, c := range grid.Palette {
		x, y := swatchRect(i)
		vector.FillRect(screen, float32(x), float32(y), swatchSize, swatchSize, render.ParseColor(c), false)
		if g.custom == "" && i == g.selected {
			vector.StrokeRect(screen, float32(x)-2, float32(y)-2, swatchSize+4, swatchSize+4, 2, hoverColor, false)
		}
		if i < 10 {
			// Keys 1..9 then 0.
			g.drawText(screen, fmt.Sprint((i+1)%10), g.small, x+2, y+1, withAlpha(textColor, 0.8))
		}
	}
	status := "Ctrl+V paste  Ctrl+C copy"
	if g.custom != "" {
		status = "custom " + g.custom
	}
	_, y := swatchRect(len(grid.Palette) - 1)
	g.drawText(screen, status, g.small, paletteX, y+swatchSize+4, dimText)
}

func (g *Game) drawClearDialog(screen *ebiten.Image) {
	const msg = "Clear the whole planet for everyone?"
	const keys = "[Y] clear    [N] cancel"
	w, _ := text.Measure(msg, g.face, 0)
	boxW, boxH := float32(w+40), float32(70)
	bx := float32(g.viewWidth())/2 - boxW/2
	by := float32(g.height)/2 - boxH/2
	drawPanel(screen, bx, by, boxW, boxH)
	g.drawText(screen, msg, g.face, float64(bx)+20, float64(by)+14, textColor)
	g.drawText(screen, keys, g.face, float64(bx)+20, float64(by)+40, warnText)
}

func (g *Game) drawNotice(screen *ebiten.Image) {
	msg := g.Notice()
	if msg == "" {
		return
	}
	// Fade out over the last half second.
	alpha := min(1, g.noticeUntil.Sub(g.now()).Seconds()/0.5)
	w, _ := text.Measure(msg, g.face, 0)
	boxW := float32(w + 24)
	bx := float32(g.viewWidth())/2 - boxW/2
	by := float32(16)
	vector.FillRect(screen, bx, by, boxW, 28, withAlpha(color.RGBA{R: 20, G: 14, B: 6, A: 230}, alpha), false)
	g.drawText(screen, msg, g.face, float64(bx)+12, float64(by)+6, withAlpha(warnText, alpha))
}
