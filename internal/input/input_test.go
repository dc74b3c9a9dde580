package input

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garsondee/Pixel-Planet/internal/config"
	"github.com/Garsondee/Pixel-Planet/internal/geom"
)

func newController() *Controller {
	c := New(config.Default())
	c.SetScreen(geom.Size{W: 800, H: 600})
	return c
}

func TestSetScreen_FitsOnce(t *testing.T) {
	c := newController()
	assert.InDelta(t, 600*0.8/640, c.View().Zoom, 1e-9)

	c.SetView(geom.View{PanX: 10, Zoom: 2})
	c.SetScreen(geom.Size{W: 1000, H: 1000})
	assert.Equal(t, 2.0, c.View().Zoom, "resizes must not reset the view")
}

func TestClick_YieldsPlaceIntent(t *testing.T) {
	c := newController()
	c.PointerDown(geom.Point{X: 400, Y: 300})
	c.PointerMove(geom.Point{X: 405, Y: 303})
	in, ok := c.PointerUp(geom.Point{X: 407, Y: 306})
	require.True(t, ok)
	assert.Equal(t, IntentPlace, in.Kind)
	assert.Equal(t, geom.Point{X: 407, Y: 306}, in.Screen)
}

func TestDrag_PansAndDoesNotPlace(t *testing.T) {
	c := newController()
	z := c.View().Zoom
	c.PointerDown(geom.Point{X: 400, Y: 300})
	c.PointerMove(geom.Point{X: 450, Y: 300})
	assert.InDelta(t, 50/z, c.View().PanX, 1e-9)

	_, ok := c.PointerUp(geom.Point{X: 460, Y: 300})
	assert.False(t, ok)
	assert.InDelta(t, 60/z, c.View().PanX, 1e-9)
	assert.False(t, c.Dragging())
}

func TestDrag_SlopIsPerAxis(t *testing.T) {
	c := newController()
	c.PointerDown(geom.Point{X: 400, Y: 300})
	_, ok := c.PointerUp(geom.Point{X: 400, Y: 308})
	assert.False(t, ok, "8px on one axis is a drag")
}

func TestWheel_KeepsCursorAnchored(t *testing.T) {
	c := newController()
	screen := c.Screen()
	p := geom.Point{X: 123, Y: 456}
	before := geom.ScreenToWorld(p, c.View(), screen)

	c.Wheel(p, 3)
	assert.InDelta(t, 600*0.8/640*math.Pow(1.08, 3), c.View().Zoom, 1e-9)
	after := geom.ScreenToWorld(p, c.View(), screen)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)

	for i := 0; i < 200; i++ {
		c.Wheel(p, 1)
	}
	assert.Equal(t, 12.0, c.View().Zoom)
}

func TestHoverCell(t *testing.T) {
	c := newController()
	_, ok := c.HoverCell()
	assert.False(t, ok)

	c.PointerMove(geom.Point{X: 400, Y: 300})
	cell, ok := c.HoverCell()
	require.True(t, ok)
	assert.Equal(t, 80, cell.X)
	assert.Equal(t, 80, cell.Y)

	c.PointerMove(geom.Point{X: 1, Y: 1})
	_, ok = c.HoverCell()
	assert.False(t, ok, "space is not on the planet")

	c.PointerLeave()
	_, ok = c.HoverCell()
	assert.False(t, ok)
}

func TestKeys_ClearConfirmation(t *testing.T) {
	c := newController()
	in, ok := c.Key(KeyX, false)
	require.True(t, ok)
	assert.Equal(t, IntentClearPrompt, in.Kind)
	assert.True(t, c.ConfirmingClear())

	_, ok = c.Key(KeyP, false)
	assert.False(t, ok, "other keys are swallowed while confirming")

	in, _ = c.Key(KeyN, false)
	assert.Equal(t, IntentClearCancel, in.Kind)
	assert.False(t, c.ConfirmingClear())

	c.Key(KeyX, false)
	in, _ = c.Key(KeyEscape, false)
	assert.Equal(t, IntentClearCancel, in.Kind)

	c.Key(KeyX, false)
	in, _ = c.Key(KeyY, false)
	assert.Equal(t, IntentClearConfirm, in.Kind)
}

func TestKeys_Misc(t *testing.T) {
	c := newController()
	cases := []struct {
		key  Key
		ctrl bool
		want Intent
	}{
		{KeyT, false, Intent{Kind: IntentReplay}},
		{Key1, false, Intent{Kind: IntentSelectColor, Index: 0}},
		{Key9, false, Intent{Kind: IntentSelectColor, Index: 8}},
		{Key0, false, Intent{Kind: IntentSelectColor, Index: 9}},
		{KeyV, true, Intent{Kind: IntentPasteColor}},
		{KeyC, true, Intent{Kind: IntentCopyColor}},
		{KeyEscape, false, Intent{Kind: IntentStopReplay}},
	}
	for _, tc := range cases {
		got, ok := c.Key(tc.key, tc.ctrl)
		require.True(t, ok, tc.want.Kind.String())
		assert.Equal(t, tc.want, got)
	}

	_, ok := c.Key(KeyV, false)
	assert.False(t, ok)
}

func TestKeys_PaletteAndRecenter(t *testing.T) {
	c := newController()
	c.Key(KeyP, false)
	assert.True(t, c.PaletteOpen())
	in, _ := c.Key(KeyEscape, false)
	assert.Equal(t, IntentTogglePalette, in.Kind)
	assert.False(t, c.PaletteOpen())

	fit := c.View()
	c.Wheel(geom.Point{X: 10, Y: 10}, 5)
	c.Key(KeyR, false)
	assert.Equal(t, fit, c.View())
}
