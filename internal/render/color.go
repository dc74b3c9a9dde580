package render

import (
	"image/color"

	"github.com/gogpu/gg"
)

// FillerColor paints on-planet cells nobody has placed yet.
var FillerColor = color.RGBA{R: 0x1c, G: 0x2a, B: 0x3a, A: 0xb0}

var black = color.RGBA{A: 0xff}

// ParseColor converts a cell colour string to premultiplied RGBA. It accepts
// #rgb, #rgba, #rrggbb and #rrggbbaa; anything else is black.
func ParseColor(s string) color.RGBA {
	if !isHexColor(s) {
		return black
	}
	c := gg.Hex(s)
	return color.RGBAModel.Convert(c.Color()).(color.RGBA)
}

func isHexColor(s string) bool {
	if len(s) < 2 || s[0] != '#' {
		return false
	}
	digits := s[1:]
	switch len(digits) {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// colorCache memoizes ParseColor per string.
type colorCache map[string]color.RGBA

func (cc colorCache) get(s string) color.RGBA {
	if c, ok := cc[s]; ok {
		return c
	}
	c := ParseColor(s)
	if len(cc) > 4096 {
		clear(cc)
	}
	cc[s] = c
	return c
}
