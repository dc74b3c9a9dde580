package grid

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxLabelRunes bounds display labels.
	MaxLabelRunes = 24
	// MaxColorBytes bounds free-form colour strings.
	MaxColorBytes = 32
	// AnonymousLabel is used when a label sanitizes to nothing.
	AnonymousLabel = "anon"
)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// SanitizeLabel strips markup and control characters and bounds the length.
func SanitizeLabel(s string) string {
	s = markupTag.ReplaceAllString(s, "")
	var sb strings.Builder
	n := 0
	for _, r := range s {
		if n >= MaxLabelRunes {
			break
		}
		if unicode.IsControl(r) || strings.ContainsRune(`<>&"'`, r) {
			continue
		}
		sb.WriteRune(r)
		n++
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return AnonymousLabel
	}
	return out
}

// Palette is the fixed set of swatches offered by the UI.
var Palette = []string{
	"#ffffff", "#e4e4e4", "#888888", "#222222",
	"#ffa7d1", "#e50000", "#e59500", "#a06a42",
	"#e5d900", "#94e044", "#02be01", "#00d3dd",
	"#0083c7", "#0000ea", "#cf6ee4", "#820080",
}

// ValidColor reports whether s is acceptable as a cell colour. Any short,
// printable, markup-free string is accepted; rendering decides how to draw it.
func ValidColor(s string) bool {
	if s == "" || len(s) > MaxColorBytes || !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) || strings.ContainsRune(`<>&"'`, r) {
			return false
		}
	}
	return true
}
