package game

import (
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/canvas"
	"github.com/Garsondee/Pixel-Planet/internal/render"
)

const (
	logPanelWidth = 320
	logMaxEntries = 60
	logLineHeight = 14
)

// ActivityEntry is a single line in the activity panel.
type ActivityEntry struct {
	At      time.Time
	Source  canvas.Source
	Color   string // swatch; empty for non-placement lines
	Message string
}

// ActivityLog is a ring buffer of applied events rendered on-screen.
type ActivityLog struct {
	entries []ActivityEntry
	head    int
	count   int
}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{
		entries: make([]ActivityEntry, logMaxEntries),
	}
}

// Add appends an entry, overwriting the oldest once full.
func (al *ActivityLog) Add(e ActivityEntry) {
	al.entries[al.head] = e
	al.head = (al.head + 1) % logMaxEntries
	if al.count < logMaxEntries {
		al.count++
	}
}

// Record turns a canvas event into a log line.
func (al *ActivityLog) Record(ev canvas.Event, now time.Time) {
	e := ActivityEntry{At: now, Source: ev.Source}
	switch ev.Kind {
	case broadcast.KindPlace:
		if ev.Source == canvas.SourceReplay {
			return
		}
		p := ev.Placement
		e.Color = p.Color
		e.Message = fmt.Sprintf("%s %s at %d,%d", p.Label, p.Color, p.X, p.Y)
	case broadcast.KindClear:
		if ev.Source == canvas.SourceReplay {
			e.Message = "replay started"
		} else {
			e.Message = "planet cleared"
		}
	case broadcast.KindSync:
		if ev.Source == canvas.SourceReplay {
			e.Message = "replay finished"
		} else {
			e.Message = "resynced from store"
		}
	default:
		return
	}
	al.Add(e)
}

// Len returns the number of stored entries.
func (al *ActivityLog) Len() int {
	return al.count
}

// Recent returns entries in chronological order (oldest first).
func (al *ActivityLog) Recent() []ActivityEntry {
	result := make([]ActivityEntry, al.count)
	for i := 0; i < al.count; i++ {
		idx := (al.head - al.count + i + logMaxEntries) % logMaxEntries
		result[i] = al.entries[idx]
	}
	return result
}

// Visible returns the newest entries that fit a panel of the given height,
// oldest first.
func (al *ActivityLog) Visible(panelH int) []ActivityEntry {
	maxVisible := max((panelH-24)/logLineHeight, 0)
	if maxVisible == 0 {
		return nil
	}
	entries := al.Recent()
	if len(entries) > maxVisible {
		entries = entries[len(entries)-maxVisible:]
	}
	return entries
}

func sourceTag(s canvas.Source) string {
	switch s {
	case canvas.SourceLocal:
		return "you"
	case canvas.SourceRemote:
		return "net"
	case canvas.SourceReplay:
		return "rpl"
	}
	return "   "
}

// Draw renders the panel on the right side of the screen, newest at the
// bottom.
func (al *ActivityLog) Draw(screen *ebiten.Image, panelX int, panelH int) {
	vector.FillRect(screen, float32(panelX), 0, float32(logPanelWidth), float32(panelH), color.RGBA{R: 8, G: 10, B: 18, A: 248}, false)
	vector.StrokeLine(screen, float32(panelX), 0, float32(panelX), float32(panelH), 1.0, color.RGBA{R: 50, G: 60, B: 90, A: 255}, false)

	vector.FillRect(screen, float32(panelX), 0, float32(logPanelWidth), 16, color.RGBA{R: 18, G: 22, B: 38, A: 255}, false)
	ebitenutil.DebugPrintAt(screen, "ACTIVITY", panelX+8, 0)
	vector.StrokeLine(screen, float32(panelX), 16, float32(panelX+logPanelWidth), 16, 1.0, color.RGBA{R: 50, G: 60, B: 100, A: 200}, false)

	visible := al.Visible(panelH)
	if len(visible) == 0 {
		return
	}
	const recent = 3

	y := 20
	for i, e := range visible {
		if i >= len(visible)-recent {
			vector.FillRect(screen, float32(panelX+2), float32(y), float32(logPanelWidth-4), float32(logLineHeight), color.RGBA{R: 26, G: 32, B: 52, A: 160}, false)
		}
		if e.Color != "" {
			vector.FillRect(screen, float32(panelX+5), float32(y+4), 6, 6, render.ParseColor(e.Color), false)
		}
		line := fmt.Sprintf("%s [%s] %s", e.At.Format("15:04:05"), sourceTag(e.Source), e.Message)
		ebitenutil.DebugPrintAt(screen, line, panelX+14, y-1)
		y += logLineHeight
	}
}
