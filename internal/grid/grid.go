// Package grid holds the authoritative in-memory state of one execution
// context: the placed cells and the bounded placement history.
//
// A Model is owned by a single goroutine. Contexts never share a Model;
// they converge through the broadcast channel instead.
package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell addresses one position of the square lattice.
type Cell struct {
	X int
	Y int
}

// Key returns the "gx,gy" form used by the durable store.
func (c Cell) Key() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

func (c Cell) String() string {
	return "(" + c.Key() + ")"
}

// ParseKey is the inverse of Cell.Key.
func ParseKey(key string) (Cell, error) {
	xs, ys, ok := strings.Cut(key, ",")
	if !ok {
		return Cell{}, fmt.Errorf("cell key %q: missing comma", key)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return Cell{}, fmt.Errorf("cell key %q: %w", key, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return Cell{}, fmt.Errorf("cell key %q: %w", key, err)
	}
	return Cell{X: x, Y: y}, nil
}

// Pixel is the live value of a placed cell.
type Pixel struct {
	Color     string
	Timestamp int64 // unix milliseconds
	Label     string
}

// Placement is one immutable history entry.
type Placement struct {
	X         int
	Y         int
	Color     string
	Timestamp int64
	Label     string
}

// Cell returns the placement's target cell.
func (p Placement) Cell() Cell {
	return Cell{X: p.X, Y: p.Y}
}

// Pixel returns the cell value the placement produces.
func (p Placement) Pixel() Pixel {
	return Pixel{Color: p.Color, Timestamp: p.Timestamp, Label: p.Label}
}

// Snapshot is a full copy of a model, detached from it.
type Snapshot struct {
	Cells   map[Cell]Pixel
	History []Placement
}

// Model maps cells to their last written value and keeps the placement log.
type Model struct {
	size    int
	cells   map[Cell]Pixel
	history *History
}

// New creates an empty model for a size×size grid retaining at most
// historyCap placements.
func New(size, historyCap int) *Model {
	return &Model{
		size:    size,
		cells:   make(map[Cell]Pixel),
		history: NewHistory(historyCap),
	}
}

// Size returns the grid side length.
func (m *Model) Size() int {
	return m.size
}

// HistoryCap returns the configured history bound.
func (m *Model) HistoryCap() int {
	return m.history.Cap()
}

// Set overwrites a cell and records the placement. Callers have already
// checked bounds and mask membership.
func (m *Model) Set(c Cell, color string, ts int64, label string) Placement {
	p := Placement{X: c.X, Y: c.Y, Color: color, Timestamp: ts, Label: label}
	m.cells[c] = p.Pixel()
	m.history.Add(p)
	return p
}

// Clear empties cells and history together.
func (m *Model) Clear() {
	m.cells = make(map[Cell]Pixel)
	m.history.Reset()
}

// Get returns the value of a cell, if placed.
func (m *Model) Get(c Cell) (Pixel, bool) {
	px, ok := m.cells[c]
	return px, ok
}

// Len returns the number of distinct placed cells.
func (m *Model) Len() int {
	return len(m.cells)
}

// Each calls fn for every placed cell in no particular order.
func (m *Model) Each(fn func(Cell, Pixel)) {
	for c, px := range m.cells {
		fn(c, px)
	}
}

// HistoryLen returns the number of retained placements.
func (m *Model) HistoryLen() int {
	return m.history.Len()
}

// Recent returns up to n of the newest placements, oldest first.
func (m *Model) Recent(n int) []Placement {
	return m.history.Recent(n)
}

// Snapshot returns a deep copy of the model.
func (m *Model) Snapshot() Snapshot {
	cells := make(map[Cell]Pixel, len(m.cells))
	for c, px := range m.cells {
		cells[c] = px
	}
	return Snapshot{Cells: cells, History: m.history.All()}
}

// Restore replaces the whole model. History beyond the cap keeps only the
// most recent entries.
func (m *Model) Restore(cells map[Cell]Pixel, history []Placement) {
	next := make(map[Cell]Pixel, len(cells))
	for c, px := range cells {
		next[c] = px
	}
	m.cells = next
	m.history.Reset()
	if over := len(history) - m.history.Cap(); over > 0 {
		history = history[over:]
	}
	for _, p := range history {
		m.history.Add(p)
	}
}

// RestoreSnapshot is Restore for a Snapshot value.
func (m *Model) RestoreSnapshot(s Snapshot) {
	m.Restore(s.Cells, s.History)
}
