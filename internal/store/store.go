// Package store persists planet snapshots to durable local storage shared by
// every execution context on the device.
//
// Schema (one bucket, four keys):
//
//	pixels  -> {"gx,gy": {"color", "timestamp", "label"}, ...}
//	history -> [{"gx", "gy", "color", "timestamp", "label"}, ...]
//	label   -> display label string
//	signal  -> recent fallback broadcast envelopes, oldest first (see Signal)
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Garsondee/Pixel-Planet/internal/grid"
)

// Key names inside the planet bucket.
const (
	KeyPixels  = "pixels"
	KeyHistory = "history"
	KeyLabel   = "label"
	KeySignal  = "signal"
)

// ErrNoSignal is returned by ReadSignals before any signal was written.
var ErrNoSignal = errors.New("store: no signal written")

// SignalLogSize bounds how many envelopes the signal key retains.
const SignalLogSize = 64

// Signal is the fallback transport's envelope. Seq increases on every write
// so readers can detect changes even when the payload repeats.
type Signal struct {
	Seq     uint64          `json:"seq"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Store is the durable key-value store behind a planet.
type Store interface {
	LoadSnapshot(ctx context.Context) (grid.Snapshot, error)
	SaveSnapshot(ctx context.Context, s grid.Snapshot) error
	LoadLabel(ctx context.Context) (string, error)
	SaveLabel(ctx context.Context, label string) error
	// WriteSignal appends payload to the signal log, evicting the oldest
	// envelope beyond SignalLogSize, and returns the new sequence number.
	WriteSignal(ctx context.Context, origin string, payload []byte) (uint64, error)
	// ReadSignals returns the retained envelopes in sequence order.
	ReadSignals(ctx context.Context) ([]Signal, error)
	Close() error
}

type pixelJSON struct {
	Color     string `json:"color"`
	Timestamp int64  `json:"timestamp"`
	Label     string `json:"label"`
}

type placementJSON struct {
	X         int    `json:"gx"`
	Y         int    `json:"gy"`
	Color     string `json:"color"`
	Timestamp int64  `json:"timestamp"`
	Label     string `json:"label"`
}

// EncodeSnapshot serializes a snapshot into the pixels and history values.
func EncodeSnapshot(s grid.Snapshot) (pixels, history []byte, err error) {
	doc := make(map[string]pixelJSON, len(s.Cells))
	for c, px := range s.Cells {
		doc[c.Key()] = pixelJSON{Color: px.Color, Timestamp: px.Timestamp, Label: px.Label}
	}
	pixels, err = json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("encode pixels: %w", err)
	}
	hist := make([]placementJSON, len(s.History))
	for i, p := range s.History {
		hist[i] = placementJSON(p)
	}
	history, err = json.Marshal(hist)
	if err != nil {
		return nil, nil, fmt.Errorf("encode history: %w", err)
	}
	return pixels, history, nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot. Missing values decode to
// an empty snapshot; entries with unparseable keys are skipped.
func DecodeSnapshot(pixels, history []byte) (grid.Snapshot, error) {
	s := grid.Snapshot{Cells: map[grid.Cell]grid.Pixel{}, History: []grid.Placement{}}
	if len(pixels) > 0 {
		var doc map[string]pixelJSON
		if err := json.Unmarshal(pixels, &doc); err != nil {
			return grid.Snapshot{}, fmt.Errorf("decode pixels: %w", err)
		}
		for key, px := range doc {
			c, err := grid.ParseKey(key)
			if err != nil {
				continue
			}
			s.Cells[c] = grid.Pixel(px)
		}
	}
	if len(history) > 0 {
		var hist []placementJSON
		if err := json.Unmarshal(history, &hist); err != nil {
			return grid.Snapshot{}, fmt.Errorf("decode history: %w", err)
		}
		for _, p := range hist {
			s.History = append(s.History, grid.Placement(p))
		}
	}
	return s, nil
}
