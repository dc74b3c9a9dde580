// Package broadcast propagates planet mutations between execution contexts.
//
// A Channel persists the full snapshot to the durable store and then
// publishes a small event over a Transport, in that order. Receivers apply
// place and clear events directly and resolve sync events by reloading the
// store. Delivery is best effort: at most once per receiver, ordered per
// sender, no replay for contexts that were not listening.
package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Garsondee/Pixel-Planet/internal/grid"
)

// Kind names the three event types.
type Kind string

const (
	KindPlace Kind = "place"
	KindClear Kind = "clear"
	KindSync  Kind = "sync"
)

// ErrMalformed marks an inbound payload that does not decode to a valid
// message. Such payloads are dropped.
var ErrMalformed = errors.New("broadcast: malformed message")

// PlacementPayload is the wire form of a grid.Placement.
type PlacementPayload struct {
	X         int    `json:"gx"`
	Y         int    `json:"gy"`
	Color     string `json:"color"`
	Timestamp int64  `json:"timestamp"`
	Label     string `json:"label"`
}

// Message is one broadcast event.
type Message struct {
	Type    Kind              `json:"type"`
	Origin  string            `json:"origin,omitempty"`
	Payload *PlacementPayload `json:"payload,omitempty"`
	Stamp   int64             `json:"stamp,omitempty"`

	// Snapshot carries the store contents for an inbound sync. Local only.
	Snapshot *grid.Snapshot `json:"-"`
}

// Place builds a place event.
func Place(p grid.Placement) Message {
	payload := PlacementPayload(p)
	return Message{Type: KindPlace, Payload: &payload}
}

// Clear builds a clear event.
func Clear() Message {
	return Message{Type: KindClear}
}

// Sync builds a sync hint stamped with the sender's clock in unix ms.
func Sync(stamp int64) Message {
	return Message{Type: KindSync, Stamp: stamp}
}

// Placement returns the carried placement. Only meaningful for KindPlace.
func (m Message) Placement() grid.Placement {
	if m.Payload == nil {
		return grid.Placement{}
	}
	return grid.Placement(*m.Payload)
}

// Encode serializes m for a transport.
func Encode(m Message) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Type, err)
	}
	return raw, nil
}

// Decode parses and validates an inbound payload. Labels are re-sanitized
// since they come from another context.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch m.Type {
	case KindPlace:
		if m.Payload == nil {
			return Message{}, fmt.Errorf("%w: place without payload", ErrMalformed)
		}
		if m.Payload.X < 0 || m.Payload.Y < 0 {
			return Message{}, fmt.Errorf("%w: negative cell %d,%d", ErrMalformed, m.Payload.X, m.Payload.Y)
		}
		if !grid.ValidColor(m.Payload.Color) {
			return Message{}, fmt.Errorf("%w: bad color %q", ErrMalformed, m.Payload.Color)
		}
		m.Payload.Label = grid.SanitizeLabel(m.Payload.Label)
	case KindClear:
		m.Payload = nil
	case KindSync:
		m.Payload = nil
	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
	return m, nil
}
