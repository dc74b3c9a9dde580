package control

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/canvas"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	subscriberSend = 64
)

// Frame is one websocket event: the broadcast message plus where the event
// came from.
type Frame struct {
	broadcast.Message
	Source canvas.Source `json:"source"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans applied canvas events out to websocket subscribers. Publish never
// blocks: a subscriber that falls behind loses frames.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	log  *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{subs: map[*subscriber]struct{}{}, log: log}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish encodes ev and queues it for every subscriber.
func (h *Hub) Publish(ev canvas.Event) {
	msg := broadcast.Message{Type: ev.Kind}
	if ev.Kind == broadcast.KindPlace {
		msg = broadcast.Place(ev.Placement)
	}
	data, err := json.Marshal(Frame{Message: msg, Source: ev.Source})
	if err != nil {
		h.log.Error("encode event frame", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.send <- data:
		default:
			h.log.Debug("dropping frame for slow subscriber", "remote", sub.conn.RemoteAddr())
		}
	}
}

// ServeHTTP upgrades the request and streams frames until the peer leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, subscriberSend)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.log.Info("event subscriber connected", "remote", conn.RemoteAddr())

	go h.writePump(sub)
	h.readPump(sub)
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
}

// readPump discards inbound messages and detects disconnects.
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.remove(sub)
		_ = sub.conn.Close()
		h.log.Info("event subscriber left", "remote", sub.conn.RemoteAddr())
	}()
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()
	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		h.remove(sub)
	}
}
