// Package control serves a small localhost HTTP API for scripting and
// observing a running context: state, placement, clear, metrics and a
// websocket feed of applied events.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/canvas"
	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/metrics"
)

const (
	requestTimeout = 10 * time.Second
	recentHistory  = 50
)

// Owner runs fn on the goroutine that owns the canvas.
type Owner interface {
	Do(ctx context.Context, fn func(*canvas.Session)) error
}

type Server struct {
	owner   Owner
	hub     *Hub
	metrics *metrics.Metrics
	log     *slog.Logger
	router  chi.Router
}

func New(owner Owner, m *metrics.Metrics, log *slog.Logger) *Server {
	s := &Server{
		owner:   owner,
		hub:     NewHub(log),
		metrics: m,
		log:     log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/state", s.handleState)
		r.Post("/place", s.handlePlace)
		r.Post("/clear", s.handleClear)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	})
	// Long-lived; no timeout.
	r.Method(http.MethodGet, "/events", s.hub)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Publish forwards an applied canvas event to websocket subscribers. It is
// registered with Canvas.OnEvent and runs on the owner goroutine.
func (s *Server) Publish(ev canvas.Event) {
	s.hub.Publish(ev)
}

// Hub exposes the websocket fan-out.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("control API listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("control API: %w", err)
	case <-ctx.Done():
	}
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control API shutdown: %w", err)
	}
	return nil
}

type pixelJSON struct {
	Color     string `json:"color"`
	Timestamp int64  `json:"timestamp"`
	Label     string `json:"label"`
}

type stateResponse struct {
	Label             string                       `json:"label"`
	Transport         string                       `json:"transport"`
	Cells             int                          `json:"cells"`
	HistoryLen        int                          `json:"history_len"`
	CooldownRemaining int                          `json:"cooldown_remaining"`
	Replaying         bool                         `json:"replaying"`
	ReplayDone        int                          `json:"replay_done,omitempty"`
	ReplayTotal       int                          `json:"replay_total,omitempty"`
	Pixels            map[string]pixelJSON         `json:"pixels"`
	Recent            []broadcast.PlacementPayload `json:"recent"`
}

func newStateResponse(st canvas.State) stateResponse {
	resp := stateResponse{
		Label:             st.Label,
		Transport:         st.Transport,
		Cells:             st.Cells,
		HistoryLen:        st.HistoryLen,
		CooldownRemaining: st.CooldownRemaining,
		Replaying:         st.Replaying,
		ReplayDone:        st.ReplayDone,
		ReplayTotal:       st.ReplayTotal,
		Pixels:            make(map[string]pixelJSON, len(st.Snapshot.Cells)),
		Recent:            make([]broadcast.PlacementPayload, 0, len(st.Recent)),
	}
	for c, px := range st.Snapshot.Cells {
		resp.Pixels[c.Key()] = pixelJSON(px)
	}
	for _, p := range st.Recent {
		resp.Recent = append(resp.Recent, broadcast.PlacementPayload(p))
	}
	return resp
}

type placeRequest struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	Color string   `json:"color"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

type errorResponse struct {
	Error             string `json:"error"`
	ErrorDescription  string `json:"error_description,omitempty"`
	RetryAfterSeconds int    `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, errorResponse{Error: code, ErrorDescription: desc})
}

// writeOwnerError maps a failed Do call.
func (s *Server) writeOwnerError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.WarnContext(r.Context(), "owner unavailable",
		"request_id", middleware.GetReqID(r.Context()),
		"err", err,
	)
	writeError(w, http.StatusServiceUnavailable, "unavailable", "canvas loop is not running")
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var st canvas.State
	err := s.owner.Do(r.Context(), func(sess *canvas.Session) {
		st = sess.State(recentHistory)
	})
	if err != nil {
		s.writeOwnerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(st))
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.X == nil || req.Y == nil || req.Color == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "x, y and color are required")
		return
	}

	var (
		placed   grid.Placement
		placeErr error
	)
	err := s.owner.Do(r.Context(), func(sess *canvas.Session) {
		placed, placeErr = sess.PlaceAt(geom.Point{X: *req.X, Y: *req.Y}, req.Color)
	})
	if err != nil {
		s.writeOwnerError(w, r, err)
		return
	}

	var cd *canvas.CooldownError
	switch {
	case placeErr == nil:
		writeJSON(w, http.StatusCreated, broadcast.PlacementPayload(placed))
	case errors.As(placeErr, &cd):
		w.Header().Set("Retry-After", strconv.Itoa(cd.Remaining))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:             "cooling_down",
			ErrorDescription:  placeErr.Error(),
			RetryAfterSeconds: cd.Remaining,
		})
	case errors.Is(placeErr, canvas.ErrOffPlanet):
		writeError(w, http.StatusUnprocessableEntity, "off_planet", placeErr.Error())
	case errors.Is(placeErr, canvas.ErrReplaying):
		writeError(w, http.StatusConflict, "replaying", placeErr.Error())
	case errors.Is(placeErr, canvas.ErrInvalidColor):
		writeError(w, http.StatusBadRequest, "invalid_color", placeErr.Error())
	default:
		s.log.ErrorContext(r.Context(), "place failed", "err", placeErr)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if !req.Confirm {
		writeError(w, http.StatusBadRequest, "confirmation_required", `send {"confirm": true} to clear the planet`)
		return
	}

	var clearErr error
	if err := s.owner.Do(r.Context(), func(sess *canvas.Session) {
		clearErr = sess.Clear()
	}); err != nil {
		s.writeOwnerError(w, r, err)
		return
	}
	if errors.Is(clearErr, canvas.ErrReplaying) {
		writeError(w, http.StatusConflict, "replaying", clearErr.Error())
		return
	}
	s.log.InfoContext(r.Context(), "planet cleared via control API",
		"request_id", middleware.GetReqID(r.Context()),
	)
	w.WriteHeader(http.StatusNoContent)
}
