package control

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/canvas"
	"github.com/Garsondee/Pixel-Planet/internal/config"
	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/input"
	"github.com/Garsondee/Pixel-Planet/internal/metrics"
	"github.com/Garsondee/Pixel-Planet/internal/store"
)

// ServerSuite runs a real canvas behind a headless owner loop and drives it
// through the router.
type ServerSuite struct {
	suite.Suite
	server  *Server
	mailbox *canvas.Mailbox
	metrics *metrics.Metrics
	cancel  context.CancelFunc
	done    chan error
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	cfg := config.Default()
	cfg.ReplayDelay = time.Hour // a started replay stays running for the test
	st := store.NewMemoryStore()
	log := slog.New(slog.DiscardHandler)
	s.metrics = metrics.New()

	ch := broadcast.NewChannel("ada", broadcast.NewHub().Transport(), st)
	c := canvas.New(cfg, st, ch, canvas.WithMetrics(s.metrics))
	s.Require().NoError(c.Load(context.Background()))
	ctrl := input.New(cfg)
	ctrl.SetScreen(geom.Size{W: 800, H: 800})
	sess := &canvas.Session{Canvas: c, Input: ctrl}

	s.mailbox = canvas.NewMailbox()
	s.server = New(s.mailbox, s.metrics, log)
	sess.OnEvent(s.server.Publish)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- canvas.RunHeadless(ctx, sess, s.mailbox, 5*time.Millisecond) }()
}

func (s *ServerSuite) TearDownTest() {
	s.cancel()
	<-s.done
}

func (s *ServerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) state() stateResponse {
	rec := s.do(http.MethodGet, "/state", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var st stateResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&st))
	return st
}

func (s *ServerSuite) TestState_Empty() {
	st := s.state()
	s.Equal(0, st.Cells)
	s.Equal("hub", st.Transport)
	s.Equal("anon", st.Label)
	s.False(st.Replaying)
	s.Empty(st.Pixels)
}

func (s *ServerSuite) TestPlace_CreatedAndVisibleInState() {
	rec := s.do(http.MethodPost, "/place", `{"x": 400, "y": 400, "color": "#e50000"}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var p broadcast.PlacementPayload
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&p))
	s.Equal(80, p.X)
	s.Equal(80, p.Y)
	s.Equal("#e50000", p.Color)

	st := s.state()
	s.Equal(1, st.Cells)
	s.Equal("#e50000", st.Pixels["80,80"].Color)
	s.Require().Len(st.Recent, 1)
	s.Positive(st.CooldownRemaining)
}

func (s *ServerSuite) TestPlace_CooldownReturnsRetryAfter() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/place", `{"x": 400, "y": 400, "color": "#ffffff"}`).Code)

	rec := s.do(http.MethodPost, "/place", `{"x": 404, "y": 400, "color": "#ffffff"}`)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("5", rec.Header().Get("Retry-After"))

	var body errorResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal("cooling_down", body.Error)
	s.Equal(5, body.RetryAfterSeconds)
}

func (s *ServerSuite) TestPlace_Rejections() {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"off planet", `{"x": 1, "y": 1, "color": "#ffffff"}`, http.StatusUnprocessableEntity},
		{"not json", `place it`, http.StatusBadRequest},
		{"missing color", `{"x": 400, "y": 400}`, http.StatusBadRequest},
		{"missing y", `{"x": 400, "color": "#ffffff"}`, http.StatusBadRequest},
		{"invalid color", `{"x": 400, "y": 400, "color": "<b>"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := s.do(http.MethodPost, "/place", tc.body)
		s.Equal(tc.want, rec.Code, tc.name)
	}
	s.Equal(0, s.state().Cells, "rejections never change state")
}

func (s *ServerSuite) TestPlace_ConflictDuringReplay() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/place", `{"x": 400, "y": 400, "color": "#ffffff"}`).Code)
	s.Require().NoError(s.mailbox.Do(context.Background(), func(sess *canvas.Session) {
		s.NoError(sess.StartReplay())
	}))

	rec := s.do(http.MethodPost, "/place", `{"x": 420, "y": 400, "color": "#ffffff"}`)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal(http.StatusConflict, s.do(http.MethodPost, "/clear", `{"confirm": true}`).Code)
}

func (s *ServerSuite) TestClear_RequiresConfirmation() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/place", `{"x": 400, "y": 400, "color": "#ffffff"}`).Code)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/clear", `{}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/clear", `yes`).Code)
	s.Equal(1, s.state().Cells)

	s.Equal(http.StatusNoContent, s.do(http.MethodPost, "/clear", `{"confirm": true}`).Code)
	s.Equal(0, s.state().Cells)
}

func (s *ServerSuite) TestMetrics_ExposesCounters() {
	s.Require().Equal(http.StatusCreated, s.do(http.MethodPost, "/place", `{"x": 400, "y": 400, "color": "#ffffff"}`).Code)
	s.do(http.MethodPost, "/place", `{"x": 1, "y": 1, "color": "#ffffff"}`)

	rec := s.do(http.MethodGet, "/metrics", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, `planet_placements_total{origin="local"} 1`)
	s.Contains(body, `planet_placements_rejected_total{reason="off_planet"} 1`)
	s.Contains(body, "planet_cells 1")
}

func (s *ServerSuite) TestOwnerStopped_Unavailable() {
	s.cancel()
	s.Require().NoError(<-s.done)
	s.done <- nil // TearDownTest waits again

	rec := s.do(http.MethodGet, "/state", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *ServerSuite) TestEvents_StreamsAppliedPlacements() {
	srv := httptest.NewServer(s.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer resp.Body.Close()
	defer conn.Close()
	s.Require().Eventually(func() bool { return s.server.Hub().Len() == 1 }, time.Second, 5*time.Millisecond)

	res, err := http.Post(srv.URL+"/place", "application/json", bytes.NewBufferString(`{"x": 400, "y": 400, "color": "#0083c7"}`))
	s.Require().NoError(err)
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
	s.Require().Equal(http.StatusCreated, res.StatusCode)

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, data, err := conn.ReadMessage()
	s.Require().NoError(err)

	var frame Frame
	s.Require().NoError(json.Unmarshal(data, &frame))
	s.Equal(broadcast.KindPlace, frame.Type)
	s.Equal(canvas.SourceLocal, frame.Source)
	s.Require().NotNil(frame.Payload)
	s.Equal(80, frame.Payload.X)
	s.Equal("#0083c7", frame.Payload.Color)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	h := NewHub(slog.New(slog.DiscardHandler))
	assert.NotPanics(t, func() {
		h.Publish(canvas.Event{Kind: broadcast.KindClear, Source: canvas.SourceRemote})
	})
	require.Zero(t, h.Len())
	h.Close()
}
