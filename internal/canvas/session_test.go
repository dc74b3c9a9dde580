package canvas

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/config"
	"github.com/Garsondee/Pixel-Planet/internal/geom"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/input"
	"github.com/Garsondee/Pixel-Planet/internal/store"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.Default()
	st := store.NewMemoryStore()
	ch := broadcast.NewChannel("a", broadcast.NewHub().Transport(), st)
	ctrl := input.New(cfg)
	ctrl.SetScreen(geom.Size{W: 800, H: 800})
	return &Session{Canvas: New(cfg, st, ch), Input: ctrl}
}

func TestSession_PlaceAtUsesView(t *testing.T) {
	s := newSession(t)
	p, err := s.PlaceAt(geom.Point{X: 400, Y: 400}, "#ffffff")
	require.NoError(t, err)
	assert.Equal(t, 80, p.X)
	assert.Equal(t, 80, p.Y)

	s.Input.SetView(geom.View{PanX: 1000, Zoom: 1})
	_, err = s.PlaceAt(geom.Point{X: 400, Y: 400}, "#ffffff")
	assert.ErrorIs(t, err, ErrOffPlanet)
}

func TestMailbox_DoRunsOnDrain(t *testing.T) {
	s := newSession(t)
	mb := NewMailbox()

	errc := make(chan error, 1)
	var cells int
	go func() {
		errc <- mb.Do(context.Background(), func(s *Session) {
			_, _ = s.PlaceAt(geom.Point{X: 400, Y: 400}, "#e50000")
			cells = s.Model().Len()
		})
	}()

	require.Eventually(t, func() bool { return len(mb.ch) == 1 }, time.Second, time.Millisecond)
	mb.Drain(s)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, cells)
}

func TestMailbox_DoAfterClose(t *testing.T) {
	mb := NewMailbox()
	mb.Close()
	mb.Close()
	err := mb.Do(context.Background(), func(*Session) {})
	assert.ErrorIs(t, err, ErrMailboxClosed)
}

func TestMailbox_DoHonoursContext(t *testing.T) {
	mb := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := mb.Do(ctx, func(*Session) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMailbox_CancelledRequestNeverRuns(t *testing.T) {
	s := newSession(t)
	mb := NewMailbox()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	ran := false
	go func() {
		errc <- mb.Do(ctx, func(s *Session) {
			ran = true
			_, _ = s.Place(grid.Cell{X: 80, Y: 80}, "#ffffff")
		})
	}()
	require.Eventually(t, func() bool { return len(mb.ch) == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	mb.Drain(s)
	assert.False(t, ran)
	assert.Zero(t, s.Model().Len())
}

func TestMailbox_StartedRequestCompletesDespiteCancel(t *testing.T) {
	s := newSession(t)
	mb := NewMailbox()
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- mb.Do(ctx, func(*Session) {
			close(started)
			<-release
		})
	}()
	require.Eventually(t, func() bool { return len(mb.ch) == 1 }, time.Second, time.Millisecond)

	drained := make(chan struct{})
	go func() {
		mb.Drain(s)
		close(drained)
	}()
	<-started
	cancel()
	close(release)
	<-drained
	assert.NoError(t, <-errc, "a request that ran reports success")
}

func TestRunHeadless_ServesRequests(t *testing.T) {
	s := newSession(t)
	mb := NewMailbox()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunHeadless(ctx, s, mb, 5*time.Millisecond) }()

	var st State
	require.NoError(t, mb.Do(context.Background(), func(s *Session) {
		_, err := s.Place(grid.Cell{X: 80, Y: 80}, "#ffffff")
		assert.NoError(t, err)
		st = s.State(5)
	}))
	assert.Equal(t, 1, st.Cells)

	cancel()
	require.NoError(t, <-done)
	assert.ErrorIs(t, mb.Do(context.Background(), func(*Session) {}), ErrMailboxClosed)
}
