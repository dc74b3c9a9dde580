package canvas

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Garsondee/Pixel-Planet/internal/broadcast"
	"github.com/Garsondee/Pixel-Planet/internal/config"
	"github.com/Garsondee/Pixel-Planet/internal/grid"
	"github.com/Garsondee/Pixel-Planet/internal/metrics"
	"github.com/Garsondee/Pixel-Planet/internal/store"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

type CanvasSuite struct {
	suite.Suite

	ctx    context.Context
	cancel context.CancelFunc
	store  *store.MemoryStore
	hub    *broadcast.Hub
	cfg    config.Config

	a, b      *Canvas
	chA, chB  *broadcast.Channel
	clockA    *fakeClock
	clockB    *fakeClock
	metricsA  *metrics.Metrics
	eventsOnB []Event
}

func TestCanvasSuite(t *testing.T) {
	suite.Run(t, new(CanvasSuite))
}

func (s *CanvasSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.store = store.NewMemoryStore()
	s.hub = broadcast.NewHub()
	s.cfg = config.Default()
	s.cfg.StorePath = "unused"
	s.cfg.Label = "ada"

	s.clockA = &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s.clockB = &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s.metricsA = metrics.New()

	s.chA = broadcast.NewChannel("a", s.hub.Transport(), s.store)
	s.chB = broadcast.NewChannel("b", s.hub.Transport(), s.store)
	s.Require().NoError(s.chA.Start(s.ctx))
	s.Require().NoError(s.chB.Start(s.ctx))

	s.a = New(s.cfg, s.store, s.chA, WithClock(s.clockA.Now), WithMetrics(s.metricsA))
	cfgB := s.cfg
	cfgB.Label = "bob"
	s.b = New(cfgB, s.store, s.chB, WithClock(s.clockB.Now))
	s.eventsOnB = nil
	s.b.OnEvent(func(e Event) { s.eventsOnB = append(s.eventsOnB, e) })

	s.Require().NoError(s.a.Load(s.ctx))
	s.Require().NoError(s.b.Load(s.ctx))
}

func (s *CanvasSuite) TearDownTest() {
	s.cancel()
}

// deliver flushes a's outbox and pumps b.
func (s *CanvasSuite) deliver() {
	s.chA.Flush()
	s.b.Pump()
}

func (s *CanvasSuite) TestPlacementConvergesWithoutRebroadcast() {
	cell := grid.Cell{X: 80, Y: 10}
	p, err := s.a.Place(cell, "#ffffff")
	s.Require().NoError(err)
	s.Equal("ada", p.Label)

	s.deliver()
	px, ok := s.b.Model().Get(cell)
	s.Require().True(ok, "second context must converge")
	s.Equal("#ffffff", px.Color)
	s.Equal("ada", px.Label)
	s.Equal(1, s.b.Model().HistoryLen())

	// b must not echo the remote placement back.
	s.chB.Flush()
	s.a.Pump()
	s.Equal(1, s.a.Model().HistoryLen())

	s.Require().Len(s.eventsOnB, 1)
	s.Equal(SourceRemote, s.eventsOnB[0].Source)
}

func (s *CanvasSuite) TestOffPlanetRejectedWithoutStateChange() {
	before := s.a.Model().Snapshot()
	_, err := s.a.Place(grid.Cell{X: 0, Y: 0}, "#ffffff")
	s.ErrorIs(err, ErrOffPlanet)
	s.Equal(before, s.a.Model().Snapshot())
	s.Zero(s.a.Cooldown(), "rejection must not start the cooldown")

	_, err = s.a.Place(grid.Cell{X: 160, Y: 80}, "#ffffff")
	s.ErrorIs(err, ErrOffPlanet)

	s.deliver()
	s.Zero(s.b.Model().Len())
	s.Equal(2.0, testutil.ToFloat64(s.metricsA.Rejections.WithLabelValues("off_planet")))
}

func (s *CanvasSuite) TestCooldownDeniesWithDecreasingRemaining() {
	_, err := s.a.Place(grid.Cell{X: 80, Y: 10}, "#ffffff")
	s.Require().NoError(err)

	prev := 6
	for i := 0; i < 5; i++ {
		_, err := s.a.Place(grid.Cell{X: 81, Y: 10}, "#e50000")
		var cd *CooldownError
		s.Require().ErrorAs(err, &cd)
		s.ErrorIs(err, ErrCoolingDown)
		s.Less(cd.Remaining, prev)
		prev = cd.Remaining
		s.clockA.Advance(time.Second)
	}

	_, err = s.a.Place(grid.Cell{X: 81, Y: 10}, "#e50000")
	s.NoError(err, "cooldown expiry admits")
	s.Equal(2, s.a.Model().Len())
}

func (s *CanvasSuite) TestRemotePlacementIgnoresLocalCooldown() {
	_, err := s.b.Place(grid.Cell{X: 80, Y: 20}, "#00ff00")
	s.Require().NoError(err)
	s.Positive(s.b.Cooldown())

	_, err = s.a.Place(grid.Cell{X: 80, Y: 10}, "#ffffff")
	s.Require().NoError(err)
	s.deliver()
	s.Equal(2, s.b.Model().Len())
}

func (s *CanvasSuite) TestClearPropagates() {
	_, err := s.a.Place(grid.Cell{X: 80, Y: 10}, "#ffffff")
	s.Require().NoError(err)
	s.deliver()
	s.Require().Equal(1, s.b.Model().Len())

	s.Require().NoError(s.a.Clear())
	s.deliver()
	s.Zero(s.b.Model().Len())
	s.Zero(s.b.Model().HistoryLen())

	snap, err := s.store.LoadSnapshot(s.ctx)
	s.Require().NoError(err)
	s.Empty(snap.Cells)
}

func (s *CanvasSuite) TestPersistFailureKeepsMemoryState() {
	s.store.FailWrites(errors.New("quota exceeded"))
	_, err := s.a.Place(grid.Cell{X: 80, Y: 10}, "#ffffff")
	s.Require().NoError(err)
	s.chA.Flush()
	s.Equal(1, s.a.Model().Len(), "memory state must survive a failed write")

	s.store.FailWrites(nil)
	s.clockA.Advance(10 * time.Second)
	_, err = s.a.Place(grid.Cell{X: 81, Y: 10}, "#e50000")
	s.Require().NoError(err)
	s.chA.Flush()

	snap, err := s.store.LoadSnapshot(s.ctx)
	s.Require().NoError(err)
	s.Len(snap.Cells, 2, "next mutation persists the full snapshot")
}

func (s *CanvasSuite) TestReloadRestoresPersistedState() {
	_, err := s.a.Place(grid.Cell{X: 80, Y: 10}, "#ffffff")
	s.Require().NoError(err)
	s.chA.Flush()

	fresh := New(s.cfg, s.store, s.chB)
	s.Require().NoError(fresh.Load(s.ctx))
	s.Equal(s.a.Model().Snapshot(), fresh.Model().Snapshot())
}

func (s *CanvasSuite) TestReplayDefersRemoteAndDeniesLocal() {
	for i := 0; i < 3; i++ {
		_, err := s.b.Place(grid.Cell{X: 70 + i, Y: 80}, "#0000ea")
		s.Require().NoError(err)
		s.clockB.Advance(10 * time.Second)
	}
	before := s.b.Model().Snapshot()

	s.Require().NoError(s.b.StartReplay())
	s.True(s.b.Replaying())
	s.Zero(s.b.Model().Len(), "replay starts from an empty grid")
	s.ErrorIs(s.b.StartReplay(), ErrReplaying)

	_, err := s.b.Place(grid.Cell{X: 80, Y: 80}, "#ffffff")
	s.ErrorIs(err, ErrReplaying)
	s.ErrorIs(s.b.Clear(), ErrReplaying)

	// A remote placement arriving mid-replay is held back.
	_, err = s.a.Place(grid.Cell{X: 90, Y: 80}, "#e50000")
	s.Require().NoError(err)
	s.deliver()
	_, shown := s.b.Model().Get(grid.Cell{X: 90, Y: 80})
	s.False(shown)
	s.Equal(1, s.b.Model().Len(), "first record is due immediately")

	s.clockB.Advance(s.cfg.ReplayDelay)
	s.b.Pump()
	s.Equal(2, s.b.Model().Len())
	done, total := s.b.replay.Progress()
	s.Equal(2, done)
	s.Equal(3, total)

	s.clockB.Advance(2 * s.cfg.ReplayDelay)
	s.b.Pump()
	s.False(s.b.Replaying())

	px, ok := s.b.Model().Get(grid.Cell{X: 90, Y: 80})
	s.Require().True(ok, "deferred remote event applied after replay")
	s.Equal("#e50000", px.Color)
	for c, want := range before.Cells {
		got, ok := s.b.Model().Get(c)
		s.True(ok)
		s.Equal(want, got)
	}

	// The replay end broadcasts a sync that a reloads from the store.
	s.chB.Flush()
	s.a.Pump()
	s.Equal(4, s.a.Model().Len())
}

func (s *CanvasSuite) TestStartReplayEmptyHistory() {
	s.ErrorIs(s.a.StartReplay(), ErrNothingToReplay)
}

func (s *CanvasSuite) TestState() {
	_, err := s.a.Place(grid.Cell{X: 80, Y: 10}, "#ffffff")
	s.Require().NoError(err)

	st := s.a.State(10)
	s.Equal("ada", st.Label)
	s.Equal("hub", st.Transport)
	s.Equal(1, st.Cells)
	s.Equal(5, st.CooldownRemaining)
	s.False(st.Replaying)
	s.Require().Len(st.Recent, 1)
	s.Equal(80, st.Recent[0].X)
}

func TestLoad_DropsOffPlanetCells(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := store.NewMemoryStore()
	require.NoError(t, st.SaveSnapshot(ctx, grid.Snapshot{Cells: map[grid.Cell]grid.Pixel{
		{X: 0, Y: 0}:   {Color: "#ffffff"},
		{X: 80, Y: 80}: {Color: "#ffffff"},
	}}))

	cfg := config.Default()
	ch := broadcast.NewChannel("a", broadcast.NewHub().Transport(), st)
	c := New(cfg, st, ch)
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 1, c.Model().Len())
	assert.Equal(t, grid.AnonymousLabel, c.Label())
}

func TestSetLabel_PersistsSanitized(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ch := broadcast.NewChannel("a", broadcast.NewHub().Transport(), st)
	c := New(config.Default(), st, ch)
	require.NoError(t, c.SetLabel(ctx, "<i>zed</i>"))
	assert.Equal(t, "zed", c.Label())

	again := New(config.Default(), st, ch)
	require.NoError(t, again.Load(ctx))
	assert.Equal(t, "zed", again.Label())
}

func TestSignalFallback_ConcurrentPlacementsConverge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := store.NewMemoryStore()
	cfg := config.Default()
	const interval = 50 * time.Millisecond

	chA := broadcast.NewChannel("a", broadcast.NewSignalTransport(st, "a", interval, nil), st)
	chB := broadcast.NewChannel("b", broadcast.NewSignalTransport(st, "b", interval, nil), st)
	require.NoError(t, chA.Start(ctx))
	require.NoError(t, chB.Start(ctx))
	a := New(cfg, st, chA)
	b := New(cfg, st, chB)
	require.NoError(t, a.Load(ctx))
	require.NoError(t, b.Load(ctx))

	// Both place inside one poll interval.
	_, err := b.Place(grid.Cell{X: 80, Y: 20}, "#0083c7")
	require.NoError(t, err)
	_, err = a.Place(grid.Cell{X: 80, Y: 10}, "#ffffff")
	require.NoError(t, err)
	chA.Flush()
	chB.Flush()

	has := func(c *Canvas, cell grid.Cell) bool {
		_, ok := c.Model().Get(cell)
		return ok
	}
	require.Eventually(t, func() bool {
		a.Pump()
		b.Pump()
		return a.Model().Len() == 2 && b.Model().Len() == 2
	}, 2*time.Second, 10*time.Millisecond)

	for _, c := range []*Canvas{a, b} {
		assert.True(t, has(c, grid.Cell{X: 80, Y: 10}))
		assert.True(t, has(c, grid.Cell{X: 80, Y: 20}))
	}
}
