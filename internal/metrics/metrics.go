package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one execution context. Each context gets
// its own registry so several contexts can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	Placements          *prometheus.CounterVec
	Rejections          *prometheus.CounterVec
	SyncMessages        *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
	MalformedMessages   prometheus.Counter
	FrameCompose        prometheus.Histogram
	Cells               prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Placements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planet_placements_total",
			Help: "Placements applied to the grid, by origin (local or remote)",
		}, []string{"origin"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planet_placements_rejected_total",
			Help: "Local placement attempts that were denied, by reason",
		}, []string{"reason"}),
		SyncMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "planet_sync_messages_total",
			Help: "Broadcast messages by kind and direction",
		}, []string{"kind", "direction"}),
		PersistenceFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "planet_persistence_failures_total",
			Help: "Snapshot writes to the durable store that failed",
		}),
		MalformedMessages: f.NewCounter(prometheus.CounterOpts{
			Name: "planet_malformed_messages_total",
			Help: "Inbound broadcast messages dropped as malformed",
		}),
		FrameCompose: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "planet_frame_compose_seconds",
			Help:    "Time spent composing the planet buffer per frame",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10),
		}),
		Cells: f.NewGauge(prometheus.GaugeOpts{
			Name: "planet_cells",
			Help: "Painted cells currently on the planet",
		}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) IncPlacement(origin string) {
	m.Placements.WithLabelValues(origin).Inc()
}

func (m *Metrics) IncRejection(reason string) {
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncSync(kind, direction string) {
	m.SyncMessages.WithLabelValues(kind, direction).Inc()
}

func (m *Metrics) IncPersistenceFailure() {
	m.PersistenceFailures.Inc()
}

func (m *Metrics) IncMalformed() {
	m.MalformedMessages.Inc()
}

func (m *Metrics) ObserveFrame(seconds float64) {
	m.FrameCompose.Observe(seconds)
}

func (m *Metrics) SetCells(n int) {
	m.Cells.Set(float64(n))
}
