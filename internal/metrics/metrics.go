package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scan runs. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Items reaching a terminal decision, by decision
	ItemDecisions *prometheus.CounterVec

	// Quarantined items by failed stage and reason kind
	Quarantined *prometheus.CounterVec

	// Entity matches by match type
	Matches *prometheus.CounterVec

	// Adapter call latency by adapter and outcome
	AdapterLatency *prometheus.HistogramVec

	// Sink write failures
	SinkErrors prometheus.Counter

	// Full run latency
	RunLatency prometheus.Histogram
}

// New creates a Metrics instance registered against reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ItemDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mention_sentinel_item_decisions_total",
			Help: "Items reaching a terminal decision",
		}, []string{"decision"}), // accepted, quarantined, discarded

		Quarantined: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mention_sentinel_quarantined_total",
			Help: "Quarantined items by failed compliance stage and reason kind",
		}, []string{"stage", "kind"}),

		Matches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mention_sentinel_entity_matches_total",
			Help: "Entity matches by confidence layer",
		}, []string{"match_type"}),

		AdapterLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mention_sentinel_adapter_duration_seconds",
			Help:    "Duration of source adapter calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"adapter", "outcome"}), // outcome: ok, error

		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mention_sentinel_sink_errors_total",
			Help: "Accepted items the sink failed to persist",
		}),

		RunLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mention_sentinel_run_duration_seconds",
			Help:    "Duration of a full scan run for one entity",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// IncrementDecision records an item's terminal decision.
func (m *Metrics) IncrementDecision(decision string) {
	if m != nil {
		m.ItemDecisions.WithLabelValues(decision).Inc()
	}
}

// IncrementQuarantined records a quarantined item.
func (m *Metrics) IncrementQuarantined(stage, kind string) {
	if m != nil {
		m.Quarantined.WithLabelValues(stage, kind).Inc()
	}
}

// IncrementMatch records an entity match.
func (m *Metrics) IncrementMatch(matchType string) {
	if m != nil {
		m.Matches.WithLabelValues(matchType).Inc()
	}
}

// ObserveAdapterLatency records how long an adapter call took.
func (m *Metrics) ObserveAdapterLatency(adapter string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AdapterLatency.WithLabelValues(adapter, outcome).Observe(d.Seconds())
}

// IncrementSinkErrors records a failed sink write.
func (m *Metrics) IncrementSinkErrors() {
	if m != nil {
		m.SinkErrors.Inc()
	}
}

// ObserveRunLatency records the total duration of a run.
func (m *Metrics) ObserveRunLatency(d time.Duration) {
	if m != nil {
		m.RunLatency.Observe(d.Seconds())
	}
}
