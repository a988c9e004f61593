package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementDecision("accepted")
	m.IncrementDecision("accepted")
	m.IncrementQuarantined("approval", "banned_platform")
	m.IncrementMatch("exact")
	m.IncrementSinkErrors()
	m.ObserveAdapterLatency("bbc", nil, 20*time.Millisecond)
	m.ObserveAdapterLatency("slow", errors.New("timeout"), time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemDecisions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Quarantined.WithLabelValues("approval", "banned_platform")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Matches.WithLabelValues("exact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors))
	assert.Equal(t, 2, testutil.CollectAndCount(m.AdapterLatency))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementDecision("accepted")
		m.IncrementQuarantined("approval", "banned_keyword")
		m.IncrementMatch("alias")
		m.IncrementSinkErrors()
		m.ObserveAdapterLatency("a", nil, time.Millisecond)
		m.ObserveRunLatency(time.Second)
	})
}
