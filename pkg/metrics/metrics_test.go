package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun("pagination", "passed", "", 2.5)
	m.ObserveRun("pagination", "failed", "assertion_mismatch", 1)
	m.IncInvariantCheck("distinct", true)
	m.IncInvariantCheck("distinct", false)
	m.IncUnparseableDates()
	m.SetQueueSize(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("pagination", "failed", "assertion_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvariantChecks.WithLabelValues("distinct", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnparseableDates))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RunsInQueue))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("x", "passed", "", 1)
		m.ObserveHTTP("GET", "/", "200", 0.1)
		m.IncInvariantCheck("order", true)
		m.IncUnparseableDates()
		m.SetQueueSize(1)
	})
}
