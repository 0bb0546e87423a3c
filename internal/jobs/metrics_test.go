package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NoError(t, m.Track("idempotency:cleanup").End(nil))
	err := errors.New("redis down")
	assert.ErrorIs(t, m.Track("idempotency:cleanup").End(err), err)

	assert.Equal(t, 1.0, value(t, reg, "bank_jobs_total", map[string]string{"job": "idempotency:cleanup", "status": "success"}))
	assert.Equal(t, 1.0, value(t, reg, "bank_jobs_total", map[string]string{"job": "idempotency:cleanup", "status": "failure"}))
	assert.Equal(t, 1.0, value(t, reg, "bank_jobs_failures_total", map[string]string{"job": "idempotency:cleanup"}))
}

func TestAddDriftIgnoresNonPositive(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddDrift("surplus", 2)
	m.AddDrift("surplus", 0)
	m.AddDrift("deficit", -1)

	assert.Equal(t, 2.0, value(t, reg, "bank_ledger_balance_drift_total", map[string]string{"direction": "surplus"}))
	assert.Equal(t, 0.0, value(t, reg, "bank_ledger_balance_drift_total", map[string]string{"direction": "deficit"}))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddDrift("surplus", 1)
	err := errors.New("x")
	assert.ErrorIs(t, m.Track("job").End(err), err)
}
