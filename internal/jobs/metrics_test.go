package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sample returns the value of the named series whose labels include want.
func sample(t *testing.T, registry *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("sync_drain").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, metrics.Track("sync_drain").End(boom), boom)

	assert.Equal(t, 1.0, sample(t, registry, "journal_jobs_total", map[string]string{"job": "sync_drain", "status": "success"}))
	assert.Equal(t, 1.0, sample(t, registry, "journal_jobs_total", map[string]string{"job": "sync_drain", "status": "failure"}))
	assert.Equal(t, 1.0, sample(t, registry, "journal_jobs_failures_total", map[string]string{"job": "sync_drain"}))
}

func TestEntryCountersAndGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.AddEntries("synced", 2)
	metrics.AddEntries("parked", 0)
	metrics.SetPending(3)

	assert.Equal(t, 2.0, sample(t, registry, "journal_sync_entries_total", map[string]string{"outcome": "synced"}))
	assert.Equal(t, 0.0, sample(t, registry, "journal_sync_entries_total", map[string]string{"outcome": "parked"}))
	assert.Equal(t, 3.0, sample(t, registry, "journal_sync_pending_entries", nil))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	assert.NoError(t, metrics.Track("sync_drain").End(nil))
	metrics.AddEntries("synced", 1)
	metrics.SetPending(1)
}
