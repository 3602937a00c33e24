package swcache

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts how requests were served.
type Metrics struct {
	requests    *prometheus.CounterVec
	writeErrors prometheus.Counter
}

// NewMetrics registers the cache collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_cache_requests_total",
		Help: "Requests handled by the offline cache grouped by strategy and result.",
	}, []string{"strategy", "result"})
	writeErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "journal_cache_write_failures_total",
		Help: "Responses that could not be written to the cache.",
	})
	registerer.MustRegister(requests, writeErrors)
	return &Metrics{requests: requests, writeErrors: writeErrors}
}

func (m *Metrics) observe(strategy Strategy, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strategy.String(), result).Inc()
}

func (m *Metrics) writeFailed() {
	if m == nil {
		return
	}
	m.writeErrors.Inc()
}
