package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records how endpoint probing behaves per logical operation.
type Metrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the probe collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_api_probe_attempts_total",
				Help: "Candidate endpoint attempts by logical operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vault_api_call_duration_seconds",
				Help:    "Duration of logical operations including every probed candidate.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		),
	}
	if err := reg.Register(m.attempts); err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) attempt(op string, outcome probeKind) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(op, outcome.String()).Inc()
}

func (m *Metrics) call(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op, result).Observe(d.Seconds())
}
