package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeDelivered = "delivered"
	OutcomeAborted   = "aborted"
)

// Metrics counts handler runs and times pushes. A nil *Metrics records nothing.
type Metrics struct {
	// Handler outcomes by case type and outcome
	Deliveries *prometheus.CounterVec

	// Push latency by source
	PushLatency *prometheus.HistogramVec

	// Objects removed by cleanup runs, by entity
	CleanedUp *prometheus.CounterVec
}

// NewMetrics registers the metrics with reg, or the default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zgw2vrijbrp_deliveries_total",
			Help: "Total handler runs by case type and outcome",
		}, []string{"case_type", "outcome"}),

		PushLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zgw2vrijbrp_push_duration_seconds",
			Help:    "Duration of pushes to a source",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),

		CleanedUp: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zgw2vrijbrp_cleanup_deleted_total",
			Help: "Total objects removed by cleanup by entity",
		}, []string{"entity"}),
	}
}

func (m *Metrics) IncrementOutcome(caseType, outcome string) {
	if m != nil {
		m.Deliveries.WithLabelValues(caseType, outcome).Inc()
	}
}

func (m *Metrics) ObservePushLatency(source string, d time.Duration) {
	if m != nil {
		m.PushLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

func (m *Metrics) AddCleanedUp(entity string, n int) {
	if m != nil {
		m.CleanedUp.WithLabelValues(entity).Add(float64(n))
	}
}
