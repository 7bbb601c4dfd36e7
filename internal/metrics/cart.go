package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeError    = "error"

	ReconcileSaved   = "saved"
	ReconcileFailed  = "failed"
	ReconcileSkipped = "skipped"
)

// CartMetrics records engine and reconciliation activity. A nil *CartMetrics
// is valid and records nothing.
type CartMetrics struct {
	mutations         *prometheus.CounterVec
	degradedWrites    prometheus.Counter
	dirtyEntries      prometheus.Gauge
	reconcileAttempts *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
}

// NewCartMetrics registers the cart collectors with reg, or with the default
// registerer when reg is nil.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &CartMetrics{
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		degradedWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "cart_degraded_writes_total",
			Help: "Mutations kept in memory only because the store was unavailable.",
		}),
		dirtyEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cart_dirty_entries",
			Help: "Carts held in memory that the store has not confirmed.",
		}),
		reconcileAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_reconcile_attempts_total",
			Help: "Reconciliation attempts by result.",
		}, []string{"result"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cart_reconcile_cycle_duration_seconds",
			Help:    "Duration of reconciliation cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *CartMetrics) Mutation(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
	if outcome == OutcomeDegraded {
		m.degradedWrites.Inc()
	}
}

func (m *CartMetrics) SetDirty(n int) {
	if m == nil {
		return
	}
	m.dirtyEntries.Set(float64(n))
}

func (m *CartMetrics) ReconcileAttempt(result string) {
	if m == nil {
		return
	}
	m.reconcileAttempts.WithLabelValues(result).Inc()
}

func (m *CartMetrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}
