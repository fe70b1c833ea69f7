package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DomainMetrics records counters for state transitions and inventory deltas.
type DomainMetrics struct {
	transitions  *prometheus.CounterVec
	stockDeltas  *prometheus.HistogramVec
	stockRefused *prometheus.CounterVec
}

// NewDomainMetrics registers the domain metrics on the provided registerer.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_status_transitions_total",
		Help: "Status transitions applied per entity.",
	}, []string{"entity", "from", "to"})
	stockDeltas := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_delta_magnitude",
		Help:    "Absolute size of applied inventory deltas.",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
	}, []string{"direction"})
	stockRefused := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_delta_refused_total",
		Help: "Deltas refused because they would drive quantity negative.",
	}, []string{"reason"})
	reg.MustRegister(transitions, stockDeltas, stockRefused)
	return &DomainMetrics{
		transitions:  transitions,
		stockDeltas:  stockDeltas,
		stockRefused: stockRefused,
	}
}

// ObserveTransition counts one applied status transition.
func (m *DomainMetrics) ObserveTransition(entity, from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(entity), normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveDelta records the magnitude of an applied stock delta.
func (m *DomainMetrics) ObserveDelta(delta int) {
	if m == nil || m.stockDeltas == nil {
		return
	}
	direction := "restock"
	magnitude := float64(delta)
	if delta < 0 {
		direction = "consume"
		magnitude = -magnitude
	}
	m.stockDeltas.WithLabelValues(direction).Observe(magnitude)
}

// IncRefused counts one insufficient-stock refusal.
func (m *DomainMetrics) IncRefused(reason string) {
	if m == nil || m.stockRefused == nil {
		return
	}
	m.stockRefused.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
