package metrics

import "github.com/prometheus/client_golang/prometheus"

// OrderMetrics tracks placement outcomes and reservation churn.
type OrderMetrics struct {
	placed       prometheus.Counter
	rejected     *prometheus.CounterVec
	casConflicts prometheus.Counter
	swept        prometheus.Counter
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders that reached the confirmed state.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Order placements rejected, by reason code.",
	}, []string{"reason"})
	casConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_cas_conflicts_total",
		Help: "Reservation attempts that hit a version conflict and retried.",
	})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reservations_swept_total",
		Help: "Expired holds released by the background sweeper.",
	})
	reg.MustRegister(placed, rejected, casConflicts, swept)
	return &OrderMetrics{
		placed:       placed,
		rejected:     rejected,
		casConflicts: casConflicts,
		swept:        swept,
	}
}

// IncPlaced counts a confirmed order.
func (m *OrderMetrics) IncPlaced() {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.Inc()
}

// IncRejected counts a rejection by its reason code.
func (m *OrderMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncCASConflict counts a reservation retry caused by a version mismatch.
func (m *OrderMetrics) IncCASConflict() {
	if m == nil || m.casConflicts == nil {
		return
	}
	m.casConflicts.Inc()
}

// IncSwept counts a reservation reclaimed by the sweeper.
func (m *OrderMetrics) IncSwept() {
	if m == nil || m.swept == nil {
		return
	}
	m.swept.Inc()
}
