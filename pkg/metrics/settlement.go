package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks table settlements and the ingredient deductions they trigger.
type SettlementMetrics struct {
	settlements   *prometheus.CounterVec
	duration      prometheus.Histogram
	deductions    *prometheus.CounterVec
	negativeStock prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Settlement attempts by outcome.",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settlement_duration_seconds",
		Help:      "Wall time of a settle call including ingredient deduction.",
		Buckets:   prometheus.DefBuckets,
	})
	deductions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingredient_deductions_total",
		Help:      "Per-ingredient deduction results.",
	}, []string{"result"})
	negativeStock := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inventory_negative_stock_total",
		Help:      "Deductions that left an inventory item below zero.",
	})
	reg.MustRegister(settlements, duration, deductions, negativeStock)
	return &SettlementMetrics{
		settlements:   settlements,
		duration:      duration,
		deductions:    deductions,
		negativeStock: negativeStock,
	}
}

// IncSettlement counts a settle call by outcome, e.g. Settled, Due, rejected.
func (m *SettlementMetrics) IncSettlement(status string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *SettlementMetrics) ObserveDuration(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

// IncDeduction counts one ingredient result: applied, skipped or failed.
func (m *SettlementMetrics) IncDeduction(result string) {
	if m == nil || m.deductions == nil {
		return
	}
	m.deductions.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *SettlementMetrics) IncNegativeStock() {
	if m == nil || m.negativeStock == nil {
		return
	}
	m.negativeStock.Inc()
}
