package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox delivery results.
const (
	OutboxPublished = "published"
	OutboxRetry     = "retry"
	OutboxParked    = "parked"
)

// OutboxMetrics covers the outbox publisher loop.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	batch      prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Outbox rows handled by event type and result.",
		}, []string{"event_type", "result"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_duration_seconds",
			Help:      "Time to publish and mark one claimed batch.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.deliveries, m.batch)
	return m
}

func (m *OutboxMetrics) ObserveDelivery(eventType, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (m *OutboxMetrics) ObserveBatch(took time.Duration) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.Observe(took.Seconds())
}
