package metrics

import "github.com/prometheus/client_golang/prometheus"

// AlertMetrics counts operator alerts raised by the alerts worker.
type AlertMetrics struct {
	alerts *prometheus.CounterVec
}

func NewAlertMetrics(reg prometheus.Registerer) *AlertMetrics {
	if reg == nil {
		return &AlertMetrics{}
	}
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alerts",
		Name:      "raised_total",
		Help:      "Operator alerts by event type and branch.",
	}, []string{"event_type", "branch"})
	reg.MustRegister(alerts)
	return &AlertMetrics{alerts: alerts}
}

func (m *AlertMetrics) IncAlert(eventType, branch string) {
	if m == nil || m.alerts == nil {
		return
	}
	m.alerts.WithLabelValues(normalizeLabel(eventType), normalizeLabel(branch)).Inc()
}
