package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestAlertMetricsCountsByEventType(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAlertMetrics(reg)
	m.IncAlert("inventory_negative_stock", "BLR-01")
	m.IncAlert("inventory_negative_stock", "BLR-01")
	m.IncAlert("table_inconsistency_detected", "")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "tableside_alerts_raised_total", "event_type", "inventory_negative_stock")
	require.NoError(t, err)
	require.Equal(t, float64(2), got)

	got, err = fetchCounterValue(mfs, "tableside_alerts_raised_total", "branch", "unknown")
	require.NoError(t, err)
	require.Equal(t, float64(1), got)
}

func TestAlertMetricsNilSafe(t *testing.T) {
	var m *AlertMetrics
	m.IncAlert("inventory_negative_stock", "BLR-01")
	NewAlertMetrics(nil).IncAlert("x", "y")
}
