package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

// sample returns the metric in family name whose labels include every
// name/value pair in labels.
func sample(mfs []*dto.MetricFamily, name string, labels ...string) (*dto.Metric, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m.GetLabel(), labels) {
				return m, nil
			}
		}
		return nil, fmt.Errorf("metric %q has no sample with labels %v", name, labels)
	}
	return nil, fmt.Errorf("metric %q not found", name)
}

func hasLabels(pairs []*dto.LabelPair, want []string) bool {
	have := make(map[string]string, len(pairs))
	for _, p := range pairs {
		have[p.GetName()] = p.GetValue()
	}
	for i := 0; i+1 < len(want); i += 2 {
		if have[want[i]] != want[i+1] {
			return false
		}
	}
	return true
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels ...string) (float64, error) {
	m, err := sample(mfs, name, labels...)
	if err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}
