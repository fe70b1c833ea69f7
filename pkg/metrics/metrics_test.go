package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestDomainMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewDomainMetrics(reg)

	metrics.ObserveTransition("purchase_order", "draft", "confirmed")
	metrics.ObserveDelta(25)
	metrics.ObserveDelta(-10)
	metrics.IncRefused("sale")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "domain_status_transitions_total", "entity", "purchase_order"); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected transitions=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "inventory_delta_refused_total", "reason", "sale"); err != nil {
		t.Fatalf("fetch refused: %v", err)
	} else if got != 1 {
		t.Fatalf("expected refused=1, got %f", got)
	}

	hist := findMetricFamily(mfs, "inventory_delta_magnitude")
	if hist == nil {
		t.Fatal("expected delta histogram to be registered")
	}
	var samples uint64
	for _, m := range hist.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 2 {
		t.Fatalf("expected 2 histogram samples, got %d", samples)
	}
}

func TestDomainMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewDomainMetrics(nil)
	metrics.ObserveTransition("shipment", "pending", "picked_up")
	metrics.ObserveDelta(-1)
	metrics.IncRefused("")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, labelName, labelValue string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric family %s not found", name)
	}
	for _, m := range mf.GetMetric() {
		if matchesLabel(m.GetLabel(), labelName, labelValue) {
			return m.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("no metric with label %s=%s", labelName, labelValue)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
