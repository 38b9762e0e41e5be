package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestTrackerRecordsRunsAndFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	for i := 0; i < 5; i++ {
		tracker := metrics.Track("ledger_integrity")
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending tracker: %v", err)
		}
	}
	tracker := metrics.Track("ledger_integrity")
	if err := tracker.End(errors.New("replay failed")); err == nil {
		t.Fatal("tracker must return the original error")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	if got := counterValue(families, "farmledger_jobs_total", map[string]string{"job": "ledger_integrity", "status": "success"}); got != 5 {
		t.Fatalf("expected 5 successful runs, got %v", got)
	}
	if got := counterValue(families, "farmledger_jobs_failures_total", map[string]string{"job": "ledger_integrity"}); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestAddDriftIgnoresZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.AddDrift("ledger", 0)
	metrics.AddDrift("ledger", 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got := counterValue(families, "farmledger_integrity_drift_total", map[string]string{"check": "ledger"}); got != 3 {
		t.Fatalf("expected drift 3, got %v", got)
	}
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := true
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					matched = false
					break
				}
			}
			if matched {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return -1
}
