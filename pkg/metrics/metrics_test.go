package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilRegistererIsNoOp(t *testing.T) {
	m := NewFlowMetrics(nil)
	m.ObserveUpstream("products", "ok", time.Second)
	m.IncCacheHit("products")
	m.IncCacheMiss("quote")
	m.IncRatesFailure()
	m.IncScan("accepted")

	var zero *FlowMetrics
	zero.IncScan("accepted")
}

func TestRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFlowMetrics(reg)
	m.ObserveUpstream("calculate-rates", "error", 250*time.Millisecond)
	m.IncScan("")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}
