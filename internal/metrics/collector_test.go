package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/netplane-oss/gwlbtun/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.PacketsReceived == nil {
		t.Error("PacketsReceived is nil")
	}
	if c.PacketsSent == nil {
		t.Error("PacketsSent is nil")
	}
	if c.PacketsDropped == nil {
		t.Error("PacketsDropped is nil")
	}
	if c.ActiveFlows == nil {
		t.Error("ActiveFlows is nil")
	}
	if c.FlowEvents == nil {
		t.Error("FlowEvents is nil")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	_ = families
}

func TestPacketCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncPacketsReceived()
	c.IncPacketsReceived()
	c.IncPacketsReceived()

	if got := counterValue(t, c.PacketsReceived); got != 3 {
		t.Errorf("PacketsReceived = %v, want 3", got)
	}

	c.IncPacketsSent()
	c.IncPacketsSent()

	if got := counterValue(t, c.PacketsSent); got != 2 {
		t.Errorf("PacketsSent = %v, want 2", got)
	}
}

func TestPacketsDroppedByReason(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncPacketsDropped("parse")
	c.IncPacketsDropped("parse")
	c.IncPacketsDropped("flow_update")

	if got := vecCounterValue(t, c.PacketsDropped, "parse"); got != 2 {
		t.Errorf("PacketsDropped[parse] = %v, want 2", got)
	}
	if got := vecCounterValue(t, c.PacketsDropped, "flow_update"); got != 1 {
		t.Errorf("PacketsDropped[flow_update] = %v, want 1", got)
	}
}

func TestActiveFlowsGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.SetActiveFlows(5)
	if got := gaugeValue(t, c.ActiveFlows); got != 5 {
		t.Errorf("ActiveFlows = %v, want 5", got)
	}

	c.SetActiveFlows(2)
	if got := gaugeValue(t, c.ActiveFlows); got != 2 {
		t.Errorf("ActiveFlows = %v, want 2", got)
	}
}

func TestFlowEvents(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordFlowEvent(metrics.FlowEventCreated)
	c.RecordFlowEvent(metrics.FlowEventCreated)
	c.RecordFlowEvent(metrics.FlowEventClosed)

	if got := vecCounterValue(t, c.FlowEvents, metrics.FlowEventCreated); got != 2 {
		t.Errorf("FlowEvents[created] = %v, want 2", got)
	}
	if got := vecCounterValue(t, c.FlowEvents, metrics.FlowEventClosed); got != 1 {
		t.Errorf("FlowEvents[closed] = %v, want 1", got)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func vecCounterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
