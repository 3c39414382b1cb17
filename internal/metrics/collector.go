// Package metrics exposes Prometheus instrumentation for the Geneve
// data-plane endpoint: packet counters by direction and drop reason, a
// flow-table gauge, and flow lifecycle counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "gwlbtun"
	subsystem = "geneve"
)

const labelReason = "reason"
const labelEvent = "event"

// Flow lifecycle event labels, for RecordFlowEvent.
const (
	FlowEventCreated = "created"
	FlowEventClosed  = "closed"
	FlowEventExpired = "expired"
	FlowEventBlocked = "blocked"
)

// -------------------------------------------------------------------------
// Collector: Prometheus Geneve endpoint metrics
// -------------------------------------------------------------------------

// Collector holds all Prometheus metrics for the Geneve endpoint. It
// implements netio.MetricsSink (structurally; netio never imports this
// package, to keep the socket layer independent of the metrics backend).
type Collector struct {
	// PacketsReceived counts every datagram read off the data socket,
	// before parsing.
	PacketsReceived prometheus.Counter

	// PacketsSent counts every response datagram successfully written
	// back to the data socket.
	PacketsSent prometheus.Counter

	// PacketsDropped counts datagrams rejected at a pipeline stage,
	// labeled by that stage ("recv", "parse", "flow_update"). A
	// "flow_update" datagram is left untracked but is still answered.
	PacketsDropped *prometheus.CounterVec

	// ActiveFlows tracks the current size of the flow table.
	ActiveFlows prometheus.Gauge

	// FlowEvents counts flow lifecycle transitions, labeled by event
	// ("created", "closed", "expired", "blocked").
	FlowEvents *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketsReceived,
		c.PacketsSent,
		c.PacketsDropped,
		c.ActiveFlows,
		c.FlowEvents,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total Geneve datagrams read off the data socket.",
		}),

		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Total response datagrams written back to the data socket.",
		}),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total datagrams dropped, labeled by the stage that rejected them.",
		}, []string{labelReason}),

		ActiveFlows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_flows",
			Help:      "Number of flows currently held in the flow table.",
		}),

		FlowEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flow_events_total",
			Help:      "Total flow lifecycle events, labeled by event type.",
		}, []string{labelEvent}),
	}
}

// -------------------------------------------------------------------------
// netio.MetricsSink implementation
// -------------------------------------------------------------------------

// IncPacketsReceived increments the received-datagram counter.
func (c *Collector) IncPacketsReceived() {
	c.PacketsReceived.Inc()
}

// IncPacketsSent increments the sent-response counter.
func (c *Collector) IncPacketsSent() {
	c.PacketsSent.Inc()
}

// IncPacketsDropped increments the dropped-datagram counter for reason.
func (c *Collector) IncPacketsDropped(reason string) {
	c.PacketsDropped.WithLabelValues(reason).Inc()
}

// SetActiveFlows sets the flow-table size gauge to n.
func (c *Collector) SetActiveFlows(n int) {
	c.ActiveFlows.Set(float64(n))
}

// RecordFlowEvent increments the flow lifecycle counter for event.
func (c *Collector) RecordFlowEvent(event string) {
	c.FlowEvents.WithLabelValues(event).Inc()
}
