// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package simmetrics is a Prometheus-backed implementation of the hook
// points spec section 1 describes as external consumers only ("pcap
// writing, telemetry counters, allocation counters -- consumers of hooks
// only"): nothing under internal/ imports this package. A command entry
// point that wants telemetry wires a *Collector into its own event and
// scheduler loop and calls its Record* methods at the same points the
// teacher's eBPF stats collector instruments packet and map events.
package simmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every counter/gauge an embedding command may report,
// mirroring the teacher's internal/ebpf/metrics.Metrics grouping style:
// one struct field per named series, constructed once in New.
type Collector struct {
	registry *prometheus.Registry

	PacketsRelayed   *prometheus.CounterVec
	BytesRelayed     *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	ActiveSockets    prometheus.Gauge
	EventsProcessed  *prometheus.CounterVec
	CPUDelayApplied  prometheus.Counter
	AllocationsTotal *prometheus.CounterVec
	RoundDuration    prometheus.Histogram
}

// New builds a Collector and registers every metric with its own private
// registry, so multiple simulation runs in one process (e.g. a test
// harness) never collide on global registration the way
// prometheus.MustRegister against the default registry would.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		PacketsRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsim_packets_relayed_total",
			Help: "Total number of packets relayed between interfaces.",
		}, []string{"host"}),
		BytesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsim_bytes_relayed_total",
			Help: "Total number of payload bytes relayed between interfaces.",
		}, []string{"host"}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsim_packets_dropped_total",
			Help: "Total number of packets dropped by a qdisc or unknown destination.",
		}, []string{"host", "reason"}),
		ActiveSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netsim_active_sockets",
			Help: "Number of sockets not yet closed across the simulation.",
		}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsim_events_processed_total",
			Help: "Total number of scheduler events executed, by kind.",
		}, []string{"host", "kind"}),
		CPUDelayApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsim_cpu_delay_reschedules_total",
			Help: "Total number of events rescheduled for exceeding the CPU-delay threshold.",
		}),
		AllocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsim_allocations_total",
			Help: "Total number of plugin shared-memory allocations, by host.",
		}, []string{"host"}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "netsim_round_duration_seconds",
			Help:    "Wall-clock duration of each scheduler round.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.PacketsRelayed, c.BytesRelayed, c.PacketsDropped, c.ActiveSockets,
		c.EventsProcessed, c.CPUDelayApplied, c.AllocationsTotal, c.RoundDuration,
	)
	return c
}

// RecordPacketRelayed records one relayed packet and its payload size.
func (c *Collector) RecordPacketRelayed(host string, bytes int) {
	c.PacketsRelayed.WithLabelValues(host).Inc()
	c.BytesRelayed.WithLabelValues(host).Add(float64(bytes))
}

// RecordPacketDropped records a drop at a named qdisc or router decision
// point.
func (c *Collector) RecordPacketDropped(host, reason string) {
	c.PacketsDropped.WithLabelValues(host, reason).Inc()
}

// RecordEvent records one executed scheduler event.
func (c *Collector) RecordEvent(host, kind string) {
	c.EventsProcessed.WithLabelValues(host, kind).Inc()
}

// RecordCPUDelayReschedule records one event pushed back onto a host's
// queue for exceeding experimental.max_unapplied_cpu_latency.
func (c *Collector) RecordCPUDelayReschedule() {
	c.CPUDelayApplied.Inc()
}

// RecordAllocation records one plugin memory allocation on a host.
func (c *Collector) RecordAllocation(host string) {
	c.AllocationsTotal.WithLabelValues(host).Inc()
}

// SetActiveSockets sets the current count of open sockets across the
// simulation.
func (c *Collector) SetActiveSockets(n int) {
	c.ActiveSockets.Set(float64(n))
}

// ObserveRoundDuration records the wall-clock cost of one scheduler round.
func (c *Collector) ObserveRoundDuration(seconds float64) {
	c.RoundDuration.Observe(seconds)
}

// Handler returns an http.Handler serving this Collector's metrics in the
// Prometheus text exposition format, the same /metrics mount point the
// teacher's internal/api/server.go and internal/ebpf/stats/exporter.go
// both expose.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
