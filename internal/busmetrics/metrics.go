// Package busmetrics exposes the bus's Prometheus instrumentation. Unlike
// the teacher's package-global vars, metrics are scoped to a Collector
// instance so that multiple Bus values (each with its own bus id) can
// share one process and one Prometheus registry without a MustRegister
// panic on the second construction.
package busmetrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every metric the bus emits. The message counters and
// InboxDepth are labeled by bus_id so one registry can host several
// co-hosted buses (mirroring the storage backends' own bus_id scoping);
// the two process gauges carry no labels.
type Collector struct {
	MessagesSent      *prometheus.CounterVec
	MessagesDelivered *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	InboxDepth        *prometheus.GaugeVec

	// ProcessCPUPercent and ProcessRSSBytes are fed by a periodic sampler
	// (see cmd/busd/main.go) rather than by the bus itself: process
	// resource usage isn't a per-bus concern, so these carry no bus_id
	// label the way the message counters and InboxDepth do.
	ProcessCPUPercent prometheus.Gauge
	ProcessRSSBytes   prometheus.Gauge
}

// NewCollector builds a Collector and registers its metrics against reg.
// Pass prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry across test runs.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messagebus_messages_sent_total",
			Help: "Total number of messages accepted by Bus.Send.",
		}, []string{"bus_id"}),

		MessagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messagebus_messages_delivered_total",
			Help: "Total number of (message, recipient) pairs persisted to a recipient inbox.",
		}, []string{"bus_id"}),

		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messagebus_messages_dropped_total",
			Help: "Total number of sends rejected before persistence, by reason.",
		}, []string{"bus_id", "reason"}),

		InboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "messagebus_inbox_depth",
			Help: "Last-sampled number of messages currently stored in a client's inbox.",
		}, []string{"bus_id", "client_id"}),

		ProcessCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "messagebus_process_cpu_percent",
			Help: "Last-sampled CPU usage percent of this process.",
		}),

		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "messagebus_process_rss_bytes",
			Help: "Last-sampled resident set size of this process, in bytes.",
		}),
	}

	reg.MustRegister(
		c.MessagesSent, c.MessagesDelivered, c.MessagesDropped, c.InboxDepth,
		c.ProcessCPUPercent, c.ProcessRSSBytes,
	)
	return c
}
