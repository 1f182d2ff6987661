package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "wsctl"
	subsystem = "connection"
)

// Metrics holds the controller's collectors. A nil *Metrics is valid and
// records nothing, so components can be built without instrumentation.
type Metrics struct {
	connects    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	messages    *prometheus.CounterVec
	sendErrors  prometheus.Counter
	records     *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer, instance string) *Metrics {
	labels := prometheus.Labels{"instance_id": instance}

	m := &Metrics{
		connects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   subsystem,
				Name:        "connects_total",
				Help:        "Connect requests by result.",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   subsystem,
				Name:        "transitions_total",
				Help:        "Connection status transitions by target status.",
				ConstLabels: labels,
			},
			[]string{"to"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   subsystem,
				Name:        "messages_total",
				Help:        "Messages logged by direction and frame kind.",
				ConstLabels: labels,
			},
			[]string{"direction", "kind"},
		),
		sendErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   subsystem,
				Name:        "send_errors_total",
				Help:        "Send requests the transport refused.",
				ConstLabels: labels,
			},
		),
		records: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   subsystem,
				Name:        "records",
				Help:        "Connection records by current status.",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.connects, m.transitions, m.messages, m.sendErrors, m.records)
	}
	return m
}

// ConnectAccepted counts a connect request the transport took.
func (m *Metrics) ConnectAccepted() {
	if m == nil {
		return
	}
	m.connects.WithLabelValues("accepted").Inc()
}

// RecordCreated adds a new record to the status gauge.
func (m *Metrics) RecordCreated(status string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(status).Inc()
}

// RecordRemoved takes a record whose connect was refused off the status gauge.
func (m *Metrics) RecordRemoved(status string) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(status).Dec()
}

// ConnectRejected counts a connect request that left no record.
func (m *Metrics) ConnectRejected() {
	if m == nil {
		return
	}
	m.connects.WithLabelValues("rejected").Inc()
}

// StatusChanged moves one record between status gauges.
func (m *Metrics) StatusChanged(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
	m.records.WithLabelValues(from).Dec()
	m.records.WithLabelValues(to).Inc()
}

// MessageReceived counts an inbound frame.
func (m *Metrics) MessageReceived(text bool) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues("in", kind(text)).Inc()
}

// MessageSent counts an outbound text frame request and whether the
// transport refused it.
func (m *Metrics) MessageSent(err error) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues("out", kind(true)).Inc()
	if err != nil {
		m.sendErrors.Inc()
	}
}

func kind(text bool) string {
	if text {
		return "text"
	}
	return "binary"
}
