package hub

import (
	"Chatline/internal/event"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "chatline"

// Drop reasons used as the "reason" label.
const (
	dropOffline = "offline"
	dropRefused = "refused"
	dropEncode  = "encode"
)

// Metrics holds the hub's prometheus collectors plus plain counters
// that the monitor endpoint reads without scraping.
type Metrics struct {
	connections  prometheus.Gauge
	accepted     prometheus.Counter
	superseded   prometheus.Counter
	authFailures prometheus.Counter
	relayed      *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	persisted    *prometheus.CounterVec
	callRequests *prometheus.CounterVec

	totalAccepted   atomic.Int64
	totalSuperseded atomic.Int64
	totalRelayed    atomic.Int64
	totalDropped    atomic.Int64
}

// NewMetrics registers the hub collectors on reg. Pass prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Users with a registered live connection.",
		}),
		accepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_accepted_total",
			Help:      "Authenticated connections accepted.",
		}),
		superseded: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_superseded_total",
			Help:      "Registry entries replaced by a newer connection of the same user.",
		}),
		authFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_failures_total",
			Help:      "Connection attempts rejected by the authentication gate.",
		}),
		relayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_relayed_total",
			Help:      "Events enqueued for a connection, by event name.",
		}, []string{"event"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dropped_total",
			Help:      "Events that could not be enqueued, by event name and reason.",
		}, []string{"event", "reason"}),
		persisted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_persisted_total",
			Help:      "Chat message insert attempts, by outcome.",
		}, []string{"status"}),
		callRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "call_requests_total",
			Help:      "Call requests, by call type and outcome.",
		}, []string{"call_type", "outcome"}),
	}
}

func (m *Metrics) connectionAccepted() {
	m.accepted.Inc()
	m.totalAccepted.Add(1)
}

func (m *Metrics) connectionSuperseded() {
	m.superseded.Inc()
	m.totalSuperseded.Add(1)
}

func (m *Metrics) setConnections(n int) {
	m.connections.Set(float64(n))
}

func (m *Metrics) authFailed() {
	m.authFailures.Inc()
}

func (m *Metrics) eventRelayed(name string) {
	m.relayed.WithLabelValues(name).Inc()
	m.totalRelayed.Add(1)
}

func (m *Metrics) eventDropped(name, reason string) {
	m.dropped.WithLabelValues(name, reason).Inc()
	m.totalDropped.Add(1)
}

func (m *Metrics) messagePersisted(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.persisted.WithLabelValues(status).Inc()
}

func (m *Metrics) callRequested(callType, outcome string) {
	if callType != event.CallTypeAudio && callType != event.CallTypeVideo {
		callType = "other"
	}
	m.callRequests.WithLabelValues(callType, outcome).Inc()
}
