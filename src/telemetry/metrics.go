package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	// MessagesReceived counts inbound protocol messages by body type.
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "messages_received_total",
			Help:      "Total number of inbound protocol messages.",
		},
		[]string{"type"},
	)

	// MessagesSent counts outbound protocol messages, replies included.
	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "messages_sent_total",
			Help:      "Total number of outbound protocol messages.",
		},
	)

	// ForwardsDropped counts fire-and-forget sends that failed. Loss here is
	// by design (gossip redundancy repairs it); the counter exists so that
	// it is observable rather than silent.
	ForwardsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "forwards_dropped_total",
			Help:      "Total number of failed fire-and-forget sends.",
		},
	)

	// AntiEntropyRounds counts full-state replication rounds.
	AntiEntropyRounds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "antientropy_rounds_total",
			Help:      "Total number of anti-entropy rounds.",
		},
	)
)

func init() {
	Registry.MustRegister(MessagesReceived, MessagesSent, ForwardsDropped, AntiEntropyRounds)
}

// MetricsHandler exposes the murmur registry; mount it on /metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
