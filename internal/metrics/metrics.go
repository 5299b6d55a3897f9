// Package metrics exposes Prometheus collectors for the relay, the
// persistence worker and push delivery.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peyvand",
		Name:      "online_users",
		Help:      "Number of users with a registered connection.",
	})

	Envelopes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peyvand",
		Name:      "relay_envelopes_total",
		Help:      "Inbound envelopes dispatched, by type.",
	}, []string{"type"})

	ProtocolErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "peyvand",
		Name:      "relay_protocol_errors_total",
		Help:      "Connections closed because of a malformed envelope.",
	})

	PersistJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peyvand",
		Name:      "persist_jobs_total",
		Help:      "Persistence jobs run, by job name and result.",
	}, []string{"job", "result"})

	PersistQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "peyvand",
		Name:      "persist_queue_depth",
		Help:      "Persistence jobs waiting to run.",
	})

	PushSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "peyvand",
		Name:      "push_notifications_total",
		Help:      "Web push deliveries, by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(OnlineUsers, Envelopes, ProtocolErrors, PersistJobs, PersistQueueDepth, PushSent)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
