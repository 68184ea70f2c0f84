// Package metrics exposes Prometheus instruments for the live-chat engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the chat engine instruments. A nil Collector is
// accepted by the services and disables instrumentation.
type Collector struct {
	SessionsStarted  prometheus.Counter
	SessionsEnded    *prometheus.CounterVec
	MessagesTotal    *prometheus.CounterVec
	EscalationsTotal *prometheus.CounterVec
	AssignmentsTotal prometheus.Counter

	ActiveSessions  prometheus.Gauge
	QueueDepth      prometheus.Gauge
	ConnectedAgents prometheus.Gauge

	TimeToAssignment prometheus.Histogram
}

func NewCollector() *Collector {
	return &Collector{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clinichat",
			Name:      "sessions_started_total",
			Help:      "Total number of chat sessions started.",
		}),
		SessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinichat",
			Name:      "sessions_ended_total",
			Help:      "Total number of chat sessions ended, by final status.",
		}, []string{"status"}),
		MessagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinichat",
			Name:      "messages_total",
			Help:      "Total number of chat messages, by sender role.",
		}, []string{"role"}),
		EscalationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinichat",
			Name:      "escalations_total",
			Help:      "Total number of session escalations, by reason.",
		}, []string{"reason"}),
		AssignmentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "clinichat",
			Name:      "assignments_total",
			Help:      "Total number of agent assignments.",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinichat",
			Name:      "active_sessions",
			Help:      "Number of chat sessions currently in memory.",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinichat",
			Name:      "queue_depth",
			Help:      "Number of sessions waiting in the queue.",
		}),
		ConnectedAgents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinichat",
			Name:      "connected_agents",
			Help:      "Number of agents currently registered with the engine.",
		}),
		TimeToAssignment: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinichat",
			Name:      "time_to_assignment_seconds",
			Help:      "Time between session start and agent assignment.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
