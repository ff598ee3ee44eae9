// Package metrics exposes the discovery funnel counters in Prometheus
// text exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConversationsStarted counts conversations initiated.
	ConversationsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conversations_started_total",
		Help: "Total conversations initiated",
	})
	// ConversationsCompleted counts conversations reaching the proposal
	// stage.
	ConversationsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conversations_completed_total",
		Help: "Conversations reaching proposal stage",
	})
	// DemosBooked counts successful Calendly redirects.
	DemosBooked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "demos_booked_total",
		Help: "Successful Calendly redirects",
	})
	// ResponseTime observes time to generate a chat response.
	ResponseTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "response_time_seconds",
		Help: "Time to generate response",
	})
)

func init() {
	prometheus.MustRegister(
		ConversationsStarted,
		ConversationsCompleted,
		DemosBooked,
		ResponseTime,
	)
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
