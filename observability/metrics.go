package observability

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebSocket metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})

	// Relay metrics
	MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_total",
		Help: "The total number of messages fanned out to room members.",
	})
	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_delivered_total",
		Help: "The total number of domain events delivered to client sinks.",
	}, []string{"kind"})
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_dropped_total",
		Help: "The total number of domain events dropped (slow or gone sinks).",
	}, []string{"kind"})
	TypingExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "typing_entries_expired_total",
		Help: "The total number of typing entries removed by the expiry sweep.",
	})

	// Auth metrics
	AuthSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_success_total",
		Help: "The total number of successful handshake authentications.",
	})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "The total number of failed handshake authentications.",
	}, []string{"reason"})
)

// StartMetricsServer exposes the Prometheus endpoint on its own listener.
func StartMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
}
