// Package metrics holds the gateway's Prometheus collectors.
//
// Collectors are registered on the default registry at init and exposed by
// the API server on /metrics through Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// HTTPRequests counts API requests by route pattern and method.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alexagw_http_requests_total",
			Help: "Total HTTP requests by route and method.",
		},
		[]string{"route", "method"},
	)

	// Directives counts handled directives by namespace and outcome. The
	// outcome is "ok" or the error type of the reply.
	Directives = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alexagw_directives_total",
			Help: "Total directives handled by namespace and outcome.",
		},
		[]string{"namespace", "outcome"},
	)

	// DiscoveredEndpoints is the endpoint count of the last discovery reply.
	DiscoveredEndpoints = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alexagw_discovered_endpoints",
			Help: "Number of endpoints returned by the last discovery.",
		},
	)

	// Events counts proactive events sent to the event gateway.
	Events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alexagw_events_total",
			Help: "Total proactive events by name and result.",
		},
		[]string{"name", "result"},
	)

	// StreamSessions counts transcode sessions by how they ended.
	StreamSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alexagw_stream_sessions_total",
			Help: "Total camera stream sessions by end reason.",
		},
		[]string{"reason"},
	)

	// ActiveStreams is the number of running transcoders.
	ActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alexagw_active_streams",
			Help: "Number of running camera transcoders.",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, Directives, DiscoveredEndpoints, Events, StreamSessions, ActiveStreams)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
