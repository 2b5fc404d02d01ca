// Package metrics holds the Prometheus instruments exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterwatch_map_clicks_total",
		Help: "Map clicks by outcome (accepted, rejected)",
	}, []string{"outcome"})
	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterwatch_backend_requests_total",
		Help: "Data service requests by operation and outcome (ok, backend, transport)",
	}, []string{"operation", "outcome"})
	BackendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "waterwatch_backend_request_duration_seconds",
		Help:    "Data service request duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})
	StaleResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterwatch_stale_results_total",
		Help: "Fetch results discarded because a newer click superseded them",
	}, []string{"operation"})
	PondsURLRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waterwatch_ponds_url_refresh_total",
		Help: "Ponds overlay URL refreshes by outcome",
	}, []string{"outcome"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "waterwatch_viewer_sessions",
		Help: "Viewer sessions currently held in memory",
	})
)

func init() {
	prometheus.MustRegister(ClicksTotal)
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendDuration)
	prometheus.MustRegister(StaleResultsTotal)
	prometheus.MustRegister(PondsURLRefreshTotal)
	prometheus.MustRegister(ActiveSessions)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
