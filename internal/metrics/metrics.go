// ABOUTME: Prometheus collectors for the fake management server.
// ABOUTME: Counts HTTP requests, WebSocket frames, and child bridges per status.

package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the server's collectors. A fresh registry per server keeps
// tests from colliding on the global default registerer.
type Registry struct {
	reg *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	wsFrames       *prometheus.CounterVec
	childBridges   *prometheus.GaugeVec
	platformAction *prometheus.CounterVec
}

// bridgeStatuses are always exported, so the gauge is visible before any
// child bridge is known.
var bridgeStatuses = []string{"pending", "ok", "down", "error"}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hbx",
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by service, method and status code.",
		}, []string{"service", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hbx",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		wsFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hbx",
			Name:      "ws_frames_total",
			Help:      "WebSocket frames by namespace, event and direction.",
		}, []string{"namespace", "event", "direction"}),
		childBridges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hbx",
			Name:      "child_bridges",
			Help:      "Child bridges by status.",
		}, []string{"status"}),
		platformAction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hbx",
			Name:      "platform_actions_total",
			Help:      "Host power actions requested through platform tools.",
		}, []string{"action"}),
	}

	r.reg.MustRegister(
		r.httpRequests,
		r.httpDuration,
		r.wsFrames,
		r.childBridges,
		r.platformAction,
		prometheus.NewGoCollector(),
	)
	r.zeroChildBridges()
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func (r *Registry) ObserveRequest(service, method string, status int, seconds float64) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(service, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(service).Observe(seconds)
}

// ObserveFrame records a WebSocket frame. direction is "in" or "out".
func (r *Registry) ObserveFrame(namespace, event, direction string) {
	if r == nil {
		return
	}
	r.wsFrames.WithLabelValues(namespace, event, direction).Inc()
}

// SetChildBridges replaces the per-status gauge values. Known statuses
// missing from counts read 0.
func (r *Registry) SetChildBridges(counts map[string]int) {
	if r == nil {
		return
	}
	r.childBridges.Reset()
	r.zeroChildBridges()
	for status, n := range counts {
		r.childBridges.WithLabelValues(status).Set(float64(n))
	}
}

func (r *Registry) zeroChildBridges() {
	for _, status := range bridgeStatuses {
		r.childBridges.WithLabelValues(status).Set(0)
	}
}

// ObservePlatformAction counts a shutdown or restart request.
func (r *Registry) ObservePlatformAction(action string) {
	if r == nil {
		return
	}
	r.platformAction.WithLabelValues(action).Inc()
}
