// Package metrics holds the Prometheus collectors of the server.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vellum-cms/vellum/internal/schema"
)

const namespace = "vellum"

// Metrics groups the collectors. It implements relation.Observer.
type Metrics struct {
	httpRequests        *prometheus.CounterVec
	relationResolutions *prometheus.CounterVec
	targetsDropped      prometheus.Counter
	resolutionSeconds   *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by method, route and status."},
			[]string{"method", "route", "status"},
		),
		relationResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "relation_resolutions_total", Help: "Relation resolutions by mode and cardinality."},
			[]string{"mode", "cardinality"},
		),
		targetsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "relation_targets_dropped_total", Help: "Linked targets without a variant at the requested status and locale."},
		),
		resolutionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "relation_resolution_seconds", Help: "Relation resolution latency.", Buckets: prometheus.DefBuckets},
			[]string{"mode"},
		),
	}
}

func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.httpRequests, m.relationResolutions, m.targetsDropped, m.resolutionSeconds)
}

func (m *Metrics) ObserveResolution(mode string, cardinality schema.Cardinality, elapsed time.Duration) {
	m.relationResolutions.WithLabelValues(mode, string(cardinality)).Inc()
	m.resolutionSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) TargetsDropped(n int) {
	m.targetsDropped.Add(float64(n))
}

// Middleware counts requests by route template, so path parameters do not create
// new series. Unmatched routes are counted as "unmatched".
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
