package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "userapi"

// Prom holds every collector the API exports. All methods are safe on a nil
// *Prom so tools and tests can run without a registry.
type Prom struct {
	// HTTP
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         prometheus.Gauge

	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Auth
	AuthRejections *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	httpLabels := []string{"method", "route", "status"}

	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route template and status code.",
		}, httpLabels),
		RequestsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route template and status code.",
			// Upper buckets cover bcrypt-bound login and register.
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, httpLabels),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "HTTP requests currently being served.",
		}),
		DbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Latency of logical user-store operations.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op", "status"}),
		DbErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "errors_total",
			Help:      "User-store failures by operation and error class.",
		}, []string{"op", "class"}),
		AuthRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "rejections_total",
			Help:      "Requests refused by authentication or authorization.",
		}, []string{"reason"}), // no_token|invalid_token|unauthenticated|forbidden
	}

	reg.MustRegister(p.RequestsTotal, p.RequestsDuration, p.InFlight, p.DbQueryDuration, p.DbErrorsTotal, p.AuthRejections)

	return p
}

func (p *Prom) ObserveAuthRejection(reason string) {
	if p == nil {
		return
	}
	p.AuthRejections.WithLabelValues(reason).Inc()
}

// GinHandleMiddleware records one sample per request, labelled by the
// matched route template so ids never explode cardinality.
func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if p == nil {
			ctx.Next()
			return
		}

		start := time.Now()
		p.InFlight.Inc()
		defer p.InFlight.Dec()

		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}

		labels := []string{ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())}
		p.RequestsTotal.WithLabelValues(labels...).Inc()
		p.RequestsDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	}
}
