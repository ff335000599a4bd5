package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide instruments. One instance is built in main
// and threaded to the router and the services that record domain events.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInflight prometheus.Gauge

	signins        *prometheus.CounterVec
	vouchersIssued *prometheus.CounterVec
	purchases      prometheus.Counter
	epubBuilds     *prometheus.CounterVec
	schedulerRuns  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "likenovel_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "likenovel_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "likenovel_http_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		signins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "likenovel_signins_total",
			Help: "Completed sign-ins by method.",
		}, []string{"method"}),
		vouchersIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "likenovel_promotion_vouchers_issued_total",
			Help: "Promotion-minted rental vouchers by promotion type.",
		}, []string{"type"}),
		purchases: factory.NewCounter(prometheus.CounterOpts{
			Name: "likenovel_episode_purchases_total",
			Help: "Episode purchases paid with cash.",
		}),
		epubBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "likenovel_epub_builds_total",
			Help: "EPUB assembly outcomes.",
		}, []string{"outcome"}),
		schedulerRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "likenovel_scheduler_runs_total",
			Help: "Scheduler job executions by job and outcome.",
		}, []string{"job", "outcome"}),
	}
}

func (m *Metrics) RecordSignin(method string) {
	m.signins.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordVouchers(promotionType string, count int) {
	m.vouchersIssued.WithLabelValues(promotionType).Add(float64(count))
}

func (m *Metrics) RecordPurchase() {
	m.purchases.Inc()
}

func (m *Metrics) RecordEpubBuild(outcome string) {
	m.epubBuilds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordSchedulerRun(job, outcome string) {
	m.schedulerRuns.WithLabelValues(job, outcome).Inc()
}

// Handler serves the scrape endpoint off the private registry.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// GinMiddleware instruments every request. The route template, not the raw
// path, is the label so parameterized routes do not explode cardinality.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpInflight.Inc()
		c.Next()
		m.httpInflight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
