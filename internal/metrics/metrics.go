package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RamonASM/fulfillment-ops-dashboard-sub006/internal/domain"
)

// Recorder holds the collectors for recalculation runs and the HTTP API.
type Recorder struct {
	registry *prometheus.Registry

	RecalcRunsTotal      *prometheus.CounterVec
	RecalcRunDuration    prometheus.Histogram
	ProductsTotal        *prometheus.CounterVec
	ProductDuration      prometheus.Histogram
	TierAssignmentsTotal *prometheus.CounterVec
	CacheLookupsTotal    *prometheus.CounterVec
	JobsTotal            *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	APIRequestCounter    *prometheus.CounterVec
	APIErrorCounter      *prometheus.CounterVec
}

// New registers all collectors on reg. A nil reg gets a fresh registry
// with the Go and process collectors.
func New(namespace string, reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		RecalcRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_recalc_runs_total",
			Help:      "Total number of client usage recalculation runs",
		}, []string{"status"}),

		RecalcRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "usage_recalc_run_duration_seconds",
			Help:      "Duration of client usage recalculation runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		ProductsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_recalc_products_total",
			Help:      "Products processed by recalculation, by outcome",
		}, []string{"outcome"}),

		ProductDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "usage_recalc_product_duration_seconds",
			Help:      "Per-product calculation and persistence duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		TierAssignmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_tier_assignments_total",
			Help:      "Calculation tiers assigned to products",
		}, []string{"tier"}),

		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_cache_lookups_total",
			Help:      "Usage estimate cache lookups, by result",
		}, []string{"result"}),

		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_jobs_total",
			Help:      "Background recalculation jobs, by task type and outcome",
		}, []string{"task", "outcome"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		APIRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "path"}),

		APIErrorCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_errors_total",
			Help:      "Total number of API errors",
		}, []string{"method", "path", "status"}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveRun records a finished client recalculation.
func (r *Recorder) ObserveRun(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.RecalcRunsTotal.WithLabelValues(status).Inc()
	r.RecalcRunDuration.Observe(d.Seconds())
}

// ObserveProduct records one product outcome. tier is empty on failure.
func (r *Recorder) ObserveProduct(tier domain.Tier, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	outcome := "succeeded"
	if !ok {
		outcome = "failed"
	}
	r.ProductsTotal.WithLabelValues(outcome).Inc()
	r.ProductDuration.Observe(d.Seconds())
	if ok && tier != "" {
		r.TierAssignmentsTotal.WithLabelValues(string(tier)).Inc()
	}
}

// ObserveCache records a cache lookup: hit, miss or error.
func (r *Recorder) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveJob records a background task outcome.
func (r *Recorder) ObserveJob(task, outcome string) {
	if r == nil {
		return
	}
	r.JobsTotal.WithLabelValues(task, outcome).Inc()
}

// GinMiddleware tracks request counts, durations and error responses.
func (r *Recorder) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		r.APIRequestCounter.WithLabelValues(method, path).Inc()
		r.RequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		if c.Writer.Status() >= http.StatusBadRequest {
			r.APIErrorCounter.WithLabelValues(method, path, status).Inc()
		}
	}
}
