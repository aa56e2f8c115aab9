// Package metrics exposes Prometheus collectors for the blog engine.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	blogPagesTotal             *prometheus.CounterVec
	formatterRunsTotal         *prometheus.CounterVec
	standardizedPostsTotal     *prometheus.CounterVec
	verificationsTotal         *prometheus.CounterVec
	verifierBytesTotal         *prometheus.CounterVec
	jobsTotal                  *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		blogPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_pages_rendered_total",
				Help: "Total number of blog pages served, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		formatterRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_formatter_runs_total",
				Help: "Total number of formatter runs, labeled by result.",
			},
			[]string{"result"},
		)

		standardizedPostsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_standardized_posts_total",
				Help: "Total number of posts considered for standardization, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		verificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_verifications_total",
				Help: "Total number of backlink verifications, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		verifierBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_verifier_bytes_total",
				Help: "Total number of bytes fetched by the verifier, labeled by site.",
			},
			[]string{"site"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_jobs_total",
				Help: "Total number of jobs processed, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "blog_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blog_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePage counts a served blog page.
func ObservePage(outcome string) {
	Init()
	blogPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFormat counts a formatter run; result is "ok" or "fallback".
func ObserveFormat(result string) {
	Init()
	formatterRunsTotal.WithLabelValues(result).Inc()
}

// ObserveStandardize counts a standardization decision.
func ObserveStandardize(outcome string) {
	Init()
	standardizedPostsTotal.WithLabelValues(outcome).Inc()
}

// ObserveVerification increments the verification metrics.
func ObserveVerification(site, outcome string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	verificationsTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		verifierBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveJob increments the job counter for the given kind and status.
func ObserveJob(kind, status string) {
	Init()
	jobsTotal.WithLabelValues(kind, status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
