// Package metrics exposes Prometheus collectors for the scraping service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal          *prometheus.CounterVec
	scraperJobsScrapedTotal    *prometheus.CounterVec
	scraperRateLimitHitsTotal  *prometheus.CounterVec
	scraperBlocksTotal         *prometheus.CounterVec
	scraperSessionRotations    *prometheus.CounterVec
	scraperPageDurationSeconds *prometheus.HistogramVec
	scrapeJobsTotal            *prometheus.CounterVec
	scraperActiveCrawls        prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total number of listing pages processed, labeled by platform and status.",
			},
			[]string{"platform", "status"},
		)

		scraperJobsScrapedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_jobs_scraped_total",
				Help: "Total number of job records extracted, labeled by platform.",
			},
			[]string{"platform"},
		)

		scraperRateLimitHitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_rate_limit_hits_total",
				Help: "Total number of rate-limit responses encountered, labeled by platform.",
			},
			[]string{"platform"},
		)

		scraperBlocksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_blocks_total",
				Help: "Total number of block pages detected, labeled by platform.",
			},
			[]string{"platform"},
		)

		scraperSessionRotations = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_session_rotations_total",
				Help: "Total number of browser session rotations, labeled by platform.",
			},
			[]string{"platform"},
		)

		scraperPageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_page_duration_seconds",
				Help:    "Histogram of per-page processing latencies, labeled by platform.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"platform"},
		)

		scrapeJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_jobs_total",
				Help: "Total number of scrape jobs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		scraperActiveCrawls = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_crawls",
				Help: "Number of crawls currently in flight.",
			},
		)

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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one processed listing page.
func ObservePage(platform, status string, duration time.Duration) {
	scraperPagesTotal.WithLabelValues(platform, status).Inc()
	scraperPageDurationSeconds.WithLabelValues(platform).Observe(duration.Seconds())
}

// ObserveJobsScraped adds extracted records to the per-platform counter.
func ObserveJobsScraped(platform string, count int) {
	if count > 0 {
		scraperJobsScrapedTotal.WithLabelValues(platform).Add(float64(count))
	}
}

// ObserveRateLimit increments the rate-limit counter for a platform.
func ObserveRateLimit(platform string) {
	scraperRateLimitHitsTotal.WithLabelValues(platform).Inc()
}

// ObserveBlock increments the block counter for a platform.
func ObserveBlock(platform string) {
	scraperBlocksTotal.WithLabelValues(platform).Inc()
}

// ObserveSessionRotation increments the rotation counter for a platform.
func ObserveSessionRotation(platform string) {
	scraperSessionRotations.WithLabelValues(platform).Inc()
}

// ObserveScrapeJob increments the scrape-job counter for a terminal status.
func ObserveScrapeJob(status string) {
	scrapeJobsTotal.WithLabelValues(status).Inc()
}

// IncActiveCrawls increments the in-flight crawl gauge.
func IncActiveCrawls() {
	scraperActiveCrawls.Inc()
}

// DecActiveCrawls decrements the in-flight crawl gauge.
func DecActiveCrawls() {
	scraperActiveCrawls.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
