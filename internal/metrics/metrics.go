// Package metrics exposes Prometheus collectors for the harvester and its API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Item outcomes recorded by the pipeline.
const (
	OutcomeSaved        = "saved"
	OutcomeAlreadyKnown = "already_known"
	OutcomeNotPersisted = "not_persisted"
	OutcomeFailed       = "failed"
)

// Recorder owns the collectors of one registry. A nil *Recorder is a no-op.
type Recorder struct {
	gatherer prometheus.Gatherer

	listingPages     *prometheus.CounterVec
	items            *prometheus.CounterVec
	downloads        *prometheus.CounterVec
	downloadBytes    prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDurationSecs *prometheus.HistogramVec
}

// New registers collectors on reg. A nil reg gets a fresh private registry.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Recorder{
		gatherer: reg,
		listingPages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ufcserver_listing_pages_total",
				Help: "Listing pages walked, labeled by status.",
			},
			[]string{"status"},
		),
		items: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ufcserver_items_total",
				Help: "Listing items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		downloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ufcserver_downloads_total",
				Help: "Media acquisitions, labeled by status.",
			},
			[]string{"status"},
		),
		downloadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ufcserver_download_bytes_total",
				Help: "Bytes written to the media directory.",
			},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ufcserver_http_requests_total",
				Help: "API requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		),
		httpDurationSecs: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ufcserver_http_request_duration_seconds",
				Help:    "API request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// ListingPage counts a walked page.
func (r *Recorder) ListingPage(ok bool) {
	if r == nil {
		return
	}
	r.listingPages.WithLabelValues(status(ok)).Inc()
}

// Item counts a processed listing item.
func (r *Recorder) Item(outcome string) {
	if r == nil {
		return
	}
	r.items.WithLabelValues(outcome).Inc()
}

// Download counts an acquisition and, on success, its bytes.
func (r *Recorder) Download(ok bool, bytes int64) {
	if r == nil {
		return
	}
	r.downloads.WithLabelValues(status(ok)).Inc()
	if ok && bytes > 0 {
		r.downloadBytes.Add(float64(bytes))
	}
}

// HTTPRequest records one served API request.
func (r *Recorder) HTTPRequest(method, route string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.httpDurationSecs.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Middleware is a chi middleware that records request counts by route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, req)

		route := "unknown"
		if rctx := chi.RouteContext(req.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		r.HTTPRequest(req.Method, route, ww.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
