// Package api exposes the listing and detail endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/metrics"
)

// ListingSource serves one listing page.
type ListingSource interface {
	FetchPage(ctx context.Context, n int) (domain.ListingPage, error)
}

// DetailSource resolves and persists one detail page.
type DetailSource interface {
	Resolve(ctx context.Context, detailURL string) (domain.DetailResult, error)
}

// RequestTimeoutFor bounds a request by the slowest handler path: one page
// fetch followed by one embed probe, each limited by upstream.
func RequestTimeoutFor(upstream time.Duration) time.Duration {
	return 2*upstream + 10*time.Second
}

// Options configure middleware.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the listing walker and detail resolver.
type Server struct {
	router  chi.Router
	listing ListingSource
	details DetailSource
	logger  *slog.Logger
}

type listingResponse struct {
	Page   int                  `json:"page"`
	URL    string               `json:"url"`
	Videos []domain.SummaryItem `json:"videos"`
}

type detailResponse struct {
	domain.DetailRecord
	SavedToSupabase bool   `json:"savedToSupabase"`
	Message         string `json:"message,omitempty"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(listing ListingSource, details DetailSource, recorder *metrics.Recorder, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = RequestTimeoutFor(60 * time.Second)
	}

	s := &Server{
		listing: listing,
		details: details,
		logger:  logger.With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(recorder.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", recorder.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/videos", s.listVideos)
		r.Get("/video-detail", s.videoDetail)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listVideos(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("page")))
	if err != nil || n < 1 {
		n = 1
	}

	page, err := s.listing.FetchPage(r.Context(), n)
	if err != nil {
		s.logger.Error("listing failed", "page", n, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to scrape videos on page %d.", n))
		return
	}

	videos := page.Items
	if videos == nil {
		videos = []domain.SummaryItem{}
	}
	writeJSON(w, http.StatusOK, listingResponse{Page: page.Number, URL: page.URL, Videos: videos})
}

func (s *Server) videoDetail(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "Invalid or missing URL.")
		return
	}

	result, err := s.details.Resolve(r.Context(), target)
	if err != nil {
		status, msg := detailError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("video detail failed", "url", target, "error", err)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, detailResponse{
		DetailRecord:    result.Record,
		SavedToSupabase: result.Saved,
		Message:         result.Message,
	})
}

func detailError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Invalid or missing URL."
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Embed video not found."
	case errors.Is(err, domain.ErrEmbedUnreachable):
		return http.StatusInternalServerError, "Failed to access iframe video."
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, "Failed to check existing video in store."
	default:
		return http.StatusInternalServerError, "Failed to scrape video detail."
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "error", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Replaced by the handler's own headers unless the request times out.
			w.Header().Set("Content-Type", "application/json")
			h.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("write JSON failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
