// Package api exposes the HTTP interface for the scraping service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/config"
	"github.com/autoapply/jobscout/internal/dispatcher"
	"github.com/autoapply/jobscout/internal/metrics"
	"github.com/autoapply/jobscout/internal/scraper"
	"github.com/autoapply/jobscout/internal/tracker"
)

// ScrapeDispatcher queues a scrape job for background execution.
type ScrapeDispatcher interface {
	Enqueue(ctx context.Context, job scraper.ScrapeJob, resume bool) error
}

// Server wires HTTP handlers to the tracker, dispatcher, and job store.
type Server struct {
	router     chi.Router
	tracker    *tracker.Tracker
	dispatcher ScrapeDispatcher
	lister     scraper.JobLister
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(tr *tracker.Tracker, d ScrapeDispatcher, lister scraper.JobLister, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		tracker:    tr,
		dispatcher: d,
		lister:     lister,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/platforms", s.listPlatforms)
		r.Get("/jobs", s.listJobs)
		r.Route("/scrapes", func(r chi.Router) {
			r.Post("/", s.submitScrape)
			r.Get("/{scrape_id}", s.getScrape)
		})
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

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listPlatforms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]scraper.Platform{
		"platforms": {
			scraper.PlatformNaukri,
			scraper.PlatformLinkedIn,
			scraper.PlatformInstahire,
			scraper.PlatformAPISource,
		},
	})
}

const (
	defaultJobPageSize = 50
	maxJobPageSize     = 200
)

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultJobPageSize
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxJobPageSize {
			writeError(w, http.StatusBadRequest, "limit must be 1..200")
			return
		}
		limit = n
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be >= 0")
			return
		}
		offset = n
	}
	var platform scraper.Platform
	if raw := q.Get("platform"); raw != "" {
		p, err := scraper.ParsePlatform(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		platform = p
	}

	jobs, err := s.lister.ListJobs(r.Context(), platform, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

type scrapeRequest struct {
	Platform        string            `json:"platform"`
	Keyword         string            `json:"keyword"`
	Location        string            `json:"location"`
	ExperienceLevel string            `json:"experience_level"`
	Pages           int               `json:"pages"`
	ExtraFilters    map[string]string `json:"extra_filters"`
	Resume          bool              `json:"resume"`
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Pages == 0 {
		req.Pages = s.cfg.Scraper.DefaultPages
	}
	crawlReq := scraper.CrawlRequest{
		Platform:        scraper.Platform(req.Platform),
		Keyword:         req.Keyword,
		Location:        req.Location,
		ExperienceLevel: req.ExperienceLevel,
		PageBudget:      req.Pages,
		ExtraFilters:    req.ExtraFilters,
	}
	if err := crawlReq.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.tracker.Create(r.Context(), crawlReq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.dispatcher.Enqueue(r.Context(), job, req.Resume); err != nil {
		if errors.Is(err, dispatcher.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "scrape queue is full, retry later")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"scrape_id": job.ID,
		"status":    string(job.Status),
	})
}

func (s *Server) getScrape(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scrape_id")
	job, err := s.tracker.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, scraper.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "scrape not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
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

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
