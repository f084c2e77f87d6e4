// Package server handles the HTTP API for the headline service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/ASHISH26940/headlines/internal/geo"
	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
)

// maxBodyBytes caps POST bodies.
const maxBodyBytes = 16 << 10

// HeadlineService is the interface our server needs from the business layer.
// By depending on an interface, handlers can be tested against fakes.
type HeadlineService interface {
	Get(ctx context.Context, country string) headline.Current
	Set(ctx context.Context, country, raw string) (headline.Entry, error)
	Recent(ctx context.Context, country string, limit int) []headline.Entry
}

// MetricsSource renders the current metrics snapshot.
type MetricsSource interface {
	DisplayMetrics(w http.ResponseWriter, r *http.Request) (interface{}, error)
}

// Options configures optional parts of the Server.
type Options struct {
	StaticDir string
	Metrics   MetricsSource
	Logger    hclog.Logger
}

// Server is the HTTP server for the headline API.
type Server struct {
	headlines HeadlineService
	geo       geo.Resolver
	metrics   MetricsSource
	logger    hclog.Logger
	router    *http.ServeMux
	handler   http.Handler
}

type errorResponse struct {
	Error string `json:"error"`
}

type setRequest struct {
	Headline any `json:"headline"`
}

type locationResponse struct {
	Country string `json:"country"`
}

type recentResponse struct {
	Recent []headline.Entry `json:"recent"`
}

// New creates a new Server instance.
func New(headlines HeadlineService, resolver geo.Resolver, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Server{
		headlines: headlines,
		geo:       resolver,
		metrics:   opts.Metrics,
		logger:    logger.Named("http"),
		router:    http.NewServeMux(),
	}
	s.registerRoutes(opts.StaticDir)
	s.handler = s.withRequestLogging(s.router)
	return s
}

// ServeHTTP makes our Server a standard http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// registerRoutes sets up the HTTP routing for the server.
func (s *Server) registerRoutes(staticDir string) {
	s.router.HandleFunc("GET /api/location", s.handleLocation)
	s.router.HandleFunc("GET /api/headline/{country}", s.handleGetHeadline)
	s.router.HandleFunc("POST /api/headline/{country}", s.handleSetHeadline)
	s.router.HandleFunc("GET /api/recent/{country}", s.handleRecent)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.HandleFunc("GET /debug/metrics", s.handleMetrics)
	}

	if staticDir == "" {
		return
	}
	if info, err := os.Stat(staticDir); err != nil || !info.IsDir() {
		s.logger.Warn("static directory not found, skipping", "dir", staticDir)
		return
	}
	s.router.Handle("GET /", http.FileServer(http.Dir(staticDir)))
}

// handleLocation resolves the visitor's country. It always answers 200.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	country := geo.Unknown
	if s.geo != nil {
		country = s.geo.Country(r.Context(), geo.ClientIP(r))
	}
	writeJSON(w, http.StatusOK, locationResponse{Country: country})
}

// handleGetHeadline returns the current headline, with nulls when none exists.
func (s *Server) handleGetHeadline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.headlines.Get(r.Context(), r.PathValue("country")))
}

// handleSetHeadline stores a new headline for the country.
func (s *Server) handleSetHeadline(w http.ResponseWriter, r *http.Request) {
	country := r.PathValue("country")

	var req setRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}
	text, ok := req.Headline.(string)
	if !ok || text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Headline is required"})
		return
	}

	entry, err := s.headlines.Set(r.Context(), country, text)
	switch {
	case errors.Is(err, headline.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Headline is required"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to save headline"})
	default:
		writeJSON(w, http.StatusOK, entry)
	}
}

// handleRecent returns the country's most recent headlines, newest first.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	recent := s.headlines.Recent(r.Context(), r.PathValue("country"), 0)
	writeJSON(w, http.StatusOK, recentResponse{Recent: recent})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	data, err := s.metrics.DisplayMetrics(w, r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to collect metrics"})
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// withRequestLogging tags each request with an ID and logs its outcome.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.MeasureSince([]string{"http", "request"}, start)
		s.logger.Debug("request", "id", id, "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
