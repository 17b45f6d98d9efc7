// Package api provides the HTTP REST API server for marketbrief.
//
// It exposes the analysis pipeline, the run history and rendered reports,
// plus health and Prometheus endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seenimoa/marketbrief/internal/agent"
	"github.com/seenimoa/marketbrief/internal/config"
	"github.com/seenimoa/marketbrief/internal/metrics"
	"github.com/seenimoa/marketbrief/internal/report"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	coord   *agent.Coordinator
	metrics *metrics.Recorder
	log     zerolog.Logger
	started time.Time
}

// NewServer creates a configured API server with all routes and middleware.
// rec may be nil, in which case a fresh recorder backs /metrics.
func NewServer(cfg *config.Config, coord *agent.Coordinator, rec *metrics.Recorder, log zerolog.Logger) *Server {
	if rec == nil {
		rec = metrics.New()
	}
	s := &Server{
		cfg:     cfg,
		coord:   coord,
		metrics: rec,
		log:     log,
		started: time.Now(),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.runTimeout() + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// runTimeout bounds a single analysis request: both fetch stages plus the
// model call.
func (s *Server) runTimeout() time.Duration {
	return 2*s.cfg.Pipeline.RequestTimeout + s.cfg.LLM.Timeout
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.runTimeout()))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/analyze", s.handleAnalyze)

		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleRecord)
		r.Get("/history/{id}/report", s.handleReport)

		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	return r
}

// requestLogger logs each request with zerolog and records it in the HTTP
// metrics under its route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, r.Method, status, elapsed)

		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// AnalyzeRequest is the body for POST /api/v1/analyze. Tickers, when
// given, replace extraction from the query. Format selects the response
// body: "json" returns the record in the envelope, any other report format
// returns the rendered report.
type AnalyzeRequest struct {
	Query   string   `json:"query"   validate:"required_without=Tickers,max=2000"`
	Tickers []string `json:"tickers" validate:"max=20,dive,min=1,max=12"`
	Format  string   `json:"format"  default:"json" validate:"oneof=json text markdown md html yaml yml txt"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Runs    int    `json:"runs"`
	Version string `json:"version,omitempty"`
}

var validate = validator.New()

// Version is reported by /health; set by main.
var Version = ""

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(s.started).Round(time.Second).String(),
			Runs:    s.coord.History().Len(),
			Version: Version,
		},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := defaults.Set(&req); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	format, err := report.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.coord.RunWithTickers(r.Context(), req.Query, req.Tickers)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "analysis aborted: "+err.Error())
		return
	}

	if format == report.FormatJSON {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rec})
		return
	}
	s.renderReport(w, rec, format)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.coord.History().Summaries(),
	})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, found := s.coord.History().Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "no analysis with id "+id.String())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: rec})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, found := s.coord.History().Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "no analysis with id "+id.String())
		return
	}
	s.renderReport(w, rec, format)
}

// renderReport writes rec as a report in format.
func (s *Server) renderReport(w http.ResponseWriter, rec *models.AnalysisRecord, format report.Format) {
	body, err := report.String(rec, format)
	if err != nil {
		s.log.Error().Err(err).Str("id", rec.ID.String()).Msg("render report")
		writeError(w, http.StatusInternalServerError, "render report: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// ============================================================
// Helpers
// ============================================================

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required_without":
		return "query or tickers is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s exceeds the maximum of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
