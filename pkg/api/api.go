// Package api serves stored reports over HTTP as JSON.
//
// Routes:
//
//	GET /healthz
//	GET /reports                                 runs, newest first (?limit=N)
//	GET /reports/latest                          the newest report
//	GET /reports/latest/components               components (?missing=true for unsupported only)
//	GET /reports/latest/components/{domain}      one component
//	GET /reports/latest/outdated                 outdated packages
//	GET /reports/{runID}                         a report by run id
//	GET /metrics                                 Prometheus metrics, with [WithMetrics]
//
// Errors are returned as {"code": "...", "error": "..."} with a status
// derived from the error code.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/observability"
	"github.com/matzehuels/compkgs/pkg/report"
	"github.com/matzehuels/compkgs/pkg/store"
)

// Server exposes a [store.Store] over HTTP.
type Server struct {
	store   store.Store
	logger  *log.Logger
	metrics *observability.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics in m and serves them at /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server. A nil logger uses log.Default().
func New(s store.Store, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Default()
	}
	srv := &Server{store: s, logger: logger}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", s.listReports)
		r.Route("/latest", func(r chi.Router) {
			r.Get("/", s.latest)
			r.Get("/components", s.components)
			r.Get("/components/{domain}", s.component)
			r.Get("/outdated", s.outdated)
		})
		r.Get("/{runID}", s.report)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	infos, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if infos == nil {
		infos = []store.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) {
	if rep, ok := s.latestReport(w, r); ok {
		writeJSON(w, http.StatusOK, rep)
	}
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.Get(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) components(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.latestReport(w, r)
	if !ok {
		return
	}
	out := rep.Components
	if missing, _ := strconv.ParseBool(r.URL.Query().Get("missing")); missing {
		out = rep.Unsupported()
	}
	if out == nil {
		out = []report.ComponentResult{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) component(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.latestReport(w, r)
	if !ok {
		return
	}
	domain := chi.URLParam(r, "domain")
	c, found := rep.Component(domain)
	if !found {
		s.writeError(w, errors.New(errors.ErrCodeUnknownComponent, "unknown component %q", domain))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) outdated(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.latestReport(w, r)
	if !ok {
		return
	}
	out := rep.Outdated
	if out == nil {
		out = []report.Outdated{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) latestReport(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	rep, err := s.store.Latest(r.Context())
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return rep, true
}

type errorBody struct {
	Code  errors.Code `json:"code"`
	Error string      `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorBody{Code: code, Error: errors.UserMessage(err)})
}

func statusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound, errors.ErrCodeUnknownComponent:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
