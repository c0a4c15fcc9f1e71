package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/griffinclark/Dan-at-Dawn/internal/analysis"
	"github.com/griffinclark/Dan-at-Dawn/internal/history"
	"github.com/griffinclark/Dan-at-Dawn/internal/redact"
	"github.com/griffinclark/Dan-at-Dawn/internal/report"
)

const (
	defaultAddr         = ":8080"
	defaultMaxBodyBytes = 4 << 20
	shutdownTimeout     = 10 * time.Second
)

// Defaults fill in what a request leaves out. Paths refer to files on the
// server.
type Defaults struct {
	PromptsPath         string
	SamplePath          string
	ReviewerContextPath string
	Principles          []analysis.Principle
}

// Options configures a Server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	Defaults       Defaults

	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
	// History enables the run endpoints and the history health check.
	History *history.Store
	// Redactor scrubs request snippets before they reach the backend.
	Redactor *redact.Redactor

	MaxBodyBytes int64
	Logger       *zap.Logger
}

// Server exposes the report pipeline over HTTP.
type Server struct {
	pipeline *report.Pipeline
	opts     Options
	logger   *zap.Logger
	handler  http.Handler
}

// New creates a Server that runs reports through p.
func New(p *report.Pipeline, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = defaultAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{pipeline: p, opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(s.logRequests)
	mux.Use(middleware.Recoverer)
	if len(s.opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	mux.Get("/healthz", s.handleHealth)
	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/reports", s.wrap(s.handleReport))
		rt.Get("/runs", s.wrap(s.handleRuns))
		rt.Get("/runs/{id}", s.wrap(s.handleRun))
	})
	return mux
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
