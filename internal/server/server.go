// Package server exposes the decision pipeline as an HTTP service.
//
// A long-running instance lets CI fleets request decisions without
// paying process startup per evaluation. Each request names a
// repository on the server's filesystem plus the revisions to compare.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/changegate/internal/decision"
	"github.com/Sumatoshi-tech/changegate/internal/driver"
	"github.com/Sumatoshi-tech/changegate/internal/observability"
	"github.com/Sumatoshi-tech/changegate/internal/policy"
	"github.com/Sumatoshi-tech/changegate/pkg/gitlib"
)

// maxRequestBody bounds decide request payloads.
const maxRequestBody int64 = 1 << 20

// Server timeouts.
const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// ErrNoPolicy indicates a decide request with neither inline patterns
// nor a server-side default policy.
var ErrNoPolicy = errors.New("no policy configured")

// Config holds decision service settings.
type Config struct {
	Addr          string
	DefaultPolicy *policy.Compiled
	Variants      decision.Variants
	Timeout       time.Duration
}

// Server is the HTTP decision service.
type Server struct {
	config  Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.DecisionMetrics
	prom    http.Handler
	server  *http.Server
}

// New creates a decision service instance. prom may be nil when metrics
// exposition is disabled.
func New(config Config, logger *slog.Logger, tracer trace.Tracer, metrics *observability.DecisionMetrics, prom http.Handler) *Server {
	return &Server{
		config:  config,
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
		prom:    prom,
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	s.logger.Info("decision service starting", "addr", s.config.Addr)

	errCh := make(chan error, 1)

	go func() {
		serveErr := s.server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("decision service shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := s.server.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			return fmt.Errorf("shutdown decision service: %w", shutdownErr)
		}

		return ctx.Err()
	case serveErr := <-errCh:
		return fmt.Errorf("decision service: %w", serveErr)
	}
}

// Handler returns the configured router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.loggingMiddleware)
	router.Use(middleware.Recoverer)

	router.Post("/api/v1/decide", s.handleDecide)
	router.Get("/healthz", observability.HealthHandler().ServeHTTP)
	router.Get("/readyz", observability.ReadyHandler(s.readyCheck).ServeHTTP)

	if s.prom != nil {
		router.Get("/metrics", s.prom.ServeHTTP)
	}

	return router
}

// readyCheck reports whether the service can evaluate requests.
func (s *Server) readyCheck(context.Context) error {
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// DecideRequest is the decide endpoint payload.
type DecideRequest struct {
	Repository string   `json:"repository"`
	Base       string   `json:"base"`
	Head       string   `json:"head"`
	Patterns   []string `json:"patterns,omitempty"`
}

// ErrorResponse is the JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	req, decodeErr := decodeDecideRequest(r)
	if decodeErr != nil {
		s.respondError(w, http.StatusBadRequest, decodeErr.Error())

		return
	}

	compiled, policyErr := s.requestPolicy(req)
	if policyErr != nil {
		s.respondError(w, http.StatusBadRequest, policyErr.Error())

		return
	}

	repo, openErr := gitlib.OpenRepository(req.Repository)
	if openErr != nil {
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("open repository: %v", openErr))

		return
	}
	defer repo.Free()

	var doc bytes.Buffer

	outcome := driver.Run(r.Context(), driver.Deps{
		Repo:     repo,
		Policy:   compiled,
		Base:     req.Base,
		Head:     req.Head,
		Variants: s.config.Variants,
		Emitter:  decision.Emitter{Format: decision.FormatJSON},
		Sink:     &doc,
		Timeout:  s.config.Timeout,
		Logger:   s.logger,
		Tracer:   s.tracer,
		Metrics:  s.metrics,
	})

	if outcome.ExitCode == driver.ExitNoDecision {
		s.logger.Error("decide request produced no decision", "repository", req.Repository, "error", outcome.Err)
		s.respondError(w, http.StatusInternalServerError, "decision could not be produced")

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Bytes())
}

func decodeDecideRequest(r *http.Request) (*DecideRequest, error) {
	body, readErr := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if readErr != nil {
		return nil, fmt.Errorf("read request body: %w", readErr)
	}

	var req DecideRequest

	unmarshalErr := json.Unmarshal(body, &req)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("decode request: %w", unmarshalErr)
	}

	if req.Repository == "" {
		return nil, errors.New("repository is required")
	}

	return &req, nil
}

// requestPolicy compiles inline request patterns, falling back to the
// server default policy.
func (s *Server) requestPolicy(req *DecideRequest) (*policy.Compiled, error) {
	if len(req.Patterns) > 0 {
		pol := policy.Policy{Patterns: req.Patterns}

		compiled, compileErr := pol.Compile()
		if compileErr != nil {
			return nil, fmt.Errorf("compile request patterns: %w", compileErr)
		}

		return compiled, nil
	}

	if s.config.DefaultPolicy == nil {
		return nil, ErrNoPolicy
	}

	return s.config.DefaultPolicy, nil
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
