// Package api exposes the scoring and model lifecycle operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/trafficguard/botscore/internal/config"
	"github.com/trafficguard/botscore/internal/models"
	"github.com/trafficguard/botscore/internal/predictor"
	"github.com/trafficguard/botscore/internal/registry"
	"github.com/trafficguard/botscore/internal/training"
)

// Pinger is anything with a health check; the ready endpoint fans out to
// all of them.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PredictionReader looks up recently cached decisions by fingerprint.
type PredictionReader interface {
	GetPrediction(ctx context.Context, fingerprint string) *models.CacheEntry
}

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	http   *http.Server
	logger *slog.Logger

	predictor    *predictor.Service
	orchestrator *training.Orchestrator
	registry     *registry.Registry
	dependencies map[string]Pinger
	predictions  PredictionReader
	queueDepth   func(ctx context.Context) int
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithDependency registers a named collaborator for the ready check.
func WithDependency(name string, p Pinger) ServerOption {
	return func(s *Server) {
		s.dependencies[name] = p
	}
}

// WithQueueDepth supplies the pending training-sample counter reported by
// the model info endpoint.
func WithQueueDepth(fn func(ctx context.Context) int) ServerOption {
	return func(s *Server) {
		s.queueDepth = fn
	}
}

// WithPredictionReader enables the cached-prediction lookup endpoint.
func WithPredictionReader(r PredictionReader) ServerOption {
	return func(s *Server) {
		s.predictions = r
	}
}

func NewServer(
	cfg *config.Config,
	pred *predictor.Service,
	orch *training.Orchestrator,
	reg *registry.Registry,
	opts ...ServerOption,
) *Server {
	s := &Server{
		cfg:          cfg,
		router:       chi.NewRouter(),
		logger:       slog.Default(),
		predictor:    pred,
		orchestrator: orch,
		registry:     reg,
		dependencies: make(map[string]Pinger),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(s.requestLogger)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.cfg.Auth.APIKey {
			respondError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	s.router.Group(func(r chi.Router) {
		r.Use(s.apiKeyMiddleware)

		r.Post("/analyze", s.analyze)
		r.Get("/predictions/{fingerprint}", s.cachedPrediction)
		r.Post("/samples", s.submitSample)
		r.Post("/train", s.triggerTraining)
		r.Post("/train/trigger", s.triggerTraining)

		r.Route("/model", func(r chi.Router) {
			r.Get("/info", s.modelInfo)
			r.Get("/versions", s.listVersions)
			r.Post("/rollback/{version}", s.rollback)
		})
	})
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	}
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: false,
		Error:   &apiError{Code: code, Message: message},
	})
}
