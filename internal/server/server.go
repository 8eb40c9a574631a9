// Package server exposes the search service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"vidsearch/config"
	"vidsearch/internal/domain"
)

// Service is the subset of usecase.SearchUseCase the API serves.
type Service interface {
	Ingest(ctx context.Context, filename string, fields domain.AnalysisFields) (string, error)
	Query(ctx context.Context, text string, k int) ([]domain.SearchResult, error)
	GetByID(ctx context.Context, id string) (domain.AnalysisRecord, error)
	ListAll(ctx context.Context) ([]domain.AnalysisRecord, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// Server wires routes to a Service.
type Server struct {
	*mux.Router
	svc    Service
	cfg    config.ServerConfig
	apiKey string
	logger *slog.Logger
}

// New builds the router. An empty apiKey disables authentication.
func New(svc Service, cfg config.ServerConfig, apiKey string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Router: mux.NewRouter(),
		svc:    svc,
		cfg:    cfg,
		apiKey: apiKey,
		logger: logger,
	}

	s.Router.Use(s.logRequests)

	// Public routes
	s.Router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	// Protected routes
	protected := s.Router.PathPrefix("").Subrouter()
	protected.Use(s.authMiddleware)

	videos := protected.PathPrefix("/videos").Subrouter()
	videos.HandleFunc("", s.listVideos).Methods(http.MethodGet)
	videos.HandleFunc("", s.addVideo).Methods(http.MethodPost)
	videos.HandleFunc("/{id}", s.getVideo).Methods(http.MethodGet)

	protected.HandleFunc("/search", s.search).Methods(http.MethodPost)
	protected.HandleFunc("/stats", s.stats).Methods(http.MethodGet)

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}
		if key != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
