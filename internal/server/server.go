// Package server exposes the query surface of the active Model over HTTP.
// It is read-only apart from POST /api/reload, which rebuilds the Model
// from the source and swaps it in atomically.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/derickschaefer/pickup/internal/engine"
)

// Config holds server settings.
type Config struct {
	Addr           string
	RateLimit      float64 // requests per second on /api; <= 0 disables
	Burst          int
	ReloadSchedule string                                // cron spec; empty disables scheduled reloads
	OnReload       func(trigger string, st engine.Stats) // called after a rebuild
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns local-only defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:5000",
		RateLimit:    20,
		Burst:        40,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server routes HTTP requests to the Model held by a Holder.
type Server struct {
	cfg     Config
	holder  *engine.Holder
	router  *mux.Router
	metrics *Metrics
	limiter *rate.Limiter
}

// New builds a Server and its routes.
func New(cfg Config, holder *engine.Holder) *Server {
	s := &Server{
		cfg:     cfg,
		holder:  holder,
		router:  mux.NewRouter(),
		metrics: NewMetrics(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	s.metrics.ObserveModel(holder.Load())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.accessLogMiddleware)
	s.router.Use(s.metricsMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/progression", s.handleProgression).Methods(http.MethodGet)
	api.HandleFunc("/series", s.handleSeries).Methods(http.MethodGet)
	api.HandleFunc("/curve", s.handleCurve).Methods(http.MethodGet)
	api.HandleFunc("/anomalies", s.handleAnomalies).Methods(http.MethodGet)
	api.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed: "+r.Method)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.ReloadSchedule != "" {
		stop, err := s.startScheduler(ctx)
		if err != nil {
			return err
		}
		defer stop()
	}

	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
