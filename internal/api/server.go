// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/beta-portfolio/internal/config"
	"github.com/beta-portfolio/internal/metrics"
	"github.com/beta-portfolio/internal/service"
	"github.com/beta-portfolio/internal/worker"
)

// Server is the HTTP front of the service.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	analyzer   *service.Analyzer
	scanner    *service.Scanner
	pool       *worker.Pool
	met        *metrics.Metrics
	log        zerolog.Logger
}

// NewServer builds the router and middleware chain.
func NewServer(cfg config.ServerConfig, analyzer *service.Analyzer, scanner *service.Scanner, pool *worker.Pool, met *metrics.Metrics, log zerolog.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		analyzer: analyzer,
		scanner:  scanner,
		pool:     pool,
		met:      met,
		log:      log,
	}
	s.routes(cfg)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) routes(cfg config.ServerConfig) {
	s.router.Use(recoveryMiddleware(s.log))
	s.router.Use(loggingMiddleware(s.log))
	s.router.Use(corsMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(rateLimitMiddleware(cfg.ClientRPS))
	api.Use(gzipMiddleware)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/status/{id}", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/chains", s.handleChains).Methods(http.MethodGet)
	api.HandleFunc("/balances/{address}", s.handleBalances).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.met.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Handler exposes the configured router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
