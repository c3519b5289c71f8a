// Package server is the HTTP API for the tournament: leaderboards, costs,
// rounds, cohorts, markets, and the cron trigger endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/server/handler"
	"github.com/alanyoungcy/forecastarena/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// CronSecret guards the mutating trigger endpoints (round, settle,
	// cohort, sync). Read endpoints stay open. Empty disables the guard.
	CronSecret string

	// RateLimit caps requests per client IP per RateWindow; zero disables
	// limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health      *handler.HealthHandler
	Leaderboard *handler.LeaderboardHandler
	Costs       *handler.CostHandler
	Rounds      *handler.RoundHandler
	Cohorts     *handler.CohortHandler
	Settlement  *handler.SettlementHandler
	Markets     *handler.MarketHandler
}

// Server is the headless HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. limiter may be nil
// to disable per-client rate limiting.
func NewServer(cfg Config, h Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	guard := middleware.Auth(cfg.CronSecret)

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("GET /api/leaderboard", h.Leaderboard.Leaderboard)
	mux.HandleFunc("GET /api/clusters", h.Leaderboard.Clusters)
	mux.HandleFunc("GET /api/agents/{id}/calibration", h.Leaderboard.Calibration)
	mux.HandleFunc("GET /api/agents/{id}/decomposition", h.Leaderboard.Decomposition)

	mux.HandleFunc("GET /api/costs", h.Costs.Costs)

	mux.HandleFunc("GET /api/rounds", h.Rounds.ListRounds)
	mux.HandleFunc("GET /api/rounds/{id}", h.Rounds.GetRound)
	mux.HandleFunc("GET /api/rounds/{id}/archive", h.Rounds.GetRoundArchive)
	mux.Handle("POST /api/rounds", guard(http.HandlerFunc(h.Rounds.TriggerRound)))

	mux.HandleFunc("GET /api/cohorts", h.Cohorts.ListCohorts)
	mux.HandleFunc("GET /api/cohorts/active", h.Cohorts.ActiveCohort)
	mux.Handle("POST /api/cohorts", guard(http.HandlerFunc(h.Cohorts.CreateCohort)))

	mux.Handle("POST /api/settle", guard(http.HandlerFunc(h.Settlement.TriggerSettlement)))

	mux.HandleFunc("GET /api/markets", h.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.Markets.GetMarket)
	mux.Handle("POST /api/markets/sync", guard(http.HandlerFunc(h.Markets.SyncMarkets)))

	var root http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		root = middleware.RateLimit(limiter, cfg.RateLimit, window)(root)
	}
	root = middleware.Logging(logger)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // round triggers run synchronously
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start listens for HTTP requests and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
