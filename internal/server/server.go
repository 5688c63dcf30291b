// Package server assembles the HTTP and WebSocket API in front of the escrow
// engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mintmatch/mintmatch/internal/domain"
	"github.com/mintmatch/mintmatch/internal/server/handler"
	"github.com/mintmatch/mintmatch/internal/server/middleware"
	"github.com/mintmatch/mintmatch/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // requests per window per client, 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Bets   *handler.BetHandler
	Prices *handler.PriceHandler
	Admin  *handler.AdminHandler
	Events *handler.EventHandler

	// Archive is nil when blob storage is disabled; its routes are then not
	// registered.
	Archive *handler.ArchiveHandler
}

// Server is the headless HTTP + WebSocket API server for the escrow engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (rate limiting, auth, logging, CORS) applied. limiter
// may be nil when throttling is disabled; wsHub may be nil when the signal
// bus is absent.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bet lifecycle.
	mux.HandleFunc("POST /api/bets", handlers.Bets.CreateBet)
	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("GET /api/bets/{id}", handlers.Bets.GetBet)
	mux.HandleFunc("POST /api/bets/{id}/accept", handlers.Bets.AcceptBet)
	mux.HandleFunc("POST /api/bets/{id}/cancel", handlers.Bets.CancelBet)
	mux.HandleFunc("GET /api/bets/{id}/quote", handlers.Bets.QuoteBet)

	// Market prices and stateless quoting.
	mux.HandleFunc("GET /api/markets/{address}/prices", handlers.Prices.GetPrices)
	mux.HandleFunc("GET /api/quote", handlers.Prices.CalculateQuote)

	// Audit log.
	mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)

	// Owner-only parameter endpoints.
	mux.HandleFunc("GET /api/admin/params", handlers.Admin.GetParams)
	mux.HandleFunc("PUT /api/admin/tolerance", handlers.Admin.SetTolerance)
	mux.HandleFunc("PUT /api/admin/fee", handlers.Admin.SetFee)
	mux.HandleFunc("PUT /api/admin/registry", handlers.Admin.SetRegistry)

	// Archive browsing; only when blob storage is wired.
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive", handlers.Archive.ListArchives)
		mux.HandleFunc("GET /api/archive/{kind}/{month}", handlers.Archive.GetArchive)
		mux.HandleFunc("DELETE /api/archive/{kind}/{month}", handlers.Archive.DeleteArchive)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
