package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerd/internal/adapter/http/handler"
	"github.com/iho/ledgerd/internal/adapter/http/middleware"
	"github.com/iho/ledgerd/internal/infrastructure/metrics"
	"github.com/iho/ledgerd/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler   *handler.AccountHandler
	TransferHandler  *handler.TransferHandler
	RetryHandler     *handler.RetryHandler
	LedgerHandler    *handler.LedgerHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IdempotencyStore != nil {
			idempotency := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger)
			r.Use(idempotency.Wrap)
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{number}", cfg.AccountHandler.Get)
			r.Post("/{number}/replay", cfg.AccountHandler.Replay)
			r.Get("/{number}/entries", cfg.AccountHandler.ListEntries)
			r.Post("/{number}/credit", cfg.AccountHandler.Credit)
		})

		r.Post("/transfers", cfg.TransferHandler.Create)
		r.Get("/transactions", cfg.TransferHandler.History)
		r.Get("/transactions/{id}", cfg.TransferHandler.GetTransaction)

		r.Route("/retries", func(r chi.Router) {
			r.Get("/due", cfg.RetryHandler.Due)
			r.Get("/dead-letters", cfg.RetryHandler.DeadLetters)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/reconciliation", cfg.LedgerHandler.Reconcile)
			r.Get("/reconciliation/{number}", cfg.LedgerHandler.ReconcileAccount)
			r.Post("/sweep", cfg.LedgerHandler.Sweep)
		})
	})

	return r
}
