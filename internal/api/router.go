package api

import (
	_ "credit-engine/docs"
	"credit-engine/internal/api/handler"
	mw "credit-engine/internal/api/middleware"
	"credit-engine/internal/config"
	"credit-engine/internal/domain/account"
	"credit-engine/internal/domain/credit"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const (
	requestTimeout     = 60 * time.Second
	// A pending idempotency record must outlive any handler run.
	idempotencyLockTTL = requestTimeout + 30*time.Second
)

// Services groups what the HTTP layer calls into. Idempotency may be nil.
type Services struct {
	Score       credit.ScoreService
	Transfer    account.TransferService
	Idempotency mw.IdempotencyStore
}

func SetupRouter(rateLimiter *mw.RateLimiterMiddleware, services Services, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, rateLimiter, logger)
	setupMetricsEndpoint(router, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)
	setupAuthRoutes(router, cfg, logger)
	setupCreditRoutes(router, cfg, services.Score, logger)
	setupAccountRoutes(router, cfg, services, logger)

	return router
}

func setupMiddleware(router *chi.Mux, rateLimiter *mw.RateLimiterMiddleware, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))
	if rateLimiter != nil {
		router.Use(rateLimiter.Middleware)
	}
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(cfg.Server.Auth, logger)
	router.Post("/auth/token", authHandler.GenerateBearerToken)
}

func setupCreditRoutes(router *chi.Mux, cfg *config.Config, svc credit.ScoreService, logger *slog.Logger) {
	h := handler.NewCreditHandler(svc, logger)

	router.Route("/customers/{customerID}/credit-score", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CalculateScore)
		r.Get("/", h.GetScore)
		r.Get("/alerts", h.ListAlerts)
	})
}

func setupAccountRoutes(router *chi.Mux, cfg *config.Config, services Services, logger *slog.Logger) {
	h := handler.NewAccountHandler(services.Transfer, logger)
	auth := mw.AuthMiddleware(cfg.Server.Auth, logger)

	router.With(auth, mw.Idempotency(services.Idempotency, cfg.Redis.IdempotencyTTL, idempotencyLockTTL, logger)).
		Post("/transfers", h.Transfer)
	router.With(auth).Get("/accounts/{accountID}", h.GetAccount)
}
