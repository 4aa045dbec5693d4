package main

import (
	"context"
	_ "credit-engine/docs"
	"credit-engine/internal/api"
	"credit-engine/internal/api/middleware"
	"credit-engine/internal/batch"
	"credit-engine/internal/config"
	"credit-engine/internal/domain/account"
	"credit-engine/internal/domain/credit"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/cache"
	"credit-engine/internal/infrastructure/database/postgres"
	"credit-engine/internal/infrastructure/logging"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const (
	defaultRescoreSchedule = "0 3 * * *"
	defaultRescoreTimeout  = 1 * time.Hour
	defaultRabbitMQPort    = 5672
	rabbitMQDialAttempts   = 5
	cronStopTimeout        = 15 * time.Second
	httpShutdownTimeout    = 15 * time.Second
	serverExitTimeout      = 5 * time.Second
	reasonServerExited     = "server exited"
)

type jobRunner interface {
	Run(ctx context.Context) error
}

// application owns every long-lived resource so shutdown can release them in order.
type application struct {
	logger      *slog.Logger
	db          *pgxpool.Pool
	rabbitMQ    *amqp.Connection
	redis       *redis.Client
	rateLimiter *middleware.RateLimiterMiddleware
	scheduler   *cron.Cron
	server      *http.Server
}

// @title Credit Engine API
// @version 1.0
// @description Credit scoring and balance transfer service.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := loadConfiguration()
	app := &application{logger: logger}

	db, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Database is unreachable, exiting", "error", err)
		os.Exit(1)
	}
	app.db = db

	var publisher event.EventPublisher
	app.rabbitMQ, publisher = openEventPublisher(cfg.RabbitMQ, logger)

	app.redis, err = openIdempotencyStore(cfg.Redis, logger)
	if err != nil {
		logger.Error("Redis is unreachable, exiting", "error", err)
		app.db.Close()
		os.Exit(1)
	}

	services, creditRepo := buildServices(db, publisher, app.redis, logger)
	rescoreJob := batch.NewRescoreJob(creditRepo, services.Score, cfg.Batch.RescoreConcurrency, logger)
	app.scheduler = startScheduler(cfg.Batch, rescoreJob, logger)

	app.rateLimiter = middleware.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger)
	router := api.SetupRouter(app.rateLimiter, services, cfg, logger)
	app.server = newHTTPServer(cfg.Server, router, logger)

	serverErrors := app.serve()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	reason, err := waitForShutdownTrigger(signals, serverErrors, logger)
	if err != nil {
		app.shutdown("server failure", nil)
		os.Exit(1)
	}
	if reason == reasonServerExited {
		serverErrors = nil
	}
	app.shutdown(reason, serverErrors)
}

func loadConfiguration() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Configuration could not be loaded", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Credit engine starting", "config_file", cfg.Source)
	return cfg, logger
}

// openEventPublisher returns a nil publisher when RabbitMQ is disabled or
// unreachable; scoring and transfers still work without events.
func openEventPublisher(cfg config.RabbitMQConfig, logger *slog.Logger) (*amqp.Connection, event.EventPublisher) {
	if !cfg.Enabled {
		logger.Info("RabbitMQ disabled, domain events will not be published")
		return nil, nil
	}

	uri, err := buildRabbitMQURI(cfg)
	if err != nil {
		logger.Warn("RabbitMQ misconfigured, continuing without events", slog.Any("error", err))
		return nil, nil
	}
	conn, err := dialRabbitMQ(uri, rabbitMQDialAttempts, logger)
	if err != nil {
		logger.Warn("RabbitMQ unreachable, continuing without events", slog.Any("error", err))
		return nil, nil
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.ExchangeName, logger)
	if err != nil {
		logger.Warn("Event publisher unavailable, continuing without events", slog.Any("error", err))
		_ = conn.Close()
		return nil, nil
	}
	return conn, publisher
}

func openIdempotencyStore(cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	rdb, err := cache.OpenRedis(context.Background(), cfg, logger)
	if errors.Is(err, cache.ErrRedisDisabled) {
		logger.Info("Redis disabled, Idempotency-Key headers will be ignored")
		return nil, nil
	}
	return rdb, err
}

func buildServices(db *pgxpool.Pool, publisher event.EventPublisher, rdb *redis.Client, logger *slog.Logger) (api.Services, *postgres.CreditRepository) {
	unitOfWork := postgres.NewUnitOfWork(db, logger)
	creditRepo := postgres.NewCreditRepository(db, logger)
	accountRepo := postgres.NewAccountRepository(db, logger)

	services := api.Services{
		Score:    credit.NewScoreService(unitOfWork, creditRepo, publisher, logger),
		Transfer: account.NewTransferService(unitOfWork, accountRepo, publisher, logger),
	}
	// leave the interface nil when Redis is disabled
	if rdb != nil {
		services.Idempotency = rdb
	}
	return services, creditRepo
}

func newHTTPServer(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

// serve starts the listener; the returned channel yields exactly one value,
// nil after a graceful Shutdown.
func (a *application) serve() <-chan error {
	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "addr", a.server.Addr)
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serverErrors <- err
	}()
	return serverErrors
}

func waitForShutdownTrigger(signals <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) (string, error) {
	select {
	case sig := <-signals:
		logger.Info("Shutdown signal received", "signal", sig.String())
		return "signal: " + sig.String(), nil
	case err := <-serverErrors:
		if err != nil {
			logger.Error("HTTP server stopped unexpectedly", "error", err)
			return "", err
		}
		return reasonServerExited, nil
	}
}

// shutdown stops intake first (scheduler, HTTP) and then closes the backends
// those paths depend on. serverErrors may be nil when the server already exited.
func (a *application) shutdown(reason string, serverErrors <-chan error) {
	a.logger.Info("Graceful shutdown started", "trigger", reason)

	if a.scheduler != nil {
		stopScheduler(a.scheduler, cronStopTimeout, a.logger)
	}
	if a.server != nil {
		a.stopHTTPServer(serverErrors)
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	closeRabbitMQ(a.rabbitMQ, a.logger)
	cache.CloseRedis(a.redis, a.logger)
	if a.db != nil {
		a.logger.Info("Closing database connection pool")
		a.db.Close()
	}

	a.logger.Info("Graceful shutdown complete")
}

func (a *application) stopHTTPServer(serverErrors <-chan error) {
	ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server did not drain in time, forcing close", "error", err)
		if err := a.server.Close(); err != nil {
			a.logger.Error("HTTP server forced close failed", "error", err)
		}
	}
	if serverErrors == nil {
		return
	}

	select {
	case err := <-serverErrors:
		if err != nil {
			a.logger.Warn("HTTP server returned an error while stopping", "error", err)
		}
	case <-time.After(serverExitTimeout):
		a.logger.Warn("HTTP server goroutine did not report exit")
	}
}

func stopScheduler(c *cron.Cron, timeout time.Duration, logger *slog.Logger) {
	select {
	case <-c.Stop().Done():
		logger.Info("Batch scheduler stopped")
	case <-time.After(timeout):
		logger.Warn("Batch scheduler still running a job after timeout", "timeout", timeout)
	}
}

func closeRabbitMQ(conn *amqp.Connection, logger *slog.Logger) {
	if conn == nil || conn.IsClosed() {
		return
	}
	if err := conn.Close(); err != nil {
		logger.Error("RabbitMQ connection did not close cleanly", slog.Any("error", err))
		return
	}
	logger.Info("RabbitMQ connection closed")
}

func startScheduler(cfg config.BatchConfig, rescoreJob jobRunner, logger *slog.Logger) *cron.Cron {
	c := cron.New()

	if !cfg.RescoreEnabled {
		logger.Info("Scheduled rescoring disabled")
	} else if _, err := scheduleRescore(c, cfg, rescoreJob, logger); err != nil {
		logger.Error("Scheduled rescoring not registered", slog.Any("error", err))
	}

	c.Start()
	return c
}

func scheduleRescore(c *cron.Cron, cfg config.BatchConfig, job jobRunner, logger *slog.Logger) (cron.EntryID, error) {
	spec := cfg.RescoreSchedule
	if spec == "" {
		spec = defaultRescoreSchedule
	}
	timeout := cfg.RescoreTimeout
	if timeout <= 0 {
		timeout = defaultRescoreTimeout
	}

	jobLogger := logger.With("job_name", "Rescore")
	id, err := c.AddJob(spec, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := job.Run(ctx); err != nil {
			jobLogger.Error("Scheduled rescoring run failed", slog.Any("error", err))
		}
	}))
	if err != nil {
		return 0, fmt.Errorf("invalid rescore schedule %q: %w", spec, err)
	}

	logger.Info("Scheduled rescoring registered", "schedule", spec, "timeout", timeout, "entry_id", id)
	return id, nil
}

func buildRabbitMQURI(cfg config.RabbitMQConfig) (string, error) {
	if cfg.Host == "" {
		return "", errors.New("RabbitMQ host is not configured")
	}
	if (cfg.Username == "") != (cfg.Password == "") {
		return "", errors.New("RabbitMQ username and password must be provided together")
	}

	port := cfg.Port
	if port == 0 {
		port = defaultRabbitMQPort
	}
	if cfg.Username == "" {
		return fmt.Sprintf("amqp://%s:%d/", cfg.Host, port), nil
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.Username, cfg.Password, cfg.Host, port), nil
}

// dialRabbitMQ retries with a linearly growing pause between attempts.
func dialRabbitMQ(uri string, attempts int, logger *slog.Logger) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := amqp.Dial(uri)
		if err == nil {
			logger.Info("Connected to RabbitMQ", slog.Int("attempt", attempt))
			go watchRabbitMQ(conn, logger)
			return conn, nil
		}
		lastErr = err
		logger.Warn("RabbitMQ dial failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err),
		)
		if attempt < attempts {
			time.Sleep(time.Duration(attempt*2) * time.Second)
		}
	}
	return nil, fmt.Errorf("RabbitMQ unreachable after %d attempts: %w", attempts, lastErr)
}

func watchRabbitMQ(conn *amqp.Connection, logger *slog.Logger) {
	blocked := conn.NotifyBlocked(make(chan amqp.Blocking, 1))
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case b, ok := <-blocked:
			if !ok {
				return
			}
			if b.Active {
				logger.Warn("RabbitMQ flow control engaged", "reason", b.Reason)
			} else {
				logger.Info("RabbitMQ flow control released")
			}
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				logger.Error("RabbitMQ connection lost", slog.Any("error", amqpErr))
			}
			return
		}
	}
}
