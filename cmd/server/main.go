package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/ledgerd/internal/adapter/http"
	"github.com/iho/ledgerd/internal/adapter/http/handler"
	"github.com/iho/ledgerd/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/ledgerd/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/ledgerd/internal/adapter/repository/redis"
	"github.com/iho/ledgerd/internal/infrastructure/config"
	"github.com/iho/ledgerd/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgerd/internal/infrastructure/logger"
	"github.com/iho/ledgerd/internal/infrastructure/metrics"
	"github.com/iho/ledgerd/internal/infrastructure/postgres"
	"github.com/iho/ledgerd/internal/infrastructure/redis"
	"github.com/iho/ledgerd/internal/infrastructure/scheduler"
	"github.com/iho/ledgerd/internal/infrastructure/sweeper"
	"github.com/iho/ledgerd/internal/usecase"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.DatabaseRunMigrations {
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.DatabaseMigrationsPath, log).Up(); err != nil {
			return err
		}
	}

	policies, err := config.LoadPolicies(cfg.RetryPolicyFile)
	if err != nil {
		return err
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	var redisClient *goredis.Client
	if cfg.RedisEnabled() {
		redisClient, err = redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, ConnectWait: cfg.RedisConnectWait})
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Info().Msg("connected to redis")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.WatchPool(pool)

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	txnRepo := postgresRepo.NewTransactionRepository(pool)
	retryRepo := postgresRepo.NewRetryRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	numberGen := postgresRepo.NewAccountNumberGenerator()
	retrier := postgresRepo.NewRetrier(log)
	clock := usecase.SystemClock{}

	// Use cases
	retries := usecase.NewRetryService(txManager, retryRepo, txnRepo, outboxRepo, policies, idGen, clock, m, log)
	replayer := usecase.NewReplayUseCase(txManager, accountRepo, ledgerRepo, retrier, clock, m, log)
	ledger := usecase.NewLedgerUseCase(txManager, accountRepo, ledgerRepo, txnRepo, outboxRepo, replayer, retries, idGen, numberGen, clock, log)
	reconciler := usecase.NewReconciliationUseCase(accountRepo, ledgerRepo, replayer, clock, m, log)
	workers := usecase.NewWorkers(ledger)

	// Background components
	sched, err := newScheduler(cfg, retries, workers, redisClient, m, log)
	if err != nil {
		return err
	}

	sweep, err := sweeper.New(reconciler, sweeperConfig(cfg), log)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, redisClient, log)
	if err != nil {
		return err
	}
	events := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  publisher,
		Recorder:   m,
		Clock:      clock,
		Logger:     log,
		BatchSize:  cfg.PublisherBatchSize,
		Interval:   cfg.PublisherInterval,
		Retention:  cfg.OutboxRetention,
	})

	// HTTP
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	rateLimiter.OnLimit = m.RateLimitHits.Inc

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:  handler.NewAccountHandler(ledger, replayer),
		TransferHandler: handler.NewTransferHandler(ledger),
		RetryHandler:    handler.NewRetryHandler(retries),
		LedgerHandler:   handler.NewLedgerHandler(reconciler),
		HealthHandler:   handler.NewHealthHandler(healthChecks(pool, redisClient)),
		IdempotencyTTL:  cfg.IdempotencyTTL,
		RateLimiter:     rateLimiter,
		Metrics:         m,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:          log,
	}
	if redisClient != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
	}

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := events.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := rateLimiter.Cleanup(10 * time.Minute); n > 0 {
					log.Debug().Int("removed", n).Msg("rate limiter cleanup")
				}
			}
		}
	})

	if sched != nil {
		if err := sched.Start(gctx); err != nil {
			return err
		}
	}
	if cfg.SweeperEnabled {
		sweep.Start()
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if sched != nil {
			if err := sched.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
			}
		}
		if err := sweep.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("sweeper shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// newScheduler builds the retry scheduler and registers every worker
// handler. It returns nil when the scheduler is disabled.
func newScheduler(
	cfg *config.Config,
	retries *usecase.RetryService,
	workers *usecase.Workers,
	redisClient *goredis.Client,
	recorder scheduler.Recorder,
	log zerolog.Logger,
) (*scheduler.Scheduler, error) {
	if !cfg.SchedulerEnabled {
		log.Info().Msg("retry scheduler disabled")
		return nil, nil
	}

	var locker scheduler.TickLocker
	if redisClient != nil {
		locker = redisRepo.NewTickLock(redisClient)
	}

	sched := scheduler.New(retries, locker, recorder, scheduler.Config{
		Interval:       cfg.SchedulerInterval,
		BatchSize:      cfg.SchedulerBatchSize,
		Concurrency:    cfg.SchedulerConcurrency,
		HandlerTimeout: cfg.SchedulerHandlerTimeout,
		LeaseTTL:       cfg.SchedulerLeaseTTL,
	}, log)

	for workerType, h := range workers.Handlers() {
		if err := sched.RegisterWorker(workerType, scheduler.Handler(h)); err != nil {
			return nil, fmt.Errorf("register worker %s: %w", workerType, err)
		}
	}
	return sched, nil
}

func sweeperConfig(cfg *config.Config) sweeper.Config {
	return sweeper.Config{
		SweepSpec:  cfg.SweepSchedule,
		ReportSpec: cfg.ReportSchedule,
		SweepLimit: cfg.SweepLimit,
	}
}

func newPublisher(cfg *config.Config, redisClient *goredis.Client, log zerolog.Logger) (eventpublisher.Publisher, error) {
	switch cfg.PublisherKind {
	case config.PublisherRedis:
		if redisClient == nil {
			return nil, errors.New("redis publisher requires REDIS_URL")
		}
		return eventpublisher.NewRedisPublisher(redisClient, cfg.PublisherChannel), nil
	case config.PublisherLog, "":
		return eventpublisher.NewLogPublisher(log), nil
	default:
		return nil, fmt.Errorf("unknown publisher kind %q", cfg.PublisherKind)
	}
}

func healthChecks(pool *pgxpool.Pool, redisClient *goredis.Client) map[string]handler.Check {
	checks := map[string]handler.Check{
		"postgres": pool.Ping,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
