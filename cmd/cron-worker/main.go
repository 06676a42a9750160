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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tableside-backend/internal/cron"
	"github.com/angelmondragon/tableside-backend/internal/inventory"
	"github.com/angelmondragon/tableside-backend/internal/settlement"
	"github.com/angelmondragon/tableside-backend/internal/tables"
	"github.com/angelmondragon/tableside-backend/pkg/config"
	"github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/instance"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/metrics"
	"github.com/angelmondragon/tableside-backend/pkg/migrate"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/redis"
)

const (
	serviceName   = "cron-worker"
	lockKeyFormat = "cron-worker:lock:%s"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := buildRegistry(cfg, logg, dbClient, redisClient)
	if err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("create cron service: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "metrics server shutdown failed", err)
		}
	}()

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)
	inventoryRepo := inventory.NewRepository(dbClient.DB())
	settlementRepo := settlement.NewRepository(dbClient.DB())
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	ledger, err := inventory.NewLedger(inventory.LedgerParams{
		DB:          dbClient,
		Repository:  inventoryRepo,
		Logger:      logg,
		Metrics:     settlementMetrics,
		Concurrency: cfg.Settlement.DeductionParallel,
	})
	if err != nil {
		return nil, err
	}
	settlementSvc, err := settlement.NewService(settlement.ServiceParams{
		DB:             dbClient,
		Repository:     settlementRepo,
		Outbox:         outboxSvc,
		Ledger:         ledger,
		Locker:         redisClient,
		Logger:         logg,
		Metrics:        settlementMetrics,
		LockTTL:        cfg.Settlement.LockTTL,
		DeductionLease: cfg.Settlement.ReconcileGrace,
	})
	if err != nil {
		return nil, err
	}

	reconcile, err := cron.NewSettlementReconcileJob(cron.SettlementReconcileJobParams{
		Logger:     logg,
		Repository: settlementRepo,
		Settlement: settlementSvc,
		Grace:      cfg.Settlement.ReconcileGrace,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement reconcile job: %w", err)
	}
	consistency, err := cron.NewTableConsistencyJob(cron.TableConsistencyJobParams{
		Logger:   logg,
		DB:       dbClient,
		Tables:   tables.NewRepository(dbClient.DB()),
		Outbox:   outboxSvc,
		Lookback: cfg.Settlement.ConsistencyLookback,
	})
	if err != nil {
		return nil, fmt.Errorf("table consistency job: %w", err)
	}
	negativeStock, err := cron.NewNegativeStockJob(cron.NegativeStockJobParams{
		Logger:    logg,
		DB:        dbClient,
		Inventory: inventoryRepo,
		Events:    outboxRepo,
		Outbox:    outboxSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("negative stock job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		DB:           dbClient,
		Outbox:       outboxRepo,
		DLQ:          outbox.NewDLQRepository(dbClient.DB()),
		Retention:    cfg.Cron.OutboxRetention,
		DLQRetention: cfg.Cron.DLQRetention,
		BatchSize:    cfg.Cron.PruneBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	return cron.NewRegistry(reconcile, consistency, negativeStock, retention)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
