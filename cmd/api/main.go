package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/tableside-backend/api/routes"
	"github.com/angelmondragon/tableside-backend/internal/dues"
	"github.com/angelmondragon/tableside-backend/internal/inventory"
	"github.com/angelmondragon/tableside-backend/internal/products"
	"github.com/angelmondragon/tableside-backend/internal/reports"
	"github.com/angelmondragon/tableside-backend/internal/settlement"
	"github.com/angelmondragon/tableside-backend/internal/tables"
	"github.com/angelmondragon/tableside-backend/internal/vendors"
	"github.com/angelmondragon/tableside-backend/pkg/config"
	"github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/instance"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/metrics"
	"github.com/angelmondragon/tableside-backend/pkg/migrate"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	svcs, err := buildServices(cfg, logg, dbClient, redisClient, settlementMetrics)
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, redisClient, registry, svcs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, settlementMetrics *metrics.SettlementMetrics) (routes.Services, error) {
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	tablesRepo := tables.NewRepository(dbClient.DB())
	inventoryRepo := inventory.NewRepository(dbClient.DB())

	productsSvc, err := products.NewService(products.ServiceParams{
		Repository: products.NewRepository(dbClient.DB()),
		Items:      inventoryRepo,
		Logger:     logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	tablesSvc, err := tables.NewService(tables.ServiceParams{
		DB:         dbClient,
		Repository: tablesRepo,
		Catalog:    productsSvc,
		Logger:     logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		DB:         dbClient,
		Repository: inventoryRepo,
		Logger:     logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	ledger, err := inventory.NewLedger(inventory.LedgerParams{
		DB:          dbClient,
		Repository:  inventoryRepo,
		Logger:      logg,
		Metrics:     settlementMetrics,
		Concurrency: cfg.Settlement.DeductionParallel,
	})
	if err != nil {
		return routes.Services{}, err
	}

	settlementSvc, err := settlement.NewService(settlement.ServiceParams{
		DB:             dbClient,
		Repository:     settlement.NewRepository(dbClient.DB()),
		Outbox:         outboxSvc,
		Ledger:         ledger,
		Locker:         redisClient,
		Logger:         logg,
		Metrics:        settlementMetrics,
		LockTTL:        cfg.Settlement.LockTTL,
		DeductionLease: cfg.Settlement.ReconcileGrace,
	})
	if err != nil {
		return routes.Services{}, err
	}

	duesSvc, err := dues.NewService(dues.ServiceParams{
		DB:         dbClient,
		Repository: dues.NewRepository(dbClient.DB()),
		Outbox:     outboxSvc,
		Logger:     logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	vendorsSvc, err := vendors.NewService(vendors.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return routes.Services{}, err
	}

	reportsSvc, err := reports.NewService(tablesRepo)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Tables:     tablesSvc,
		Settlement: settlementSvc,
		Dues:       duesSvc,
		Inventory:  inventorySvc,
		Products:   productsSvc,
		Vendors:    vendorsSvc,
		Reports:    reportsSvc,
	}, nil
}
