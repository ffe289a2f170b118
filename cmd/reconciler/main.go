// Package main is the entry point for the stock reconciler: a background
// worker that periodically cross-checks batch quantities against the
// movement ledger and reports discrepancies.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"hoperx/internal/config"
	"hoperx/internal/core/id"
	"hoperx/internal/domain/reconciliation"
	"hoperx/internal/infrastructure/metrics"
	"hoperx/internal/infrastructure/storage/postgres"
	"hoperx/internal/infrastructure/storage/postgres/inventory_repo"
	"hoperx/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Env == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	logger.Info(ctx, "starting stock reconciler")

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, cfg.Postgres.DSN); err != nil {
			logger.Fatal(ctx, "migrations failed", "error", err)
		}
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Postgres.DSN)
	poolCfg.MaxConns = cfg.Postgres.MaxConns
	poolCfg.MinConns = cfg.Postgres.MinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		logger.Fatal(ctx, "failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	m := metrics.New()

	svc := reconciliation.NewService(
		inventory_repo.NewBatchRepo(txManager),
		inventory_repo.NewMovementRepo(txManager),
		txManager,
		m,
	)

	storeIDs, err := parseStoreIDs(cfg.Reconciler.StoreIDs)
	if err != nil {
		logger.Fatal(ctx, "invalid store id in config", "error", err)
	}

	opsServer := metrics.NewServer(cfg.Ops.Addr, cfg.Ops.Metrics)
	go func() {
		if err := opsServer.Start(); err != nil {
			logger.Warn(ctx, "ops server stopped", "error", err)
		}
	}()

	worker := &reconcileWorker{
		svc:      svc,
		storeIDs: storeIDs,
		interval: cfg.Reconciler.Interval,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down reconciler...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = opsServer.Shutdown(shutdownCtx)

	logger.Info(ctx, "reconciler stopped")
}

func parseStoreIDs(raw []string) ([]id.ID, error) {
	ids := make([]id.ID, 0, len(raw))
	for _, s := range raw {
		parsed, err := id.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse store id %q: %w", s, err)
		}
		ids = append(ids, parsed)
	}
	return ids, nil
}

// reconcileWorker runs reconciliation on a fixed interval until cancelled.
type reconcileWorker struct {
	svc      *reconciliation.Service
	storeIDs []id.ID
	interval time.Duration
}

func (w *reconcileWorker) Run(ctx context.Context) {
	// Run once at startup, then on the ticker.
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *reconcileWorker) runOnce(ctx context.Context) {
	for _, storeID := range w.storeIDs {
		report, err := w.svc.ReconcileStore(ctx, storeID)
		if err != nil {
			logger.Error(ctx, "reconciliation run failed",
				"store_id", storeID,
				"error", err,
			)
			continue
		}

		for _, d := range report.Discrepancies {
			logger.Warn(ctx, "stock discrepancy",
				"store_id", storeID,
				"batch_id", d.BatchID,
				"batch_number", d.BatchNumber,
				"expected", d.Expected.String(),
				"actual", d.Actual.String(),
			)
		}
	}
}
