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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Simplici0/renoprice/internal/api"
	"github.com/Simplici0/renoprice/internal/catalog"
	"github.com/Simplici0/renoprice/internal/config"
	"github.com/Simplici0/renoprice/internal/db"
	"github.com/Simplici0/renoprice/internal/log"
	"github.com/Simplici0/renoprice/internal/metrics"
	"github.com/Simplici0/renoprice/internal/migrations"
	"github.com/Simplici0/renoprice/internal/pricing"
	"github.com/Simplici0/renoprice/internal/seed"
	"github.com/Simplici0/renoprice/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "renoprice: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := log.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	sugar := logger.Sugar().Named("server")
	cfg.Warn(sugar)

	policy, err := pricing.ParseDurationPolicy(cfg.DurationPolicy)
	if err != nil {
		return fmt.Errorf("RENO_DURATION_POLICY: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database); err != nil {
			return fmt.Errorf("run database migrations: %w", err)
		}
	} else if err := migrations.CheckCurrent(database); err != nil {
		return err
	}

	initial, err := loadCatalog(cfg, sugar)
	if err != nil {
		return err
	}

	stats, err := seed.Run(ctx, database, seed.Config{
		APIKeys:       seed.ParseAPIKeys(cfg.APIKeys),
		Catalog:       initial,
		CatalogSource: cfg.CatalogPath,
	})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	sugar.Infow("seed complete", "inserts", stats.Inserts, "updates", stats.Updates)

	catalogStore := catalog.NewStore(initial, catalog.FileLoader(cfg.CatalogPath))
	estimator := pricing.New(catalogStore,
		pricing.WithStrictJobTypes(cfg.StrictJobTypes),
		pricing.WithDurationPolicy(policy),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serviceMetrics := metrics.New(reg)

	quotes := store.New(database)
	if err := warnIfNoAPIKeys(ctx, quotes, sugar); err != nil {
		return err
	}
	srv := &server{
		estimator: estimator,
		catalog:   catalogStore,
		store:     quotes,
		validate:  api.NewValidator(),
		metrics:   serviceMetrics,
		auth:      newAPIKeyAuth(quotes, cfg.RateLimitRPS, cfg.RateLimitBurst),
		logger:    logger.Sugar().Named("handlers"),
		version:   version,
	}

	if cfg.CatalogReloadInterval > 0 {
		go catalogStore.Watch(ctx, cfg.CatalogReloadInterval, func(_ *catalog.Catalog, err error) {
			serviceMetrics.ObserveReload(err)
		})
		sugar.Infow("periodic catalog reload enabled", "interval", cfg.CatalogReloadInterval)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(logger, reg),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infof("listening on %s", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
		sugar.Infof("shutdown signal received: %s", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	sugar.Info("server stopped")
	return nil
}

// loadCatalog reads the price list. With RENO_CATALOG_FALLBACK set, an unreadable file is
// replaced by the built-in default instead of failing startup.
func loadCatalog(cfg config.Config, logger *zap.SugaredLogger) (*catalog.Catalog, error) {
	c, err := catalog.LoadFile(cfg.CatalogPath)
	if err == nil {
		logger.Infow("price list loaded", "path", cfg.CatalogPath, "job_types", len(c.BaseRates), "last_refreshed", c.LastRefreshed)
		return c, nil
	}
	if !cfg.CatalogFallback {
		return nil, fmt.Errorf("load price list: %w", err)
	}
	logger.Warnw("price list unavailable, using default catalog", "path", cfg.CatalogPath, "error", err)
	return catalog.Default(), nil
}
