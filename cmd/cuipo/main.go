package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cuipo/internal/backend"
	"cuipo/internal/cache"
	"cuipo/internal/catalog"
	"cuipo/internal/cli"
	"cuipo/internal/dashboard"
	apphttp "cuipo/internal/http"
	"cuipo/internal/log"
	"cuipo/internal/upstream"
	"cuipo/internal/upstream/cached"
	"cuipo/internal/upstream/socrata"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	ctx := context.Background()

	// Reference catalog
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid catalog backend", log.FieldError, err.Error())
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize catalog backend", log.FieldError, err.Error(), log.FieldBackend, backendCfg.Type.String())
		os.Exit(1)
	}
	if res.Cleanup != nil {
		defer func() {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Catalog backend cleanup failed", log.FieldError, err.Error())
			}
		}()
	}
	cat, err := catalog.Load(ctx, res.Source)
	if err != nil {
		logger.Error("Failed to load reference catalog", log.FieldError, err.Error(), log.FieldBackend, backendCfg.Type.String())
		os.Exit(1)
	}
	logger.Info("Reference catalog loaded",
		log.FieldBackend, backendCfg.Type.String(),
		"entities", len(cat.Entities()),
		"periods", len(cat.Periods()),
		"accounts", len(cat.Accounts()))

	// Upstream open-data client behind the TTL cache
	client := socrata.New(socrata.Config{
		BaseURL:        cfg.SocrataBaseURL,
		RevenueDataset: cfg.RevenueDataset,
		ExpenseDataset: cfg.ExpenseDataset,
		AppToken:       cfg.SocrataAppToken,
		Timeout:        cfg.UpstreamTimeout,
	}, socrata.WithLogger(logger))

	store := cached.NewStore(cfg.CacheMaxEntries, max(cfg.CacheTTL, cfg.ScopeCacheTTL))
	fetcher := cached.New(client, store,
		cached.WithTTL(upstream.OpRevenue, cfg.CacheTTL),
		cached.WithTTL(upstream.OpExpense, cfg.CacheTTL),
		cached.WithTTL(upstream.OpScope, cfg.ScopeCacheTTL),
		cached.WithFetchTimeout(cfg.UpstreamTimeout),
		cached.WithLogger(logger))

	sessionStore := cache.NewLRUCache[dashboard.WorkingSet](cfg.CacheMaxEntries, cfg.SessionTTL)
	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register(store)
	cacheManager.Register(sessionStore)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	logger.Info("Price index configured", "years", cfg.PriceIndexYears())

	svc := dashboard.New(cat, fetcher, dashboard.NewSessions(sessionStore), dashboard.Config{
		ExpenseAccounts: cfg.ExpenseAccounts,
		PriceIndex:      cfg.PriceIndex,
	}, logger)

	srv := apphttp.NewServer(":"+cfg.Port, svc, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	stopped := cli.GracefulShutdown(logger, 30*time.Second, srv.Shutdown)

	logger.Info("Starting cuipo server", "port", cfg.Port, log.FieldBackend, backendCfg.Type.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-stopped.Done()
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
