package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/solyse/club-flow/api/routes"
	"github.com/solyse/club-flow/internal/bootstrap"
	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/internal/enrich"
	"github.com/solyse/club-flow/internal/flow"
	"github.com/solyse/club-flow/internal/scan"
	"github.com/solyse/club-flow/internal/track"
	"github.com/solyse/club-flow/internal/upstream"
	"github.com/solyse/club-flow/pkg/config"
	"github.com/solyse/club-flow/pkg/logger"
	"github.com/solyse/club-flow/pkg/metrics"
	"github.com/solyse/club-flow/pkg/redis"
)

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
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	flowMetrics := metrics.NewFlowMetrics(prometheus.DefaultRegisterer)

	cacheClient, err := cache.NewClient(redisClient, cfg.App.CacheSuffix(), logg, flowMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create cache client", err)
		os.Exit(1)
	}

	parcel := upstream.RatesParcel{
		ItemID:   cfg.Flow.ParcelItemID,
		ItemName: cfg.Flow.ParcelName,
		Quantity: 1,
		Dimensions: upstream.Dimensions{
			Depth:  cfg.Flow.ParcelDepth,
			Height: cfg.Flow.ParcelHeight,
			Weight: cfg.Flow.ParcelWeight,
			Width:  cfg.Flow.ParcelWidth,
		},
	}

	gateway, err := upstream.NewClient(cfg.Upstream, parcel, cacheClient, logg, flowMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create upstream gateway", err)
		os.Exit(1)
	}

	enricher, err := enrich.NewEngine(gateway, cacheClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create enrichment engine", err)
		os.Exit(1)
	}
	gateway.SetItemSink(enricher)

	crumbs := track.NewRecorder(logg, flowMetrics)

	scanService, err := scan.NewService(gateway, scan.NewGuard(), cacheClient, logg, flowMetrics, crumbs)
	if err != nil {
		logg.Error(context.Background(), "failed to create scan service", err)
		os.Exit(1)
	}

	flowService, err := flow.NewService(gateway, enricher, cacheClient, logg, crumbs, cfg.Flow, cfg.Upstream.MarketingEventTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create flow service", err)
		os.Exit(1)
	}

	orchestrator, err := bootstrap.NewOrchestrator(gateway, cacheClient, logg, flowMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create bootstrap orchestrator", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, cacheClient, orchestrator, flowService, scanService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
