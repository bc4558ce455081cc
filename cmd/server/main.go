// Package main is the entry point for the tradeline recommendation service: client profile
// analysis, tradeline matching and bundling, and pricing over the vendor inventory.
package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/tradeline-engine/internal/cache"
	"github.com/yourorg/tradeline-engine/internal/circuitbreaker"
	"github.com/yourorg/tradeline-engine/internal/config"
	"github.com/yourorg/tradeline-engine/internal/engine"
	"github.com/yourorg/tradeline-engine/internal/export"
	"github.com/yourorg/tradeline-engine/internal/fetch"
	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/otel"
	"github.com/yourorg/tradeline-engine/internal/security"
)

// main is the entry point for the application
func main() {
	cfg := config.Load()
	setupLogging(cfg)

	market, err := config.LoadMarket(cfg.MarketConfig)
	if err != nil {
		logrus.Fatalf("Error loading market config: %v", err)
	}

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	deps, err := buildDeps(cfg, market)
	if err != nil {
		logrus.Fatalf("Error initializing service: %v", err)
	}

	server := NewServer(cfg, deps)
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging(cfg config.Config) {
	switch cfg.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.SetOutput(os.Stdout)
	logrus.Info("Logging configured")
}

// buildDeps wires the collaborators named by the configuration.
func buildDeps(cfg config.Config, market *config.Market) (Deps, error) {
	opts := engine.DefaultOptions()
	opts.Tables = market.Scoring
	opts.Pricing = market.Pricing
	opts.Bundle = market.Bundle
	opts.BundleTimeout = cfg.BundleTimeout
	opts.BundleWorkers = cfg.BundleWorkers
	opts.MaxBundleCandidates = cfg.MaxBundleCandidates

	deps := Deps{
		Options: opts,
		Breaker: newGuard(cfg),
		Exporter: export.New(export.Config{
			WebhookURL:    cfg.WebhookURL,
			WebhookAPIKey: cfg.WebhookAPIKey,
			BatchSize:     cfg.ExportBatchSize,
			Interval:      cfg.ExportInterval,
		}),
	}

	if len(cfg.Catalogs) > 0 {
		clients := make([]fetch.Client, 0, len(cfg.Catalogs))
		for _, c := range fetch.NewCatalogClients(cfg) {
			clients = append(clients, c)
		}
		deps.Inventory = fetch.NewMultiVendorClient(clients, newSnapshotCache(cfg.RedisAddr), cfg.CacheTTL)
	} else {
		logrus.Warn("No CATALOG_URLS configured; match requests must carry their inventory")
	}

	if cfg.ProfileURL != "" {
		deps.Profiles = fetch.NewProfileClient(cfg.ProfileURL, cfg.APIKeys["profile"])
	}

	if cfg.SigningEnabled {
		signer, err := security.NewSigner(cfg.SigningKey, cfg.QuoteValidity)
		if err != nil {
			return Deps{}, err
		}
		deps.Signer = signer
	}

	return deps, nil
}

// newGuard builds the inventory guard from the Breaker* settings.
func newGuard(cfg config.Config) *circuitbreaker.Guard {
	return circuitbreaker.New(circuitbreaker.Thresholds{
		MinItems:          cfg.BreakerMinItems,
		MaxPrice:          cfg.BreakerMaxPrice,
		MaxSizeChange:     cfg.BreakerMaxSizeChange,
		MaxStdDevMultiple: cfg.BreakerMaxDispersion,
	}).WithResetDelay(cfg.BreakerResetDelay).WithTripCallback(func(reason string, inventory []model.Tradeline) {
		logrus.WithFields(logrus.Fields{
			"reason":   reason,
			"listings": len(inventory),
		}).Error("Inventory guard engaged, serving last good snapshot")
	})
}

// newSnapshotCache returns a Redis cache when addr answers a ping, otherwise an
// in-memory one.
func newSnapshotCache(addr string) cache.Cache {
	snapshots := cache.New(addr)
	rc, ok := snapshots.(*cache.RedisCache)
	if !ok {
		return snapshots
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		logrus.Warnf("Redis unavailable at %s, caching in memory: %v", addr, err)
		if err := rc.Close(); err != nil {
			logrus.Debugf("Closing Redis client: %v", err)
		}
		return cache.NewMemoryCache()
	}
	return rc
}
