package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/tradeline-engine/internal/cache"
	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/otel"
	"github.com/yourorg/tradeline-engine/internal/validation"
)

const inventoryCacheKey = "tradeline-engine:inventory"

// MultiVendorClient merges the catalogs of several vendors into one inventory snapshot.
type MultiVendorClient struct {
	clients  []Client
	cache    cache.Cache
	cacheTTL time.Duration

	// per-vendor timeout
	timeout time.Duration
}

// NewMultiVendorClient creates a merged client. A nil cache disables caching.
func NewMultiVendorClient(clients []Client, c cache.Cache, ttl time.Duration) *MultiVendorClient {
	return &MultiVendorClient{
		clients:  clients,
		cache:    c,
		cacheTTL: ttl,
		timeout:  10 * time.Second,
	}
}

// Fetch returns the merged inventory, served from cache while fresh. Vendors are queried
// concurrently; a listing ID seen at an earlier vendor wins. Malformed listings are dropped.
// Fetch fails only when every vendor fails.
func (c *MultiVendorClient) Fetch(ctx context.Context) ([]model.Tradeline, error) {
	ctx, span := otel.Tracer().Start(ctx, "fetch.MultiVendor")
	defer span.End()

	if cached, ok := c.cached(ctx); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	type result struct {
		listings []model.Tradeline
		err      error
	}
	results := make([]result, len(c.clients))

	var wg sync.WaitGroup
	for i, client := range c.clients {
		wg.Add(1)
		go func(i int, client Client) {
			defer wg.Done()

			vctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			listings, err := client.Fetch(vctx)
			results[i] = result{listings, err}
		}(i, client)
	}
	wg.Wait()

	var errs []error
	seen := map[string]bool{}
	merged := make([]model.Tradeline, 0)

	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			logrus.Warnf("Error fetching catalog: %v", r.err)
			continue
		}
		for _, tl := range r.listings {
			if seen[tl.ID] {
				logrus.WithFields(logrus.Fields{
					"tradeline": tl.ID,
					"vendor":    tl.Vendor,
				}).Debug("Dropped duplicate listing")
				continue
			}
			seen[tl.ID] = true
			merged = append(merged, tl)
		}
	}

	if len(errs) == len(c.clients) {
		if len(errs) == 0 {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("multi-vendor fetch failed: %w", errors.Join(errs...))
	}

	merged = validation.FilterInvalid(merged)

	logrus.Infof("Fetched listings from %d/%d vendors, total listings: %d",
		len(c.clients)-len(errs), len(c.clients), len(merged))
	span.SetAttributes(attribute.Int("listings", len(merged)), attribute.Int("vendor.errors", len(errs)))

	// partial snapshots are not cached so the failed vendor is retried next time
	if len(errs) == 0 {
		c.store(ctx, merged)
	}
	return merged, nil
}

func (c *MultiVendorClient) cached(ctx context.Context) ([]model.Tradeline, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, inventoryCacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logrus.Warnf("Inventory cache read failed: %v", err)
		}
		return nil, false
	}

	var inventory []model.Tradeline
	if err := json.Unmarshal(raw, &inventory); err != nil {
		logrus.Warnf("Discarding corrupt inventory cache entry: %v", err)
		return nil, false
	}
	return inventory, true
}

func (c *MultiVendorClient) store(ctx context.Context, inventory []model.Tradeline) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(inventory)
	if err != nil {
		logrus.Warnf("Inventory cache encode failed: %v", err)
		return
	}
	if err := c.cache.Set(ctx, inventoryCacheKey, raw, c.cacheTTL); err != nil {
		logrus.Warnf("Inventory cache write failed: %v", err)
	}
}
