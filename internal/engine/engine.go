// Package engine runs a full match for one client: per-tradeline scoring, ranking,
// bundle search, and the summary.
//
// FindMatches is the deterministic core. Engine wraps it with a clock, a bounded and
// time-limited bundle search, metrics, and tracing for use inside a server.
package engine

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/tradeline-engine/internal/bundle"
	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/otel"
	"github.com/yourorg/tradeline-engine/internal/pricing"
	"github.com/yourorg/tradeline-engine/internal/profile"
	"github.com/yourorg/tradeline-engine/internal/scoring"
	"github.com/yourorg/tradeline-engine/internal/validation"
)

// Options configures a match run.
type Options struct {
	Tables  scoring.Tables
	Pricing pricing.Table
	Bundle  bundle.Options

	// MaxSingles and MaxBundles truncate the returned lists; values <= 0 use the defaults
	MaxSingles int
	MaxBundles int

	// MaxBundleCandidates bounds the cubic bundle search; 0 means unbounded
	MaxBundleCandidates int

	// BundleTimeout bounds the bundle search in Engine.FindMatches; 0 means no limit
	BundleTimeout time.Duration
	BundleWorkers int
}

const (
	defaultMaxSingles = 10
	defaultMaxBundles = 5
)

// DefaultOptions returns the standard match settings.
func DefaultOptions() Options {
	return Options{
		Tables:              scoring.DefaultTables(),
		Pricing:             pricing.DefaultTable(),
		Bundle:              bundle.DefaultOptions(),
		MaxSingles:          defaultMaxSingles,
		MaxBundles:          defaultMaxBundles,
		MaxBundleCandidates: 150,
		BundleTimeout:       2 * time.Second,
		BundleWorkers:       4,
	}
}

// withDefaults fills unset tables and caps from DefaultOptions. A zero MaxBundleCandidates
// and BundleTimeout stay unbounded.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Tables.Match.MaxScore == 0 && o.Tables.Impact.MaxPoints == 0 {
		o.Tables = d.Tables
	}
	if o.Pricing.BasePrice == 0 {
		o.Pricing = d.Pricing
	}
	if o.Bundle.PruneRatio == 0 {
		o.Bundle = d.Bundle
	}
	if o.MaxSingles <= 0 {
		o.MaxSingles = d.MaxSingles
	}
	if o.MaxBundles <= 0 {
		o.MaxBundles = d.MaxBundles
	}
	return o
}

// Engine serves match, analysis and pricing requests against a clock.
type Engine struct {
	opts    Options
	now     func() time.Time
	metrics *Metrics
	tracer  trace.Tracer
}

// New creates an Engine using the wall clock. Unset options take their defaults.
// metrics may be nil.
func New(opts Options, metrics *Metrics) *Engine {
	return &Engine{
		opts:    opts.withDefaults(),
		now:     time.Now,
		metrics: metrics,
		tracer:  otel.Tracer(),
	}
}

// WithClock replaces the clock, mostly for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Today is the "current date" every computation is evaluated against.
func (e *Engine) Today() civil.Date {
	return civil.DateOf(e.now())
}

// Options returns the engine settings.
func (e *Engine) Options() Options {
	return e.opts
}

// Analyze derives the credit profile of a raw client record as of today.
func (e *Engine) Analyze(raw model.RawClient) model.ClientCreditProfile {
	return profile.Analyze(raw, e.Today())
}

// Tiers prices a tradeline as of today.
func (e *Engine) Tiers(tl model.Tradeline) model.PricingTiers {
	return pricing.Tiers(tl, e.Today(), e.opts.Pricing)
}

// FindMatches ranks the inventory as of today, with a bounded, parallel bundle search.
// When the bundle search runs past BundleTimeout the singles are still returned, with
// no bundles and Summary.BundlesTruncated set.
func (e *Engine) FindMatches(ctx context.Context, p model.ClientCreditProfile, inventory []model.Tradeline, budget float64) (model.MatchResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.FindMatches", trace.WithAttributes(
		attribute.Int("inventory.size", len(inventory)),
		attribute.Float64("budget", budget),
		attribute.String("score_range", string(p.ScoreRange)),
	))
	defer span.End()

	start := time.Now()
	asOf := e.Today()

	if budget < 0 {
		e.observe("invalid", start, 0)
		span.SetStatus(codes.Error, bundle.ErrInvalidBudget.Error())
		return model.MatchResult{}, bundle.ErrInvalidBudget
	}

	candidates := validation.FilterCandidatesConcurrently(inventory, budget, e.opts.BundleWorkers)
	recs := score(p, candidates, asOf, e.opts.Tables)
	pool := bundlePool(recs, e.opts.MaxBundleCandidates)

	bundles, truncated, err := e.searchBundles(ctx, p, pool, budget, asOf)
	if err != nil {
		e.observe("error", start, len(candidates))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.MatchResult{}, err
	}

	result := assemble(rank(recs), bundles, truncated, e.opts)

	status := "ok"
	if truncated {
		status = "truncated"
	}
	e.observe(status, start, len(candidates))

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("bundles", len(result.Bundles)),
		attribute.Bool("bundles.truncated", truncated),
	)

	logrus.WithFields(logrus.Fields{
		"inventory":      len(inventory),
		"candidates":     len(candidates),
		"bundle_pool":    len(pool),
		"total_options":  result.Summary.TotalOptions,
		"avg_impact":     result.Summary.AvgExpectedImpact,
		"bundles":        len(result.Bundles),
		"bundles_capped": truncated,
		"duration":       time.Since(start),
	}).Debug("Match run complete")

	return result, nil
}

func (e *Engine) searchBundles(ctx context.Context, p model.ClientCreditProfile, pool []model.Tradeline, budget float64, asOf civil.Date) ([]model.Bundle, bool, error) {
	ctx, span := e.tracer.Start(ctx, "engine.searchBundles", trace.WithAttributes(attribute.Int("pool.size", len(pool))))
	defer span.End()

	bctx := ctx
	if e.opts.BundleTimeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, e.opts.BundleTimeout)
		defer cancel()
	}

	bundles, err := bundle.OptimizeParallel(bctx, p, pool, budget, asOf, e.opts.Tables, e.opts.Bundle, e.opts.BundleWorkers)
	if err == nil {
		return bundles, false, nil
	}

	// only our own deadline degrades; a caller cancellation is an error
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		logrus.WithFields(logrus.Fields{
			"pool":    len(pool),
			"timeout": e.opts.BundleTimeout,
		}).Warn("Bundle search timed out, returning single recommendations only")
		if e.metrics != nil {
			e.metrics.bundleTimeouts.Inc()
		}
		return nil, true, nil
	}
	return nil, false, err
}

func (e *Engine) observe(status string, start time.Time, candidates int) {
	if e.metrics == nil {
		return
	}
	e.metrics.matches.WithLabelValues(status).Inc()
	e.metrics.duration.Observe(time.Since(start).Seconds())
	e.metrics.candidates.Observe(float64(candidates))
}
