package engine

import (
	"sort"

	"cloud.google.com/go/civil"

	"github.com/yourorg/tradeline-engine/internal/aggregate"
	"github.com/yourorg/tradeline-engine/internal/bundle"
	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/scoring"
	"github.com/yourorg/tradeline-engine/internal/validation"
)

// FindMatches ranks the inventory for one client with the default options. It never
// fails on bad inventory: unusable tradelines are dropped. A negative budget is the
// only error.
func FindMatches(p model.ClientCreditProfile, inventory []model.Tradeline, budget float64, asOf civil.Date) (model.MatchResult, error) {
	return FindMatchesWithOptions(p, inventory, budget, asOf, DefaultOptions())
}

// FindMatchesWithOptions is FindMatches with custom tables and caps. Unset options
// take their defaults.
func FindMatchesWithOptions(p model.ClientCreditProfile, inventory []model.Tradeline, budget float64, asOf civil.Date, opts Options) (model.MatchResult, error) {
	if budget < 0 {
		return model.MatchResult{}, bundle.ErrInvalidBudget
	}
	opts = opts.withDefaults()

	candidates := validation.FilterCandidates(inventory, budget)
	recs := score(p, candidates, asOf, opts.Tables)

	bundles, err := bundle.OptimizeWithOptions(p, bundlePool(recs, opts.MaxBundleCandidates), budget, asOf, opts.Tables, opts.Bundle)
	if err != nil {
		return model.MatchResult{}, err
	}

	return assemble(rank(recs), bundles, false, opts), nil
}

// score builds one recommendation per priced candidate, in candidate order.
func score(p model.ClientCreditProfile, candidates []model.Tradeline, asOf civil.Date, tables scoring.Tables) []model.MatchRecommendation {
	recs := make([]model.MatchRecommendation, 0, len(candidates))
	for _, tl := range candidates {
		impact := scoring.PredictImpact(p, tl, asOf, tables)
		cb, err := scoring.CostBenefit(tl.Price, impact.TotalPoints, tables)
		if err != nil {
			continue
		}

		recs = append(recs, model.MatchRecommendation{
			Tradeline:      tl,
			MatchScore:     scoring.MatchScore(p, tl, asOf, tables),
			ExpectedImpact: impact,
			CostBenefit:    cb,
			Reasons:        scoring.Reasons(p, tl, impact, asOf, tables),
			Warnings:       scoring.Warnings(p, tl, asOf),
		})
	}
	return recs
}

// rank sorts by match score, highest first. Ties keep candidate order.
func rank(recs []model.MatchRecommendation) []model.MatchRecommendation {
	ranked := append([]model.MatchRecommendation(nil), recs...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MatchScore > ranked[j].MatchScore
	})
	if ranked == nil {
		ranked = []model.MatchRecommendation{}
	}
	return ranked
}

// bundlePool keeps the max best-scoring lines for the bundle search, in candidate order.
// recs must be in candidate order.
func bundlePool(recs []model.MatchRecommendation, max int) []model.Tradeline {
	idx := make([]int, len(recs))
	for i := range idx {
		idx[i] = i
	}

	if max > 0 && len(idx) > max {
		sort.SliceStable(idx, func(a, b int) bool {
			return recs[idx[a]].MatchScore > recs[idx[b]].MatchScore
		})
		idx = idx[:max]
		sort.Ints(idx)
	}

	pool := make([]model.Tradeline, len(idx))
	for i, n := range idx {
		pool[i] = recs[n].Tradeline
	}
	return pool
}

func assemble(ranked []model.MatchRecommendation, bundles []model.Bundle, truncated bool, opts Options) model.MatchResult {
	summary := aggregate.Summarize(ranked)
	summary.BundlesTruncated = truncated

	singles := ranked
	if len(singles) > opts.MaxSingles {
		singles = singles[:opts.MaxSingles]
	}
	if bundles == nil {
		bundles = []model.Bundle{}
	}
	if len(bundles) > opts.MaxBundles {
		bundles = bundles[:opts.MaxBundles]
	}

	return model.MatchResult{
		SingleRecommendations: singles,
		Bundles:               bundles,
		Summary:               summary,
	}
}
