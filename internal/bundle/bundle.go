// Package bundle searches for 2- and 3-tradeline combinations under a budget.
//
// The search is an exhaustive enumeration over candidate pairs and triples with one
// pruning rule: the first member of a bundle may not take more than PruneRatio of the
// budget. Pruning makes the search best-effort rather than exhaustive; a dominant but
// affordable line is only ever considered in second or third position.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/scoring"
)

// ErrInvalidBudget is returned for a negative budget.
var ErrInvalidBudget = errors.New("budget must not be negative")

// ErrInvalidOptions is returned by Options.Validate.
var ErrInvalidOptions = errors.New("invalid bundle options")

// DiminishingFactors scale each member's predicted points by its position in the bundle.
// Bundles never grow past len(DiminishingFactors).
var DiminishingFactors = [3]float64{1.0, 0.7, 0.5}

// Options tunes the bundle search.
type Options struct {
	// PruneRatio caps the first member's price as a share of the budget
	PruneRatio float64 `json:"prune_ratio"`

	// PairDiscount and TripleDiscount are the estimated savings rates
	PairDiscount   float64 `json:"pair_discount"`
	TripleDiscount float64 `json:"triple_discount"`

	Confidence string `json:"confidence"`
	Timeframe  string `json:"timeframe"`
}

// DefaultOptions returns the standard bundle search settings.
func DefaultOptions() Options {
	return Options{
		PruneRatio:     0.6,
		PairDiscount:   0.10,
		TripleDiscount: 0.15,
		Confidence:     "medium-high",
		Timeframe:      "2-3 billing cycles",
	}
}

// Validate rejects settings that would make every bundle unreachable or price savings
// at or above the bundle total.
func (o Options) Validate() error {
	if o.PruneRatio <= 0 || o.PruneRatio > 1 {
		return fmt.Errorf("%w: prune_ratio must be in (0, 1]", ErrInvalidOptions)
	}
	if o.PairDiscount < 0 || o.PairDiscount >= 1 {
		return fmt.Errorf("%w: pair_discount must be in [0, 1)", ErrInvalidOptions)
	}
	if o.TripleDiscount < 0 || o.TripleDiscount >= 1 {
		return fmt.Errorf("%w: triple_discount must be in [0, 1)", ErrInvalidOptions)
	}
	return nil
}

// search holds the per-call state shared by the sequential and parallel variants.
type search struct {
	lines  []model.Tradeline
	points []int
	prices []decimal.Decimal
	budget decimal.Decimal
	limit  decimal.Decimal
	opts   Options
}

// Optimize returns every qualifying pair and triple, sorted by cost-benefit descending.
func Optimize(p model.ClientCreditProfile, candidates []model.Tradeline, budget float64, asOf civil.Date, tables scoring.Tables) ([]model.Bundle, error) {
	return OptimizeWithOptions(p, candidates, budget, asOf, tables, DefaultOptions())
}

// OptimizeWithOptions is Optimize with custom search settings.
func OptimizeWithOptions(p model.ClientCreditProfile, candidates []model.Tradeline, budget float64, asOf civil.Date, tables scoring.Tables, opts Options) ([]model.Bundle, error) {
	s, err := newSearch(p, candidates, budget, asOf, tables, opts)
	if err != nil {
		return nil, err
	}

	bundles := []model.Bundle{}
	for i := range s.lines {
		bundles = append(bundles, s.from(i)...)
	}
	sortByCostBenefit(bundles)
	return bundles, nil
}

// OptimizeParallel produces the same result as OptimizeWithOptions, spreading the
// first-member positions across a bounded number of workers. It stops early and
// returns ctx.Err() when the context is done.
func OptimizeParallel(ctx context.Context, p model.ClientCreditProfile, candidates []model.Tradeline, budget float64, asOf civil.Date, tables scoring.Tables, opts Options, workers int) ([]model.Bundle, error) {
	s, err := newSearch(p, candidates, budget, asOf, tables, opts)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	// one result slot per first member keeps enumeration order stable
	results := make([][]model.Bundle, len(s.lines))
	jobs := make(chan int)
	wg := sync.WaitGroup{}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.from(i)
			}
		}()
	}

feed:
	for i := range s.lines {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundles := []model.Bundle{}
	for _, r := range results {
		bundles = append(bundles, r...)
	}
	sortByCostBenefit(bundles)
	return bundles, nil
}

func newSearch(p model.ClientCreditProfile, candidates []model.Tradeline, budget float64, asOf civil.Date, tables scoring.Tables, opts Options) (*search, error) {
	if budget < 0 {
		return nil, ErrInvalidBudget
	}

	s := &search{
		budget: decimal.NewFromFloat(budget),
		opts:   opts,
	}
	s.limit = s.budget.Mul(decimal.NewFromFloat(opts.PruneRatio))

	seen := make(map[string]bool, len(candidates))
	for _, tl := range candidates {
		if !tl.Available || tl.Price <= 0 {
			continue
		}
		if tl.ID != "" {
			if seen[tl.ID] {
				continue
			}
			seen[tl.ID] = true
		}
		s.lines = append(s.lines, tl)
		s.points = append(s.points, scoring.PredictImpact(p, tl, asOf, tables).TotalPoints)
		s.prices = append(s.prices, decimal.NewFromFloat(tl.Price))
	}
	return s, nil
}

// from enumerates every bundle whose first member is lines[i].
func (s *search) from(i int) []model.Bundle {
	var out []model.Bundle
	if s.prices[i].GreaterThan(s.limit) {
		return out
	}

	for j := i + 1; j < len(s.lines); j++ {
		pairPrice := s.prices[i].Add(s.prices[j])
		if pairPrice.GreaterThan(s.budget) {
			continue
		}
		out = append(out, s.build([]int{i, j}, pairPrice, s.opts.PairDiscount))

		for k := j + 1; k < len(s.lines); k++ {
			triplePrice := pairPrice.Add(s.prices[k])
			if triplePrice.GreaterThan(s.budget) {
				continue
			}
			out = append(out, s.build([]int{i, j, k}, triplePrice, s.opts.TripleDiscount))
		}
	}
	return out
}

func (s *search) build(idx []int, total decimal.Decimal, discount float64) model.Bundle {
	lines := make([]model.Tradeline, len(idx))
	points := 0.0
	for pos, n := range idx {
		lines[pos] = s.lines[n]
		points += float64(s.points[n]) * DiminishingFactors[pos]
	}
	totalPoints := int(decimal.NewFromFloat(points).Round(0).IntPart())
	totalPrice := total.InexactFloat64()

	return model.Bundle{
		Tradelines: lines,
		TotalPrice: totalPrice,
		ExpectedImpact: model.BundleImpact{
			TotalPoints: totalPoints,
			Confidence:  s.opts.Confidence,
			Timeframe:   s.opts.Timeframe,
		},
		CostBenefit: float64(totalPoints) / totalPrice,
		Savings:     total.Mul(decimal.NewFromFloat(discount)).Round(2).InexactFloat64(),
	}
}

func sortByCostBenefit(bundles []model.Bundle) {
	sort.SliceStable(bundles, func(a, b int) bool {
		return bundles[a].CostBenefit > bundles[b].CostBenefit
	})
}
