package bundle

import (
	"context"
	"fmt"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/scoring"
)

var asOf = civil.Date{Year: 2026, Month: 10, Day: 16}

func youngFairProfile() model.ClientCreditProfile {
	return model.ClientCreditProfile{
		CurrentScore:       580,
		ScoreRange:         model.ScoreFair,
		NegativeItemCount:  8,
		CreditAgeYears:     1,
		UtilizationPercent: 60,
	}
}

func line(id string, years int, limit, price float64) model.Tradeline {
	return model.Tradeline{
		ID:             id,
		OpenedDate:     civil.Date{Year: asOf.Year - years, Month: asOf.Month, Day: asOf.Day},
		CreditLimit:    limit,
		Balance:        limit * 0.05,
		PaymentHistory: model.PaymentPerfect,
		Type:           "CREDIT_CARD",
		Price:          price,
		Available:      true,
	}
}

func TestOptimize_TwoHalfBudgetLines(t *testing.T) {
	tables := scoring.DefaultTables()
	p := youngFairProfile()
	a, b := line("a", 12, 20000, 500), line("b", 11, 18000, 500)

	bundles, err := Optimize(p, []model.Tradeline{a, b}, 1000, asOf, tables)
	require.NoError(t, err)
	require.Len(t, bundles, 1)

	got := bundles[0]
	assert.Equal(t, []model.Tradeline{a, b}, got.Tradelines)
	assert.Equal(t, 1000.0, got.TotalPrice)

	// each line alone predicts 100; second position counts 0.7
	assert.Equal(t, 100, scoring.PredictImpact(p, a, asOf, tables).TotalPoints)
	assert.Equal(t, 170, got.ExpectedImpact.TotalPoints)
	assert.InDelta(t, 0.17, got.CostBenefit, 1e-9)
	assert.InDelta(t, 100.0, got.Savings, 1e-9)
	assert.Equal(t, "medium-high", got.ExpectedImpact.Confidence)
	assert.Equal(t, "2-3 billing cycles", got.ExpectedImpact.Timeframe)
}

func TestOptimize_Triples(t *testing.T) {
	tables := scoring.DefaultTables()
	p := youngFairProfile()
	lines := []model.Tradeline{line("a", 12, 20000, 300), line("b", 12, 20000, 300), line("c", 12, 20000, 300)}

	bundles, err := Optimize(p, lines, 900, asOf, tables)
	require.NoError(t, err)

	// three pairs and one triple
	require.Len(t, bundles, 4)

	var triple *model.Bundle
	for i := range bundles {
		if len(bundles[i].Tradelines) == 3 {
			triple = &bundles[i]
		}
	}
	require.NotNil(t, triple)
	assert.Equal(t, 220, triple.ExpectedImpact.TotalPoints)
	assert.Equal(t, 900.0, triple.TotalPrice)
	assert.InDelta(t, 135.0, triple.Savings, 1e-9)
}

func TestOptimize_FirstMemberPruning(t *testing.T) {
	tables := scoring.DefaultTables()
	p := youngFairProfile()
	big, small := line("big", 12, 20000, 700), line("small", 12, 20000, 200)

	bundles, err := Optimize(p, []model.Tradeline{big, small}, 1000, asOf, tables)
	require.NoError(t, err)
	assert.Empty(t, bundles)

	bundles, err = Optimize(p, []model.Tradeline{small, big}, 1000, asOf, tables)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, 900.0, bundles[0].TotalPrice)
}

func TestOptimize_SkipsUnusableLines(t *testing.T) {
	tables := scoring.DefaultTables()
	p := youngFairProfile()

	unavailable := line("gone", 12, 20000, 200)
	unavailable.Available = false
	free := line("free", 12, 20000, 0)
	dup := line("a", 5, 5000, 100)

	lines := []model.Tradeline{line("a", 12, 20000, 200), unavailable, free, dup, line("b", 8, 10000, 200)}
	bundles, err := Optimize(p, lines, 1000, asOf, tables)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, "a", bundles[0].Tradelines[0].ID)
	assert.Equal(t, "b", bundles[0].Tradelines[1].ID)
}

func TestOptimize_NegativeBudget(t *testing.T) {
	_, err := Optimize(youngFairProfile(), nil, -1, asOf, scoring.DefaultTables())
	assert.ErrorIs(t, err, ErrInvalidBudget)

	bundles, err := Optimize(youngFairProfile(), nil, 0, asOf, scoring.DefaultTables())
	require.NoError(t, err)
	assert.Empty(t, bundles)
}

func mixedInventory() []model.Tradeline {
	var lines []model.Tradeline
	for i := 0; i < 12; i++ {
		tl := line(fmt.Sprintf("tl-%02d", i), i*2, float64(2000+i*3000), float64(150+(i*73)%500))
		if i%4 == 3 {
			tl.PaymentHistory = model.PaymentGood
		}
		lines = append(lines, tl)
	}
	return lines
}

func TestOptimize_Invariants(t *testing.T) {
	tables := scoring.DefaultTables()
	p := youngFairProfile()
	budget := 1200.0

	bundles, err := Optimize(p, mixedInventory(), budget, asOf, tables)
	require.NoError(t, err)
	require.NotEmpty(t, bundles)

	for i, b := range bundles {
		require.Contains(t, []int{2, 3}, len(b.Tradelines))
		assert.LessOrEqual(t, b.TotalPrice, budget)

		ids := map[string]bool{}
		sum := 0
		for _, tl := range b.Tradelines {
			assert.True(t, tl.Available)
			assert.False(t, ids[tl.ID], "duplicate %s", tl.ID)
			ids[tl.ID] = true
			sum += scoring.PredictImpact(p, tl, asOf, tables).TotalPoints
		}
		assert.LessOrEqual(t, b.ExpectedImpact.TotalPoints, sum)

		if i > 0 {
			assert.GreaterOrEqual(t, bundles[i-1].CostBenefit, b.CostBenefit)
		}
	}
}

func TestOptimizeParallel_MatchesSequential(t *testing.T) {
	tables := scoring.DefaultTables()
	p := youngFairProfile()
	inv := mixedInventory()

	want, err := Optimize(p, inv, 1200, asOf, tables)
	require.NoError(t, err)

	for _, workers := range []int{0, 1, 3, 16} {
		got, err := OptimizeParallel(context.Background(), p, inv, 1200, asOf, tables, DefaultOptions(), workers)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestOptimizeParallel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OptimizeParallel(ctx, youngFairProfile(), mixedInventory(), 1200, asOf, scoring.DefaultTables(), DefaultOptions(), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimizeWithOptions_CustomSettings(t *testing.T) {
	tables := scoring.DefaultTables()
	p := youngFairProfile()
	big, small := line("big", 12, 20000, 700), line("small", 12, 20000, 200)

	opts := DefaultOptions()
	opts.PruneRatio = 1
	opts.PairDiscount = 0.2
	opts.Timeframe = "3-4 billing cycles"

	bundles, err := OptimizeWithOptions(p, []model.Tradeline{big, small}, 1000, asOf, tables, opts)
	require.NoError(t, err)
	require.Len(t, bundles, 1, "a looser prune ratio admits the expensive first member")
	assert.InDelta(t, 180.0, bundles[0].Savings, 1e-9)
	assert.Equal(t, "3-4 billing cycles", bundles[0].ExpectedImpact.Timeframe)

	parallel, err := OptimizeParallel(context.Background(), p, []model.Tradeline{big, small}, 1000, asOf, tables, opts, 2)
	require.NoError(t, err)
	assert.Equal(t, bundles, parallel)
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"zero prune ratio", func(o *Options) { o.PruneRatio = 0 }},
		{"prune ratio above one", func(o *Options) { o.PruneRatio = 1.5 }},
		{"negative pair discount", func(o *Options) { o.PairDiscount = -0.1 }},
		{"full triple discount", func(o *Options) { o.TripleDiscount = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)
		})
	}
}
