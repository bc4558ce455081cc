package scoring

import (
	"math"

	"cloud.google.com/go/civil"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// PredictImpact estimates the score points a client gains from adding the tradeline.
func PredictImpact(p model.ClientCreditProfile, tl model.Tradeline, asOf civil.Date, t Tables) model.ImpactPrediction {
	it := t.Impact
	age := tl.AgeYears(asOf)

	var b model.ImpactBreakdown

	if p.UtilizationPercent > it.UtilizationTrigger {
		b.UtilizationImpact = pointsAbove(it.ReductionTiers, UtilizationReduction(p, tl))
	}

	for _, band := range it.AgeBands {
		if p.CreditAgeYears < band.MaxCreditAge {
			b.AgeImpact = pointsAtLeast(band.Tiers, float64(age))
			break
		}
	}

	if tl.PaymentHistory == model.PaymentPerfect {
		b.PaymentHistoryImpact = it.PaymentHistoryPoints
		if pts := pointsAbove(it.NegativeItemTiers, float64(p.NegativeItemCount)); pts > 0 {
			b.PaymentHistoryImpact = pts
		}
	}

	if !p.HoldsAccountType(tl.Type) {
		b.AccountMixImpact = it.AccountMixPoints
	}

	raw := b.UtilizationImpact + b.AgeImpact + b.PaymentHistoryImpact + b.AccountMixImpact
	multiplier, ok := it.RangeMultipliers[p.ScoreRange]
	if !ok {
		multiplier = 1
	}
	total := clamp(int(math.Round(float64(raw)*multiplier)), 0, it.MaxPoints)

	return model.ImpactPrediction{
		TotalPoints:      total,
		Breakdown:        b,
		Confidence:       confidence(tl, age, it),
		ExpectedNewScore: min(it.MaxNewScore, p.CurrentScore+total),
		Timeframe:        it.Timeframe,
	}
}

// UtilizationReduction is how many percentage points the profile's utilization drops
// once the tradeline's limit and balance are added to its totals.
func UtilizationReduction(p model.ClientCreditProfile, tl model.Tradeline) float64 {
	newLimit := p.TotalCreditLimit + tl.CreditLimit
	if newLimit <= 0 {
		return 0
	}
	newUtil := (p.TotalBalance + tl.Balance) / newLimit * 100
	return p.UtilizationPercent - newUtil
}

func confidence(tl model.Tradeline, age int, it ImpactTables) int {
	c := it.BaseConfidence
	if age >= it.AgedConfidenceAge {
		c += it.AgedConfidence
	}
	if tl.CreditLimit >= it.HighLimitThreshold {
		c += it.HighLimitConfidence
	}
	if tl.PaymentHistory == model.PaymentPerfect {
		c += it.PerfectConfidence
	}
	return clamp(c, 0, it.MaxConfidence)
}
