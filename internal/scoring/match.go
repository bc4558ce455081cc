package scoring

import (
	"cloud.google.com/go/civil"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// MatchFactors is the per-factor split of a match score.
type MatchFactors struct {
	Age         int `json:"age"`
	Limit       int `json:"limit"`
	Utilization int `json:"utilization"`
	Payment     int `json:"payment"`
	Relevance   int `json:"relevance"`
}

// Total is the capped sum of the factors.
func (f MatchFactors) Total(max int) int {
	return clamp(f.Age+f.Limit+f.Utilization+f.Payment+f.Relevance, 0, max)
}

// MatchScore scores how well a tradeline suits a client, in [0, MaxScore].
func MatchScore(p model.ClientCreditProfile, tl model.Tradeline, asOf civil.Date, t Tables) int {
	return ScoreFactors(p, tl, asOf, t).Total(t.Match.MaxScore)
}

// ScoreFactors computes each additive factor of the match score.
func ScoreFactors(p model.ClientCreditProfile, tl model.Tradeline, asOf civil.Date, t Tables) MatchFactors {
	mt := t.Match
	age := tl.AgeYears(asOf)

	f := MatchFactors{
		Age:         pointsAtLeast(mt.AgeTiers, float64(age)),
		Limit:       pointsAtLeast(mt.LimitTiers, tl.CreditLimit),
		Utilization: pointsAtMost(mt.UtilizationTiers, tl.UtilizationPercent()),
		Payment:     mt.PaymentPoints[tl.PaymentHistory],
	}

	// older lines help thin, poor files the most
	if p.ScoreRange == model.ScorePoor && age >= mt.PoorRangeMinAge {
		f.Relevance += mt.RelevanceBonus
	}
	// a big limit is what a maxed-out client needs
	if p.UtilizationPercent > mt.HighUtilizationAbove && tl.CreditLimit >= mt.HighUtilizationMinLimit {
		f.Relevance += mt.RelevanceBonus
	}

	return f
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
