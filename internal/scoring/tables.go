// Package scoring implements the per-tradeline models: suitability (match score),
// expected score impact, cost-benefit rating, and the reasons/warnings text.
//
// Every function is pure. All thresholds live in Tables so that a market can
// tune them without touching the algorithms.
package scoring

import (
	"errors"
	"fmt"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// ErrInvalidTables is returned by Tables.Validate.
var ErrInvalidTables = errors.New("invalid scoring tables")

// Hard ceilings no market table may exceed.
const (
	ScoreCeiling  = 850
	PointsCeiling = 100
)

// Tier awards Points when a value is at least Min.
type Tier struct {
	Min    float64 `json:"min"`
	Points int     `json:"points"`
}

// CeilingTier awards Points when a value is at most Max.
type CeilingTier struct {
	Max    float64 `json:"max"`
	Points int     `json:"points"`
}

// AgeImpactBand applies Tiers to the tradeline age when the client's credit age is below MaxCreditAge.
type AgeImpactBand struct {
	MaxCreditAge int    `json:"max_credit_age"`
	Tiers        []Tier `json:"tiers"`
}

// RatingThreshold assigns Rating when points-per-dollar is strictly greater than Above.
type RatingThreshold struct {
	Above  float64 `json:"above"`
	Rating string  `json:"rating"`
	Value  string  `json:"value"`
}

// MatchTables configures the 0-100 suitability score.
type MatchTables struct {
	AgeTiers         []Tier                       `json:"age_tiers"`
	LimitTiers       []Tier                       `json:"limit_tiers"`
	UtilizationTiers []CeilingTier                `json:"utilization_tiers"`
	PaymentPoints    map[model.PaymentHistory]int `json:"payment_points"`

	// Relevance bonuses
	PoorRangeMinAge         int     `json:"poor_range_min_age"`
	HighUtilizationAbove    float64 `json:"high_utilization_above"`
	HighUtilizationMinLimit float64 `json:"high_utilization_min_limit"`
	RelevanceBonus          int     `json:"relevance_bonus"`

	MaxScore int `json:"max_score"`
}

// ImpactTables configures the expected score-point gain.
type ImpactTables struct {
	// Utilization impact only applies above this profile utilization
	UtilizationTrigger float64 `json:"utilization_trigger"`

	// Strictly-greater thresholds on utilization reduction
	ReductionTiers []RatingTier `json:"reduction_tiers"`

	// Bands are checked in order; the first with CreditAgeYears < MaxCreditAge applies
	AgeBands []AgeImpactBand `json:"age_bands"`

	// Negative-item thresholds for the perfect-history bonus (strictly greater)
	NegativeItemTiers    []RatingTier `json:"negative_item_tiers"`
	PaymentHistoryPoints int          `json:"payment_history_points"`

	AccountMixPoints int `json:"account_mix_points"`

	RangeMultipliers map[model.ScoreRange]float64 `json:"range_multipliers"`
	MaxPoints        int                          `json:"max_points"`
	MaxNewScore      int                          `json:"max_new_score"`

	BaseConfidence      int     `json:"base_confidence"`
	AgedConfidenceAge   int     `json:"aged_confidence_age"`
	AgedConfidence      int     `json:"aged_confidence"`
	HighLimitThreshold  float64 `json:"high_limit_threshold"`
	HighLimitConfidence int     `json:"high_limit_confidence"`
	PerfectConfidence   int     `json:"perfect_confidence"`
	MaxConfidence       int     `json:"max_confidence"`

	Timeframe string `json:"timeframe"`
}

// RatingTier awards Points when a value is strictly greater than Above.
type RatingTier struct {
	Above  float64 `json:"above"`
	Points int     `json:"points"`
}

// Tables bundles every tunable threshold of the scoring models.
type Tables struct {
	Match       MatchTables       `json:"match"`
	Impact      ImpactTables      `json:"impact"`
	CostBenefit []RatingThreshold `json:"cost_benefit"`

	// MaxReasons caps the positive reasons attached to a recommendation
	MaxReasons int `json:"max_reasons"`
}

// DefaultTables returns the standard market tables.
func DefaultTables() Tables {
	return Tables{
		Match: MatchTables{
			AgeTiers: []Tier{
				{Min: 10, Points: 40},
				{Min: 7, Points: 35},
				{Min: 5, Points: 30},
				{Min: 3, Points: 20},
				{Min: 2, Points: 10},
			},
			LimitTiers: []Tier{
				{Min: 25000, Points: 25},
				{Min: 15000, Points: 20},
				{Min: 10000, Points: 15},
				{Min: 5000, Points: 10},
			},
			UtilizationTiers: []CeilingTier{
				{Max: 5, Points: 20},
				{Max: 10, Points: 15},
				{Max: 20, Points: 10},
				{Max: 30, Points: 5},
			},
			PaymentPoints: map[model.PaymentHistory]int{
				model.PaymentPerfect:   10,
				model.PaymentExcellent: 8,
				model.PaymentGood:      5,
			},
			PoorRangeMinAge:         5,
			HighUtilizationAbove:    50,
			HighUtilizationMinLimit: 10000,
			RelevanceBonus:          5,
			MaxScore:                100,
		},
		Impact: ImpactTables{
			UtilizationTrigger: 30,
			ReductionTiers: []RatingTier{
				{Above: 20, Points: 30},
				{Above: 10, Points: 20},
				{Above: 5, Points: 10},
			},
			AgeBands: []AgeImpactBand{
				{MaxCreditAge: 3, Tiers: []Tier{{Min: 10, Points: 25}, {Min: 7, Points: 20}, {Min: 5, Points: 15}}},
				{MaxCreditAge: 7, Tiers: []Tier{{Min: 10, Points: 15}, {Min: 7, Points: 10}}},
			},
			NegativeItemTiers: []RatingTier{
				{Above: 5, Points: 20},
				{Above: 2, Points: 15},
			},
			PaymentHistoryPoints: 10,
			AccountMixPoints:     10,
			RangeMultipliers: map[model.ScoreRange]float64{
				model.ScorePoor:      1.5,
				model.ScoreFair:      1.3,
				model.ScoreGood:      1.1,
				model.ScoreExcellent: 1.0,
			},
			MaxPoints:           100,
			MaxNewScore:         850,
			BaseConfidence:      80,
			AgedConfidenceAge:   10,
			AgedConfidence:      10,
			HighLimitThreshold:  15000,
			HighLimitConfidence: 5,
			PerfectConfidence:   5,
			MaxConfidence:       100,
			Timeframe:           "1-2 billing cycles",
		},
		CostBenefit: []RatingThreshold{
			{Above: 0.20, Rating: RatingExcellent, Value: "High"},
			{Above: 0.15, Rating: RatingGood, Value: "Good"},
			{Above: 0.10, Rating: RatingFair, Value: "Fair"},
		},
		MaxReasons: 4,
	}
}

// Validate checks that tier lists are ordered so that a better attribute never scores lower,
// and that every cap stays within ScoreCeiling and PointsCeiling.
func (t Tables) Validate() error {
	if err := validateTiers("match.age_tiers", t.Match.AgeTiers); err != nil {
		return err
	}
	if err := validateTiers("match.limit_tiers", t.Match.LimitTiers); err != nil {
		return err
	}
	for i := 1; i < len(t.Match.UtilizationTiers); i++ {
		prev, cur := t.Match.UtilizationTiers[i-1], t.Match.UtilizationTiers[i]
		if cur.Max <= prev.Max || cur.Points > prev.Points {
			return fmt.Errorf("%w: match.utilization_tiers[%d] must have a higher max and no more points", ErrInvalidTables, i)
		}
	}
	for i, band := range t.Impact.AgeBands {
		if err := validateTiers(fmt.Sprintf("impact.age_bands[%d]", i), band.Tiers); err != nil {
			return err
		}
		if i > 0 && band.MaxCreditAge <= t.Impact.AgeBands[i-1].MaxCreditAge {
			return fmt.Errorf("%w: impact.age_bands must have increasing max_credit_age", ErrInvalidTables)
		}
	}
	if err := validateRatingTiers("impact.reduction_tiers", t.Impact.ReductionTiers); err != nil {
		return err
	}
	if err := validateRatingTiers("impact.negative_item_tiers", t.Impact.NegativeItemTiers); err != nil {
		return err
	}
	for i := 1; i < len(t.CostBenefit); i++ {
		if t.CostBenefit[i].Above >= t.CostBenefit[i-1].Above {
			return fmt.Errorf("%w: cost_benefit[%d] must have a lower threshold", ErrInvalidTables, i)
		}
	}

	if t.Match.MaxScore <= 0 || t.Match.MaxScore > PointsCeiling {
		return fmt.Errorf("%w: match.max_score must be in (0, %d]", ErrInvalidTables, PointsCeiling)
	}
	if t.Impact.MaxPoints <= 0 || t.Impact.MaxPoints > PointsCeiling {
		return fmt.Errorf("%w: impact.max_points must be in (0, %d]", ErrInvalidTables, PointsCeiling)
	}
	if t.Impact.MaxNewScore <= 0 || t.Impact.MaxNewScore > ScoreCeiling {
		return fmt.Errorf("%w: impact.max_new_score must be in (0, %d]", ErrInvalidTables, ScoreCeiling)
	}
	if t.Impact.MaxConfidence <= 0 || t.Impact.MaxConfidence > PointsCeiling {
		return fmt.Errorf("%w: impact.max_confidence must be in (0, %d]", ErrInvalidTables, PointsCeiling)
	}
	if t.Impact.BaseConfidence < 0 {
		return fmt.Errorf("%w: impact.base_confidence must not be negative", ErrInvalidTables)
	}
	for r, m := range t.Impact.RangeMultipliers {
		if m < 0 {
			return fmt.Errorf("%w: negative multiplier for %s", ErrInvalidTables, r)
		}
	}
	return nil
}

func validateTiers(name string, tiers []Tier) error {
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Min >= tiers[i-1].Min || tiers[i].Points > tiers[i-1].Points {
			return fmt.Errorf("%w: %s[%d] must have a lower min and no more points", ErrInvalidTables, name, i)
		}
	}
	for i, tier := range tiers {
		if tier.Points < 0 {
			return fmt.Errorf("%w: %s[%d] has negative points", ErrInvalidTables, name, i)
		}
	}
	return nil
}

func validateRatingTiers(name string, tiers []RatingTier) error {
	for i, tier := range tiers {
		if tier.Points < 0 {
			return fmt.Errorf("%w: %s[%d] has negative points", ErrInvalidTables, name, i)
		}
		if i > 0 && (tier.Above >= tiers[i-1].Above || tier.Points > tiers[i-1].Points) {
			return fmt.Errorf("%w: %s[%d] must have a lower threshold and no more points", ErrInvalidTables, name, i)
		}
	}
	return nil
}

// pointsAtLeast returns the points of the first tier whose Min is <= v.
func pointsAtLeast(tiers []Tier, v float64) int {
	for _, t := range tiers {
		if v >= t.Min {
			return t.Points
		}
	}
	return 0
}

// pointsAtMost returns the points of the first tier whose Max is >= v.
func pointsAtMost(tiers []CeilingTier, v float64) int {
	for _, t := range tiers {
		if v <= t.Max {
			return t.Points
		}
	}
	return 0
}

// pointsAbove returns the points of the first tier whose Above is < v.
func pointsAbove(tiers []RatingTier, v float64) int {
	for _, t := range tiers {
		if v > t.Above {
			return t.Points
		}
	}
	return 0
}
