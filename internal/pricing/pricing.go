// Package pricing derives a market price for a tradeline from its own attributes.
package pricing

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// ErrInvalidTable is returned by Table.Validate.
var ErrInvalidTable = errors.New("invalid pricing table")

// Multiplier applies Factor when a value is at least Min.
type Multiplier struct {
	Min    float64 `json:"min"`
	Factor float64 `json:"factor"`
}

// Table holds every pricing factor.
type Table struct {
	BasePrice float64 `json:"base_price"`
	RoundTo   float64 `json:"round_to"`

	AgeFactors   []Multiplier `json:"age_factors"`
	LimitFactors []Multiplier `json:"limit_factors"`

	// Utilization: <= LowUtil gets LowUtilFactor, <= ModerateUtil gets ModerateUtilFactor,
	// > HighUtil gets HighUtilFactor
	LowUtil            float64 `json:"low_util"`
	LowUtilFactor      float64 `json:"low_util_factor"`
	ModerateUtil       float64 `json:"moderate_util"`
	ModerateUtilFactor float64 `json:"moderate_util_factor"`
	HighUtil           float64 `json:"high_util"`
	HighUtilFactor     float64 `json:"high_util_factor"`

	PaymentFactors map[model.PaymentHistory]float64 `json:"payment_factors"`

	Premium   float64 `json:"premium"`
	Bulk      float64 `json:"bulk"`
	Expedited float64 `json:"expedited"`
}

// DefaultTable returns the standard pricing table.
func DefaultTable() Table {
	return Table{
		BasePrice: 300,
		RoundTo:   25,
		AgeFactors: []Multiplier{
			{Min: 15, Factor: 2.5},
			{Min: 10, Factor: 2.0},
			{Min: 7, Factor: 1.7},
			{Min: 5, Factor: 1.4},
			{Min: 3, Factor: 1.2},
		},
		LimitFactors: []Multiplier{
			{Min: 50000, Factor: 1.5},
			{Min: 25000, Factor: 1.3},
			{Min: 15000, Factor: 1.2},
			{Min: 10000, Factor: 1.1},
		},
		LowUtil:            5,
		LowUtilFactor:      1.2,
		ModerateUtil:       10,
		ModerateUtilFactor: 1.1,
		HighUtil:           30,
		HighUtilFactor:     0.9,
		PaymentFactors: map[model.PaymentHistory]float64{
			model.PaymentPerfect:   1.15,
			model.PaymentExcellent: 1.1,
		},
		Premium:   1.3,
		Bulk:      0.85,
		Expedited: 1.5,
	}
}

// Validate rejects tables that could produce a negative or unrounded price.
func (t Table) Validate() error {
	if t.BasePrice < 0 {
		return fmt.Errorf("%w: negative base price", ErrInvalidTable)
	}
	if t.RoundTo <= 0 {
		return fmt.Errorf("%w: round_to must be positive", ErrInvalidTable)
	}
	for _, m := range append(append([]Multiplier{}, t.AgeFactors...), t.LimitFactors...) {
		if m.Factor < 0 {
			return fmt.Errorf("%w: negative factor at min %v", ErrInvalidTable, m.Min)
		}
	}
	for _, f := range []float64{t.LowUtilFactor, t.ModerateUtilFactor, t.HighUtilFactor, t.Premium, t.Bulk, t.Expedited} {
		if f < 0 {
			return fmt.Errorf("%w: negative factor %v", ErrInvalidTable, f)
		}
	}
	return nil
}

// RecommendedPrice returns the attribute-based price rounded to the nearest RoundTo.
func RecommendedPrice(tl model.Tradeline, asOf civil.Date, t Table) float64 {
	return recommended(tl, asOf, t).InexactFloat64()
}

// Tiers derives the named price points from the recommended price.
// Premium, bulk and expedited are rounded to whole dollars.
func Tiers(tl model.Tradeline, asOf civil.Date, t Table) model.PricingTiers {
	base := recommended(tl, asOf, t)
	tier := func(f float64) float64 {
		return base.Mul(decimal.NewFromFloat(f)).Round(0).InexactFloat64()
	}

	return model.PricingTiers{
		Standard:    base.InexactFloat64(),
		Premium:     tier(t.Premium),
		Bulk:        tier(t.Bulk),
		Expedited:   tier(t.Expedited),
		Recommended: base.InexactFloat64(),
	}
}

func recommended(tl model.Tradeline, asOf civil.Date, t Table) decimal.Decimal {
	price := decimal.NewFromFloat(t.BasePrice).
		Mul(factorAtLeast(t.AgeFactors, float64(tl.AgeYears(asOf)))).
		Mul(factorAtLeast(t.LimitFactors, tl.CreditLimit)).
		Mul(utilizationFactor(tl.UtilizationPercent(), t))

	if f, ok := t.PaymentFactors[tl.PaymentHistory]; ok {
		price = price.Mul(decimal.NewFromFloat(f))
	}

	step := decimal.NewFromFloat(t.RoundTo)
	if !step.IsPositive() {
		return price.Round(0)
	}
	return price.Div(step).Round(0).Mul(step)
}

func factorAtLeast(ms []Multiplier, v float64) decimal.Decimal {
	for _, m := range ms {
		if v >= m.Min {
			return decimal.NewFromFloat(m.Factor)
		}
	}
	return decimal.NewFromInt(1)
}

func utilizationFactor(util float64, t Table) decimal.Decimal {
	switch {
	case util <= t.LowUtil:
		return decimal.NewFromFloat(t.LowUtilFactor)
	case util <= t.ModerateUtil:
		return decimal.NewFromFloat(t.ModerateUtilFactor)
	case util > t.HighUtil:
		return decimal.NewFromFloat(t.HighUtilFactor)
	default:
		return decimal.NewFromInt(1)
	}
}
