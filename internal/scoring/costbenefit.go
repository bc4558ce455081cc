package scoring

import (
	"errors"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// Cost-benefit ratings
const (
	RatingExcellent = "excellent"
	RatingGood      = "good"
	RatingFair      = "fair"
	RatingPoor      = "poor"
)

// ErrNonPositivePrice is returned when a cost-benefit ratio is requested for a free or unpriced tradeline.
var ErrNonPositivePrice = errors.New("price must be positive")

// CostBenefit rates the predicted points per dollar.
// Callers are expected to filter out non-positive prices first.
func CostBenefit(price float64, totalPoints int, t Tables) (model.CostBenefit, error) {
	if price <= 0 {
		return model.CostBenefit{}, ErrNonPositivePrice
	}

	ppd := float64(totalPoints) / price
	cb := model.CostBenefit{
		PointsPerDollar: ppd,
		Rating:          RatingPoor,
		Value:           "Low",
	}
	for _, th := range t.CostBenefit {
		if ppd > th.Above {
			cb.Rating = th.Rating
			cb.Value = th.Value
			break
		}
	}
	return cb, nil
}
