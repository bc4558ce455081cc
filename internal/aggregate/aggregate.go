package aggregate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// Summarize describes every single recommendation of a match run, before truncation.
// With no recommendations the price range stays nil.
func Summarize(recs []model.MatchRecommendation) model.Summary {
	if len(recs) == 0 {
		return model.Summary{}
	}

	impacts := make([]float64, len(recs))
	minPrice, maxPrice := math.Inf(1), math.Inf(-1)
	for i, r := range recs {
		impacts[i] = float64(r.ExpectedImpact.TotalPoints)
		minPrice = math.Min(minPrice, r.Tradeline.Price)
		maxPrice = math.Max(maxPrice, r.Tradeline.Price)
	}

	return model.Summary{
		TotalOptions:      len(recs),
		AvgExpectedImpact: int(math.Round(stat.Mean(impacts, nil))),
		PriceRange:        model.PriceRange{Min: &minPrice, Max: &maxPrice},
	}
}

// InventoryStats describes a catalog snapshot.
type InventoryStats struct {
	Total       int     `json:"total"`
	Available   int     `json:"available"`
	Featured    int     `json:"featured"`
	MeanPrice   float64 `json:"mean_price"`
	MedianPrice float64 `json:"median_price"`
	MeanLimit   float64 `json:"mean_limit"`
	Vendors     int     `json:"vendors"`
}

// Inventory computes price and limit statistics over the available, priced lines.
func Inventory(inventory []model.Tradeline) InventoryStats {
	s := InventoryStats{Total: len(inventory)}

	prices := make([]float64, 0, len(inventory))
	limits := make([]float64, 0, len(inventory))
	vendors := map[string]bool{}

	for _, tl := range inventory {
		if tl.Featured {
			s.Featured++
		}
		if tl.Vendor != "" {
			vendors[tl.Vendor] = true
		}
		if !tl.Available {
			continue
		}
		s.Available++
		if tl.Price > 0 {
			prices = append(prices, tl.Price)
			limits = append(limits, tl.CreditLimit)
		}
	}
	s.Vendors = len(vendors)

	if len(prices) == 0 {
		return s
	}

	s.MeanPrice = stat.Mean(prices, nil)
	s.MeanLimit = stat.Mean(limits, nil)
	s.MedianPrice = Median(prices)
	return s
}

// Median returns the middle value, averaging the two central values for even counts.
// Robust against a handful of mispriced listings.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)

	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
