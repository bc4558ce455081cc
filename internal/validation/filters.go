// Package validation provides filtering and validation mechanisms for tradeline inventory.
package validation

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// Exclusion reasons, logged at debug level
const (
	ReasonUnavailable   = "unavailable"
	ReasonNoPrice       = "non-positive price"
	ReasonOverBudget    = "over budget"
	ReasonMissingID     = "missing id"
	ReasonNegativeValue = "negative limit or balance"
	ReasonPriceCeiling  = "price above ceiling"
)

// ValidationOptions holds configuration for catalog ingestion checks
type ValidationOptions struct {
	// MaxPrice rejects listings priced above this value (0 disables)
	MaxPrice float64

	// EnableOutlierDetection reports listings priced outside the IQR bounds.
	// Outliers are logged, never dropped: aged high-limit lines legitimately
	// price far above a young catalog.
	EnableOutlierDetection bool

	// OutlierIQRMultiplier defines sensitivity for outlier detection (1.5 is standard)
	OutlierIQRMultiplier float64
}

// DefaultValidationOptions returns sensible defaults for validation
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MaxPrice:               25000,
		EnableOutlierDetection: true,
		OutlierIQRMultiplier:   3.0,
	}
}

// FilterCandidates returns the tradelines a client can actually buy within budget:
// available, with a positive price not above the budget. Order is preserved.
func FilterCandidates(inventory []model.Tradeline, budget float64) []model.Tradeline {
	valid := make([]model.Tradeline, 0, len(inventory))
	for _, tl := range inventory {
		if reason := candidateRejection(tl, budget); reason != "" {
			logrus.WithFields(logrus.Fields{
				"tradeline": tl.ID,
				"price":     tl.Price,
				"reason":    reason,
			}).Debug("Excluded tradeline from candidates")
			continue
		}
		valid = append(valid, tl)
	}
	return valid
}

// FilterCandidatesConcurrently is FilterCandidates split across workers for large inventories.
// The result keeps inventory order.
func FilterCandidatesConcurrently(inventory []model.Tradeline, budget float64, workers int) []model.Tradeline {
	if len(inventory) < 100 || workers < 2 {
		// For small inventories, parallel processing overhead isn't worth it
		return FilterCandidates(inventory, budget)
	}

	chunkSize := (len(inventory) + workers - 1) / workers
	chunks := make([][]model.Tradeline, workers)
	wg := sync.WaitGroup{}

	for i := 0; i < workers; i++ {
		start := i * chunkSize
		if start >= len(inventory) {
			break
		}
		end := min(start+chunkSize, len(inventory))

		wg.Add(1)
		go func(i int, chunk []model.Tradeline) {
			defer wg.Done()
			chunks[i] = FilterCandidates(chunk, budget)
		}(i, inventory[start:end])
	}
	wg.Wait()

	valid := make([]model.Tradeline, 0, len(inventory))
	for _, c := range chunks {
		valid = append(valid, c...)
	}
	return valid
}

func candidateRejection(tl model.Tradeline, budget float64) string {
	switch {
	case !tl.Available:
		return ReasonUnavailable
	case tl.Price <= 0:
		return ReasonNoPrice
	case tl.Price > budget:
		return ReasonOverBudget
	default:
		return ""
	}
}

// FilterInvalid removes malformed listings from a vendor catalog.
func FilterInvalid(items []model.Tradeline) []model.Tradeline {
	return FilterInvalidWithOptions(items, DefaultValidationOptions())
}

// FilterInvalidWithOptions removes malformed listings with custom validation options.
func FilterInvalidWithOptions(items []model.Tradeline, opts ValidationOptions) []model.Tradeline {
	valid := make([]model.Tradeline, 0, len(items))
	for _, tl := range items {
		if reason := listingRejection(tl, opts); reason != "" {
			logrus.WithFields(logrus.Fields{
				"tradeline": tl.ID,
				"vendor":    tl.Vendor,
				"reason":    reason,
			}).Debug("Filtered invalid listing")
			continue
		}
		valid = append(valid, tl)
	}

	if opts.EnableOutlierDetection {
		priceOutliers(valid, opts.OutlierIQRMultiplier)
	}
	return valid
}

// listingRejection checks structural validity only. Availability and price are
// judged per request by FilterCandidates.
func listingRejection(tl model.Tradeline, opts ValidationOptions) string {
	switch {
	case tl.ID == "":
		return ReasonMissingID
	case tl.CreditLimit < 0 || tl.Balance < 0 || tl.Price < 0:
		return ReasonNegativeValue
	case opts.MaxPrice > 0 && tl.Price > opts.MaxPrice:
		return ReasonPriceCeiling
	default:
		return ""
	}
}

// priceOutliers returns the IDs of listings whose positive price falls outside the IQR
// bounds, logging each one. Unpriced listings are ignored.
func priceOutliers(items []model.Tradeline, iqrMultiplier float64) []string {
	prices := make([]float64, 0, len(items))
	for _, tl := range items {
		if tl.Price > 0 {
			prices = append(prices, tl.Price)
		}
	}
	if len(prices) <= 3 {
		return nil // Need at least 4 points for meaningful outlier detection
	}

	sort.Float64s(prices)
	q1 := prices[len(prices)/4]
	q3 := prices[len(prices)*3/4]
	iqr := q3 - q1
	lower := q1 - iqrMultiplier*iqr
	upper := q3 + iqrMultiplier*iqr

	var outliers []string
	for _, tl := range items {
		if tl.Price > 0 && (tl.Price < lower || tl.Price > upper) {
			logrus.WithFields(logrus.Fields{
				"tradeline": tl.ID,
				"vendor":    tl.Vendor,
				"price":     tl.Price,
				"bounds":    []float64{lower, upper},
			}).Info("Listing price outside catalog range")
			outliers = append(outliers, tl.ID)
		}
	}

	logrus.WithFields(logrus.Fields{
		"total":    len(items),
		"outliers": len(outliers),
		"bounds":   []float64{lower, upper},
	}).Debug("Outlier check complete")

	return outliers
}
