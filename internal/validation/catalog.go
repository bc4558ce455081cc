package validation

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// CatalogFilter narrows an inventory for browsing. Zero fields do not filter.
type CatalogFilter struct {
	// Search matches creditor name or account type, case-insensitive
	Search string `json:"search,omitempty"`

	MinPrice float64 `json:"min_price,omitempty"`
	// MaxPrice of 0 means no upper bound
	MaxPrice float64 `json:"max_price,omitempty"`

	MinAgeYears int     `json:"min_age_years,omitempty"`
	MinLimit    float64 `json:"min_limit,omitempty"`

	FeaturedOnly bool `json:"featured_only,omitempty"`

	// MinBureaus requires the line to report to at least this many bureaus
	MinBureaus int `json:"min_bureaus,omitempty"`
}

// FilterCatalog returns the tradelines matching every criterion of f, in inventory order.
func FilterCatalog(inventory []model.Tradeline, f CatalogFilter, asOf civil.Date) []model.Tradeline {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]model.Tradeline, 0, len(inventory))
	for _, tl := range inventory {
		if search != "" &&
			!strings.Contains(strings.ToLower(tl.CreditorName), search) &&
			!strings.Contains(strings.ToLower(tl.Type), search) {
			continue
		}
		if tl.Price < f.MinPrice || (f.MaxPrice > 0 && tl.Price > f.MaxPrice) {
			continue
		}
		if tl.AgeYears(asOf) < f.MinAgeYears || tl.CreditLimit < f.MinLimit {
			continue
		}
		if f.FeaturedOnly && !tl.Featured {
			continue
		}
		if len(tl.ReportingBureaus) < f.MinBureaus {
			continue
		}
		out = append(out, tl)
	}

	logrus.WithFields(logrus.Fields{
		"total":   len(inventory),
		"matched": len(out),
	}).Debug("Catalog filter applied")

	return out
}
