package scoring

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/yourorg/tradeline-engine/internal/model"
)

// Thresholds for the recommendation text
const (
	reasonAgeYears       = 10
	reasonHighLimit      = 15000
	reasonLowUtilization = 10
	reasonUtilImpact     = 20
	reasonAgeImpact      = 15

	warnAgeYears          = 2
	warnLowLimit          = 5000
	warnHighUtilization   = 30
	warnExcellentMinLimit = 10000
)

// Reasons lists the positive points of a tradeline for this client, strongest first,
// capped at t.MaxReasons.
func Reasons(p model.ClientCreditProfile, tl model.Tradeline, impact model.ImpactPrediction, asOf civil.Date, t Tables) []string {
	reasons := []string{}

	if age := tl.AgeYears(asOf); age >= reasonAgeYears {
		reasons = append(reasons, fmt.Sprintf("Excellent age: %d years old increases average account age", age))
	}
	if tl.CreditLimit >= reasonHighLimit {
		reasons = append(reasons, fmt.Sprintf("High credit limit: %s significantly reduces utilization", formatDollars(tl.CreditLimit)))
	}
	if util := tl.UtilizationPercent(); util <= reasonLowUtilization {
		reasons = append(reasons, fmt.Sprintf("Low utilization: %.1f%% demonstrates responsible use", util))
	}
	if impact.Breakdown.UtilizationImpact > reasonUtilImpact {
		reasons = append(reasons, "Strong utilization impact: Could increase score 20-30 points")
	}
	if impact.Breakdown.AgeImpact > reasonAgeImpact {
		reasons = append(reasons, "Substantial age benefit: Adds years to credit history")
	}
	if tl.PaymentHistory == model.PaymentPerfect {
		reasons = append(reasons, "Perfect payment history: Never missed a payment")
	}

	if t.MaxReasons > 0 && len(reasons) > t.MaxReasons {
		reasons = reasons[:t.MaxReasons]
	}
	return reasons
}

// Warnings lists every concern about pairing the tradeline with this client.
func Warnings(p model.ClientCreditProfile, tl model.Tradeline, asOf civil.Date) []string {
	warnings := []string{}

	if tl.AgeYears(asOf) < warnAgeYears {
		warnings = append(warnings, "Low age: This tradeline is relatively new")
	}
	if tl.CreditLimit < warnLowLimit {
		warnings = append(warnings, "Low limit: Limited impact on utilization")
	}
	if tl.UtilizationPercent() > warnHighUtilization {
		warnings = append(warnings, "High utilization: Above recommended 30%")
	}
	if p.ScoreRange == model.ScoreExcellent && tl.CreditLimit < warnExcellentMinLimit {
		warnings = append(warnings, "Limited benefit: Your excellent credit may not see significant improvement")
	}

	return warnings
}

// formatDollars renders whole dollars with thousands separators, e.g. $20,000.
func formatDollars(v float64) string {
	s := decimal.NewFromFloat(v).Round(0).Abs().String()
	var out []byte
	for i := 0; i < len(s); i++ {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if v < 0 {
		return "-$" + string(out)
	}
	return "$" + string(out)
}
