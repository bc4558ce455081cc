// Package profile derives a normalized credit profile from a raw client record.
//
// Analyze never fails: missing fields take their documented defaults.
package profile

import (
	"cloud.google.com/go/civil"

	"github.com/yourorg/tradeline-engine/internal/model"
)

const (
	// DefaultScore is assumed when the client's score is unknown.
	DefaultScore = 650

	MinScore = 300
	MaxScore = 850

	// MaxImprovementPotential caps the improvement heuristic.
	MaxImprovementPotential = 150

	// BankruptcyWaitYears is how long ago a bankruptcy must be to stay eligible.
	BankruptcyWaitYears = 2
)

// Eligibility issue messages
const (
	IssueSSNRequired      = "SSN required"
	IssueDOBRequired      = "Date of birth required"
	IssueRecentBankruptcy = "Recent bankruptcy (must be 2+ years)"
)

// Analyze builds a ClientCreditProfile from the raw client as of the given date.
func Analyze(client model.RawClient, asOf civil.Date) model.ClientCreditProfile {
	score := normalizeScore(client.CreditScore)

	p := model.ClientCreditProfile{
		CurrentScore:       score,
		ScoreRange:         RangeFor(score),
		NegativeItemCount:  nonNegative(client.NegativeItems),
		CreditAgeYears:     model.WholeYears(client.OldestAccount, asOf),
		UtilizationPercent: utilization(client.TotalBalance, client.TotalCreditLimit),
		TotalBalance:       nonNegativeFloat(client.TotalBalance),
		TotalCreditLimit:   nonNegativeFloat(client.TotalCreditLimit),
		HardInquiryCount:   nonNegative(client.HardInquiries),
		PaymentHistory:     client.PaymentHistory,
		AccountTypes:       accountTypes(client.AccountTypes),
		Goals:              goals(client, score),
		Eligibility:        assessEligibility(client, asOf),
	}
	if p.PaymentHistory == "" {
		p.PaymentHistory = "unknown"
	}

	p.ImprovementPotential = ImprovementPotential(p)
	return p
}

// RangeFor maps a score to its range.
func RangeFor(score int) model.ScoreRange {
	switch {
	case score < 580:
		return model.ScorePoor
	case score < 670:
		return model.ScoreFair
	case score < 740:
		return model.ScoreGood
	default:
		return model.ScoreExcellent
	}
}

// ImprovementPotential scores how much room the profile has to improve, in [0,150].
func ImprovementPotential(p model.ClientCreditProfile) int {
	var potential int
	switch p.ScoreRange {
	case model.ScorePoor:
		potential = 100
	case model.ScoreFair:
		potential = 80
	case model.ScoreGood:
		potential = 50
	default:
		potential = 30
	}

	if p.UtilizationPercent > 50 {
		potential += 30
	} else if p.UtilizationPercent > 30 {
		potential += 20
	}

	if p.CreditAgeYears < 3 {
		potential += 25
	} else if p.CreditAgeYears < 5 {
		potential += 15
	}

	return clamp(potential, 0, MaxImprovementPotential)
}

func normalizeScore(score int) int {
	if score <= 0 {
		return DefaultScore
	}
	return clamp(score, MinScore, MaxScore)
}

// utilization is 0 when either total is missing.
func utilization(balance, limit float64) float64 {
	if balance <= 0 || limit <= 0 {
		return 0
	}
	return balance / limit * 100
}

func accountTypes(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	types := make([]string, 0, len(raw))
	for _, t := range raw {
		n := model.NormalizeAccountType(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		types = append(types, n)
	}
	if len(types) == 0 {
		return []string{model.DefaultAccountType}
	}
	return types
}

func goals(client model.RawClient, score int) []model.Goal {
	g := []model.Goal{}
	if client.HomePurchaseIntent {
		g = append(g, model.GoalMortgage)
	}
	if client.AutoPurchaseIntent {
		g = append(g, model.GoalAutoLoan)
	}
	if score < 670 {
		g = append(g, model.GoalCreditImprovement)
	}
	return g
}

// assessEligibility collects every failing check, not just the first.
func assessEligibility(client model.RawClient, asOf civil.Date) model.Eligibility {
	issues := []string{}

	if client.SSN == "" {
		issues = append(issues, IssueSSNRequired)
	}
	if model.IsZeroDate(client.DOB) {
		issues = append(issues, IssueDOBRequired)
	}
	if client.Bankruptcy && !model.IsZeroDate(client.BankruptcyDate) &&
		model.WholeYears(client.BankruptcyDate, asOf) < BankruptcyWaitYears {
		issues = append(issues, IssueRecentBankruptcy)
	}

	return model.Eligibility{
		Eligible: len(issues) == 0,
		Issues:   issues,
	}
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

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func nonNegativeFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
