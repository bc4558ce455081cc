// Package model defines the core data structures for the tradeline engine.
package model

import (
	"strings"

	"cloud.google.com/go/civil"
)

// ScoreRange buckets a credit score into the four bands used by the engine.
type ScoreRange string

// Score ranges
const (
	ScorePoor      ScoreRange = "POOR"
	ScoreFair      ScoreRange = "FAIR"
	ScoreGood      ScoreRange = "GOOD"
	ScoreExcellent ScoreRange = "EXCELLENT"
)

// Goal is a credit goal inferred from purchase intent and score.
type Goal string

// Client goals
const (
	GoalMortgage          Goal = "mortgage"
	GoalAutoLoan          Goal = "auto_loan"
	GoalCreditImprovement Goal = "credit_improvement"
)

// PaymentHistory is the payment record grade of a tradeline.
type PaymentHistory string

// Payment history grades. Anything else is treated as "other".
const (
	PaymentPerfect   PaymentHistory = "perfect"
	PaymentExcellent PaymentHistory = "excellent"
	PaymentGood      PaymentHistory = "good"
	PaymentOther     PaymentHistory = "other"
)

// DefaultAccountType is assumed held when a client record lists no account types.
const DefaultAccountType = "CREDIT_CARD"

// Tradeline is an authorized-user credit line offered in the inventory.
// The engine treats it as read-only.
type Tradeline struct {
	// ID is the inventory identifier
	ID string `json:"id"`

	// CreditorName is the display label (issuer or creditor)
	CreditorName string `json:"creditor_name"`

	// OpenedDate is when the underlying account was opened
	OpenedDate civil.Date `json:"opened_date"`

	CreditLimit float64 `json:"credit_limit"`
	Balance     float64 `json:"balance"`

	PaymentHistory PaymentHistory `json:"payment_history"`

	// Type is the account-type category, e.g. CREDIT_CARD
	Type string `json:"type"`

	// Price is what the client pays for a spot on this line
	Price float64 `json:"price"`

	Available bool `json:"available"`

	// Catalog metadata, not used by scoring
	AvailableSlots   int      `json:"available_slots,omitempty"`
	ReportingBureaus []string `json:"reporting_bureaus,omitempty"`
	Featured         bool     `json:"featured,omitempty"`
	Vendor           string   `json:"vendor,omitempty"`
}

// AgeYears returns the whole years between the opened date and asOf.
func (t Tradeline) AgeYears(asOf civil.Date) int {
	return WholeYears(t.OpenedDate, asOf)
}

// UtilizationPercent returns balance/limit as a percentage.
// A line without a positive limit counts as fully utilized, even with no balance:
// an unreported limit is treated as the worst case.
func (t Tradeline) UtilizationPercent() float64 {
	if t.CreditLimit <= 0 {
		return 100
	}
	return t.Balance / t.CreditLimit * 100
}

// Label returns the creditor name, falling back to the ID.
func (t Tradeline) Label() string {
	if t.CreditorName != "" {
		return t.CreditorName
	}
	return t.ID
}

// RawClient is the client record supplied by the profile source. Any field may be missing:
// zero numbers and zero dates mean unknown.
type RawClient struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"first_name,omitempty"`

	CreditScore   int `json:"credit_score,omitempty"`
	NegativeItems int `json:"negative_items,omitempty"`
	HardInquiries int `json:"hard_inquiries,omitempty"`

	OldestAccount civil.Date `json:"oldest_account,omitzero"`

	TotalBalance     float64 `json:"total_balance,omitempty"`
	TotalCreditLimit float64 `json:"total_credit_limit,omitempty"`

	PaymentHistory string   `json:"payment_history,omitempty"`
	AccountTypes   []string `json:"account_types,omitempty"`

	HomePurchaseIntent bool `json:"home_purchase_intent,omitempty"`
	AutoPurchaseIntent bool `json:"auto_purchase_intent,omitempty"`

	SSN            string     `json:"ssn,omitempty"`
	DOB            civil.Date `json:"dob,omitzero"`
	Bankruptcy     bool       `json:"bankruptcy,omitempty"`
	BankruptcyDate civil.Date `json:"bankruptcy_date,omitzero"`
}

// Eligibility reports whether a client may purchase tradelines, with every failing check.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Issues   []string `json:"issues"`
}

// ClientCreditProfile is the normalized view of a client. Immutable once built.
type ClientCreditProfile struct {
	CurrentScore      int        `json:"current_score"`
	ScoreRange        ScoreRange `json:"score_range"`
	NegativeItemCount int        `json:"negative_item_count"`
	CreditAgeYears    int        `json:"credit_age_years"`

	// UtilizationPercent is total balance / total limit x 100
	UtilizationPercent float64 `json:"utilization_percent"`

	// Totals are kept so the impact predictor can re-derive utilization with a new line
	TotalBalance     float64 `json:"total_balance"`
	TotalCreditLimit float64 `json:"total_credit_limit"`

	HardInquiryCount int    `json:"hard_inquiry_count"`
	PaymentHistory   string `json:"payment_history"`

	AccountTypes []string `json:"account_types"`
	Goals        []Goal   `json:"goals"`

	ImprovementPotential int         `json:"improvement_potential"`
	Eligibility          Eligibility `json:"eligibility"`
}

// HoldsAccountType reports whether the profile already has an account of the given type.
func (p ClientCreditProfile) HoldsAccountType(accountType string) bool {
	want := NormalizeAccountType(accountType)
	for _, t := range p.AccountTypes {
		if NormalizeAccountType(t) == want {
			return true
		}
	}
	return false
}

// NormalizeAccountType canonicalizes an account-type label ("Credit Card" -> "CREDIT_CARD").
func NormalizeAccountType(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.Join(strings.Fields(s), "_")
}

// ImpactBreakdown holds the per-factor points of an impact prediction.
type ImpactBreakdown struct {
	UtilizationImpact    int `json:"utilization_impact"`
	AgeImpact            int `json:"age_impact"`
	PaymentHistoryImpact int `json:"payment_history_impact"`
	AccountMixImpact     int `json:"account_mix_impact"`
}

// ImpactPrediction is the expected score gain from adding a single tradeline.
type ImpactPrediction struct {
	TotalPoints      int             `json:"total_points"`
	Breakdown        ImpactBreakdown `json:"breakdown"`
	Confidence       int             `json:"confidence"`
	ExpectedNewScore int             `json:"expected_new_score"`
	Timeframe        string          `json:"timeframe"`
}

// CostBenefit rates predicted points per dollar.
type CostBenefit struct {
	PointsPerDollar float64 `json:"points_per_dollar"`
	Rating          string  `json:"rating"`
	Value           string  `json:"value"`
}

// MatchRecommendation is one ranked single-tradeline option.
type MatchRecommendation struct {
	Tradeline      Tradeline        `json:"tradeline"`
	MatchScore     int              `json:"match_score"`
	ExpectedImpact ImpactPrediction `json:"expected_impact"`
	CostBenefit    CostBenefit      `json:"cost_benefit"`
	Reasons        []string         `json:"reasons"`
	Warnings       []string         `json:"warnings"`
}

// BundleImpact is the coarse combined impact of a bundle.
type BundleImpact struct {
	TotalPoints int    `json:"total_points"`
	Confidence  string `json:"confidence"`
	Timeframe   string `json:"timeframe"`
}

// Bundle is a combination of 2 or 3 distinct tradelines bought together.
type Bundle struct {
	Tradelines     []Tradeline  `json:"tradelines"`
	TotalPrice     float64      `json:"total_price"`
	ExpectedImpact BundleImpact `json:"expected_impact"`
	CostBenefit    float64      `json:"cost_benefit"`
	Savings        float64      `json:"savings"`
}

// PriceRange is the min/max price over the recommended options. Nil when there are none.
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Summary describes the full set of single recommendations.
type Summary struct {
	TotalOptions      int        `json:"total_options"`
	AvgExpectedImpact int        `json:"avg_expected_impact"`
	PriceRange        PriceRange `json:"price_range"`

	// BundlesTruncated is set when the bundle search was cut short
	BundlesTruncated bool `json:"bundles_truncated,omitempty"`
}

// MatchResult is the output of a match run.
type MatchResult struct {
	SingleRecommendations []MatchRecommendation `json:"single_recommendations"`
	Bundles               []Bundle              `json:"bundles"`
	Summary               Summary               `json:"summary"`
}

// PricingTiers are the named price points for one tradeline.
type PricingTiers struct {
	Standard    float64 `json:"standard"`
	Premium     float64 `json:"premium"`
	Bulk        float64 `json:"bulk"`
	Expedited   float64 `json:"expedited"`
	Recommended float64 `json:"recommended"`
}
