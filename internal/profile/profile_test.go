package profile

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tradeline-engine/internal/model"
)

var asOf = civil.Date{Year: 2026, Month: 10, Day: 16}

func TestAnalyze_MissingFieldsUseDefaults(t *testing.T) {
	p := Analyze(model.RawClient{}, asOf)

	assert.Equal(t, DefaultScore, p.CurrentScore)
	assert.Equal(t, model.ScoreFair, p.ScoreRange)
	assert.Equal(t, 0, p.CreditAgeYears)
	assert.Equal(t, 0.0, p.UtilizationPercent)
	assert.Equal(t, []string{model.DefaultAccountType}, p.AccountTypes)
	assert.Equal(t, []model.Goal{model.GoalCreditImprovement}, p.Goals)
	assert.Equal(t, "unknown", p.PaymentHistory)

	// FAIR 80 + young file 25
	assert.Equal(t, 105, p.ImprovementPotential)

	assert.False(t, p.Eligibility.Eligible)
	assert.Equal(t, []string{IssueSSNRequired, IssueDOBRequired}, p.Eligibility.Issues)
}

func TestAnalyze_FullRecord(t *testing.T) {
	client := model.RawClient{
		FirstName:          "Dana",
		CreditScore:        702,
		NegativeItems:      3,
		HardInquiries:      2,
		OldestAccount:      civil.Date{Year: 2022, Month: 1, Day: 10},
		TotalBalance:       4000,
		TotalCreditLimit:   10000,
		AccountTypes:       []string{"credit card", "Auto Loan", "CREDIT_CARD"},
		HomePurchaseIntent: true,
		SSN:                "123-45-6789",
		DOB:                civil.Date{Year: 1990, Month: 5, Day: 1},
	}

	p := Analyze(client, asOf)

	assert.Equal(t, 702, p.CurrentScore)
	assert.Equal(t, model.ScoreGood, p.ScoreRange)
	assert.Equal(t, 3, p.NegativeItemCount)
	assert.Equal(t, 2, p.HardInquiryCount)
	assert.Equal(t, 4, p.CreditAgeYears)
	assert.InDelta(t, 40.0, p.UtilizationPercent, 1e-9)
	assert.Equal(t, []string{"CREDIT_CARD", "AUTO_LOAN"}, p.AccountTypes)
	assert.Equal(t, []model.Goal{model.GoalMortgage}, p.Goals)

	// GOOD 50 + util>30 20 + age<5 15
	assert.Equal(t, 85, p.ImprovementPotential)
	assert.True(t, p.Eligibility.Eligible)
	assert.Empty(t, p.Eligibility.Issues)
}

func TestRangeFor(t *testing.T) {
	tests := []struct {
		score int
		want  model.ScoreRange
	}{
		{300, model.ScorePoor},
		{579, model.ScorePoor},
		{580, model.ScoreFair},
		{669, model.ScoreFair},
		{670, model.ScoreGood},
		{739, model.ScoreGood},
		{740, model.ScoreExcellent},
		{850, model.ScoreExcellent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RangeFor(tt.score), "score %d", tt.score)
	}
}

func TestAnalyze_ScoreIsClamped(t *testing.T) {
	assert.Equal(t, MaxScore, Analyze(model.RawClient{CreditScore: 900}, asOf).CurrentScore)
	assert.Equal(t, MinScore, Analyze(model.RawClient{CreditScore: 120}, asOf).CurrentScore)
}

func TestAnalyze_UtilizationNeedsBothTotals(t *testing.T) {
	assert.Equal(t, 0.0, Analyze(model.RawClient{TotalBalance: 500}, asOf).UtilizationPercent)
	assert.Equal(t, 0.0, Analyze(model.RawClient{TotalCreditLimit: 500}, asOf).UtilizationPercent)
}

func TestImprovementPotential_Capped(t *testing.T) {
	p := model.ClientCreditProfile{
		ScoreRange:         model.ScorePoor,
		UtilizationPercent: 80,
		CreditAgeYears:     0,
	}
	// 100 + 30 + 25 = 155 -> 150
	assert.Equal(t, MaxImprovementPotential, ImprovementPotential(p))

	p = model.ClientCreditProfile{ScoreRange: model.ScoreExcellent, UtilizationPercent: 10, CreditAgeYears: 20}
	assert.Equal(t, 30, ImprovementPotential(p))
}

func TestAnalyze_Eligibility(t *testing.T) {
	base := model.RawClient{SSN: "123-45-6789", DOB: civil.Date{Year: 1980, Month: 1, Day: 1}}

	tests := []struct {
		name       string
		bankrupt   bool
		date       civil.Date
		wantIssues []string
	}{
		{"no bankruptcy", false, civil.Date{}, []string{}},
		{"recent bankruptcy", true, civil.Date{Year: 2025, Month: 6, Day: 1}, []string{IssueRecentBankruptcy}},
		{"old bankruptcy", true, civil.Date{Year: 2020, Month: 6, Day: 1}, []string{}},
		{"exactly two years", true, civil.Date{Year: 2024, Month: 10, Day: 16}, []string{}},
		{"flag without date", true, civil.Date{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			c.Bankruptcy = tt.bankrupt
			c.BankruptcyDate = tt.date

			e := Analyze(c, asOf).Eligibility
			require.NotNil(t, e.Issues)
			assert.Equal(t, tt.wantIssues, e.Issues)
			assert.Equal(t, len(tt.wantIssues) == 0, e.Eligible)
		})
	}
}

func TestAnalyze_ReportsEveryFailingCheck(t *testing.T) {
	c := model.RawClient{Bankruptcy: true, BankruptcyDate: civil.Date{Year: 2026, Month: 1, Day: 1}}
	e := Analyze(c, asOf).Eligibility

	assert.False(t, e.Eligible)
	assert.Equal(t, []string{IssueSSNRequired, IssueDOBRequired, IssueRecentBankruptcy}, e.Issues)
}
