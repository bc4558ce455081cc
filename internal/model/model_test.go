package model

import (
	"encoding/json"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWholeYears(t *testing.T) {
	asOf := civil.Date{Year: 2026, Month: 10, Day: 16}

	tests := []struct {
		name string
		from civil.Date
		want int
	}{
		{"exact anniversary", civil.Date{Year: 2016, Month: 10, Day: 16}, 10},
		{"day before anniversary", civil.Date{Year: 2016, Month: 10, Day: 17}, 9},
		{"earlier month", civil.Date{Year: 2020, Month: 1, Day: 31}, 6},
		{"same year", civil.Date{Year: 2026, Month: 1, Day: 1}, 0},
		{"future date", civil.Date{Year: 2027, Month: 1, Day: 1}, 0},
		{"unknown date", civil.Date{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WholeYears(tt.from, asOf))
		})
	}
}

func TestTradeline_UtilizationPercent(t *testing.T) {
	assert.InDelta(t, 5.0, Tradeline{CreditLimit: 20000, Balance: 1000}.UtilizationPercent(), 1e-9)
	assert.Equal(t, 100.0, Tradeline{CreditLimit: 0, Balance: 0}.UtilizationPercent())
}

func TestNormalizeAccountType(t *testing.T) {
	assert.Equal(t, "CREDIT_CARD", NormalizeAccountType(" Credit Card "))
	assert.Equal(t, "AUTO_LOAN", NormalizeAccountType("auto-loan"))

	p := ClientCreditProfile{AccountTypes: []string{"credit card"}}
	assert.True(t, p.HoldsAccountType("CREDIT_CARD"))
	assert.False(t, p.HoldsAccountType("INSTALLMENT"))
}

func TestTradeline_DecodeDateOnlyJSON(t *testing.T) {
	raw := `{"id":"tl001","creditor_name":"American Express","opened_date":"2011-03-04","credit_limit":25000,"balance":0,"payment_history":"perfect","type":"CREDIT_CARD","price":1200,"available":true}`

	var tl Tradeline
	require.NoError(t, json.Unmarshal([]byte(raw), &tl))
	assert.Equal(t, civil.Date{Year: 2011, Month: 3, Day: 4}, tl.OpenedDate)
	assert.Equal(t, PaymentPerfect, tl.PaymentHistory)
	assert.Equal(t, 15, tl.AgeYears(civil.Date{Year: 2026, Month: 10, Day: 16}))
}
