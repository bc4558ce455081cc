package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tradeline-engine/internal/model"
)

const inventoryJSON = `[
	{"id":"tl-1","creditor_name":"Chase Sapphire","opened_date":"2014-10-16","credit_limit":20000,"balance":1000,"payment_history":"perfect","type":"CREDIT_CARD","price":400,"available":true},
	{"id":"tl-2","creditor_name":"Amex Gold","opened_date":"2015-10-16","credit_limit":18000,"balance":900,"payment_history":"perfect","type":"CREDIT_CARD","price":500,"available":true}
]`

const clientJSON = `{"credit_score":580,"negative_items":8,"oldest_account":"2025-10-16","total_balance":6000,"total_credit_limit":10000}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPriceCommand(t *testing.T) {
	inv := writeFile(t, "inventory.json", inventoryJSON)

	out, err := run(t, "price", "-f", inv, "--as-of", "2026-10-16")
	require.NoError(t, err)

	assert.Contains(t, out, "RECOMMENDED")
	assert.Contains(t, out, "Chase Sapphire")
	assert.Contains(t, out, "1000.00")
	assert.Contains(t, out, "+600.00")
}

func TestTiersCommand_CatalogPayload(t *testing.T) {
	inv := writeFile(t, "catalog.json", `{"data":`+inventoryJSON+`}`)

	out, err := run(t, "tiers", "-f", inv, "--as-of", "2026-10-16")
	require.NoError(t, err)
	assert.Contains(t, out, "EXPEDITED")
	assert.Regexp(t, `tl-1\s+1000\.00\s+1300\.00\s+850\.00\s+1500\.00`, out)
}

func TestMatchCommand(t *testing.T) {
	inv := writeFile(t, "inventory.json", inventoryJSON)
	client := writeFile(t, "client.json", clientJSON)

	out, err := run(t, "match", "--client", client, "-f", inv, "--budget", "1000", "--as-of", "2026-10-16")
	require.NoError(t, err)

	var got struct {
		AsOf    string                    `json:"as_of"`
		Profile model.ClientCreditProfile `json:"profile"`
		Result  model.MatchResult         `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.Equal(t, "2026-10-16", got.AsOf)
	assert.Equal(t, model.ScoreFair, got.Profile.ScoreRange)
	require.Len(t, got.Result.SingleRecommendations, 2)
	assert.Equal(t, "tl-1", got.Result.SingleRecommendations[0].Tradeline.ID)
	assert.Equal(t, 95, got.Result.SingleRecommendations[0].MatchScore)
	require.Len(t, got.Result.Bundles, 1)
	assert.Equal(t, 900.0, got.Result.Bundles[0].TotalPrice)
}

func TestMatchCommand_DefaultsToToday(t *testing.T) {
	timeNow = func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) }
	defer func() { timeNow = time.Now }()

	inv := writeFile(t, "inventory.json", inventoryJSON)
	client := writeFile(t, "client.json", clientJSON)

	out, err := run(t, "match", "--client", client, "-f", inv)
	require.NoError(t, err)
	assert.Contains(t, out, `"as_of": "2026-10-16"`)
}

func TestCommandErrors(t *testing.T) {
	inv := writeFile(t, "inventory.json", inventoryJSON)
	client := writeFile(t, "client.json", clientJSON)
	broken := writeFile(t, "broken.json", `{"data":`)

	tests := []struct {
		name string
		args []string
	}{
		{"missing inventory flag", []string{"price"}},
		{"missing inventory file", []string{"tiers", "-f", filepath.Join(t.TempDir(), "nope.json")}},
		{"unparsable inventory", []string{"price", "-f", broken}},
		{"bad as-of", []string{"price", "-f", inv, "--as-of", "16/10/2026"}},
		{"missing client", []string{"match", "-f", inv}},
		{"negative budget", []string{"match", "-f", inv, "--client", client, "--budget", "-5"}},
		{"bad market file", []string{"price", "-f", inv, "--market", broken}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			assert.Error(t, err)
		})
	}
}
