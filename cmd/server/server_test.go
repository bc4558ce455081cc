package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tradeline-engine/internal/config"
	"github.com/yourorg/tradeline-engine/internal/engine"
	"github.com/yourorg/tradeline-engine/internal/fetch"
	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/security"
)

var today = civil.Date{Year: 2026, Month: 10, Day: 16}

func fixedClock() time.Time {
	return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
}

type stubInventory struct {
	mu       sync.Mutex
	listings []model.Tradeline
	err      error
}

func (s *stubInventory) Fetch(context.Context) ([]model.Tradeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings, s.err
}

func (s *stubInventory) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type stubProfiles map[string]model.RawClient

func (s stubProfiles) Fetch(_ context.Context, id string) (model.RawClient, error) {
	raw, ok := s[id]
	if !ok {
		return model.RawClient{}, fmt.Errorf("%s: %w", id, fetch.ErrNotFound)
	}
	return raw, nil
}

func youngHighUtilClient() model.RawClient {
	return model.RawClient{
		CreditScore:      580,
		NegativeItems:    8,
		OldestAccount:    civil.Date{Year: 2025, Month: 10, Day: 16},
		TotalBalance:     6000,
		TotalCreditLimit: 10000,
	}
}

func agedLine(id string, price float64) model.Tradeline {
	return model.Tradeline{
		ID:             id,
		CreditorName:   "Chase Sapphire",
		OpenedDate:     civil.Date{Year: 2014, Month: 10, Day: 16},
		CreditLimit:    20000,
		Balance:        1000,
		PaymentHistory: model.PaymentPerfect,
		Type:           "CREDIT_CARD",
		Price:          price,
		Available:      true,
		Featured:       id == "tl-1",
	}
}

func testConfig() config.Config {
	return config.Config{Port: "0", DefaultBudget: 1000, RequestTimeout: 5 * time.Second}
}

func newTestServer(t *testing.T, cfg config.Config, deps Deps) *Server {
	t.Helper()
	if deps.Options.MaxSingles == 0 {
		deps.Options = engine.DefaultOptions()
	}
	deps.Clock = fixedClock
	return NewServer(cfg, deps)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	switch b := body.(type) {
	case nil:
	case string:
		payload = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		payload = string(raw)
	}

	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})
	rec := do(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"OK"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{
		Profiles: stubProfiles{"c-42": youngHighUtilClient()},
	})

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"inline client", analyzeRequest{Client: ptr(youngHighUtilClient())}, http.StatusOK},
		{"client from profile service", analyzeRequest{ClientID: "c-42"}, http.StatusOK},
		{"unknown client", analyzeRequest{ClientID: "nobody"}, http.StatusNotFound},
		{"no client", `{}`, http.StatusBadRequest},
		{"malformed body", `{"client":`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/profiles/analyze", tc.body)
			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())

			if tc.wantCode != http.StatusOK {
				var body errorBody
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "error", body.Status)
				assert.Equal(t, tc.wantCode, body.StatusCode)
				assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)
				return
			}

			var p model.ClientCreditProfile
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, model.ScoreFair, p.ScoreRange)
			assert.Equal(t, 1, p.CreditAgeYears)
			assert.InDelta(t, 60.0, p.UtilizationPercent, 1e-9)
		})
	}
}

func TestAnalyze_NoProfileService(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})
	rec := do(t, s, http.MethodPost, "/v1/profiles/analyze", analyzeRequest{ClientID: "c-42"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMatches_InlineInventory(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	rec := do(t, s, http.MethodPost, "/v1/matches", matchRequest{
		Client:    ptr(youngHighUtilClient()),
		Inventory: []model.Tradeline{agedLine("tl-1", 400), agedLine("free", 0)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp matchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, today, resp.AsOf)
	assert.Equal(t, 1000.0, resp.Budget)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)
	assert.False(t, resp.StaleInventory)

	require.Len(t, resp.Result.SingleRecommendations, 1)
	rec0 := resp.Result.SingleRecommendations[0]
	assert.Equal(t, "tl-1", rec0.Tradeline.ID)
	assert.Equal(t, 95, rec0.MatchScore)
	assert.Equal(t, 680, rec0.ExpectedImpact.ExpectedNewScore)
	assert.Equal(t, 1, resp.Result.Summary.TotalOptions)
	assert.NotNil(t, resp.Result.Bundles)
}

func TestMatches_EmptyInventory(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	rec := do(t, s, http.MethodPost, "/v1/matches", `{"client":{"credit_score":700},"inventory":[]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"single_recommendations":[]`)
	assert.Contains(t, rec.Body.String(), `"bundles":[]`)
	assert.Contains(t, rec.Body.String(), `"price_range":{}`)
}

func TestMatches_Errors(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	rec := do(t, s, http.MethodPost, "/v1/matches", matchRequest{
		Client:    ptr(youngHighUtilClient()),
		Budget:    ptr(-10.0),
		Inventory: []model.Tradeline{agedLine("tl-1", 400)},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/matches", matchRequest{Client: ptr(youngHighUtilClient())})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no catalog configured")

	rec = do(t, s, http.MethodPost, "/v1/matches", `[1,2`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatches_ServesLastGoodInventory(t *testing.T) {
	inv := &stubInventory{listings: []model.Tradeline{agedLine("tl-1", 400), agedLine("tl-2", 500)}}
	s := newTestServer(t, testConfig(), Deps{Inventory: inv})

	req := matchRequest{Client: ptr(youngHighUtilClient())}

	rec := do(t, s, http.MethodPost, "/v1/matches", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	inv.fail(errors.New("vendor down"))

	rec = do(t, s, http.MethodPost, "/v1/matches", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp matchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.StaleInventory)
	assert.Len(t, resp.Result.SingleRecommendations, 2)
	require.Len(t, resp.Result.Bundles, 1)
	assert.Equal(t, 900.0, resp.Result.Bundles[0].TotalPrice)
}

func TestMatches_NoGoodInventory(t *testing.T) {
	inv := &stubInventory{err: errors.New("vendor down")}
	s := newTestServer(t, testConfig(), Deps{Inventory: inv})

	rec := do(t, s, http.MethodPost, "/v1/matches", matchRequest{Client: ptr(youngHighUtilClient())})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMatches_SignedQuote(t *testing.T) {
	signer, err := security.NewSigner("", time.Hour)
	require.NoError(t, err)
	s := newTestServer(t, testConfig(), Deps{Signer: signer})

	rec := do(t, s, http.MethodPost, "/v1/matches", matchRequest{
		Client:    ptr(youngHighUtilClient()),
		Inventory: []model.Tradeline{agedLine("tl-1", 400)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope security.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.QuoteID)
	assert.Equal(t, signer.Address(), envelope.Signature.Signer)

	var resp matchResponse
	require.NoError(t, json.Unmarshal(envelope.Payload, &resp))
	assert.Len(t, resp.Result.SingleRecommendations, 1)

	rec = do(t, s, http.MethodPost, "/v1/quotes/verify", rec.Body.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	envelope.Payload = []byte(`{"tampered":true}`)
	rec = do(t, s, http.MethodPost, "/v1/quotes/verify", envelope)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)
}

func TestVerifyQuote_SigningDisabled(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})
	rec := do(t, s, http.MethodPost, "/v1/quotes/verify", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPricing(t *testing.T) {
	s := newTestServer(t, testConfig(), Deps{})

	rec := do(t, s, http.MethodPost, "/v1/pricing", pricingRequest{Tradelines: []model.Tradeline{agedLine("tl-1", 400)}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Prices []linePrice `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Prices, 1)

	tiers := resp.Prices[0].Tiers
	assert.Equal(t, tiers.Standard, tiers.Recommended)
	assert.Zero(t, int(tiers.Recommended)%25)
	assert.Greater(t, tiers.Premium, tiers.Standard)
	assert.Less(t, tiers.Bulk, tiers.Standard)
}

func TestCatalog(t *testing.T) {
	cheap := agedLine("tl-2", 150)
	cheap.CreditorName = "Discover It"
	inv := &stubInventory{listings: []model.Tradeline{agedLine("tl-1", 400), cheap}}
	s := newTestServer(t, testConfig(), Deps{Inventory: inv})

	rec := do(t, s, http.MethodGet, "/v1/tradelines?search=chase", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), `"tl-1"`)

	rec = do(t, s, http.MethodGet, "/v1/tradelines?max_price=200", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tl-2"`)
	assert.NotContains(t, rec.Body.String(), `"tl-1"`)

	rec = do(t, s, http.MethodGet, "/v1/tradelines?min_price=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCircuit(t *testing.T) {
	inv := &stubInventory{}
	s := newTestServer(t, testConfig(), Deps{Inventory: inv})

	// an empty snapshot trips the guard
	rec := do(t, s, http.MethodGet, "/v1/tradelines", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, s, http.MethodGet, "/circuit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"open"`)
	assert.Contains(t, rec.Body.String(), "insufficient listings")

	rec = do(t, s, http.MethodPost, "/circuit?action=explode", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/circuit?action=reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"closed"`)
	assert.Contains(t, rec.Body.String(), "Circuit breaker reset")
}

func TestStatusAndMetrics(t *testing.T) {
	inv := &stubInventory{listings: []model.Tradeline{agedLine("tl-1", 400), agedLine("tl-2", 500)}}
	s := newTestServer(t, testConfig(), Deps{Inventory: inv})

	rec := do(t, s, http.MethodPost, "/v1/matches", matchRequest{Client: ptr(youngHighUtilClient())})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "operational", status["status"])
	assert.Equal(t, "2026-10-16", status["as_of"])
	assert.Equal(t, "closed", status["circuit_state"])
	inventory, ok := status["inventory"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2.0, inventory["total"])

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `tradeline_matches_total{status="ok"} 1`)
	assert.Contains(t, body, `tradeline_http_requests_total{code="200",route="/v1/matches"} 1`)
	assert.Contains(t, body, "tradeline_inventory_listings 2")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	s := newTestServer(t, cfg, Deps{})

	body := analyzeRequest{Client: ptr(youngHighUtilClient())}
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/v1/profiles/analyze", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodPost, "/v1/profiles/analyze", body).Code)

	// operational endpoints are not limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
}

func ptr[T any](v T) *T {
	return &v
}
