package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/tradeline-engine/internal/aggregate"
	"github.com/yourorg/tradeline-engine/internal/bundle"
	"github.com/yourorg/tradeline-engine/internal/export"
	"github.com/yourorg/tradeline-engine/internal/fetch"
	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/security"
	"github.com/yourorg/tradeline-engine/internal/validation"
)

var (
	errNoInventory     = errors.New("no inventory available")
	errNoProfileSource = errors.New("no profile service configured")
	errNoClient        = errors.New("request needs a client_id, client or profile")
)

type analyzeRequest struct {
	ClientID string           `json:"client_id,omitempty"`
	Client   *model.RawClient `json:"client,omitempty"`
}

type matchRequest struct {
	ClientID string                     `json:"client_id,omitempty"`
	Client   *model.RawClient           `json:"client,omitempty"`
	Profile  *model.ClientCreditProfile `json:"profile,omitempty"`
	Budget   *float64                   `json:"budget,omitempty"`

	// Inventory overrides the vendor catalogs for this request
	Inventory []model.Tradeline `json:"inventory,omitempty"`
}

type matchResponse struct {
	RequestID      string                    `json:"request_id"`
	AsOf           civil.Date                `json:"as_of"`
	Budget         float64                   `json:"budget"`
	Profile        model.ClientCreditProfile `json:"profile"`
	StaleInventory bool                      `json:"stale_inventory,omitempty"`
	Result         model.MatchResult         `json:"result"`
}

type pricingRequest struct {
	Tradelines []model.Tradeline `json:"tradelines,omitempty"`
}

type linePrice struct {
	ID           string             `json:"id"`
	CreditorName string             `json:"creditor_name,omitempty"`
	ListPrice    float64            `json:"list_price"`
	Tiers        model.PricingTiers `json:"tiers"`
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	lastGood, at := s.breaker.LastGood()

	status := map[string]any{
		"status":          "operational",
		"uptime":          time.Since(startTime).String(),
		"version":         version,
		"as_of":           s.engine.Today(),
		"circuit_state":   s.breaker.GetState(),
		"inventory":       aggregate.Inventory(lastGood),
		"profile_service": s.profiles != nil,
		"export":          s.exporter.Status(),
		"configuration": map[string]any{
			"bundle_timeout":        s.engine.Options().BundleTimeout.String(),
			"bundle_workers":        s.engine.Options().BundleWorkers,
			"max_bundle_candidates": s.engine.Options().MaxBundleCandidates,
			"default_budget":        s.config.DefaultBudget,
		},
	}
	if !at.IsZero() {
		status["inventory_as_of"] = at.UTC().Format(time.RFC3339)
	}
	if s.signer != nil {
		status["signer"] = s.signer.Address()
	}

	writeJSON(w, http.StatusOK, status)
}

// handleCircuit allows viewing and controlling the inventory guard
func (s *Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{}

	// Allow reset operation via POST
	if r.Method == http.MethodPost {
		if r.URL.Query().Get("action") != "reset" {
			s.errorResponse(w, r, http.StatusBadRequest, "unsupported action")
			return
		}
		s.breaker.Reset()
		response["message"] = "Circuit breaker reset"
	}

	state := s.breaker.GetState()
	s.metrics.setCircuit(state)
	response["state"] = state
	if reason := s.breaker.Reason(); reason != "" {
		response["reason"] = reason
	}

	if lastGood, at := s.breaker.LastGood(); lastGood != nil {
		response["last_good_count"] = len(lastGood)
		response["last_good_timestamp"] = at.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := s.resolveClient(r.Context(), req.ClientID, req.Client)
	if err != nil {
		s.clientError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Analyze(raw))
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var profile model.ClientCreditProfile
	if req.Profile != nil {
		profile = *req.Profile
	} else {
		raw, err := s.resolveClient(r.Context(), req.ClientID, req.Client)
		if err != nil {
			s.clientError(w, r, err)
			return
		}
		profile = s.engine.Analyze(raw)
	}

	budget := s.config.DefaultBudget
	if req.Budget != nil {
		budget = *req.Budget
	}

	inventory, stale := req.Inventory, false
	if inventory == nil {
		var err error
		inventory, stale, err = s.loadInventory(r.Context())
		if err != nil {
			s.errorResponse(w, r, http.StatusServiceUnavailable, err.Error())
			return
		}
	}

	result, err := s.engine.FindMatches(r.Context(), profile, inventory, budget)
	switch {
	case errors.Is(err, bundle.ErrInvalidBudget):
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.errorResponse(w, r, http.StatusInternalServerError, fmt.Sprintf("match failed: %v", err))
		return
	}

	requestID := getRequestID(r.Context())
	response := matchResponse{
		RequestID:      requestID,
		AsOf:           s.engine.Today(),
		Budget:         budget,
		Profile:        profile,
		StaleInventory: stale,
		Result:         result,
	}

	event := export.NewEvent(requestID, req.ClientID, budget, result, time.Now())

	if s.signer == nil {
		s.exporter.Add(event)
		writeJSON(w, http.StatusOK, response)
		return
	}

	envelope, err := s.signer.Sign(response)
	if err != nil {
		s.errorResponse(w, r, http.StatusInternalServerError, fmt.Sprintf("signing failed: %v", err))
		return
	}
	event.QuoteID = envelope.QuoteID
	s.exporter.Add(event)
	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	lines := req.Tradelines
	if len(lines) == 0 {
		var err error
		lines, _, err = s.loadInventory(r.Context())
		if err != nil {
			s.errorResponse(w, r, http.StatusServiceUnavailable, err.Error())
			return
		}
	}

	prices := make([]linePrice, 0, len(lines))
	for _, tl := range lines {
		prices = append(prices, linePrice{
			ID:           tl.ID,
			CreditorName: tl.CreditorName,
			ListPrice:    tl.Price,
			Tiers:        s.engine.Tiers(tl),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"as_of":  s.engine.Today(),
		"prices": prices,
	})
}

func (s *Server) handleVerifyQuote(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		s.errorResponse(w, r, http.StatusServiceUnavailable, "quote signing disabled")
		return
	}

	var envelope security.Envelope
	if err := decodeJSON(w, r, &envelope); err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.signer.Verify(envelope); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":    false,
			"quote_id": envelope.QuoteID,
			"error":    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    true,
		"quote_id": envelope.QuoteID,
	})
}

// handleCatalog lists the inventory narrowed by query filters.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	filter, err := catalogFilter(r)
	if err != nil {
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	inventory, stale, err := s.loadInventory(r.Context())
	if err != nil {
		s.errorResponse(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}

	matches := validation.FilterCatalog(inventory, filter, s.engine.Today())
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(matches),
		"stale": stale,
		"data":  matches,
	})
}

func catalogFilter(r *http.Request) (validation.CatalogFilter, error) {
	f := validation.CatalogFilter{Search: r.URL.Query().Get("search")}

	var err error
	if f.MinPrice, err = queryFloat(r, "min_price", 0); err != nil {
		return f, err
	}
	if f.MaxPrice, err = queryFloat(r, "max_price", 0); err != nil {
		return f, err
	}
	if f.MinLimit, err = queryFloat(r, "min_limit", 0); err != nil {
		return f, err
	}
	if f.MinAgeYears, err = queryInt(r, "min_age", 0); err != nil {
		return f, err
	}
	if f.MinBureaus, err = queryInt(r, "min_bureaus", 0); err != nil {
		return f, err
	}
	if f.FeaturedOnly, err = queryBool(r, "featured", false); err != nil {
		return f, err
	}
	return f, nil
}

// resolveClient prefers an inline record and falls back to the profile service.
func (s *Server) resolveClient(ctx context.Context, clientID string, inline *model.RawClient) (model.RawClient, error) {
	if inline != nil {
		return *inline, nil
	}
	if clientID == "" {
		return model.RawClient{}, errNoClient
	}
	if s.profiles == nil {
		return model.RawClient{}, errNoProfileSource
	}
	return s.profiles.Fetch(ctx, clientID)
}

func (s *Server) clientError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errNoClient):
		s.errorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, fetch.ErrNotFound):
		s.errorResponse(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, errNoProfileSource):
		s.errorResponse(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		s.errorResponse(w, r, http.StatusInternalServerError, fmt.Sprintf("profile lookup failed: %v", err))
	}
}

// loadInventory fetches the catalogs through the guard. When the fetch fails or the
// guard rejects the snapshot, the last good snapshot is served and stale is set.
func (s *Server) loadInventory(ctx context.Context) (inventory []model.Tradeline, stale bool, err error) {
	if s.inventory == nil {
		return nil, false, fmt.Errorf("%w: no catalog configured", errNoInventory)
	}

	inventory, err = s.inventory.Fetch(ctx)
	if err == nil {
		err = s.breaker.Check(inventory)
	} else {
		s.metrics.inventoryErrors.Inc()
	}
	s.metrics.setCircuit(s.breaker.GetState())

	if err != nil {
		lastGood, at := s.breaker.LastGood()
		if lastGood == nil {
			return nil, false, fmt.Errorf("%w: %v", errNoInventory, err)
		}
		logrus.WithFields(logrus.Fields{
			"error":    err,
			"listings": len(lastGood),
			"as_of":    at,
		}).Warn("Using last known good inventory")
		inventory, stale = lastGood, true
	}

	s.metrics.inventorySize.Set(float64(len(inventory)))
	return inventory, stale, nil
}
