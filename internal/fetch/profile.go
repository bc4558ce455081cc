package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/otel"
)

// ProfileClient reads raw client records from the bureau-partner profile service.
type ProfileClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// NewProfileClient creates a client for the bureau-partner profile service.
func NewProfileClient(baseURL, apiKey string) *ProfileClient {
	return &ProfileClient{
		baseURL:    baseURL,
		httpClient: StandardClient(newRetryClient()),
		apiKey:     apiKey,
	}
}

// Fetch retrieves the raw credit record of one client.
func (c *ProfileClient) Fetch(ctx context.Context, clientID string) (model.RawClient, error) {
	ctx, span := otel.Tracer().Start(ctx, "fetch.Profile")
	defer span.End()

	endpoint := fmt.Sprintf("%s/v1/clients/%s/credit", c.baseURL, url.PathEscape(clientID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.RawClient{}, fmt.Errorf("error creating request: %w", err)
	}
	authorize(req, c.apiKey)

	logrus.WithField("client", clientID).Debug("Fetching client profile")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.RawClient{}, fmt.Errorf("error fetching profile: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.RawClient{}, fmt.Errorf("%s: %w", clientID, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("profile service error: status %d, body: %s", resp.StatusCode, string(body))
		span.SetStatus(codes.Error, err.Error())
		return model.RawClient{}, err
	}

	var response struct {
		Data *model.RawClient `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		otel.RecordError(ctx, err)
		return model.RawClient{}, fmt.Errorf("error decoding profile: %w", err)
	}
	if response.Data == nil {
		return model.RawClient{}, fmt.Errorf("%s: %w", clientID, ErrNoData)
	}

	raw := *response.Data
	if raw.ID == "" {
		raw.ID = clientID
	}
	return raw, nil
}
