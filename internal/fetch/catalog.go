package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/tradeline-engine/internal/model"
	"github.com/yourorg/tradeline-engine/internal/otel"
)

// CatalogClient reads the listings of one tradeline vendor.
type CatalogClient struct {
	vendor     string
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// NewCatalogClient creates a catalog client for the vendor at baseURL.
func NewCatalogClient(vendor, baseURL, apiKey string) *CatalogClient {
	return &CatalogClient{
		vendor:     vendor,
		baseURL:    baseURL,
		httpClient: StandardClient(newRetryClient()),
		apiKey:     apiKey,
	}
}

// Vendor returns the configured vendor name.
func (c *CatalogClient) Vendor() string {
	return c.vendor
}

// Fetch retrieves the vendor listings. Every returned tradeline carries the vendor name.
func (c *CatalogClient) Fetch(ctx context.Context) ([]model.Tradeline, error) {
	ctx, span := otel.Tracer().Start(ctx, "fetch.Catalog", trace.WithAttributes(attribute.String("vendor", c.vendor)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tradelines", nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	authorize(req, c.apiKey)

	logrus.Debugf("Fetching catalog from %s: %s", c.vendor, c.baseURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error fetching catalog from %s: %w", c.vendor, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("%s catalog error: status %d, body: %s", c.vendor, resp.StatusCode, string(body))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var response struct {
		Data []model.Tradeline `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		otel.RecordError(ctx, err)
		return nil, fmt.Errorf("error decoding %s catalog: %w", c.vendor, err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", c.vendor, ErrNoData)
	}

	for i := range response.Data {
		response.Data[i].Vendor = c.vendor
	}
	span.SetAttributes(attribute.Int("listings", len(response.Data)))
	return response.Data, nil
}
