// Package fetch provides clients for the inventory catalogs and the client-profile service.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/tradeline-engine/internal/config"
	"github.com/yourorg/tradeline-engine/internal/model"
)

var (
	// ErrNoData is returned when a source answers with an empty payload.
	ErrNoData = errors.New("no data returned")

	// ErrNotFound is returned when the profile service does not know the client.
	ErrNotFound = errors.New("client not found")
)

// Client defines the interface that all inventory sources implement
type Client interface {
	// Fetch retrieves the current listings of one source
	Fetch(ctx context.Context) ([]model.Tradeline, error)
}

// NewCatalogClients builds one catalog client per configured vendor.
func NewCatalogClients(cfg config.Config) []*CatalogClient {
	clients := make([]*CatalogClient, 0, len(cfg.Catalogs))
	for _, src := range cfg.Catalogs {
		clients = append(clients, NewCatalogClient(src.Vendor, src.URL, getAPIKey(cfg, src.Vendor)))
	}
	return clients
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

// getAPIKey retrieves an API key for a specific source from configuration
func getAPIKey(cfg config.Config, source string) string {
	if k, ok := cfg.APIKeys[source]; ok {
		return k
	}
	return ""
}

func authorize(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	req.Header.Set("Accept", "application/json")
}
