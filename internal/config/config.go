// Package config provides configuration loading and management for the application.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CatalogSource is one vendor inventory endpoint.
type CatalogSource struct {
	Vendor string
	URL    string
}

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	LogLevel  string
	LogFormat string

	// Inventory vendors and the bureau-partner profile service
	Catalogs   []CatalogSource
	ProfileURL string

	// API keys by vendor name ("profile" for the profile service)
	APIKeys map[string]string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Path to the market JSON with scoring and pricing tables
	MarketConfig string

	RequestTimeout      time.Duration
	BundleTimeout       time.Duration
	BundleWorkers       int
	MaxBundleCandidates int
	DefaultBudget       float64

	// Empty RedisAddr keeps the catalog cache in memory
	RedisAddr string
	CacheTTL  time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	WebhookURL      string
	WebhookAPIKey   string
	ExportBatchSize int
	ExportInterval  time.Duration

	// Hex secp256k1 key; empty generates one per process
	SigningEnabled bool
	SigningKey     string
	QuoteValidity  time.Duration

	// Inventory guard thresholds
	BreakerMinItems      int
	BreakerMaxPrice      float64
	BreakerMaxSizeChange float64
	BreakerMaxDispersion float64
	BreakerResetDelay    time.Duration
}

// Load creates a new Config from environment variables
func Load() Config {
	apiKeys := map[string]string{}
	if raw := os.Getenv("API_KEYS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &apiKeys); err != nil {
			logrus.Warnf("Ignoring malformed API_KEYS: %v", err)
		}
	}

	return Config{
		Port:                 GetEnvOrDefault("PORT", "8080"),
		LogLevel:             strings.ToLower(GetEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(GetEnvOrDefault("LOG_FORMAT", "text")),
		Catalogs:             ParseCatalogURLs(os.Getenv("CATALOG_URLS")),
		ProfileURL:           GetEnvOrDefault("PROFILE_URL", ""),
		APIKeys:              apiKeys,
		OtelEndpoint:         GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MarketConfig:         GetEnvOrDefault("MARKET_CONFIG", ""),
		RequestTimeout:       GetEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		BundleTimeout:        GetEnvAsDuration("BUNDLE_TIMEOUT", 2*time.Second),
		BundleWorkers:        GetEnvAsInt("BUNDLE_WORKERS", 4),
		MaxBundleCandidates:  GetEnvAsInt("MAX_BUNDLE_CANDIDATES", 150),
		DefaultBudget:        GetEnvAsFloat("DEFAULT_BUDGET", 1000),
		RedisAddr:            GetEnvOrDefault("REDIS_ADDR", ""),
		CacheTTL:             GetEnvAsDuration("CACHE_TTL", 5*time.Minute),
		RateLimitRPS:         GetEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:       GetEnvAsInt("RATE_LIMIT_BURST", 20),
		WebhookURL:           GetEnvOrDefault("WEBHOOK_URL", ""),
		WebhookAPIKey:        GetEnvOrDefault("WEBHOOK_API_KEY", ""),
		ExportBatchSize:      GetEnvAsInt("EXPORT_BATCH_SIZE", 100),
		ExportInterval:       GetEnvAsDuration("EXPORT_INTERVAL", time.Minute),
		SigningEnabled:       GetEnvAsBool("SIGNING_ENABLED", false),
		SigningKey:           GetEnvOrDefault("SIGNING_KEY", ""),
		QuoteValidity:        GetEnvAsDuration("QUOTE_VALIDITY", 24*time.Hour),
		BreakerMinItems:      GetEnvAsInt("BREAKER_MIN_ITEMS", 1),
		BreakerMaxPrice:      GetEnvAsFloat("BREAKER_MAX_PRICE", 25000),
		BreakerMaxSizeChange: GetEnvAsFloat("BREAKER_MAX_SIZE_CHANGE", 0.8),
		BreakerMaxDispersion: GetEnvAsFloat("BREAKER_MAX_STDDEV_MULTIPLE", 0),
		BreakerResetDelay:    GetEnvAsDuration("BREAKER_RESET_DELAY", 5*time.Minute),
	}
}

// ParseCatalogURLs parses "vendor=url,vendor2=url2". An entry without a vendor name
// is named after its position.
func ParseCatalogURLs(raw string) []CatalogSource {
	var sources []CatalogSource
	for i, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		vendor, url, found := strings.Cut(entry, "=")
		if !found {
			vendor, url = "vendor"+strconv.Itoa(i+1), entry
		}
		sources = append(sources, CatalogSource{
			Vendor: strings.TrimSpace(vendor),
			URL:    strings.TrimSpace(url),
		})
	}
	return sources
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a bool with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
