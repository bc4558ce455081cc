package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/tradeline-engine/internal/bundle"
	"github.com/yourorg/tradeline-engine/internal/pricing"
	"github.com/yourorg/tradeline-engine/internal/scoring"
)

// Market holds the tunable tables of one market.
type Market struct {
	Scoring scoring.Tables `json:"scoring"`
	Pricing pricing.Table  `json:"pricing"`
	Bundle  bundle.Options `json:"bundle"`
}

// DefaultMarket returns the standard tables.
func DefaultMarket() *Market {
	return &Market{
		Scoring: scoring.DefaultTables(),
		Pricing: pricing.DefaultTable(),
		Bundle:  bundle.DefaultOptions(),
	}
}

// LoadMarket loads the market tables from a JSON file. Fields absent from the file keep
// their defaults; an empty path returns the defaults.
func LoadMarket(path string) (*Market, error) {
	market := DefaultMarket()
	if path == "" {
		return market, nil
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read market config: %w", err)
	}

	if err := json.Unmarshal(fileData, market); err != nil {
		return nil, fmt.Errorf("failed to parse market config: %w", err)
	}

	if err := market.Validate(); err != nil {
		return nil, fmt.Errorf("market config %s: %w", path, err)
	}

	logrus.Infof("Loaded market configuration from %s", path)
	return market, nil
}

// Validate checks every table.
func (m *Market) Validate() error {
	if err := m.Scoring.Validate(); err != nil {
		return err
	}
	if err := m.Pricing.Validate(); err != nil {
		return err
	}
	return m.Bundle.Validate()
}
