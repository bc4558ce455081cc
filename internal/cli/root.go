// Package cli implements inventoryctl, the offline tooling for vendor inventory files:
// repricing listings and running matches without the server.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourorg/tradeline-engine/internal/config"
	"github.com/yourorg/tradeline-engine/internal/model"
)

// NewRootCmd builds the inventoryctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "inventoryctl",
		Short: "Price and match tradeline inventory files",
		Long: `inventoryctl works on inventory exports (a JSON array of tradelines, or the
{"data": [...]} catalog payload). It prices listings with the market tables and runs
client matches offline, against a fixed date when --as-of is given.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	root.PersistentFlags().String("market", "", "Path to a market JSON with scoring and pricing tables")
	root.PersistentFlags().String("as-of", "", "Evaluate as of this date (YYYY-MM-DD); defaults to today")
	root.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	root.AddCommand(newPriceCmd(), newTiersCmd(), newMatchCmd())
	return root
}

// Execute runs inventoryctl with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// settings are the persistent flags resolved for one run.
type settings struct {
	market *config.Market
	asOf   civil.Date
}

func loadSettings(cmd *cobra.Command) (settings, error) {
	path, _ := cmd.Flags().GetString("market")
	market, err := config.LoadMarket(path)
	if err != nil {
		return settings{}, err
	}

	asOf := civil.DateOf(timeNow())
	if raw, _ := cmd.Flags().GetString("as-of"); raw != "" {
		asOf, err = civil.ParseDate(raw)
		if err != nil {
			return settings{}, fmt.Errorf("invalid --as-of: %w", err)
		}
	}
	return settings{market: market, asOf: asOf}, nil
}

// readInventory accepts a bare array or a catalog payload.
func readInventory(path string) ([]model.Tradeline, error) {
	if path == "" {
		return nil, fmt.Errorf("inventory file required: -f <file>")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read inventory: %w", err)
	}

	var lines []model.Tradeline
	if err := json.Unmarshal(raw, &lines); err == nil {
		return lines, nil
	}

	var payload struct {
		Data []model.Tradeline `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("cannot parse inventory %s: %w", path, err)
	}
	return payload.Data, nil
}

func readClient(path string) (model.RawClient, error) {
	var client model.RawClient
	if path == "" {
		return client, fmt.Errorf("client file required: --client <file>")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return client, fmt.Errorf("cannot read client: %w", err)
	}
	if err := json.Unmarshal(raw, &client); err != nil {
		return client, fmt.Errorf("cannot parse client %s: %w", path, err)
	}
	return client, nil
}
