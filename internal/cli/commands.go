package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/tradeline-engine/internal/engine"
	"github.com/yourorg/tradeline-engine/internal/pricing"
	"github.com/yourorg/tradeline-engine/internal/profile"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// ─── price ──────────────────────────────────────────────────────────────────

func newPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Compare listing prices with the recommended price",
		RunE:  runPrice,
	}
	cmd.Flags().StringP("file", "f", "", "Inventory JSON file")
	return cmd
}

func runPrice(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	file, _ := cmd.Flags().GetString("file")
	lines, err := readInventory(file)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREDITOR\tAGE\tLIMIT\tLIST\tRECOMMENDED\tDELTA")
	for _, tl := range lines {
		rec := pricing.RecommendedPrice(tl, s.asOf, s.market.Pricing)
		fmt.Fprintf(w, "%s\t%s\t%d\t%.0f\t%.2f\t%.2f\t%+.2f\n",
			tl.ID, tl.Label(), tl.AgeYears(s.asOf), tl.CreditLimit, tl.Price, rec, rec-tl.Price)
	}
	return w.Flush()
}

// ─── tiers ──────────────────────────────────────────────────────────────────

func newTiersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Print the pricing tiers of every listing",
		RunE:  runTiers,
	}
	cmd.Flags().StringP("file", "f", "", "Inventory JSON file")
	return cmd
}

func runTiers(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	file, _ := cmd.Flags().GetString("file")
	lines, err := readInventory(file)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTANDARD\tPREMIUM\tBULK\tEXPEDITED")
	for _, tl := range lines {
		t := pricing.Tiers(tl, s.asOf, s.market.Pricing)
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\n", tl.ID, t.Standard, t.Premium, t.Bulk, t.Expedited)
	}
	return w.Flush()
}

// ─── match ──────────────────────────────────────────────────────────────────

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Rank an inventory file for one client",
		Long:  `Analyze the client record and print the ranked recommendations, bundles and summary as JSON.`,
		RunE:  runMatch,
	}
	cmd.Flags().StringP("file", "f", "", "Inventory JSON file")
	cmd.Flags().String("client", "", "Client record JSON file")
	cmd.Flags().Float64("budget", 1000, "Client budget")
	cmd.Flags().Int("max-candidates", 150, "Bundle search candidate cap (0 disables)")
	return cmd
}

func runMatch(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	file, _ := cmd.Flags().GetString("file")
	lines, err := readInventory(file)
	if err != nil {
		return err
	}
	clientFile, _ := cmd.Flags().GetString("client")
	client, err := readClient(clientFile)
	if err != nil {
		return err
	}
	budget, _ := cmd.Flags().GetFloat64("budget")
	maxCandidates, _ := cmd.Flags().GetInt("max-candidates")

	opts := engine.DefaultOptions()
	opts.Tables = s.market.Scoring
	opts.Pricing = s.market.Pricing
	opts.Bundle = s.market.Bundle
	opts.MaxBundleCandidates = maxCandidates

	p := profile.Analyze(client, s.asOf)
	result, err := engine.FindMatchesWithOptions(p, lines, budget, s.asOf, opts)
	if err != nil {
		return err
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")
	return out.Encode(map[string]any{
		"as_of":   s.asOf,
		"budget":  budget,
		"profile": p,
		"result":  result,
	})
}
