package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/custom-pricing/internal/pricing"
	"github.com/custom-pricing/internal/rulefile"
	"github.com/custom-pricing/internal/service"

	"github.com/spf13/cobra"
)

var errRulesRequired = errors.New("--rules is required")

// lintReport lint 输出
type lintReport struct {
	File     string                 `json:"file"`
	Rules    int                    `json:"rules"`
	Active   int                    `json:"active"`
	Overlaps []pricing.Overlap      `json:"overlaps"`
	Warnings []pricing.PriceWarning `json:"warnings"`
}

var lintCmd = &cobra.Command{
	Use:   "lint [rules.yaml]",
	Short: "Validate a rules file and report shadowed rules",
	Long: `Validates every rule, lists pairs where an earlier active rule may shadow a
later one, and, when --base-url is set, checks new_price rules against the
storefront's current prices.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cliConfig()
		if err != nil {
			return err
		}
		path := cfg.Pricing.RulesFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errRulesRequired
		}
		rules, err := rulefile.Load(path)
		if err != nil {
			return err
		}

		report := lintReport{File: path, Rules: len(rules), Overlaps: []pricing.Overlap{}, Warnings: []pricing.PriceWarning{}}
		active := make([]pricing.Rule, 0, len(rules))
		for _, rule := range rules {
			if rule.IsActive() {
				active = append(active, rule)
			}
		}
		report.Active = len(active)
		report.Overlaps = pricing.FindOverlaps(active)

		client := newStorefrontClient(cfg)
		if client.Enabled() {
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			checker := service.NewPriceWarningService(client, concurrency)
			for _, rule := range active {
				report.Warnings = append(report.Warnings, checker.Check(context.Background(), rule)...)
			}
		}

		strict, _ := cmd.Flags().GetBool("strict")
		if err := printJSON(cmd, report); err != nil {
			return err
		}
		if strict && (len(report.Overlaps) > 0 || len(report.Warnings) > 0) {
			return fmt.Errorf("lint found %d overlaps and %d warnings", len(report.Overlaps), len(report.Warnings))
		}
		return nil
	},
}

func init() {
	lintCmd.Flags().Bool("strict", false, "exit non-zero when overlaps or warnings are found")
	lintCmd.Flags().Int("concurrency", 4, "concurrent product fetches for price warnings")
}
