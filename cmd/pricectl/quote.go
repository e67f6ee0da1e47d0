package main

import (
	"context"

	"github.com/custom-pricing/internal/service"

	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote the display price for one product context",
	Long: `Resolves the first matching rule for a product and shopper and prints the
computed price. Without --price the original price is fetched by --handle from
--base-url.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cliConfig()
		if err != nil {
			return err
		}
		if cfg.Pricing.RulesFile == "" {
			return errRulesRequired
		}

		flags := cmd.Flags()
		input := service.QuoteInput{}
		input.ProductID, _ = flags.GetString("product-id")
		input.VariantID, _ = flags.GetString("variant-id")
		input.Handle, _ = flags.GetString("handle")
		input.Tags, _ = flags.GetStringSlice("tags")
		input.Collections, _ = flags.GetStringSlice("collections")
		input.CustomerID, _ = flags.GetString("customer-id")
		input.CustomerTags, _ = flags.GetStringSlice("customer-tags")
		input.Quantity, _ = flags.GetInt("quantity")
		input.MoneyFormat, _ = flags.GetString("money-format")
		if flags.Changed("price") {
			price, _ := flags.GetFloat64("price")
			input.Price = &price
		}
		if flags.Changed("compare-at") {
			compareAt, _ := flags.GetFloat64("compare-at")
			input.CompareAtPrice = &compareAt
		}

		result, err := newStorefrontService(cfg).Quote(context.Background(), input)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

func init() {
	quoteCmd.Flags().String("product-id", "", "product id (numeric or gid://shopify/Product/..)")
	quoteCmd.Flags().String("variant-id", "", "variant id")
	quoteCmd.Flags().String("handle", "", "product handle, used to fetch product JSON")
	quoteCmd.Flags().StringSlice("tags", nil, "product tags")
	quoteCmd.Flags().StringSlice("collections", nil, "collection ids")
	quoteCmd.Flags().String("customer-id", "", "logged-in customer id")
	quoteCmd.Flags().StringSlice("customer-tags", nil, "customer tags")
	quoteCmd.Flags().Float64("price", 0, "original price in major units")
	quoteCmd.Flags().Float64("compare-at", 0, "compare-at price in major units")
	quoteCmd.Flags().Int("quantity", 1, "line quantity")
}
