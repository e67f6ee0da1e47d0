package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custom-pricing/internal/service"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [page.html|-]",
	Short: "Apply pricing rules to a saved storefront page",
	Long: `Runs one full pass (product area, product cards, cart) over a saved page and
prints the rewritten HTML. Rules embedded in the page take priority over --rules.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		html, err := readInput(cmd, path)
		if err != nil {
			return err
		}
		cfg, err := cliConfig()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		url, _ := flags.GetString("url")
		customerID, _ := flags.GetString("customer-id")
		customerTags, _ := flags.GetStringSlice("customer-tags")
		cartCookie, _ := flags.GetString("cart-cookie")
		cartFile, _ := flags.GetString("cart")
		output, _ := flags.GetString("output")
		patchesOnly, _ := flags.GetBool("patches")

		input := service.RenderInput{
			HTML:         string(html),
			URL:          url,
			CustomerID:   customerID,
			CustomerTags: customerTags,
			CartCookie:   cartCookie,
		}
		if cartFile != "" {
			raw, err := os.ReadFile(cartFile)
			if err != nil {
				return fmt.Errorf("read cart json: %w", err)
			}
			input.CartJSON = raw
		}

		result, err := newStorefrontService(cfg).Render(context.Background(), input)
		if err != nil {
			return err
		}
		if patchesOnly {
			return printJSON(cmd, result)
		}
		if output != "" {
			return os.WriteFile(output, []byte(result.HTML), 0o644)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), result.HTML)
		return err
	},
}

func init() {
	renderCmd.Flags().String("url", "", "page URL (used for handle and page type detection)")
	renderCmd.Flags().String("customer-id", "", "logged-in customer id")
	renderCmd.Flags().StringSlice("customer-tags", nil, "customer tags")
	renderCmd.Flags().String("cart-cookie", "", "cart cookie forwarded to the storefront cart endpoint")
	renderCmd.Flags().String("cart", "", "cart JSON file used instead of fetching /cart.js")
	renderCmd.Flags().StringP("output", "o", "", "write rewritten HTML to file")
	renderCmd.Flags().Bool("patches", false, "print the render result (rule source and patches) as JSON")
}
