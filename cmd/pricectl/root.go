package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/custom-pricing/internal/config"
	"github.com/custom-pricing/internal/logger"
	"github.com/custom-pricing/internal/provider"
	"github.com/custom-pricing/internal/service"
	"github.com/custom-pricing/internal/storefront"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const logo = `
  _ __  _ __(_) ___ ___  ___| |_| |
 | '_ \| '__| |/ __/ _ \/ __| __| |
 | |_) | |  | | (_|  __/ (__| |_| |
 | .__/|_|  |_|\___\___|\___|\__|_|
 |_|
`

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pricectl",
	Short: "Offline tooling for storefront custom pricing rules.",
	Long: logo + `pricectl renders saved storefront pages, quotes prices and lints rule files
without running the API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.Init("debug", logger.Options{})
			return
		}
		logger.Quiet()
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (storefront and pricing sections are read)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stdout")
	rootCmd.PersistentFlags().String("rules", "", "rules file (YAML or JSON)")
	rootCmd.PersistentFlags().String("base-url", "", "storefront base URL used to fetch product and cart JSON")
	rootCmd.PersistentFlags().String("money-format", "", "money format, e.g. ${{amount}}")
	_ = viper.BindPFlag("pricing.rules_file", rootCmd.PersistentFlags().Lookup("rules"))
	_ = viper.BindPFlag("storefront.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("storefront.money_format", rootCmd.PersistentFlags().Lookup("money-format"))

	rootCmd.AddCommand(renderCmd, quoteCmd, lintCmd)
}

// initConfig 读取可选配置文件与 CP_ 前缀环境变量
func initConfig() {
	viper.SetEnvPrefix("CP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("storefront.timeout_ms", 5000)
	viper.SetDefault("storefront.retry_max", 1)
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "read config %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}

// cliConfig 组装 CLI 用到的配置：规则固定来自文件
func cliConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Pricing.RuleSource = "file"
	if len(cfg.Pricing.VariantRetryDelaysMS) == 0 {
		cfg.Pricing.VariantRetryDelaysMS = []int{0}
	}
	return cfg, nil
}

// newStorefrontService 规则文件为空时只使用页面内嵌规则
func newStorefrontService(cfg *config.Config) *service.StorefrontService {
	var rules *service.RuleSourceService
	if strings.TrimSpace(cfg.Pricing.RulesFile) != "" {
		rules = service.NewRuleSourceService(cfg.Pricing, nil)
	}
	return service.NewStorefrontService(cfg, rules, newStorefrontClient(cfg))
}

func newStorefrontClient(cfg *config.Config) *storefront.Client {
	if cfg.Storefront.TimeoutMS <= 0 {
		cfg.Storefront.TimeoutMS = int((5 * time.Second).Milliseconds())
	}
	return provider.NewStorefrontClient(cfg.Storefront)
}

// readInput 读取文件内容，"-" 表示标准输入
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
