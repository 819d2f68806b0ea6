// Package commands implements the CLI commands for skimp.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skimplabs/skimp/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "skimp",
	Short: "Cost-optimized structured data extraction from web pages",
	Long: `Skimp extracts structured data from web pages while minimizing paid
LLM calls. Each request walks a phased pipeline: cached results and
learned CSS selectors are tried first, simple regex patterns next, and
the LLM only when everything free has failed. LLM answers are cached
and their selectors remembered per domain, so repeat extractions on
the same site cost nothing.

Examples:
  # Extract fields from a page
  skimp extract -u "https://example.com/product/1" -q "name, price"

  # Same shop, different page: served by learned selectors, no LLM call
  skimp extract -u "https://example.com/product/2" -q "name, price"

  # Batch over several URLs
  skimp extract -q "title, author" \
      -u "https://blog.test/a" -u "https://blog.test/b"

  # Inspect spend and savings
  skimp stats`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.skimp.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress progress output")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for cache/selector/budget state (default $HOME/.skimp)")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".skimp")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SKIMP")
	viper.AutomaticEnv()

	// Also check the provider SDKs' conventional env vars.
	_ = viper.BindEnv("api_key", "SKIMP_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY")

	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
