package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skimplabs/skimp/pkg/fetch"
	"github.com/skimplabs/skimp/pkg/llm"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached results and learned selectors",
	Long: `Clear the local stores.

By default both the result cache and the learned selectors are
emptied. Use --cache or --selectors to clear one, and --domain to
forget selectors for a single site.`,
	RunE: runClear,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired cache and selector entries",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(sweepCmd)

	clearCmd.Flags().Bool("cache", false, "clear only the result cache")
	clearCmd.Flags().Bool("selectors", false, "clear only learned selectors")
	clearCmd.Flags().String("domain", "", "forget selectors for this domain only")
}

func runClear(cmd *cobra.Command, args []string) error {
	engine, err := buildStatsEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	cacheOnly, _ := cmd.Flags().GetBool("cache")
	selectorsOnly, _ := cmd.Flags().GetBool("selectors")
	domain, _ := cmd.Flags().GetString("domain")

	if domain != "" {
		if err := engine.ClearSelectors(domain); err != nil {
			return err
		}
		logInfo("forgot selectors for %s", domain)
		return nil
	}

	both := cacheOnly == selectorsOnly
	if cacheOnly || both {
		if err := engine.ClearCache(); err != nil {
			return err
		}
		logInfo("cache cleared")
	}
	if selectorsOnly || both {
		if err := engine.ClearSelectors(""); err != nil {
			return err
		}
		logInfo("selectors cleared")
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	engine, err := buildStatsEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	cacheRemoved, selectorsRemoved := engine.Sweep()
	logInfo("swept %d expired cache entries, %d expired selector entries", cacheRemoved, selectorsRemoved)
	return nil
}

func dataDirFromConfig() string {
	return viper.GetString("data_dir")
}

// nopProvider satisfies the provider interface for commands that never call
// the LLM.
type nopProvider struct{}

func (nopProvider) Complete(context.Context, llm.Request) (*llm.Response, error) {
	return nil, fmt.Errorf("llm calls are not available in this command")
}
func (nopProvider) Name() string         { return "none" }
func (nopProvider) Model() string        { return "none" }
func (nopProvider) Pricing() llm.Pricing { return llm.Pricing{} }

// nopFetcher satisfies the fetcher interface for commands that never fetch.
type nopFetcher struct{}

func (nopFetcher) Fetch(context.Context, string, fetch.Options) (fetch.Page, error) {
	return fetch.Page{}, fmt.Errorf("fetching is not available in this command")
}
func (nopFetcher) Close() error { return nil }
func (nopFetcher) Type() string { return "none" }
