package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skimplabs/skimp/pkg/skimp"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache, selector, and budget state",
	Long: `Show how much the local stores are saving.

Reports cache entries and hits, learned-selector domains and reuse
counts, the estimated money saved by not calling the LLM, and today's
spend against the daily budget.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Int("top", 5, "how many busiest domains to list")
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := buildStatsEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	st := engine.Stats()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "CACHE")
	fmt.Fprintf(w, "  entries:\t%d\n", st.Cache.TotalEntries)
	fmt.Fprintf(w, "  hits:\t%d\n", st.Cache.HitCount)
	fmt.Fprintf(w, "  est. saved:\t%.4f\n", st.Cache.TotalSaved)

	fmt.Fprintln(w, "SELECTORS")
	fmt.Fprintf(w, "  domains:\t%d\n", st.Selectors.TotalDomains)
	fmt.Fprintf(w, "  reuses:\t%d\n", st.Selectors.TotalUsage)
	fmt.Fprintf(w, "  est. saved:\t%.4f\n", st.Selectors.EstimatedSavings)

	fmt.Fprintln(w, "BUDGET")
	fmt.Fprintf(w, "  daily limit:\t%.2f\n", st.Budget.DailyLimit)
	fmt.Fprintf(w, "  spent today:\t%.4f (%d requests)\n", st.Budget.SpentToday, st.Budget.RequestsToday)
	fmt.Fprintf(w, "  remaining:\t%.4f\n", st.Budget.Remaining)
	fmt.Fprintf(w, "  lifetime:\t%.4f (%d requests)\n", st.Budget.TotalCost, st.Budget.TotalRequests)

	top, _ := cmd.Flags().GetInt("top")
	if domains := engine.TopDomains(top); len(domains) > 0 {
		fmt.Fprintln(w, "TOP DOMAINS")
		for _, d := range domains {
			fmt.Fprintf(w, "  %s:\t%d reuses\n", d.Domain, d.UsageCount)
		}
	}

	return w.Flush()
}

// buildStatsEngine creates an engine that never needs provider credentials:
// stats and maintenance only touch the local stores.
func buildStatsEngine() (*skimp.Engine, error) {
	opts := []skimp.Option{
		skimp.WithLLMProvider(nopProvider{}),
		skimp.WithFetcher(nopFetcher{}),
	}
	if dir := dataDirFromConfig(); dir != "" {
		opts = append(opts, skimp.WithDataDir(dir))
	}
	return skimp.New(opts...)
}
