package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skimplabs/skimp/internal/output"
	"github.com/skimplabs/skimp/pkg/fetch"
	"github.com/skimplabs/skimp/pkg/skimp"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract fields from one or more URLs",
	Long: `Extract the queried fields from web pages.

The query is a natural-language list of fields, e.g. "name, price" or
"all job titles and salaries". Results come from the cheapest source
able to answer: the cache, learned selectors, regex patterns, or the
LLM as a last resort.

Examples:
  # Single page
  skimp extract -u "https://shop.test/p/1" -q "name, price"

  # Paginated listing, stop when a page comes back empty
  skimp extract -u "https://shop.test/search" -q "all product names" \
      --page-param page --max-pages 10

  # Force a fresh LLM call
  skimp extract -u "https://shop.test/p/1" -q "name, price" --no-cache`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()

	flags.StringSliceP("url", "u", nil, "URL(s) to extract from (can be repeated)")
	flags.StringP("query", "q", "", "fields to extract, natural language (required)")

	flags.StringP("provider", "p", "", "LLM provider: anthropic, openai")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.StringP("api-key", "k", "", "API key (or use env var)")
	flags.Float64("daily-budget", -1, "daily LLM spend limit (0 denies all LLM calls)")

	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml")

	flags.String("fetch-mode", "auto", "fetch mode: auto, static, dynamic")
	flags.Duration("timeout", 30*time.Second, "request timeout per URL")
	flags.Bool("no-cache", false, "bypass the result cache for this run")
	flags.IntP("concurrency", "c", 3, "concurrent requests for multiple URLs")

	flags.String("page-param", "", "query parameter for pagination (e.g. page)")
	flags.String("page-format", "", "printf-style URL format for pagination (e.g. https://x.test/p/%d)")
	flags.Int("max-pages", 10, "max pages to walk when paginating")

	_ = viper.BindPFlag("provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("model", flags.Lookup("model"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("daily_budget", flags.Lookup("daily-budget"))
}

func runExtract(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	urls, _ := flags.GetStringSlice("url")
	query, _ := flags.GetString("query")
	if len(urls) == 0 || query == "" {
		return fmt.Errorf("at least one --url and a --query are required")
	}

	format, err := output.ParseFormat(mustString(flags.GetString("format")))
	if err != nil {
		return err
	}

	engine, err := buildEngine(cmd)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dest := os.Stdout
	if path := mustString(flags.GetString("output")); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		dest = f
	}
	writer, err := output.NewWriter(dest, format)
	if err != nil {
		return err
	}

	pageParam := mustString(flags.GetString("page-param"))
	pageFormat := mustString(flags.GetString("page-format"))

	switch {
	case pageParam != "" || pageFormat != "":
		if len(urls) != 1 {
			return fmt.Errorf("pagination takes exactly one base URL")
		}
		maxPages, _ := flags.GetInt("max-pages")
		results, err := engine.ExtractPaginated(ctx, urls[0], query, skimp.PaginateOptions{
			Param:      pageParam,
			PathFormat: pageFormat,
			MaxPages:   maxPages,
		})
		for _, r := range results {
			reportResult(r)
			if werr := writer.Write(r); werr != nil {
				return werr
			}
		}
		if err != nil {
			logError("pagination stopped early: %v", err)
		}

	case len(urls) == 1:
		result, err := engine.Extract(ctx, urls[0], query)
		if err != nil {
			return describeFailure(err)
		}
		reportResult(result)
		if err := writer.Write(result); err != nil {
			return err
		}

	default:
		concurrency, _ := flags.GetInt("concurrency")
		failed := 0
		for _, item := range engine.ExtractMany(ctx, urls, query, concurrency) {
			if item.Err != nil {
				failed++
				logError("%s: %v", item.URL, item.Err)
				continue
			}
			reportResult(item.Result)
			if err := writer.Write(item.Result); err != nil {
				return err
			}
		}
		if failed == len(urls) {
			return fmt.Errorf("all %d extractions failed", failed)
		}
	}

	return writer.Flush()
}

func buildEngine(cmd *cobra.Command) (*skimp.Engine, error) {
	flags := cmd.Flags()

	opts := []skimp.Option{
		skimp.WithFetchMode(fetch.Mode(mustString(flags.GetString("fetch-mode")))),
	}
	if timeout, _ := flags.GetDuration("timeout"); timeout > 0 {
		opts = append(opts, skimp.WithFetchTimeout(timeout))
	}
	if p := viper.GetString("provider"); p != "" {
		opts = append(opts, skimp.WithProvider(p))
	}
	if m := viper.GetString("model"); m != "" {
		opts = append(opts, skimp.WithModel(m))
	}
	if k := viper.GetString("api_key"); k != "" {
		opts = append(opts, skimp.WithAPIKey(k))
	}
	if b := viper.GetFloat64("daily_budget"); b >= 0 {
		opts = append(opts, skimp.WithDailyBudget(b))
	}
	if dir := viper.GetString("data_dir"); dir != "" {
		opts = append(opts, skimp.WithDataDir(dir))
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		opts = append(opts, skimp.WithCacheDisabled())
	}

	return skimp.New(opts...)
}

func reportResult(r *skimp.Result) {
	if r.Cost > 0 {
		logInfo("%s: source=%s cost=%.6f (%.2fs)", r.URL, r.Source, r.Cost, r.Duration.Seconds())
		return
	}
	logInfo("%s: source=%s free (%.2fs)", r.URL, r.Source, r.Duration.Seconds())
}

// describeFailure adds a remediation hint to well-known failures.
func describeFailure(err error) error {
	if errors.Is(err, skimp.ErrBudgetExceeded) {
		return fmt.Errorf("%w\nRaise --daily-budget or wait for the daily window to reset", err)
	}
	return err
}

func mustString(s string, _ error) string { return s }
