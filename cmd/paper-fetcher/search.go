// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-fetcher/internal/agent"
	"github.com/pdiddy/paper-fetcher/internal/download"
	"github.com/pdiddy/paper-fetcher/internal/fetcher"
	"github.com/pdiddy/paper-fetcher/internal/index"
	"github.com/pdiddy/paper-fetcher/internal/render"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Ask the paper-search agent for papers matching a research question",
	Long: `Search starts an agent session for the query, polls until the result set
settles, and prints the papers it found. The standard mode trusts the agent's
finish signal; --thorough keeps polling for at least ten rounds and waits for
the count to hold.

With --download the PDFs (and with --source the source archives) of the
returned papers are stored under --output, one folder per paper, alongside a
YAML metadata snapshot.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max", 0, "maximum number of papers to return (0 = all)")
	searchCmd.Flags().Bool("thorough", false, "poll longer and ignore the agent's finish signal")
	searchCmd.Flags().Bool("sort", false, "order papers by relevance score before truncating")
	searchCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	searchCmd.Flags().Bool("no-cache", false, "bypass the result cache")
	searchCmd.Flags().Bool("no-enrich", false, "skip abstract-page enrichment")
	searchCmd.Flags().Bool("download", false, "download artifacts for the returned papers")
	addDownloadFlags(searchCmd.Flags())

	rootCmd.AddCommand(searchCmd)
}

// searchOutput is what search prints in json and yaml formats. Its papers
// field is what download --from reads back.
type searchOutput struct {
	fetcher.Result `yaml:",inline"`
	Downloads      map[string]types.DownloadOutcome `json:"downloads,omitempty" yaml:"downloads,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, downloadFlagKeys)

	query := strings.Join(args, " ")
	format, err := render.ParseFormat(mustString(cmd, "format"))
	if err != nil {
		return err
	}

	maxResults, _ := cmd.Flags().GetInt("max")
	if maxResults < 0 {
		return fmt.Errorf("--max must not be negative")
	}
	thorough, _ := cmd.Flags().GetBool("thorough")
	sortByScore, _ := cmd.Flags().GetBool("sort")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	noEnrich, _ := cmd.Flags().GetBool("no-enrich")
	doDownload, _ := cmd.Flags().GetBool("download")

	opts := fetcher.Options{
		MaxResults:      maxResults,
		Policy:          agent.PolicyStandard,
		SortByRelevance: sortByScore,
		SkipEnrich:      noEnrich,
		NoCache:         noCache,
	}
	if thorough {
		opts.Policy = agent.PolicyThorough
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := loadConfig()
	f, err := fetcher.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer f.Close()

	progress := cmd.ErrOrStderr()
	fmt.Fprintf(progress, "Searching for %q (%s mode)...\n", query, opts.Policy)

	res, err := f.Search(ctx, query, opts)
	if err != nil {
		return err
	}
	if res.Cached {
		fmt.Fprintf(progress, "Using cached results (%d papers)\n", len(res.Papers))
	} else {
		fmt.Fprintf(progress, "Found %d papers (%d skipped)\n", len(res.Papers), res.Skipped)
	}

	out := searchOutput{Result: res}
	if doDownload && len(res.Papers) > 0 {
		out.Downloads, err = f.Download(ctx, res.Papers, download.OptionsFromConfig(cfg.Download))
		if err != nil {
			return err
		}
	}

	if err := recordSearch(ctx, cfg.IndexPath, res, out.Downloads); err != nil {
		logger.Warn().Err(err).Msg("recording search history failed")
	}

	if err := printSearch(cmd.OutOrStdout(), format, out); err != nil {
		return err
	}
	return downloadFailures(progress, out.Downloads)
}

func printSearch(w io.Writer, format render.Format, out searchOutput) error {
	switch format {
	case render.FormatJSON:
		return render.JSON(w, out)
	case render.FormatYAML:
		return render.YAML(w, out)
	}

	if err := render.Table(w, out.Papers); err != nil {
		return err
	}
	if out.SessionURL != "" {
		fmt.Fprintf(w, "Session: %s\n", out.SessionURL)
	}
	if len(out.Downloads) > 0 {
		fmt.Fprintln(w)
		return render.OutcomesTable(w, out.Downloads)
	}
	return nil
}

// withIndex opens the index at path, runs fn against it, and closes it. An
// empty path disables indexing.
func withIndex(path string, fn func(*index.Store) error) error {
	if path == "" {
		return nil
	}
	store, err := index.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// recordSearch stores a fresh search and its downloads. Cached results were
// recorded when first fetched.
func recordSearch(ctx context.Context, path string, res fetcher.Result, outcomes map[string]types.DownloadOutcome) error {
	return withIndex(path, func(store *index.Store) error {
		if !res.Cached {
			rec := index.SearchRecord{
				SessionID: res.SessionID,
				Query:     res.Query,
				Policy:    res.Policy,
				Skipped:   res.Skipped,
			}
			if _, err := store.SavePapers(ctx, rec, res.Papers); err != nil {
				return err
			}
		}
		if len(outcomes) > 0 {
			return store.SaveOutcomes(ctx, outcomes)
		}
		return nil
	})
}

// downloadFailures reports failed artifacts and returns an error when any
// paper had one.
func downloadFailures(w io.Writer, outcomes map[string]types.DownloadOutcome) error {
	failed := 0
	for id, o := range outcomes {
		if !o.Failed() {
			continue
		}
		failed++
		for _, msg := range o.Errors() {
			fmt.Fprintf(w, "  %s: %s\n", id, msg)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d paper(s) had failed downloads", failed)
	}
	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}
