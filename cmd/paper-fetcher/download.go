// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-fetcher/internal/agent"
	"github.com/pdiddy/paper-fetcher/internal/download"
	"github.com/pdiddy/paper-fetcher/internal/fetcher"
	"github.com/pdiddy/paper-fetcher/internal/index"
	"github.com/pdiddy/paper-fetcher/internal/render"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download [arxiv-ids...]",
	Short: "Download artifacts for papers from a saved search or by arXiv id",
	Long: `Download stores PDFs, source archives, and metadata snapshots for papers.
Papers come either from a results file written by search --format json
(--from, use - for stdin) or from arXiv identifiers given as arguments.
Papers named by identifier are enriched from their abstract page first so
that the metadata snapshot and the source-availability check have data.

Each paper is isolated: a failed artifact is reported and the remaining
work continues.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("from", "", "results file from search --format json (- for stdin)")
	addDownloadFlags(downloadCmd.Flags())

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, downloadFlagKeys)

	from, _ := cmd.Flags().GetString("from")
	if from == "" && len(args) == 0 {
		return fmt.Errorf("provide --from results.json or one or more arXiv identifiers")
	}

	var papers []types.Paper
	if from != "" {
		loaded, err := readResults(from, cmd.InOrStdin())
		if err != nil {
			return err
		}
		papers = append(papers, loaded...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := loadConfig()
	f, err := fetcher.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(args) > 0 {
		named := make([]types.Paper, 0, len(args))
		for _, ref := range args {
			id, err := agent.NormalizeID(ref)
			if err != nil {
				return err
			}
			named = append(named, agent.PaperForID(id))
		}
		papers = append(papers, f.Enrich(ctx, named)...)
	}
	if len(papers) == 0 {
		return fmt.Errorf("no papers to download")
	}

	progress := cmd.ErrOrStderr()
	opts := download.OptionsFromConfig(cfg.Download)
	fmt.Fprintf(progress, "Downloading %d papers (concurrency %d)...\n", len(papers), opts.MaxConcurrent)

	outcomes, err := f.Download(ctx, papers, opts)
	if err != nil {
		return err
	}

	err = withIndex(cfg.IndexPath, func(store *index.Store) error {
		return store.SaveOutcomes(ctx, outcomes)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("recording download history failed")
	}

	if err := render.OutcomesTable(cmd.OutOrStdout(), outcomes); err != nil {
		return err
	}
	return downloadFailures(progress, outcomes)
}

// readResults loads the papers of a search results file.
func readResults(path string, stdin io.Reader) ([]types.Paper, error) {
	var r io.Reader = stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening results: %w", err)
		}
		defer file.Close()
		r = file
	}

	var results struct {
		Papers []types.Paper `json:"papers"`
	}
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return nil, fmt.Errorf("parsing results %s: %w", path, err)
	}
	return results.Papers, nil
}
