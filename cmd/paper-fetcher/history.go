// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-fetcher/internal/index"
	"github.com/pdiddy/paper-fetcher/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded searches or papers from the local index",
	Long: `History reads the SQLite index written by search --index and download
--index. By default it lists recent searches; --papers lists stored papers,
optionally filtered by a title or abstract substring.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("index", "", "SQLite index path (default from config index_path)")
	historyCmd.Flags().Bool("papers", false, "list papers instead of searches")
	historyCmd.Flags().String("filter", "", "title or abstract substring (with --papers)")
	historyCmd.Flags().Int("limit", 0, "maximum rows (0 = 50)")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, map[string]string{"index": "index_path"})
	path := viper.GetString("index_path")
	if path == "" {
		return fmt.Errorf("no index configured: pass --index or set index_path")
	}

	listPapers, _ := cmd.Flags().GetBool("papers")
	filter, _ := cmd.Flags().GetString("filter")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := index.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	w := cmd.OutOrStdout()

	if listPapers {
		papers, err := store.Papers(ctx, filter, limit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return render.JSON(w, papers)
		}
		if err := render.Table(w, papers); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%d papers\n", len(papers))
		return nil
	}

	searches, err := store.Searches(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return render.JSON(w, searches)
	}
	if err := render.HistoryTable(w, searches); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d searches\n", len(searches))
	return nil
}
