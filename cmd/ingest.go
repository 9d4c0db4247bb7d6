package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/render"
	"github.com/derickschaefer/pickup/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Inspect the history of source loads",
	Long: `Every command that builds the model records one ingest run in the local
store: the source, a fingerprint of the raw input, how many rows were read
and how many were skipped as unparseable. Derived statistics are never
stored; they are recomputed from the source on every run.`,
}

var ingestHistoryLimit int

var ingestHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent source loads, newest first",
	Example: `  pickup ingest history
  pickup ingest history --limit 50 --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		runs, err := deps.Store.ListIngestRuns(ingestHistoryLimit)
		if err != nil {
			return fmt.Errorf("listing ingest runs: %w", err)
		}
		if runs == nil {
			runs = []store.IngestRun{}
		}
		if len(runs) == 0 && resolveFormat(deps.Config.Format) == render.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No source loads recorded yet.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Run any report, e.g.: pickup baseline")
			return nil
		}
		return emit(cmd, deps, newResult(model.KindIngest, "ingest history", runs, len(runs), nil, nil, start))
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestHistoryCmd)

	ingestHistoryCmd.Flags().IntVar(&ingestHistoryLimit, "limit", 20, "number of runs to list (0 = all)")
}
