package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/model"
)

// ─── progression ──────────────────────────────────────────────────────────────

var progressionZ float64

var progressionCmd = &cobra.Command{
	Use:   "progression <check-in>",
	Short: "Show one check-in's availability by observation date against its band",
	Long: `For each observation date up to the check-in, takes the latest scrape of
that day, totals the rooms, and compares the total with the baseline at that
lead time. The band is baseline ± z × scale; totals outside it are flagged
low or high.

A check-in with no snapshots prints a message, not an error.`,
	Example: `  pickup progression 2025-05-13
  pickup progression 2025-05-13 --z 3
  pickup progression 2025-05-13 --format csv --out progression.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		q, err := engine.ParseProgressionQuery(queryValues("check_in", args[0], "z", zValue(cmd, progressionZ, deps)))
		if err != nil {
			return err
		}
		m, warnings, err := deps.LoadModel(cmd.Context(), "progression")
		if err != nil {
			return err
		}
		p := m.Progression(q)
		return emit(cmd, deps, newResult(model.KindProgression, "progression", &p, len(p.Points), m, warnings, start))
	},
}

// ─── series ───────────────────────────────────────────────────────────────────

var (
	seriesStart string
	seriesEnd   string
	seriesLimit int
	seriesZ     float64
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Progressions of several check-in dates",
	Long: `Builds the progression of the most recent check-in dates in the range
(at most --limit of them) and lists them chronologically. Check-ins whose
progression is empty are left out.`,
	Example: `  pickup series
  pickup series --start 2025-05-01 --end 2025-05-31 --limit 31
  pickup series --limit 5 --format jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		q, err := engine.ParseSeriesQuery(queryValues(
			"start", seriesStart,
			"end", seriesEnd,
			"limit", strconv.Itoa(seriesLimit),
			"z", zValue(cmd, seriesZ, deps),
		))
		if err != nil {
			return err
		}
		m, warnings, err := deps.LoadModel(cmd.Context(), "series")
		if err != nil {
			return err
		}
		s := m.Series(q)
		return emit(cmd, deps, newResult(model.KindSeries, "series", &s, len(s.Series), m, warnings, start))
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(progressionCmd)
	rootCmd.AddCommand(seriesCmd)

	progressionCmd.Flags().Float64Var(&progressionZ, "z", 0, "band width in scale units (default: z_threshold from config)")

	seriesCmd.Flags().StringVar(&seriesStart, "start", "", "earliest check-in date (YYYY-MM-DD)")
	seriesCmd.Flags().StringVar(&seriesEnd, "end", "", "latest check-in date (YYYY-MM-DD)")
	seriesCmd.Flags().IntVar(&seriesLimit, "limit", engine.DefaultSeriesLimit, "maximum number of check-in dates")
	seriesCmd.Flags().Float64Var(&seriesZ, "z", 0, "band width in scale units (default: z_threshold from config)")
}
