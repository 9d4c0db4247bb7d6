package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/model"
)

// ─── baseline ─────────────────────────────────────────────────────────────────

var (
	baselineCheckIn string
	baselineLead    int
	baselineRows    int
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Summarise the learned baseline, optionally scoring one check-in",
	Long: `Builds the smoothed baseline (median and MAD-based scale of total
availability per lead time and check-in weekday) from the configured source
and prints the first buckets in (lead, weekday) order.

With --check-in the date is also scored at --lead (default: its earliest
observation) and its availability curve is predicted down to arrival.`,
	Example: `  pickup baseline
  pickup baseline --rows 40
  pickup baseline --check-in 2025-05-13 --lead 14
  pickup baseline --format csv --rows 0 > baseline.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		var cq *engine.CurveQuery
		if baselineCheckIn != "" {
			lead := ""
			if cmd.Flags().Changed("lead") {
				lead = strconv.Itoa(baselineLead)
			}
			q, err := engine.ParseCurveQuery(queryValues("check_in", baselineCheckIn, "lead", lead))
			if err != nil {
				return err
			}
			cq = &q
		}

		m, warnings, err := deps.LoadModel(cmd.Context(), "baseline")
		if err != nil {
			return err
		}
		s := m.Summary(baselineRows, cq)
		return emit(cmd, deps, newResult(model.KindBaseline, "baseline", &s, len(s.Rows), m, warnings, start))
	},
}

// ─── pickup ───────────────────────────────────────────────────────────────────

var pickupMaxLead int

var pickupCmd = &cobra.Command{
	Use:   "pickup",
	Short: "Print the typical pickup per lead time and weekday",
	Long: `Prints the median change in total availability between consecutive lead
times, keyed at the larger lead: A(L) − A(L−1). Positive values mean rooms
were sold between lead L and L−1; negative values mean rooms came back
through cancellations or releases.`,
	Example: `  pickup pickup
  pickup pickup --max-lead 30
  pickup pickup --format jsonl | jq 'select(.weekday == 4)'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		m, warnings, err := deps.LoadModel(cmd.Context(), "pickup")
		if err != nil {
			return err
		}
		rows := m.PickupRows(pickupMaxLead)
		if rows == nil {
			rows = []engine.PickupRow{}
		}
		return emit(cmd, deps, newResult(model.KindPickup, "pickup", rows, len(rows), m, warnings, start))
	},
}

// ─── curve ────────────────────────────────────────────────────────────────────

var curveLead int

var curveCmd = &cobra.Command{
	Use:   "curve <check-in>",
	Short: "Score a check-in and predict its availability curve to arrival",
	Long: `Scores the check-in's observed total at the starting lead against the
baseline, then rolls the expected availability forward with the typical
pickup until lead 0. Without --lead the starting point is the earliest
observation of that check-in.`,
	Example: `  pickup curve 2025-05-13
  pickup curve 2025-05-13 --lead 7 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		lead := ""
		if cmd.Flags().Changed("lead") {
			lead = strconv.Itoa(curveLead)
		}
		q, err := engine.ParseCurveQuery(queryValues("check_in", args[0], "lead", lead))
		if err != nil {
			return err
		}

		m, warnings, err := deps.LoadModel(cmd.Context(), "curve")
		if err != nil {
			return err
		}
		c := m.Curve(q)
		return emit(cmd, deps, newResult(model.KindCurve, "curve", &c, len(c.Points), m, warnings, start))
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(pickupCmd)
	rootCmd.AddCommand(curveCmd)

	baselineCmd.Flags().StringVar(&baselineCheckIn, "check-in", "", "check-in date to score and predict (YYYY-MM-DD)")
	baselineCmd.Flags().IntVar(&baselineLead, "lead", 0, "lead time to score --check-in at")
	baselineCmd.Flags().IntVar(&baselineRows, "rows", engine.DefaultSummaryRows, "baseline buckets to list (0 = all)")

	pickupCmd.Flags().IntVar(&pickupMaxLead, "max-lead", -1, "only list lead times up to this value (-1 = all)")

	curveCmd.Flags().IntVar(&curveLead, "lead", 0, "starting lead time (default: earliest observation)")
}
