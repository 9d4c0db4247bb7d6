package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/chart"
	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/model"
)

var (
	chartZ       float64
	chartWidth   int
	chartHeight  int
	chartMaxBars int
	chartPlot    bool
	chartCurve   bool
)

var chartCmd = &cobra.Command{
	Use:   "chart <check-in>",
	Short: "Render a check-in's progression as an ASCII chart",
	Long: `Draws one bar per observation date of the check-in. The shaded band
behind each bar is baseline ± z × scale and ┆ marks the baseline median, so
bars that stop short of the band or run past it stand out.

--plot draws the observed totals as a line chart instead, and --curve plots
the predicted availability curve from the earliest observation to arrival.
Width auto-detects from $COLUMNS (falls back to 80).`,
	Example: `  pickup chart 2025-05-13
  pickup chart 2025-05-13 --max-bars 14 --z 3
  pickup chart 2025-05-13 --plot --height 16
  pickup chart 2025-05-13 --curve`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		q, err := engine.ParseProgressionQuery(queryValues("check_in", args[0], "z", zValue(cmd, chartZ, deps)))
		if err != nil {
			return err
		}
		m, warnings, err := deps.LoadModel(cmd.Context(), "chart")
		if err != nil {
			return err
		}

		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()

		if chartCurve {
			c := m.Curve(engine.CurveQuery{CheckIn: q.CheckIn})
			if c.Message != "" {
				fmt.Fprintln(w, c.Message)
				return nil
			}
			title := fmt.Sprintf("Predicted availability for %s from lead %d", c.CheckIn, c.StartLead)
			err = chart.Plot(w, title, chart.CurvePoints(c.Points), chart.PlotOptions{Width: chartWidth, Height: chartHeight})
		} else {
			p := m.Progression(q)
			if len(p.Points) == 0 {
				fmt.Fprintf(w, "%s: %s\n", p.CheckIn, p.Message)
				return nil
			}
			title := fmt.Sprintf("Check-in %s (%s), band ±%g×scale", p.CheckIn, model.WeekdayName(model.WeekdayOf(q.CheckIn)), q.Z)
			if chartPlot {
				err = chart.Plot(w, title, chart.ObservedPoints(&p), chart.PlotOptions{Width: chartWidth, Height: chartHeight})
			} else {
				err = chart.Bar(w, title, chart.FromProgression(&p), chart.BarOptions{Width: chartWidth, MaxBars: chartMaxBars})
			}
		}
		if err != nil {
			return err
		}
		if !deps.Config.Quiet {
			for _, warn := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠  %s\n", warn)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)

	chartCmd.Flags().Float64Var(&chartZ, "z", 0, "band width in scale units (default: z_threshold from config)")
	chartCmd.Flags().IntVar(&chartWidth, "width", 0, "chart width in columns (default: $COLUMNS or 80)")
	chartCmd.Flags().IntVar(&chartHeight, "height", 0, "plot height in rows (default: 12)")
	chartCmd.Flags().IntVar(&chartMaxBars, "max-bars", 0, "only draw the latest N observation dates")
	chartCmd.Flags().BoolVar(&chartPlot, "plot", false, "line chart of observed totals")
	chartCmd.Flags().BoolVar(&chartCurve, "curve", false, "line chart of the predicted curve")
}
