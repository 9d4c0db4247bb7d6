package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/util"
	"github.com/derickschaefer/pickup/internal/velocity"
)

var (
	anomaliesCutoff string
	anomaliesDays   int
	anomaliesFlag   string
	anomaliesByDate bool
)

var validFlags = []string{
	velocity.FlagSlowPickup,
	velocity.FlagFastPickup,
	velocity.FlagHighAvailability,
	velocity.FlagEarlySellout,
	velocity.FlagStalledPickup,
	velocity.FlagErraticPickup,
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Flag upcoming check-ins whose pickup velocity looks unusual",
	Long: `Learns historical availability and pickup velocity per (weeks to arrival,
weekday) bucket from check-ins before --cutoff, then scores every check-in in
the next --days days using only what was known on the cutoff date.

Only flagged dates are listed, nearest arrival first. Flags:
  slow_pickup          velocity above the P75, under 30 days out
  fast_pickup          velocity below the P25, over 45 days out
  high_availability    availability above the P75, under 21 days out
  early_sellout        availability below the P25, over 30 days out
  stalled_pickup       flat recent trend with rooms left, under 14 days out
  erratic_pickup       recent standard deviation above 3 rooms`,
	Example: `  pickup anomalies --cutoff 2025-05-01
  pickup anomalies --cutoff 2025-05-01 --days 30 --flag slow_pickup
  pickup anomalies --cutoff 2025-05-01 --format csv --out anomalies.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		cutoff := anomaliesCutoff
		if cutoff == "" {
			cutoff = util.FormatDate(time.Now().UTC())
		}
		q, err := engine.ParseAnomaliesQuery(queryValues("cutoff", cutoff, "days", strconv.Itoa(anomaliesDays)))
		if err != nil {
			return err
		}
		if anomaliesFlag != "" && !contains(validFlags, anomaliesFlag) {
			return fmt.Errorf("unknown flag %q: expected one of %s", anomaliesFlag, strings.Join(validFlags, ", "))
		}

		m, warnings, err := deps.LoadModel(cmd.Context(), "anomalies")
		if err != nil {
			return err
		}
		report := m.Velocity(q)
		if anomaliesFlag != "" {
			kept := report.Results[:0]
			for _, r := range report.Results {
				if r.HasFlag(anomaliesFlag) {
					kept = append(kept, r)
				}
			}
			report.Results = kept
		}
		if !anomaliesByDate {
			report.Results = velocity.ByDaysToArrival(report.Results)
		}
		if report.Candidates == 0 {
			warnings = append(warnings, fmt.Sprintf("no check-ins with enough observations between %s and %d days later",
				util.FormatDate(q.Cutoff), q.Days))
		}
		return emit(cmd, deps, newResult(model.KindVelocity, "anomalies", report, len(report.Results), m, warnings, start))
	},
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(anomaliesCmd)

	anomaliesCmd.Flags().StringVar(&anomaliesCutoff, "cutoff", "", "training cutoff date, YYYY-MM-DD (default: today)")
	anomaliesCmd.Flags().IntVar(&anomaliesDays, "days", engine.DefaultFutureWindow, "how many days after the cutoff to score")
	anomaliesCmd.Flags().StringVar(&anomaliesFlag, "flag", "", "only list dates carrying this flag")
	anomaliesCmd.Flags().BoolVar(&anomaliesByDate, "by-date", false, "order by check-in date instead of days to arrival")
}
