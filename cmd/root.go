// Package cmd implements the pickup CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/app"
	"github.com/derickschaefer/pickup/internal/config"
	"github.com/derickschaefer/pickup/internal/render"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	Data     string
	DB       string
	DSN      string
	Format   string
	Out      string
	LogLevel string
	Quiet    bool
	Verbose  bool
	Debug    bool
}

// rootCmd is the base command. Running `pickup` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "pickup",
	Short: "pickup: hotel availability baselines and pickup anomalies",
	Long: `pickup reads raw PMS availability snapshots and learns what total
availability normally looks like at each lead time (days before check-in),
split by check-in weekday. It scores check-in dates against that baseline,
predicts the availability curve up to arrival, and flags dates whose pickup
is unusually slow or fast.

Quick start:
  pickup config init                    # create a config.json
  pickup baseline                       # summary of the learned baseline
  pickup progression 2025-05-13         # one check-in against its band
  pickup anomalies --cutoff 2025-05-01  # velocity-based anomaly report
  pickup serve                          # JSON API on 127.0.0.1:5000`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd.ErrOrStderr())
	},
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupLogging configures the global zerolog logger. Logs go to stderr so
// they never mix with rendered output; a terminal gets the console writer,
// anything else gets JSON lines.
func setupLogging(w io.Writer) error {
	level := zerolog.WarnLevel
	if globalFlags.LogLevel != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(globalFlags.LogLevel))
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: expected trace|debug|info|warn|error", globalFlags.LogLevel)
		}
		level = l
	}
	switch {
	case globalFlags.Debug:
		level = zerolog.DebugLevel
	case globalFlags.Quiet:
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	if isTerminal(w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(config.Flags{
		DataPath: globalFlags.Data,
		DBPath:   globalFlags.DB,
		DSN:      globalFlags.DSN,
	})
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if !render.ValidFormat(cfg.Format) {
		return nil, fmt.Errorf("unknown format %q: expected %s", cfg.Format, strings.Join(render.Formats, "|"))
	}
	return app.New(cfg), nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.Data, "data", "",
		"snapshot file, JSON array or JSON Lines; - for stdin (overrides env PICKUP_DATA_PATH and config)")
	pf.StringVar(&globalFlags.DB, "db", "",
		"local store path (default: ~/.pickup/pickup.db)")
	pf.StringVar(&globalFlags.DSN, "dsn", "",
		"read snapshots from postgres instead of a file (overrides env PICKUP_DSN)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "",
		"log level: trace|debug|info|warn|error (default: warn)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress warnings and log output below error")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show row counts and timing after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"debug logging")
}
