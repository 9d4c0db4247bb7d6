package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/server"
)

var (
	serveListen   string
	serveSchedule string
	serveRate     float64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve progressions, curves and anomalies as a JSON API",
	Long: `Builds the model once and serves it over HTTP until interrupted.

Routes:
  GET  /health                                  model status
  GET  /api/progression?check_in=YYYY-MM-DD&z=  one check-in against its band
  GET  /api/series?start=&end=&limit=&z=        several progressions
  GET  /api/curve?check_in=&lead=               anomaly score and predicted curve
  GET  /api/anomalies?cutoff=&days=             velocity-based anomaly report
  POST /api/reload                              re-read the source and swap the model
  GET  /metrics                                 Prometheus metrics

A reload that finds the source unchanged keeps the current model. With
--reload-schedule (a cron spec such as "*/15 * * * *") reloads also run on
a timer. Every rebuild is recorded in the ingest history.`,
	Example: `  pickup serve
  pickup serve --listen 0.0.0.0:8080 --rate-limit 50
  pickup serve --reload-schedule "@every 10m"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		cfg := server.DefaultConfig()
		cfg.Addr = deps.Config.Listen
		cfg.RateLimit = deps.Config.RateLimit
		cfg.ReloadSchedule = deps.Config.ReloadSchedule
		if serveListen != "" {
			cfg.Addr = serveListen
		}
		if cmd.Flags().Changed("reload-schedule") {
			cfg.ReloadSchedule = serveSchedule
		}
		if cmd.Flags().Changed("rate-limit") {
			cfg.RateLimit = serveRate
		}
		cfg.OnReload = func(trigger string, st engine.Stats) {
			if err := deps.RecordLoad("serve:"+trigger, st); err != nil {
				log.Warn().Err(err).Msg("ingest history not recorded")
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		holder, err := deps.NewHolder(ctx, "serve")
		if err != nil {
			return err
		}
		return server.New(cfg, holder).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides env PICKUP_LISTEN and config; default 127.0.0.1:5000)")
	serveCmd.Flags().StringVar(&serveSchedule, "reload-schedule", "", "cron spec for scheduled reloads (empty disables)")
	serveCmd.Flags().Float64Var(&serveRate, "rate-limit", 0, "API requests per second (0 disables)")
}
