package server

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/derickschaefer/pickup/internal/engine"
)

// startScheduler registers the cron-driven reload and returns its stop func.
func (s *Server) startScheduler(ctx context.Context) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(s.cfg.ReloadSchedule, func() {
		if _, err := s.reload(ctx, "schedule"); err != nil {
			log.Error().Err(err).Msg("scheduled reload failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", s.cfg.ReloadSchedule, err)
	}
	c.Start()
	log.Info().Str("schedule", s.cfg.ReloadSchedule).Msg("scheduled reload enabled")
	return func() { <-c.Stop().Done() }, nil
}

// reload rebuilds the model and records the outcome in metrics.
func (s *Server) reload(ctx context.Context, trigger string) (engine.ReloadResult, error) {
	res, err := s.holder.Reload(ctx)
	switch {
	case err != nil:
		s.metrics.Reloads.WithLabelValues(trigger, "error").Inc()
	case res.Changed:
		s.metrics.Reloads.WithLabelValues(trigger, "rebuilt").Inc()
		m := s.holder.Load()
		s.metrics.ObserveModel(m)
		if s.cfg.OnReload != nil {
			s.cfg.OnReload(trigger, m.Stats())
		}
	default:
		s.metrics.Reloads.WithLabelValues(trigger, "unchanged").Inc()
	}
	return res, err
}
