// Package app wires together configuration, the snapshot source, the local
// store and the engine into a single Deps struct that commands receive at
// runtime.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/derickschaefer/pickup/internal/config"
	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/source"
	"github.com/derickschaefer/pickup/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is nil until RequireStore is called.
type Deps struct {
	Config *config.Config
	Store  *store.Store
}

// New builds a Deps from resolved config.
func New(cfg *config.Config) *Deps {
	return &Deps{Config: cfg}
}

// RequireStore opens the local store at Config.DBPath.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	if d.Config.DBPath == "" {
		return fmt.Errorf("no database path configured (set db_path, %s or --db)", config.EnvDBPath)
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	d.Store = s
	return nil
}

// Close releases the store, if open.
func (d *Deps) Close() {
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			log.Warn().Err(err).Msg("closing local store")
		}
		d.Store = nil
	}
}

// Source opens the configured snapshot source.
func (d *Deps) Source() (source.Source, error) {
	return source.Open(d.Config.SourceOptions())
}

// EngineOptions returns the build options from config.
func (d *Deps) EngineOptions() engine.Options {
	return engine.Options{
		SmoothingWindow: d.Config.SmoothingWindow,
		ZThreshold:      d.Config.ZThreshold,
	}
}

// LoadModel builds a Model from the configured source and records the load
// in the ingest history. Failing to record the load never fails the
// command; it is returned as a warning instead.
func (d *Deps) LoadModel(ctx context.Context, command string) (*engine.Model, []string, error) {
	if err := d.Config.Validate(); err != nil {
		return nil, nil, err
	}
	src, err := d.Source()
	if err != nil {
		return nil, nil, err
	}
	m, err := engine.Build(ctx, src, d.EngineOptions())
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	if st := m.Stats(); st.Skipped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d of %d rows skipped (%.2f%%): unparseable fields",
			st.Skipped, st.Rows, float64(st.Skipped)/float64(st.Rows)*100))
	}
	if err := d.RecordLoad(command, m.Stats()); err != nil {
		warnings = append(warnings, fmt.Sprintf("ingest history not recorded: %v", err))
	}
	return m, warnings, nil
}

// NewHolder builds the first Model for a long-running server and records
// the load like LoadModel does.
func (d *Deps) NewHolder(ctx context.Context, command string) (*engine.Holder, error) {
	if err := d.Config.Validate(); err != nil {
		return nil, err
	}
	src, err := d.Source()
	if err != nil {
		return nil, err
	}
	h, err := engine.NewHolder(ctx, src, d.EngineOptions())
	if err != nil {
		return nil, err
	}
	if err := d.RecordLoad(command, h.Load().Stats()); err != nil {
		log.Warn().Err(err).Msg("ingest history not recorded")
	}
	return h, nil
}

// RecordLoad appends one ingest run for a completed build.
func (d *Deps) RecordLoad(command string, st engine.Stats) error {
	if err := d.RequireStore(); err != nil {
		return err
	}
	run, err := d.Store.PutIngestRun(store.IngestRun{
		Command:    command,
		Source:     st.Source,
		Hash:       st.Hash,
		Rows:       st.Rows,
		Records:    st.Records,
		Skipped:    st.Skipped,
		LoadedAt:   st.BuiltAt,
		DurationMs: st.Duration.Milliseconds(),
	})
	if err != nil {
		return err
	}
	log.Debug().Str("run", run.ID).Str("hash", run.Hash).Dur("took", time.Duration(run.DurationMs)*time.Millisecond).Msg("ingest recorded")
	return nil
}
