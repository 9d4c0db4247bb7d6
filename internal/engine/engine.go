// Package engine builds the immutable Model that every query is answered
// from. A Model is produced in one step from a full load of the snapshot
// source and is never mutated afterwards; live reload builds a new Model and
// swaps it in through a Holder.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/derickschaefer/pickup/internal/analyze"
	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/source"
	"github.com/derickschaefer/pickup/internal/transform"
	"github.com/derickschaefer/pickup/internal/velocity"
)

// Options tunes a build.
type Options struct {
	SmoothingWindow int     // ± leads; <= 0 means analyze.DefaultSmoothingWindow
	ZThreshold      float64 // flag threshold; <= 0 means analyze.DefaultZThreshold
}

func (o Options) withDefaults() Options {
	if o.SmoothingWindow <= 0 {
		o.SmoothingWindow = analyze.DefaultSmoothingWindow
	}
	if o.ZThreshold <= 0 {
		o.ZThreshold = analyze.DefaultZThreshold
	}
	return o
}

// Stats describes how a Model was built.
type Stats struct {
	Source          string        `json:"source"`
	Hash            string        `json:"hash"`
	Rows            int           `json:"rows"`
	Records         int           `json:"records"`
	Skipped         int           `json:"skipped"`
	CheckIns        int           `json:"check_ins"`
	RawBuckets      int           `json:"raw_buckets"`
	BaselineBuckets int           `json:"baseline_buckets"`
	PickupBuckets   int           `json:"pickup_buckets"`
	BuiltAt         time.Time     `json:"built_at"`
	Duration        time.Duration `json:"duration_ns"`
}

// Model holds every derived table plus the raw rows indexed by check-in.
// All fields are unexported and no method mutates them.
type Model struct {
	opts  Options
	stats Stats
	hash  uint64

	records   []model.SnapshotRecord
	byCheckIn map[time.Time][]model.SnapshotRecord
	checkIns  []time.Time

	series      model.LeadSeries
	rawBaseline analyze.Baseline
	baseline    analyze.Baseline
	pickup      analyze.Pickup
}

// Build loads src once and computes every table.
func Build(ctx context.Context, src source.Source, opts Options) (*Model, error) {
	start := time.Now()
	batch, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", src.Describe(), err)
	}
	m := FromBatch(batch, src.Describe(), opts)
	m.stats.Duration = time.Since(start)

	ev := log.Info()
	if batch.Skipped > 0 {
		ev = log.Warn().Float64("skipped_pct", batch.SkippedPct())
	}
	ev.Str("source", m.stats.Source).
		Int("rows", batch.Rows).
		Int("skipped", batch.Skipped).
		Int("check_ins", m.stats.CheckIns).
		Int("baseline_buckets", m.stats.BaselineBuckets).
		Int("pickup_buckets", m.stats.PickupBuckets).
		Dur("took", m.stats.Duration).
		Msg("model built")
	return m, nil
}

// FromBatch computes a Model from an already loaded batch.
func FromBatch(batch *source.Batch, describe string, opts Options) *Model {
	opts = opts.withDefaults()

	latest := transform.LatestSnapshotPerParseDay(batch.Records)
	totals := transform.AggregateTotals(latest)
	series := transform.ToLeadTime(totals)
	raw := analyze.ComputeBaseline(series)

	m := &Model{
		opts:        opts,
		hash:        batch.Hash,
		records:     batch.Records,
		byCheckIn:   make(map[time.Time][]model.SnapshotRecord),
		series:      series,
		rawBaseline: raw,
		baseline:    analyze.SmoothBaseline(raw, opts.SmoothingWindow),
		pickup:      analyze.ComputePickup(series),
	}
	for _, r := range batch.Records {
		m.byCheckIn[r.CheckIn] = append(m.byCheckIn[r.CheckIn], r)
	}
	for ci := range m.byCheckIn {
		m.checkIns = append(m.checkIns, ci)
	}
	sort.Slice(m.checkIns, func(i, j int) bool { return m.checkIns[i].Before(m.checkIns[j]) })

	m.stats = Stats{
		Source:          describe,
		Hash:            fmt.Sprintf("%016x", batch.Hash),
		Rows:            batch.Rows,
		Records:         len(batch.Records),
		Skipped:         batch.Skipped,
		CheckIns:        len(m.checkIns),
		RawBuckets:      len(raw),
		BaselineBuckets: len(m.baseline),
		PickupBuckets:   len(m.pickup),
		BuiltAt:         time.Now().UTC(),
	}
	return m
}

// BuildAll is the one-call pipeline: smoothed baseline, pickup table and
// lead-time series with default options.
func BuildAll(ctx context.Context, src source.Source) (analyze.Baseline, analyze.Pickup, model.LeadSeries, error) {
	m, err := Build(ctx, src, Options{})
	if err != nil {
		return nil, nil, nil, err
	}
	return m.baseline, m.pickup, m.series, nil
}

// ─── Accessors ────────────────────────────────────────────────────────────────

func (m *Model) Options() Options                { return m.opts }
func (m *Model) Stats() Stats                    { return m.stats }
func (m *Model) Hash() uint64                    { return m.hash }
func (m *Model) Baseline() analyze.Baseline      { return m.baseline }
func (m *Model) Pickup() analyze.Pickup          { return m.pickup }
func (m *Model) LeadSeries() model.LeadSeries    { return m.series }
func (m *Model) Records() []model.SnapshotRecord { return m.records }

// CheckIns returns every check-in date with at least one raw row, ascending.
func (m *Model) CheckIns() []time.Time {
	out := make([]time.Time, len(m.checkIns))
	copy(out, m.checkIns)
	return out
}

// Velocity runs the cutoff-based detector over the model's raw rows.
func (m *Model) Velocity(q AnomaliesQuery) *velocity.Report {
	return velocity.Detect(m.records, q.Cutoff, q.Days)
}
