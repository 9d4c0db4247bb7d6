// Package velocity implements the cutoff-based pickup anomaly detector.
//
// Unlike the baseline in package analyze, which is built from the whole
// history, this detector trains only on rows observed strictly before a
// cutoff date and then scores the check-in dates that follow it. Buckets are
// keyed by (lead week, weekday), where lead week = lead / 7.
package velocity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/derickschaefer/pickup/internal/analyze"
	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/source"
)

// Training and scoring constants.
const (
	MinTrainingRows   = 10 // rows a historical check-in needs to be used
	MinTrainingPoints = 5  // observation dates a historical check-in needs
	MinBucketSamples  = 3  // samples a bucket needs to be published
	MinTargetPoints   = 3  // observation dates a target check-in needs

	trainingWindow = 5 // trailing points per training velocity sample
	currentWindow  = 7 // trailing points for the current velocity
	recentWindow   = 5 // trailing points for volatility and trend

	defaultExpectedVelocity     = -0.5
	defaultExpectedAvailability = 3.0

	erraticVolatility = 3.0
)

// Issue flags.
const (
	FlagSlowPickup       = "slow_pickup"
	FlagFastPickup       = "fast_pickup"
	FlagHighAvailability = "high_availability"
	FlagEarlySellout     = "early_sellout"
	FlagStalledPickup    = "stalled_pickup"
	FlagErraticPickup    = "erratic_pickup"
	FlagNoData           = "no_data"
)

// Trend values.
const (
	TrendDeclining  = "declining"
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
	TrendUnknown    = "unknown"
)

// ─── Types ────────────────────────────────────────────────────────────────────

// Point is one observation date on a check-in's progression.
type Point struct {
	Date  time.Time `json:"date"`
	Total int       `json:"total"`
}

// Quantiles summarises one bucket's samples.
type Quantiles struct {
	Median float64 `json:"median"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	Count  int     `json:"count"`
}

// Baselines holds the velocity and availability distributions learned from
// the training window, keyed by (lead week, weekday).
type Baselines struct {
	Velocity     map[model.BucketKey]Quantiles
	Availability map[model.BucketKey]Quantiles
}

// Metrics describes one scored check-in date.
type Metrics struct {
	CheckIn              time.Time `json:"check_in"`
	CurrentAvailability  int       `json:"current_availability"`
	ExpectedAvailability float64   `json:"expected_availability"`
	Velocity             float64   `json:"pickup_velocity"`
	ExpectedVelocity     float64   `json:"expected_velocity"`
	DaysToArrival        int       `json:"days_to_arrival"`
	Volatility           float64   `json:"volatility"`
	Trend                string    `json:"trend"`
	Flags                []string  `json:"issue_flags"`
}

// HasFlag reports whether m carries flag.
func (m Metrics) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Report is the outcome of one detection run.
type Report struct {
	Cutoff              time.Time `json:"cutoff"`
	WindowDays          int       `json:"window_days"`
	VelocityBuckets     int       `json:"velocity_buckets"`
	AvailabilityBuckets int       `json:"availability_buckets"`
	Candidates          int       `json:"candidates"`
	Results             []Metrics `json:"results"`
}

// ─── Progression ──────────────────────────────────────────────────────────────

// Progression builds the per-observation-date totals of one check-in's rows.
// Each room contributes its maximum availability across that day's rows.
// Every re-scrape of the day is considered and no clamping is applied.
func Progression(records []model.SnapshotRecord) []Point {
	byDay := make(map[time.Time]map[int]int)
	for _, r := range records {
		rooms, ok := byDay[r.ParseDate]
		if !ok {
			rooms = make(map[int]int)
			byDay[r.ParseDate] = rooms
		}
		if prev, ok := rooms[r.RoomID]; !ok || r.Availability > prev {
			rooms[r.RoomID] = r.Availability
		}
	}

	out := make([]Point, 0, len(byDay))
	for day, rooms := range byDay {
		total := 0
		for _, avail := range rooms {
			total += avail
		}
		out = append(out, Point{Date: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Slope returns the least-squares slope of total against elapsed days for
// the last `window` points of progression (all points when window <= 0).
func Slope(progression []Point, window int) float64 {
	if window > 0 && len(progression) > window {
		progression = progression[len(progression)-window:]
	}
	if len(progression) < 2 {
		return 0
	}
	xs := make([]float64, len(progression))
	ys := make([]float64, len(progression))
	for i, p := range progression {
		xs[i] = float64(model.DaysBetween(progression[0].Date, p.Date))
		ys[i] = float64(p.Total)
	}
	return analyze.Slope(xs, ys)
}

// ─── Training ─────────────────────────────────────────────────────────────────

// BuildHistoricalBaselines learns velocity and availability distributions
// from rows whose parse date is strictly before cutoff.
func BuildHistoricalBaselines(records []model.SnapshotRecord, cutoff time.Time) Baselines {
	byCheckIn := make(map[time.Time][]model.SnapshotRecord)
	for _, r := range records {
		if r.ParseDate.Before(cutoff) {
			byCheckIn[r.CheckIn] = append(byCheckIn[r.CheckIn], r)
		}
	}

	velocities := make(map[model.BucketKey][]float64)
	avails := make(map[model.BucketKey][]float64)

	for checkIn, rows := range byCheckIn {
		if len(rows) < MinTrainingRows {
			continue
		}
		prog := Progression(rows)
		if len(prog) < MinTrainingPoints {
			continue
		}
		wd := model.WeekdayOf(checkIn)
		for i, p := range prog {
			lead := model.DaysBetween(p.Date, checkIn)
			if lead <= 0 {
				continue
			}
			key := model.BucketKey{Lead: lead / 7, Weekday: wd}
			if i >= 2 {
				start := max(0, i-(trainingWindow-1))
				velocities[key] = append(velocities[key], Slope(prog[start:i+1], 0))
			}
			avails[key] = append(avails[key], float64(p.Total))
		}
	}

	return Baselines{
		Velocity:     publish(velocities),
		Availability: publish(avails),
	}
}

// publish turns sample lists into quantile summaries, dropping buckets with
// fewer than MinBucketSamples samples.
func publish(samples map[model.BucketKey][]float64) map[model.BucketKey]Quantiles {
	out := make(map[model.BucketKey]Quantiles)
	for key, vals := range samples {
		if len(vals) < MinBucketSamples {
			continue
		}
		q := Quantiles{Median: analyze.Median(vals), Count: len(vals)}
		if len(vals) >= 4 {
			q.P25, q.P75 = analyze.Quartiles(vals)
		} else {
			q.P25, q.P75 = analyze.MinMax(vals)
		}
		out[key] = q
	}
	return out
}

// ─── Scoring ──────────────────────────────────────────────────────────────────

// Analyze scores one check-in's progression as of asOf against baselines.
//
// Velocity is negative while rooms sell, so slow_pickup fires when the
// current velocity is above the bucket's 75th percentile (closer to zero or
// positive) and fast_pickup when it is below the 25th percentile.
func Analyze(checkIn time.Time, progression []Point, b Baselines, asOf time.Time) Metrics {
	if len(progression) == 0 {
		return Metrics{CheckIn: checkIn, Trend: TrendUnknown, Flags: []string{FlagNoData}}
	}

	current := progression[len(progression)-1].Total
	dta := model.DaysBetween(asOf, checkIn)
	key := model.BucketKey{Lead: dta / 7, Weekday: model.WeekdayOf(checkIn)}
	velBase, hasVel := b.Velocity[key]
	availBase, hasAvail := b.Availability[key]

	velocity := Slope(progression, currentWindow)

	volatility, trend := 0.0, TrendUnknown
	if len(progression) >= MinTargetPoints {
		recent := progression[max(0, len(progression)-recentWindow):]
		vals := make([]float64, len(recent))
		for i, p := range recent {
			vals[i] = float64(p.Total)
		}
		volatility = analyze.StdDev(vals)
		first, last := vals[0], vals[len(vals)-1]
		switch {
		case last < first-1:
			trend = TrendDeclining
		case last > first+1:
			trend = TrendIncreasing
		default:
			trend = TrendStable
		}
	}

	m := Metrics{
		CheckIn:              checkIn,
		CurrentAvailability:  current,
		ExpectedAvailability: defaultExpectedAvailability,
		Velocity:             velocity,
		ExpectedVelocity:     defaultExpectedVelocity,
		DaysToArrival:        dta,
		Volatility:           volatility,
		Trend:                trend,
		Flags:                []string{},
	}
	if hasVel {
		m.ExpectedVelocity = velBase.Median
	}
	if hasAvail {
		m.ExpectedAvailability = availBase.Median
	}

	avail := float64(current)
	if hasVel && velocity > velBase.P75 && dta < 30 {
		m.Flags = append(m.Flags, FlagSlowPickup)
	}
	if hasVel && velocity < velBase.P25 && dta > 45 {
		m.Flags = append(m.Flags, FlagFastPickup)
	}
	if hasAvail && avail > availBase.P75 && dta < 21 {
		m.Flags = append(m.Flags, FlagHighAvailability)
	}
	if hasAvail && avail < availBase.P25 && dta > 30 {
		m.Flags = append(m.Flags, FlagEarlySellout)
	}
	if trend == TrendStable && dta < 14 && current > 2 {
		m.Flags = append(m.Flags, FlagStalledPickup)
	}
	if volatility > erraticVolatility {
		m.Flags = append(m.Flags, FlagErraticPickup)
	}
	return m
}

// Detect trains on rows before cutoff and scores every check-in in
// [cutoff+1, cutoff+days] using only rows observed on or before cutoff.
// Only dates carrying at least one issue flag are returned, ordered by
// check-in date.
func Detect(records []model.SnapshotRecord, cutoff time.Time, days int) *Report {
	cutoff = model.Day(cutoff)
	baselines := BuildHistoricalBaselines(records, cutoff)

	start := cutoff.AddDate(0, 0, 1)
	end := cutoff.AddDate(0, 0, days)

	targets := make(map[time.Time][]model.SnapshotRecord)
	for _, r := range records {
		if r.CheckIn.Before(start) || r.CheckIn.After(end) || r.ParseDate.After(cutoff) {
			continue
		}
		targets[r.CheckIn] = append(targets[r.CheckIn], r)
	}

	checkIns := make([]time.Time, 0, len(targets))
	for ci := range targets {
		checkIns = append(checkIns, ci)
	}
	sort.Slice(checkIns, func(i, j int) bool { return checkIns[i].Before(checkIns[j]) })

	report := &Report{
		Cutoff:              cutoff,
		WindowDays:          days,
		VelocityBuckets:     len(baselines.Velocity),
		AvailabilityBuckets: len(baselines.Availability),
		Results:             []Metrics{},
	}
	for _, ci := range checkIns {
		prog := Progression(targets[ci])
		if len(prog) < MinTargetPoints {
			continue
		}
		report.Candidates++
		m := Analyze(ci, prog, baselines, cutoff)
		if len(m.Flags) == 0 || m.HasFlag(FlagNoData) {
			continue
		}
		report.Results = append(report.Results, m)
	}
	return report
}

// FindAnomalyDates loads src and runs Detect over it.
func FindAnomalyDates(ctx context.Context, src source.Source, cutoff time.Time, days int) (*Report, error) {
	if days <= 0 {
		return nil, fmt.Errorf("future window must be positive, got %d days", days)
	}
	batch, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", src.Describe(), err)
	}
	return Detect(batch.Records, cutoff, days), nil
}

// ByDaysToArrival sorts results by days to arrival, then check-in.
func ByDaysToArrival(results []Metrics) []Metrics {
	out := make([]Metrics, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysToArrival != out[j].DaysToArrival {
			return out[i].DaysToArrival < out[j].DaysToArrival
		}
		return out[i].CheckIn.Before(out[j].CheckIn)
	})
	return out
}
