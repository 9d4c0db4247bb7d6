package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/source"
	"github.com/derickschaefer/pickup/internal/store"
	"github.com/derickschaefer/pickup/internal/util"
	"github.com/derickschaefer/pickup/internal/velocity"
)

// maxCurveRows caps the predicted curve listed under a baseline summary.
const maxCurveRows = 20

// section is one titled table. Tables, CSV and Markdown all render from the
// same sections; title lines are dropped by the delimited formats.
type section struct {
	title  []string
	header []string
	rows   [][]string
	right  map[int]bool // right-aligned (numeric) columns
}

func (s section) alignments() []int {
	out := make([]int, len(s.header))
	for i := range out {
		out[i] = tablewriter.ALIGN_LEFT
		if s.right[i] {
			out[i] = tablewriter.ALIGN_RIGHT
		}
	}
	return out
}

func numeric(cols ...int) map[int]bool {
	m := make(map[int]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

// tabulate converts a result into sections. A nil slice with no error means
// the kind has no tabular form and callers should fall back to JSON.
func tabulate(result *model.Result) ([]section, error) {
	switch result.Kind {
	case model.KindBaseline:
		s, ok := result.Data.(*engine.BaselineSummary)
		if !ok {
			return nil, fmt.Errorf("unexpected data type for baseline")
		}
		return baselineSections(s), nil
	case model.KindPickup:
		rows, ok := result.Data.([]engine.PickupRow)
		if !ok {
			return nil, fmt.Errorf("unexpected data type for pickup")
		}
		return []section{pickupSection(rows)}, nil
	case model.KindCurve:
		c, ok := result.Data.(*engine.CurveResult)
		if !ok {
			return nil, fmt.Errorf("unexpected data type for curve")
		}
		return curveSections(c, 0), nil
	case model.KindProgression:
		p, ok := result.Data.(*engine.Progression)
		if !ok {
			return nil, fmt.Errorf("unexpected data type for progression")
		}
		return []section{progressionSection(p)}, nil
	case model.KindSeries:
		s, ok := result.Data.(*engine.SeriesResult)
		if !ok {
			return nil, fmt.Errorf("unexpected data type for series")
		}
		return []section{seriesSection(s)}, nil
	case model.KindVelocity:
		r, ok := result.Data.(*velocity.Report)
		if !ok {
			return nil, fmt.Errorf("unexpected data type for velocity")
		}
		return []section{velocitySection(r)}, nil
	case model.KindIngest:
		runs, ok := result.Data.([]store.IngestRun)
		if !ok {
			return nil, fmt.Errorf("unexpected data type for ingest")
		}
		return []section{ingestSection(runs)}, nil
	case model.KindSchema:
		s, ok := result.Data.(*source.SchemaSurvey)
		if !ok {
			return nil, fmt.Errorf("unexpected data type for schema")
		}
		return schemaSections(s), nil
	default:
		return nil, nil
	}
}

// ─── Baseline / Pickup / Curve ────────────────────────────────────────────────

func baselineSections(s *engine.BaselineSummary) []section {
	bl := section{
		title:  []string{fmt.Sprintf("Computed baselines for %d lead times (%d buckets).", s.Leads, s.Buckets)},
		header: []string{"LEAD", "WEEKDAY", "MEDIAN", "SCALE (MAD)", "N"},
		right:  numeric(0, 2, 3, 4),
	}
	for _, r := range s.Rows {
		bl.rows = append(bl.rows, []string{
			strconv.Itoa(r.Lead),
			fmt.Sprintf("%d %s", r.Weekday, r.Day),
			fixed(r.Median, 1),
			fixed(r.Scale, 1),
			strconv.Itoa(r.Count),
		})
	}
	out := []section{bl}
	if s.Curve != nil {
		out = append(out, curveSections(s.Curve, maxCurveRows)...)
	}
	return out
}

func pickupSection(rows []engine.PickupRow) section {
	s := section{
		header: []string{"LEAD", "WEEKDAY", "PICKUP"},
		right:  numeric(0, 2),
	}
	for _, r := range rows {
		s.rows = append(s.rows, []string{
			strconv.Itoa(r.Lead),
			fmt.Sprintf("%d %s", r.Weekday, r.Day),
			formatValue(r.Delta),
		})
	}
	return s
}

// curveSections lists the anomaly line and the predicted curve. limit > 0
// caps the number of curve points shown.
func curveSections(c *engine.CurveResult, limit int) []section {
	if c.Message != "" {
		return []section{{title: []string{c.Message}}}
	}
	a := c.Anomaly
	s := section{
		title: []string{
			fmt.Sprintf("Anomaly for %s at lead %d:", c.CheckIn, c.StartLead),
			fmt.Sprintf("  observed=%d baseline=%.1f scale=%.1f z=%.2f flag=%s",
				a.Observed, a.Baseline, a.Scale, a.ZScore, a.Flag),
			"",
			"Predicted availability curve (lead -> expected):",
		},
		header: []string{"LEAD", "EXPECTED"},
		right:  numeric(0, 1),
	}
	points := c.Points
	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	for _, p := range points {
		s.rows = append(s.rows, []string{strconv.Itoa(p.Lead), fixed(p.Expected, 1)})
	}
	return []section{s}
}

// ─── Progression / Series ─────────────────────────────────────────────────────

func progressionSection(p *engine.Progression) section {
	if len(p.Points) == 0 {
		return section{title: []string{fmt.Sprintf("%s: %s", p.CheckIn, p.Message)}}
	}
	title := "Check-in " + p.CheckIn
	if p.Weekday != nil {
		title += " (" + model.WeekdayName(*p.Weekday) + ")"
	}
	if p.Z != nil {
		title += fmt.Sprintf(", band ±%s×scale", formatValue(*p.Z))
	}
	s := section{
		title:  []string{title},
		header: []string{"PARSE DATE", "LEAD", "OBSERVED", "BASELINE", "LO", "HI", "Z", "FLAG"},
		right:  numeric(1, 2, 3, 4, 5, 6),
	}
	for _, pt := range p.Points {
		s.rows = append(s.rows, []string{
			pt.ParseDate,
			strconv.Itoa(pt.Lead),
			strconv.Itoa(pt.Observed),
			fixed(pt.Baseline, 1),
			fixed(pt.Lo, 1),
			fixed(pt.Hi, 1),
			fixed(pt.Z, 2),
			pt.Flag,
		})
	}
	return s
}

func seriesSection(r *engine.SeriesResult) section {
	s := section{
		title:  []string{fmt.Sprintf("%d check-in dates over %d observation dates.", len(r.Series), len(r.Labels))},
		header: []string{"CHECK-IN", "PARSE DATE", "LEAD", "OBSERVED", "BASELINE", "Z", "FLAG"},
		right:  numeric(2, 3, 4, 5),
	}
	for _, p := range r.Series {
		for _, pt := range p.Points {
			s.rows = append(s.rows, []string{
				p.CheckIn,
				pt.ParseDate,
				strconv.Itoa(pt.Lead),
				strconv.Itoa(pt.Observed),
				fixed(pt.Baseline, 1),
				fixed(pt.Z, 2),
				pt.Flag,
			})
		}
	}
	return s
}

// ─── Velocity ─────────────────────────────────────────────────────────────────

func velocitySection(r *velocity.Report) section {
	s := section{
		title: []string{
			fmt.Sprintf("Cutoff %s, next %d days: %d candidates, %d flagged.",
				util.FormatDate(r.Cutoff), r.WindowDays, r.Candidates, len(r.Results)),
			fmt.Sprintf("Historical buckets: %d velocity, %d availability.",
				r.VelocityBuckets, r.AvailabilityBuckets),
		},
		header: []string{"CHECK-IN", "DTA", "AVAIL", "EXP AVAIL", "VELOCITY", "EXP VELOCITY", "VOLATILITY", "TREND", "FLAGS"},
		right:  numeric(1, 2, 3, 4, 5, 6),
	}
	for _, m := range r.Results {
		s.rows = append(s.rows, []string{
			util.FormatDate(m.CheckIn),
			strconv.Itoa(m.DaysToArrival),
			strconv.Itoa(m.CurrentAvailability),
			fixed(m.ExpectedAvailability, 1),
			fixed(m.Velocity, 2),
			fixed(m.ExpectedVelocity, 2),
			fixed(m.Volatility, 2),
			m.Trend,
			strings.Join(m.Flags, ","),
		})
	}
	return s
}

// ─── Ingest history ───────────────────────────────────────────────────────────

func ingestSection(runs []store.IngestRun) section {
	s := section{
		header: []string{"LOADED", "COMMAND", "SOURCE", "HASH", "ROWS", "SKIPPED", "SKIPPED %", "DURATION"},
		right:  numeric(4, 5, 6, 7),
	}
	for _, r := range runs {
		s.rows = append(s.rows, []string{
			r.LoadedAt.Local().Format("2006-01-02 15:04:05"),
			r.Command,
			r.Source,
			r.Hash,
			strconv.Itoa(r.Rows),
			strconv.Itoa(r.Skipped),
			fixed(r.SkippedPct(), 2),
			fmt.Sprintf("%dms", r.DurationMs),
		})
	}
	return s
}

// ─── Schema survey ────────────────────────────────────────────────────────────

func schemaSections(sv *source.SchemaSurvey) []section {
	fields := section{
		title:  []string{fmt.Sprintf("File: %s (%d records sampled)", sv.Source, sv.Sampled)},
		header: []string{"FIELD", "TYPES", "PRESENT", "EXAMPLES"},
		right:  numeric(2),
	}
	for _, f := range sv.Fields {
		ex := make([]string, len(f.Examples))
		for i, e := range f.Examples {
			ex[i] = fmt.Sprint(e)
		}
		fields.rows = append(fields.rows, []string{
			f.Name,
			strings.Join(f.Types, ", "),
			strconv.Itoa(f.Present),
			truncate(strings.Join(ex, " | "), 60),
		})
	}

	insights := section{
		header: []string{"INSIGHT", "VALUE"},
	}
	add := func(k, v string) { insights.rows = append(insights.rows, []string{k, v}) }
	add("Hotels", strings.Join(sv.Hotels, "; "))
	if sv.FirstCheckIn != "" {
		add("Check-in range", sv.FirstCheckIn+" .. "+sv.LastCheckIn)
		add("Unique check-ins", strconv.Itoa(sv.CheckIns))
	}
	if p := sv.Price; p != nil {
		add("Price (min / max / avg)", fmt.Sprintf("%s / %s / %.2f", formatValue(p.Min), formatValue(p.Max), p.Mean))
	}
	if a := sv.Availability; a != nil {
		add("Availability (min / max / avg)", fmt.Sprintf("%s / %s / %.2f", formatValue(a.Min), formatValue(a.Max), a.Mean))
	}
	add("Sold out records", fmt.Sprintf("%d (%.1f%%)", sv.SoldOut, pct(sv.SoldOut, sv.Sampled)))

	out := []section{fields, insights}
	for _, tally := range []struct {
		name   string
		counts []source.Count
	}{{"ROOM TYPE", sv.RoomTypes}, {"MEAL", sv.Meals}} {
		if len(tally.counts) == 0 {
			continue
		}
		s := section{header: []string{tally.name, "RECORDS", "SHARE %"}, right: numeric(1, 2)}
		for _, c := range tally.counts {
			s.rows = append(s.rows, []string{c.Label, strconv.Itoa(c.Count), fixed(c.Pct, 1)})
		}
		out = append(out, s)
	}
	return out
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// ─── JSONL records ────────────────────────────────────────────────────────────

// progressionRecord is one JSONL line of a progression or series.
type progressionRecord struct {
	CheckIn string `json:"check_in"`
	engine.ProgressionPoint
}

// curveRecord is one JSONL line of a predicted curve.
type curveRecord struct {
	CheckIn  string  `json:"check_in"`
	Lead     int     `json:"lead"`
	Expected float64 `json:"expected"`
}

// records flattens a payload into its natural JSONL rows.
func records(result *model.Result) ([]interface{}, bool) {
	var out []interface{}
	switch d := result.Data.(type) {
	case *engine.BaselineSummary:
		for _, r := range d.Rows {
			out = append(out, r)
		}
	case []engine.PickupRow:
		for _, r := range d {
			out = append(out, r)
		}
	case *engine.CurveResult:
		for _, p := range d.Points {
			out = append(out, curveRecord{CheckIn: d.CheckIn, Lead: p.Lead, Expected: p.Expected})
		}
	case *engine.Progression:
		for _, p := range d.Points {
			out = append(out, progressionRecord{CheckIn: d.CheckIn, ProgressionPoint: p})
		}
	case *engine.SeriesResult:
		for _, s := range d.Series {
			for _, p := range s.Points {
				out = append(out, progressionRecord{CheckIn: s.CheckIn, ProgressionPoint: p})
			}
		}
	case *velocity.Report:
		for _, m := range d.Results {
			out = append(out, m)
		}
	case []store.IngestRun:
		for _, r := range d {
			out = append(out, r)
		}
	case *source.SchemaSurvey:
		for _, f := range d.Fields {
			out = append(out, f)
		}
	default:
		return nil, false
	}
	return out, true
}
