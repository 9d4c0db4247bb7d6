package engine

import (
	"sort"
	"time"

	"github.com/derickschaefer/pickup/internal/analyze"
	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/transform"
	"github.com/derickschaefer/pickup/internal/util"
)

// Messages returned with empty results.
const (
	MsgNoSnapshots = "No snapshots available for this check-in date"
	MsgNoData      = "No data for requested check-in date."
)

// ProgressionPoint is one observation date of a check-in's progression,
// scored against the smoothed baseline.
type ProgressionPoint struct {
	ParseDate string  `json:"parse_date"`
	Lead      int     `json:"lead"`
	Observed  int     `json:"observed"`
	Baseline  float64 `json:"baseline"`
	Lo        float64 `json:"lo"`
	Hi        float64 `json:"hi"`
	Z         float64 `json:"z"`
	Flag      string  `json:"flag"`
}

// Progression is the progression of one check-in date. An empty Points
// list comes with a Message and is not an error.
type Progression struct {
	CheckIn string             `json:"check_in"`
	Weekday *int               `json:"weekday,omitempty"`
	Z       *float64           `json:"z,omitempty"`
	Points  []ProgressionPoint `json:"points"`
	Message string             `json:"message,omitempty"`
}

// SeriesResult holds several progressions in chronological order of
// check-in plus the sorted union of their observation dates.
type SeriesResult struct {
	Labels []string      `json:"labels"`
	Series []Progression `json:"series"`
}

// CurveResult is the anomaly score at the starting lead and the predicted
// curve from there to check-in.
type CurveResult struct {
	CheckIn   string                `json:"check_in"`
	Weekday   int                   `json:"weekday"`
	StartLead int                   `json:"start_lead"`
	Anomaly   analyze.AnomalyResult `json:"anomaly"`
	Points    []analyze.CurvePoint  `json:"points"`
	Message   string                `json:"message,omitempty"`
}

// Progression builds the progression of q.CheckIn from that check-in's own
// rows observed on or before it: for each observation date the latest
// re-scrape containing the check-in is used, rooms are deduplicated by
// maximum and clamped, and the total is scored against the baseline with
// bands at ± q.Z × scale.
func (m *Model) Progression(q ProgressionQuery) Progression {
	ci := q.CheckIn
	out := Progression{CheckIn: util.FormatDate(ci), Points: []ProgressionPoint{}}

	var subset []model.SnapshotRecord
	for _, r := range m.byCheckIn[ci] {
		if !r.ParseDate.After(ci) {
			subset = append(subset, r)
		}
	}
	if len(subset) == 0 {
		out.Message = MsgNoSnapshots
		return out
	}

	totals := transform.AggregateTotals(transform.LatestSnapshotPerParseDay(subset))
	days := make([]time.Time, 0, len(totals))
	for k := range totals {
		days = append(days, k.Observed)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	wd := model.WeekdayOf(ci)
	z := q.Z
	out.Weekday, out.Z = &wd, &z
	for _, pd := range days {
		obs := totals[model.TotalsKey{CheckIn: ci, Observed: pd}]
		lead := model.DaysBetween(pd, ci)
		ar := analyze.EvaluateAnomaly(obs, m.baseline, lead, wd, m.opts.ZThreshold)
		out.Points = append(out.Points, ProgressionPoint{
			ParseDate: util.FormatDate(pd),
			Lead:      lead,
			Observed:  obs,
			Baseline:  ar.Baseline,
			Lo:        ar.Baseline - z*ar.Scale,
			Hi:        ar.Baseline + z*ar.Scale,
			Z:         ar.ZScore,
			Flag:      ar.Flag,
		})
	}
	return out
}

// Series selects the check-in dates within [q.Start, q.End], keeps the
// q.Limit most recent and returns their progressions oldest first.
func (m *Model) Series(q SeriesQuery) SeriesResult {
	var picked []time.Time
	for i := len(m.checkIns) - 1; i >= 0 && len(picked) < q.Limit; i-- {
		ci := m.checkIns[i]
		if !q.Start.IsZero() && ci.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && ci.After(q.End) {
			continue
		}
		picked = append(picked, ci)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].Before(picked[j]) })

	res := SeriesResult{Labels: []string{}, Series: make([]Progression, 0, len(picked))}
	seen := make(map[string]bool)
	for _, ci := range picked {
		p := m.Progression(ProgressionQuery{CheckIn: ci, Z: q.Z})
		for _, pt := range p.Points {
			if !seen[pt.ParseDate] {
				seen[pt.ParseDate] = true
				res.Labels = append(res.Labels, pt.ParseDate)
			}
		}
		res.Series = append(res.Series, p)
	}
	sort.Strings(res.Labels)
	return res
}

// Anomaly scores the lead-time total of checkIn at lead. An unobserved
// (check-in, lead) pair is scored as 0.
func (m *Model) Anomaly(checkIn time.Time, lead int) analyze.AnomalyResult {
	observed := m.series[model.LeadKey{CheckIn: checkIn, Lead: lead}]
	return analyze.EvaluateAnomaly(observed, m.baseline, lead, model.WeekdayOf(checkIn), m.opts.ZThreshold)
}

// Curve scores q.CheckIn at the starting lead and predicts its curve down to
// lead 0. Without an explicit lead the largest observed lead is used; when
// the check-in has no lead-time data at all the result carries MsgNoData.
func (m *Model) Curve(q CurveQuery) CurveResult {
	out := CurveResult{
		CheckIn: util.FormatDate(q.CheckIn),
		Weekday: model.WeekdayOf(q.CheckIn),
		Points:  []analyze.CurvePoint{},
	}
	if q.HasLead {
		out.StartLead = q.Lead
		out.Points = analyze.PredictCurve(m.series, m.pickup, q.CheckIn, q.Lead)
	} else {
		points, lead, ok := analyze.PredictFromLatest(m.series, m.pickup, q.CheckIn)
		if !ok {
			out.Message = MsgNoData
			return out
		}
		out.StartLead, out.Points = lead, points
	}
	out.Anomaly = m.Anomaly(q.CheckIn, out.StartLead)
	return out
}
