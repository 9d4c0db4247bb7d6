package engine

import (
	"github.com/derickschaefer/pickup/internal/model"
)

// DefaultSummaryRows is how many baseline buckets a summary lists.
const DefaultSummaryRows = 10

// BaselineRow is one (lead, weekday) bucket of the smoothed baseline.
type BaselineRow struct {
	Lead    int     `json:"lead"`
	Weekday int     `json:"weekday"`
	Day     string  `json:"day"`
	Median  float64 `json:"median"`
	Scale   float64 `json:"scale"`
	Count   int     `json:"count"`
}

// PickupRow is one (lead, weekday) bucket of the pickup table.
type PickupRow struct {
	Lead    int     `json:"lead"`
	Weekday int     `json:"weekday"`
	Day     string  `json:"day"`
	Delta   float64 `json:"delta"`
}

// BaselineSummary is the overview printed by `pickup baseline`: how many
// lead times have a baseline, the first buckets in (lead, weekday) order and,
// when a check-in was requested, its anomaly score and predicted curve.
type BaselineSummary struct {
	Leads   int           `json:"leads"`
	Buckets int           `json:"buckets"`
	Rows    []BaselineRow `json:"rows"`
	Curve   *CurveResult  `json:"curve,omitempty"`
}

// BaselineRows lists the smoothed baseline in (lead, weekday) order. limit
// <= 0 returns every bucket.
func (m *Model) BaselineRows(limit int) []BaselineRow {
	keys := m.baseline.Keys()
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	rows := make([]BaselineRow, 0, len(keys))
	for _, k := range keys {
		st := m.baseline[k]
		rows = append(rows, BaselineRow{
			Lead:    k.Lead,
			Weekday: k.Weekday,
			Day:     model.WeekdayName(k.Weekday),
			Median:  st.Median,
			Scale:   st.Scale,
			Count:   st.Count,
		})
	}
	return rows
}

// PickupRows lists the pickup table in (lead, weekday) order, optionally
// restricted to leads <= maxLead (maxLead < 0 keeps everything).
func (m *Model) PickupRows(maxLead int) []PickupRow {
	var rows []PickupRow
	for _, k := range m.pickup.Keys() {
		if maxLead >= 0 && k.Lead > maxLead {
			continue
		}
		rows = append(rows, PickupRow{
			Lead:    k.Lead,
			Weekday: k.Weekday,
			Day:     model.WeekdayName(k.Weekday),
			Delta:   m.pickup[k],
		})
	}
	return rows
}

// Summary builds the baseline overview. When curve is non-nil the check-in
// it names is scored and its curve predicted as well.
func (m *Model) Summary(limit int, curve *CurveQuery) BaselineSummary {
	s := BaselineSummary{
		Leads:   len(m.baseline.Leads()),
		Buckets: len(m.baseline),
		Rows:    m.BaselineRows(limit),
	}
	if curve != nil {
		c := m.Curve(*curve)
		s.Curve = &c
	}
	return s
}
