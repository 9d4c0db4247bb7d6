// Package transform implements the stateless reduction operators that turn
// raw snapshot rows into totals and lead-time series. Each operator is a pure
// function; no side effects, no I/O.
package transform

import (
	"sort"
	"time"

	"github.com/derickschaefer/pickup/internal/model"
)

// ─── Latest Snapshot ──────────────────────────────────────────────────────────

// LatestSnapshotPerParseDay keeps only the rows belonging to the last
// re-scrape of each observation date: rows whose CreatedAt equals the maximum
// CreatedAt seen for their ParseDate. Input order is preserved.
func LatestSnapshotPerParseDay(records []model.SnapshotRecord) []model.SnapshotRecord {
	latest := make(map[time.Time]time.Time)
	for _, r := range records {
		cur, ok := latest[r.ParseDate]
		if !ok || r.CreatedAt.After(cur) {
			latest[r.ParseDate] = r.CreatedAt
		}
	}

	out := make([]model.SnapshotRecord, 0, len(records))
	for _, r := range records {
		if r.CreatedAt.Equal(latest[r.ParseDate]) {
			out = append(out, r)
		}
	}
	return out
}

// ─── Totals ───────────────────────────────────────────────────────────────────

// AggregateTotals reduces rows to total availability per (check-in,
// observation date). Duplicate rows for a room (meal-plan variants) collapse
// to the room's maximum availability; each room is clamped at zero before
// summing, so every total is >= 0.
func AggregateTotals(records []model.SnapshotRecord) model.Totals {
	perRoom := make(map[model.RoomKey]int)
	for _, r := range records {
		key := model.RoomKey{CheckIn: r.CheckIn, Observed: r.ParseDate, RoomID: r.RoomID}
		prev, ok := perRoom[key]
		if !ok || r.Availability > prev {
			perRoom[key] = r.Availability
		}
	}

	totals := make(model.Totals)
	for k, avail := range perRoom {
		tk := model.TotalsKey{CheckIn: k.CheckIn, Observed: k.Observed}
		totals[tk] += max(0, avail)
	}
	return totals
}

// ─── Lead Time ────────────────────────────────────────────────────────────────

// ToLeadTime reindexes totals by lead time L = check-in − observation date in
// days. Observations taken after check-in (L < 0) are dropped.
func ToLeadTime(totals model.Totals) model.LeadSeries {
	series := make(model.LeadSeries, len(totals))
	for k, total := range totals {
		lead := model.DaysBetween(k.Observed, k.CheckIn)
		if lead < 0 {
			continue
		}
		series[model.LeadKey{CheckIn: k.CheckIn, Lead: lead}] = total
	}
	return series
}

// ─── Trajectories ─────────────────────────────────────────────────────────────

// Trajectories groups a lead series by check-in date: check-in → lead → total.
func Trajectories(series model.LeadSeries) map[time.Time]map[int]int {
	out := make(map[time.Time]map[int]int)
	for k, total := range series {
		traj, ok := out[k.CheckIn]
		if !ok {
			traj = make(map[int]int)
			out[k.CheckIn] = traj
		}
		traj[k.Lead] = total
	}
	return out
}

// LeadsDescending returns the leads of a trajectory sorted from the largest
// (earliest observation) to the smallest.
func LeadsDescending(traj map[int]int) []int {
	leads := make([]int, 0, len(traj))
	for l := range traj {
		leads = append(leads, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(leads)))
	return leads
}

// MaxLead returns the largest lead observed for checkIn, or false when the
// series holds nothing for that date.
func MaxLead(series model.LeadSeries, checkIn time.Time) (int, bool) {
	best, found := 0, false
	for k := range series {
		if !k.CheckIn.Equal(checkIn) {
			continue
		}
		if !found || k.Lead > best {
			best, found = k.Lead, true
		}
	}
	return best, found
}
