package analyze

import (
	"sort"

	"github.com/derickschaefer/pickup/internal/model"
)

// DefaultSmoothingWindow is the ± lead-time half-width used by SmoothBaseline.
const DefaultSmoothingWindow = 3

// BaselineStat is the robust centre and spread of one (lead, weekday) bucket.
type BaselineStat struct {
	Median float64 `json:"median"`
	Scale  float64 `json:"scale"` // 1.4826 × MAD, never below 1.0
	Count  int     `json:"count"`
}

// Baseline maps (lead, weekday) buckets to their statistics.
type Baseline map[model.BucketKey]BaselineStat

// Keys returns the bucket keys sorted by lead, then weekday.
func (b Baseline) Keys() []model.BucketKey {
	keys := make([]model.BucketKey, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Leads returns the distinct leads present, ascending.
func (b Baseline) Leads() []int {
	seen := make(map[int]bool)
	var leads []int
	for k := range b {
		if !seen[k.Lead] {
			seen[k.Lead] = true
			leads = append(leads, k.Lead)
		}
	}
	sort.Ints(leads)
	return leads
}

// ComputeBaseline groups totals by (lead, weekday of check-in) and computes
// the median and MAD-derived scale of each bucket. A bucket without variance
// gets scale 1.0.
func ComputeBaseline(series model.LeadSeries) Baseline {
	byKey := make(map[model.BucketKey][]int)
	for k, total := range series {
		bk := model.BucketKey{Lead: k.Lead, Weekday: model.WeekdayOf(k.CheckIn)}
		byKey[bk] = append(byKey[bk], total)
	}

	out := make(Baseline, len(byKey))
	for key, values := range byKey {
		vals := toFloats(values)
		med := Median(vals)
		scale := madScale * MAD(vals, med)
		if scale == 0 {
			scale = 1.0
		}
		out[key] = BaselineStat{Median: med, Scale: scale, Count: len(vals)}
	}
	return out
}

// SmoothBaseline replaces each bucket's median and scale with a
// count-weighted tri-cube average over the buckets within ±window leads on
// the same weekday. Every lead in the raw table is combined with every
// weekday in the raw table; combinations with no neighbour in range are
// absent from the result. Counts are summed across the window.
func SmoothBaseline(raw Baseline, window int) Baseline {
	leads := make(map[int]bool)
	weekdays := make(map[int]bool)
	for k := range raw {
		leads[k.Lead] = true
		weekdays[k.Weekday] = true
	}

	// 1e-9 keeps the outermost neighbours at a tiny positive weight.
	span := float64(window) + 1e-9

	smoothed := make(Baseline)
	for wd := range weekdays {
		for lead := range leads {
			var wsum, medSum, scaleSum float64
			total, found := 0, false
			for dl := -window; dl <= window; dl++ {
				st, ok := raw[model.BucketKey{Lead: lead + dl, Weekday: wd}]
				if !ok {
					continue
				}
				found = true
				abs := dl
				if abs < 0 {
					abs = -abs
				}
				w := tricube(float64(abs)/span) * float64(st.Count)
				wsum += w
				medSum += w * st.Median
				scaleSum += w * st.Scale
				total += st.Count
			}
			if !found || wsum == 0 {
				continue
			}
			smoothed[model.BucketKey{Lead: lead, Weekday: wd}] = BaselineStat{
				Median: medSum / wsum,
				Scale:  max(1.0, scaleSum/wsum),
				Count:  total,
			}
		}
	}
	return smoothed
}
