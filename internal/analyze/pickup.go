package analyze

import (
	"sort"

	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/transform"
)

// Pickup maps (lead, weekday) to the median number of rooms picked up across
// the step from lead L to L−1, i.e. the median of A(L) − A(L−1).
type Pickup map[model.BucketKey]float64

// Keys returns the bucket keys sorted by lead, then weekday.
func (p Pickup) Keys() []model.BucketKey {
	keys := make([]model.BucketKey, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// AtLead returns the pickup for (lead, weekday), falling back to the median
// across every weekday at that lead, and finally to 0.
func (p Pickup) AtLead(lead, weekday int) float64 {
	if d, ok := p[model.BucketKey{Lead: lead, Weekday: weekday}]; ok {
		return d
	}
	var alt []float64
	for k, d := range p {
		if k.Lead == lead {
			alt = append(alt, d)
		}
	}
	if len(alt) == 0 {
		return 0
	}
	return Median(alt)
}

// ComputePickup walks every check-in trajectory from the largest lead down
// and collects A(L) − A(L−1) for each pair of leads exactly one day apart,
// bucketed at (L, weekday). Steps across a missing observation day never
// contribute.
func ComputePickup(series model.LeadSeries) Pickup {
	deltas := make(map[model.BucketKey][]float64)

	for checkIn, traj := range transform.Trajectories(series) {
		wd := model.WeekdayOf(checkIn)
		leads := transform.LeadsDescending(traj)
		for i := 1; i < len(leads); i++ {
			prev, cur := leads[i-1], leads[i]
			if prev != cur+1 {
				continue
			}
			key := model.BucketKey{Lead: prev, Weekday: wd}
			deltas[key] = append(deltas[key], float64(traj[prev]-traj[cur]))
		}
	}

	out := make(Pickup, len(deltas))
	for key, vals := range deltas {
		out[key] = Median(vals)
	}
	return out
}
