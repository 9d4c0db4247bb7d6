package analyze

import (
	"github.com/derickschaefer/pickup/internal/model"
)

// DefaultZThreshold is the |z| above which an observation is flagged.
const DefaultZThreshold = 2.0

// Flag values for AnomalyResult.Flag.
const (
	FlagLow    = "low"
	FlagHigh   = "high"
	FlagNormal = "normal"
)

// AnomalyResult scores one observed total against its baseline bucket.
type AnomalyResult struct {
	Observed int     `json:"observed"`
	Baseline float64 `json:"baseline"`
	Scale    float64 `json:"scale"`
	ZScore   float64 `json:"z_score"`
	Flag     string  `json:"flag"`
}

// Lookup resolves the statistics for (lead, weekday). When the exact bucket
// is missing it falls back to the same lead on the lowest weekday index that
// has one, and finally to median 0, scale 1. The boolean reports whether
// any bucket was found.
func (b Baseline) Lookup(lead, weekday int) (BaselineStat, bool) {
	if st, ok := b[model.BucketKey{Lead: lead, Weekday: weekday}]; ok {
		return st, true
	}
	for wd := 0; wd < 7; wd++ {
		if st, ok := b[model.BucketKey{Lead: lead, Weekday: wd}]; ok {
			return st, true
		}
	}
	return BaselineStat{Median: 0, Scale: 1}, false
}

// EvaluateAnomaly computes z = (observed − median)/scale for the bucket of
// (lead, weekday) and classifies it against threshold. Both comparisons are
// strict, so |z| == threshold is "normal". threshold is used as given;
// callers supply DefaultZThreshold when none was configured.
func EvaluateAnomaly(observed int, baseline Baseline, lead, weekday int, threshold float64) AnomalyResult {
	st, _ := baseline.Lookup(lead, weekday)

	scale := st.Scale
	if scale <= 0 {
		scale = 1.0
	}
	z := (float64(observed) - st.Median) / scale

	flag := FlagNormal
	switch {
	case z < -threshold:
		flag = FlagLow
	case z > threshold:
		flag = FlagHigh
	}
	return AnomalyResult{
		Observed: observed,
		Baseline: st.Median,
		Scale:    st.Scale,
		ZScore:   z,
		Flag:     flag,
	}
}
