// Package analyze builds the statistical models behind pickup: robust
// baselines keyed by (lead, weekday), the pickup curve, anomaly scoring and
// the forward-rolled availability curve. All functions are pure; no I/O.
package analyze

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// madScale converts a median absolute deviation into a standard-deviation
// equivalent under normality.
const madScale = 1.4826

// ─── Math helpers ─────────────────────────────────────────────────────────────

// Median returns the median of vals, averaging the two middle values for an
// even count. Returns NaN for an empty slice. vals is not modified.
func Median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MAD returns the median absolute deviation of vals around center.
func MAD(vals []float64, center float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	dev := make([]float64, len(vals))
	for i, v := range vals {
		dev[i] = math.Abs(v - center)
	}
	return Median(dev)
}

// Quartiles returns the 25th and 75th percentiles of vals using the
// "exclusive" interpolation method (positions i*(n+1)/4). Requires at least
// two values; callers with fewer should use min/max.
func Quartiles(vals []float64) (p25, p75 float64) {
	n := len(vals)
	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)
	q := func(i int) float64 {
		m := n + 1
		j := i * m / 4
		if j < 1 {
			j = 1
		} else if j > n-1 {
			j = n - 1
		}
		delta := i*m - j*4
		return (sorted[j-1]*float64(4-delta) + sorted[j]*float64(delta)) / 4
	}
	return q(1), q(3)
}

// MinMax returns the smallest and largest of vals.
func MinMax(vals []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Slope fits y = a + b·x by ordinary least squares and returns b.
// Returns 0 when fewer than two distinct x values exist.
func Slope(xs, ys []float64) float64 {
	if len(xs) < 2 || len(xs) != len(ys) {
		return 0
	}
	distinct := false
	for _, x := range xs[1:] {
		if x != xs[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		return 0
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}

// StdDev returns the sample standard deviation of vals (n−1 denominator),
// or 0 when fewer than two values are given.
func StdDev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	return stat.StdDev(vals, nil)
}

// tricube is the kernel (1−u³)³ with u clamped into [0, 1].
func tricube(u float64) float64 {
	u = math.Min(1, math.Max(0, u))
	c := 1 - u*u*u
	return c * c * c
}

func toFloats(vals []int) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out
}
