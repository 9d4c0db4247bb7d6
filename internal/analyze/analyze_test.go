package analyze_test

import (
	"math"
	"testing"
	"time"

	"github.com/derickschaefer/pickup/internal/analyze"
	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/transform"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// twoRoomRecords splits each (lead, total) into two rooms observed at noon on
// checkIn − lead, mirroring how a PMS export lists a hotel's rooms.
func twoRoomRecords(checkIn time.Time, points [][2]int) []model.SnapshotRecord {
	var recs []model.SnapshotRecord
	for _, p := range points {
		lead, total := p[0], p[1]
		parse := checkIn.AddDate(0, 0, -lead)
		created := parse.Add(12 * time.Hour)
		r1 := total / 2
		recs = append(recs,
			model.SnapshotRecord{CheckIn: checkIn, ParseDate: parse, CreatedAt: created, RoomID: 1, Availability: r1},
			model.SnapshotRecord{CheckIn: checkIn, ParseDate: parse, CreatedAt: created, RoomID: 2, Availability: total - r1},
		)
	}
	return recs
}

// ─── Math helpers ─────────────────────────────────────────────────────────────

func TestMedian(t *testing.T) {
	if got := analyze.Median([]float64{5, 1, 3}); got != 3 {
		t.Errorf("odd median: expected 3, got %g", got)
	}
	if got := analyze.Median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Errorf("even median: expected 2.5, got %g", got)
	}
	if !math.IsNaN(analyze.Median(nil)) {
		t.Error("empty median should be NaN")
	}
}

func TestQuartilesExclusiveMethod(t *testing.T) {
	p25, p75 := analyze.Quartiles([]float64{4, 2, 1, 3})
	if !approxEqual(p25, 1.25, 1e-12) || !approxEqual(p75, 3.75, 1e-12) {
		t.Errorf("expected (1.25, 3.75), got (%g, %g)", p25, p75)
	}
	p25, p75 = analyze.Quartiles([]float64{1, 2, 3, 4, 5, 6, 7})
	if !approxEqual(p25, 2, 1e-12) || !approxEqual(p75, 6, 1e-12) {
		t.Errorf("expected (2, 6), got (%g, %g)", p25, p75)
	}
}

func TestSlopeAndStdDev(t *testing.T) {
	xs := []float64{0, 1, 2, 3}
	ys := []float64{10, 8, 6, 4}
	if got := analyze.Slope(xs, ys); !approxEqual(got, -2, 1e-9) {
		t.Errorf("Slope: expected -2, got %g", got)
	}
	if got := analyze.Slope([]float64{1, 1, 1}, []float64{1, 2, 3}); got != 0 {
		t.Errorf("Slope with constant x: expected 0, got %g", got)
	}
	if got := analyze.StdDev([]float64{1, 2, 3, 4, 5}); !approxEqual(got, math.Sqrt(2.5), 1e-9) {
		t.Errorf("StdDev: expected sqrt(2.5), got %g", got)
	}
	if got := analyze.StdDev([]float64{3}); got != 0 {
		t.Errorf("StdDev single value: expected 0, got %g", got)
	}
}

// ─── Baseline ─────────────────────────────────────────────────────────────────

func TestBaselineBucketExistsForEveryLead(t *testing.T) {
	lt := model.LeadSeries{
		{CheckIn: day("2025-05-20"), Lead: 10}: 6,
		{CheckIn: day("2025-05-21"), Lead: 11}: 3,
		{CheckIn: day("2025-05-27"), Lead: 10}: 8,
	}
	base := analyze.ComputeBaseline(lt)
	for k := range lt {
		found := false
		for bk := range base {
			if bk.Lead == k.Lead {
				found = true
			}
		}
		if !found {
			t.Errorf("no baseline bucket for lead %d", k.Lead)
		}
	}
	// 05-20 and 05-27 are both Tuesdays: one bucket, two samples.
	st := base[model.BucketKey{Lead: 10, Weekday: 1}]
	if st.Count != 2 || st.Median != 7 {
		t.Errorf("expected Tuesday lead-10 bucket median 7 n=2, got %+v", st)
	}
}

func TestBaselineMADScale(t *testing.T) {
	// Three Tuesdays at lead 5 with totals 10, 12, 20: median 12, MAD 2.
	lt := model.LeadSeries{
		{CheckIn: day("2025-05-06"), Lead: 5}: 10,
		{CheckIn: day("2025-05-13"), Lead: 5}: 12,
		{CheckIn: day("2025-05-20"), Lead: 5}: 20,
	}
	st := analyze.ComputeBaseline(lt)[model.BucketKey{Lead: 5, Weekday: 1}]
	if st.Median != 12 {
		t.Errorf("median: expected 12, got %g", st.Median)
	}
	if !approxEqual(st.Scale, 1.4826*2, 1e-9) {
		t.Errorf("scale: expected %g, got %g", 1.4826*2, st.Scale)
	}
}

func TestBaselineZeroVarianceScaleIsOne(t *testing.T) {
	lt := model.LeadSeries{
		{CheckIn: day("2025-05-06"), Lead: 2}: 4,
		{CheckIn: day("2025-05-13"), Lead: 2}: 4,
	}
	st := analyze.ComputeBaseline(lt)[model.BucketKey{Lead: 2, Weekday: 1}]
	if st.Scale != 1.0 {
		t.Errorf("expected scale 1.0 for zero variance, got %g", st.Scale)
	}
}

func TestSmoothBaselineWeights(t *testing.T) {
	raw := analyze.Baseline{
		{Lead: 0, Weekday: 0}: {Median: 10, Scale: 2, Count: 1},
		{Lead: 1, Weekday: 0}: {Median: 20, Scale: 4, Count: 1},
	}
	sm := analyze.SmoothBaseline(raw, 3)

	u := 1 / (3 + 1e-9)
	w1 := math.Pow(1-u*u*u, 3)
	want := (10 + w1*20) / (1 + w1)

	st, ok := sm[model.BucketKey{Lead: 0, Weekday: 0}]
	if !ok {
		t.Fatal("smoothed bucket (0, Mon) missing")
	}
	if !approxEqual(st.Median, want, 1e-9) {
		t.Errorf("smoothed median: expected %g, got %g", want, st.Median)
	}
	if st.Count != 2 {
		t.Errorf("smoothed count should sum the window: expected 2, got %d", st.Count)
	}
}

func TestSmoothBaselineDropsIsolatedCombinations(t *testing.T) {
	raw := analyze.Baseline{
		{Lead: 0, Weekday: 0}: {Median: 10, Scale: 0.5, Count: 3},
		{Lead: 5, Weekday: 1}: {Median: 2, Scale: 1, Count: 1},
	}
	sm := analyze.SmoothBaseline(raw, 3)
	if len(sm) != 2 {
		t.Fatalf("expected 2 smoothed buckets, got %d: %v", len(sm), sm)
	}
	if _, ok := sm[model.BucketKey{Lead: 5, Weekday: 0}]; ok {
		t.Error("(5, Mon) has no neighbour within ±3 and should be absent")
	}
	if st := sm[model.BucketKey{Lead: 0, Weekday: 0}]; st.Scale != 1.0 {
		t.Errorf("smoothed scale should be floored at 1.0, got %g", st.Scale)
	}
}

// ─── Pickup ───────────────────────────────────────────────────────────────────

func TestPickupGapGuard(t *testing.T) {
	ci := day("2025-05-13")
	lt := model.LeadSeries{
		{CheckIn: ci, Lead: 5}: 12,
		{CheckIn: ci, Lead: 3}: 10,
		{CheckIn: ci, Lead: 2}: 9,
	}
	p := analyze.ComputePickup(lt)
	wd := model.WeekdayOf(ci)
	if _, ok := p[model.BucketKey{Lead: 5, Weekday: wd}]; ok {
		t.Error("gapped 5→4 step must not contribute a delta")
	}
	if _, ok := p[model.BucketKey{Lead: 4, Weekday: wd}]; ok {
		t.Error("unobserved lead 4 must not appear")
	}
	if d, ok := p[model.BucketKey{Lead: 3, Weekday: wd}]; !ok || d != 1 {
		t.Errorf("3→2 delta: expected 1, got %g (%v)", d, ok)
	}
}

func TestPickupMedianAcrossCheckIns(t *testing.T) {
	lt := model.LeadSeries{
		{CheckIn: day("2025-05-06"), Lead: 1}: 10,
		{CheckIn: day("2025-05-06"), Lead: 0}: 9,
		{CheckIn: day("2025-05-13"), Lead: 1}: 10,
		{CheckIn: day("2025-05-13"), Lead: 0}: 6,
		{CheckIn: day("2025-05-20"), Lead: 1}: 10,
		{CheckIn: day("2025-05-20"), Lead: 0}: 2,
	}
	p := analyze.ComputePickup(lt)
	if got := p[model.BucketKey{Lead: 1, Weekday: 1}]; got != 4 {
		t.Errorf("expected median of [1,4,8] = 4, got %g", got)
	}
}

func TestPickupAtLeadFallback(t *testing.T) {
	p := analyze.Pickup{
		{Lead: 2, Weekday: 0}: 1,
		{Lead: 2, Weekday: 4}: 3,
	}
	if got := p.AtLead(2, 0); got != 1 {
		t.Errorf("exact bucket: expected 1, got %g", got)
	}
	if got := p.AtLead(2, 6); got != 2 {
		t.Errorf("cross-weekday median: expected 2, got %g", got)
	}
	if got := p.AtLead(9, 0); got != 0 {
		t.Errorf("missing lead: expected 0, got %g", got)
	}
}

// ─── Anomaly ──────────────────────────────────────────────────────────────────

func TestAnomalyThresholdBoundary(t *testing.T) {
	base := analyze.Baseline{{Lead: 2, Weekday: 0}: {Median: 10, Scale: 1, Count: 4}}

	cases := []struct {
		observed int
		flag     string
	}{
		{12, analyze.FlagNormal}, // z == +2
		{8, analyze.FlagNormal},  // z == -2
		{13, analyze.FlagHigh},
		{7, analyze.FlagLow},
		{10, analyze.FlagNormal},
	}
	for _, c := range cases {
		ar := analyze.EvaluateAnomaly(c.observed, base, 2, 0, 2.0)
		if ar.Flag != c.flag {
			t.Errorf("observed %d (z=%g): expected %s, got %s", c.observed, ar.ZScore, c.flag, ar.Flag)
		}
	}
}

func TestAnomalyThresholdIsLiteral(t *testing.T) {
	base := analyze.Baseline{{Lead: 1, Weekday: 1}: {Median: 3, Scale: 1, Count: 4}}
	if ar := analyze.EvaluateAnomaly(4, base, 1, 1, 0); ar.Flag != analyze.FlagHigh {
		t.Errorf("threshold 0: expected z=1 to be high, got %s", ar.Flag)
	}
	if ar := analyze.EvaluateAnomaly(3, base, 1, 1, 0); ar.Flag != analyze.FlagNormal {
		t.Errorf("threshold 0: expected z=0 to be normal, got %s", ar.Flag)
	}
	if ar := analyze.EvaluateAnomaly(2, base, 1, 1, 0.5); ar.Flag != analyze.FlagLow {
		t.Errorf("threshold 0.5: expected z=-1 to be low, got %s", ar.Flag)
	}
}

func TestAnomalyFallbackLowestWeekday(t *testing.T) {
	base := analyze.Baseline{
		{Lead: 4, Weekday: 5}: {Median: 50, Scale: 5, Count: 2},
		{Lead: 4, Weekday: 3}: {Median: 20, Scale: 2, Count: 2},
	}
	ar := analyze.EvaluateAnomaly(24, base, 4, 0, 2.0)
	if ar.Baseline != 20 || ar.Scale != 2 {
		t.Errorf("expected fallback to Thursday bucket (20, 2), got (%g, %g)", ar.Baseline, ar.Scale)
	}
	if ar.ZScore != 2 || ar.Flag != analyze.FlagNormal {
		t.Errorf("expected z=2 normal, got z=%g %s", ar.ZScore, ar.Flag)
	}
}

func TestAnomalyHardFallback(t *testing.T) {
	ar := analyze.EvaluateAnomaly(5, analyze.Baseline{}, 30, 2, 2.0)
	if ar.Baseline != 0 || ar.Scale != 1 || ar.ZScore != 5 || ar.Flag != analyze.FlagHigh {
		t.Errorf("unexpected hard fallback result: %+v", ar)
	}
}

func TestAnomalyNonPositiveScaleTreatedAsOne(t *testing.T) {
	base := analyze.Baseline{{Lead: 1, Weekday: 1}: {Median: 3, Scale: 0, Count: 1}}
	ar := analyze.EvaluateAnomaly(4, base, 1, 1, 2.0)
	if ar.ZScore != 1 {
		t.Errorf("expected z=1 with scale treated as 1, got %g", ar.ZScore)
	}
}

// ─── Curve ────────────────────────────────────────────────────────────────────

func TestEndToEndPickupAndCurve(t *testing.T) {
	ci := day("2025-05-13")
	recs := twoRoomRecords(ci, [][2]int{{3, 10}, {2, 9}, {1, 7}, {0, 5}})

	lt := transform.ToLeadTime(transform.AggregateTotals(transform.LatestSnapshotPerParseDay(recs)))
	pickup := analyze.ComputePickup(lt)
	wd := model.WeekdayOf(ci)

	wantDeltas := map[int]float64{3: 1, 2: 2, 1: 2}
	for lead, want := range wantDeltas {
		if got, ok := pickup[model.BucketKey{Lead: lead, Weekday: wd}]; !ok || got != want {
			t.Errorf("pickup at lead %d: expected %g, got %g (%v)", lead, want, got, ok)
		}
	}

	curve := analyze.PredictCurve(lt, pickup, ci, 3)
	want := []analyze.CurvePoint{
		{Lead: 3, Expected: 10},
		{Lead: 2, Expected: 11},
		{Lead: 1, Expected: 13},
		{Lead: 0, Expected: 15},
	}
	if len(curve) != len(want) {
		t.Fatalf("expected %d points, got %d: %v", len(want), len(curve), curve)
	}
	for i := range want {
		if curve[i] != want[i] {
			t.Errorf("point %d: expected %+v, got %+v", i, want[i], curve[i])
		}
	}
}

func TestCurveNeverNegative(t *testing.T) {
	ci := day("2025-05-13")
	wd := model.WeekdayOf(ci)
	lt := model.LeadSeries{{CheckIn: ci, Lead: 4}: 3}
	pickup := analyze.Pickup{
		{Lead: 4, Weekday: wd}: -100,
		{Lead: 3, Weekday: wd}: -100,
		{Lead: 2, Weekday: wd}: 1,
		{Lead: 1, Weekday: wd}: -100,
	}
	for _, p := range analyze.PredictCurve(lt, pickup, ci, 4) {
		if p.Expected < 0 {
			t.Errorf("negative expected value %g at lead %d", p.Expected, p.Lead)
		}
	}
}

func TestCurveSeedsZeroWithoutObservation(t *testing.T) {
	curve := analyze.PredictCurve(model.LeadSeries{}, analyze.Pickup{}, day("2025-05-13"), 2)
	if len(curve) != 3 || curve[0].Lead != 2 || curve[0].Expected != 0 || curve[2].Lead != 0 {
		t.Errorf("unexpected curve: %v", curve)
	}
}

func TestPredictFromLatest(t *testing.T) {
	ci := day("2025-05-13")
	lt := model.LeadSeries{{CheckIn: ci, Lead: 2}: 8, {CheckIn: ci, Lead: 1}: 6}
	curve, lead, ok := analyze.PredictFromLatest(lt, analyze.Pickup{}, ci)
	if !ok || lead != 2 || curve[0].Expected != 8 {
		t.Errorf("PredictFromLatest: got %v lead=%d ok=%v", curve, lead, ok)
	}
	if _, _, ok := analyze.PredictFromLatest(lt, analyze.Pickup{}, day("2025-06-01")); ok {
		t.Error("expected miss for unknown check-in")
	}
}
