package analyze

import (
	"time"

	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/transform"
)

// CurvePoint is one expected value on a predicted availability curve.
type CurvePoint struct {
	Lead     int     `json:"lead"`
	Expected float64 `json:"expected"`
}

// PredictCurve rolls expected availability forward from startLead down to
// lead 0: expected(L−1) = max(0, expected(L) + pickup(L)). The seed is the
// observed total at startLead, or 0 when none was observed. The returned
// slice holds startLead+1 points ordered by descending lead.
func PredictCurve(series model.LeadSeries, pickup Pickup, checkIn time.Time, startLead int) []CurvePoint {
	if startLead < 0 {
		startLead = 0
	}
	wd := model.WeekdayOf(checkIn)
	cur := float64(series[model.LeadKey{CheckIn: checkIn, Lead: startLead}])

	curve := make([]CurvePoint, 0, startLead+1)
	curve = append(curve, CurvePoint{Lead: startLead, Expected: cur})
	for l := startLead; l > 0; l-- {
		cur = max(0, cur+pickup.AtLead(l, wd))
		curve = append(curve, CurvePoint{Lead: l - 1, Expected: cur})
	}
	return curve
}

// PredictFromLatest predicts the curve starting at the largest lead observed
// for checkIn. It returns false when the series has no data for that date.
func PredictFromLatest(series model.LeadSeries, pickup Pickup, checkIn time.Time) ([]CurvePoint, int, bool) {
	lead, ok := transform.MaxLead(series, checkIn)
	if !ok {
		return nil, 0, false
	}
	return PredictCurve(series, pickup, checkIn, lead), lead, true
}
