package engine

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/derickschaefer/pickup/internal/analyze"
	"github.com/derickschaefer/pickup/internal/util"
)

// Query defaults.
const (
	DefaultSeriesLimit  = 10
	DefaultFutureWindow = 60
)

// QueryError is a rejected query: a missing parameter or a malformed value.
// The HTTP layer maps it to 400 and the CLI prints it verbatim.
type QueryError struct {
	Param   string
	Message string
}

func (e *QueryError) Error() string { return e.Message }

// IsQueryError reports whether err is, or wraps, a *QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// ─── Query types ──────────────────────────────────────────────────────────────

// ProgressionQuery asks for one check-in's availability progression.
type ProgressionQuery struct {
	CheckIn time.Time
	Z       float64 `query:"z" validate:"gt=0,lte=10"`
}

// SeriesQuery asks for the progressions of several check-in dates. Zero
// Start or End leaves that side of the range open.
type SeriesQuery struct {
	Start time.Time
	End   time.Time
	Limit int     `query:"limit" validate:"gte=1,lte=366"`
	Z     float64 `query:"z" validate:"gt=0,lte=10"`
}

// CurveQuery asks for the anomaly score and predicted curve of a check-in.
// Without HasLead the largest observed lead is used.
type CurveQuery struct {
	CheckIn time.Time
	Lead    int `query:"lead" validate:"gte=0,lte=3650"`
	HasLead bool
}

// AnomaliesQuery asks for the velocity detector's report.
type AnomaliesQuery struct {
	Cutoff time.Time
	Days   int `query:"days" validate:"gte=1,lte=366"`
}

// ─── Raw parameters ───────────────────────────────────────────────────────────

type progressionParams struct {
	CheckIn string `query:"check_in" validate:"required,datetime=2006-01-02"`
	Z       string `query:"z" validate:"omitempty,numeric"`
}

type seriesParams struct {
	Start string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `query:"end" validate:"omitempty,datetime=2006-01-02"`
	Limit string `query:"limit" validate:"omitempty,number"`
	Z     string `query:"z" validate:"omitempty,numeric"`
}

type curveParams struct {
	CheckIn string `query:"check_in" validate:"required,datetime=2006-01-02"`
	Lead    string `query:"lead" validate:"omitempty,number"`
}

type anomaliesParams struct {
	Cutoff string `query:"cutoff" validate:"required,datetime=2006-01-02"`
	Days   string `query:"days" validate:"omitempty,number"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ─── Parsers ──────────────────────────────────────────────────────────────────

// ParseProgressionQuery reads check_in (required) and z (default 2.0).
func ParseProgressionQuery(v url.Values) (ProgressionQuery, error) {
	p := progressionParams{CheckIn: v.Get("check_in"), Z: v.Get("z")}
	if err := check(p); err != nil {
		return ProgressionQuery{}, err
	}
	z, err := floatOr("z", p.Z, analyze.DefaultZThreshold)
	if err != nil {
		return ProgressionQuery{}, err
	}
	q := ProgressionQuery{CheckIn: mustDate(p.CheckIn), Z: z}
	return q, check(q)
}

// ParseSeriesQuery reads optional start, end, limit (default 10) and z.
func ParseSeriesQuery(v url.Values) (SeriesQuery, error) {
	p := seriesParams{Start: v.Get("start"), End: v.Get("end"), Limit: v.Get("limit"), Z: v.Get("z")}
	if err := check(p); err != nil {
		return SeriesQuery{}, err
	}
	limit, err := intOr("limit", p.Limit, DefaultSeriesLimit)
	if err != nil {
		return SeriesQuery{}, err
	}
	z, err := floatOr("z", p.Z, analyze.DefaultZThreshold)
	if err != nil {
		return SeriesQuery{}, err
	}
	q := SeriesQuery{Limit: limit, Z: z}
	if p.Start != "" {
		q.Start = mustDate(p.Start)
	}
	if p.End != "" {
		q.End = mustDate(p.End)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return SeriesQuery{}, &QueryError{Param: "end", Message: "'end' must not be before 'start'"}
	}
	return q, check(q)
}

// ParseCurveQuery reads check_in (required) and an optional lead.
func ParseCurveQuery(v url.Values) (CurveQuery, error) {
	p := curveParams{CheckIn: v.Get("check_in"), Lead: v.Get("lead")}
	if err := check(p); err != nil {
		return CurveQuery{}, err
	}
	q := CurveQuery{CheckIn: mustDate(p.CheckIn)}
	if p.Lead != "" {
		lead, err := intOr("lead", p.Lead, 0)
		if err != nil {
			return CurveQuery{}, err
		}
		q.Lead, q.HasLead = lead, true
	}
	return q, check(q)
}

// ParseAnomaliesQuery reads cutoff (required) and days (default 60).
func ParseAnomaliesQuery(v url.Values) (AnomaliesQuery, error) {
	p := anomaliesParams{Cutoff: v.Get("cutoff"), Days: v.Get("days")}
	if err := check(p); err != nil {
		return AnomaliesQuery{}, err
	}
	days, err := intOr("days", p.Days, DefaultFutureWindow)
	if err != nil {
		return AnomaliesQuery{}, err
	}
	q := AnomaliesQuery{Cutoff: mustDate(p.Cutoff), Days: days}
	return q, check(q)
}

// check validates s and converts the first failure into a *QueryError.
func check(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &QueryError{Message: err.Error()}
	}
	fe := verrs[0]
	name := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("missing '%s' query param", name)
		if strings.Contains(fieldTag(s, fe.StructField()), "datetime") {
			msg += " YYYY-MM-DD"
		}
	case "datetime":
		msg = fmt.Sprintf("invalid '%s' format. Use YYYY-MM-DD", name)
	case "numeric", "number":
		msg = fmt.Sprintf("invalid '%s': must be a number", name)
	case "gt":
		msg = fmt.Sprintf("'%s' must be greater than %s", name, fe.Param())
	case "gte":
		msg = fmt.Sprintf("'%s' must be at least %s", name, fe.Param())
	case "lte":
		msg = fmt.Sprintf("'%s' must be at most %s", name, fe.Param())
	default:
		msg = fmt.Sprintf("invalid '%s'", name)
	}
	return &QueryError{Param: name, Message: msg}
}

func fieldTag(s interface{}, field string) string {
	f, ok := reflect.TypeOf(s).FieldByName(field)
	if !ok {
		return ""
	}
	return f.Tag.Get("validate")
}

// mustDate parses a value already checked by the datetime validator.
func mustDate(s string) time.Time {
	t, _ := util.ParseDate(s)
	return t
}

// floatOr parses s, or returns def when s is empty. Values the validator
// accepted but that do not fit a finite float64 are rejected.
func floatOr(name, s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, &QueryError{Param: name, Message: fmt.Sprintf("invalid '%s': %q is out of range", name, s)}
	}
	return f, nil
}

// intOr is floatOr for integers; overflowing values are rejected.
func intOr(name, s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &QueryError{Param: name, Message: fmt.Sprintf("invalid '%s': %q is out of range", name, s)}
	}
	return n, nil
}
