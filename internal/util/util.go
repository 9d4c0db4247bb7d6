// Package util provides shared utilities: date and timestamp parsing,
// lenient integer coercion for raw feed values, and error collection.
package util

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ─── Date Parsing ─────────────────────────────────────────────────────────────

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// ParseDate parses a YYYY-MM-DD string into a time.Time (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate formats a time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseTimestamp parses "YYYY-MM-DD HH:MM:SS" with optional fractional
// seconds. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	// time.Parse accepts a fractional second after the seconds field even
	// when the layout does not mention one.
	t, err := time.Parse(timestampLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: expected YYYY-MM-DD HH:MM:SS[.ffffff]", s)
	}
	return t, nil
}

// ─── Raw Value Coercion ──────────────────────────────────────────────────────

// CoerceInt converts a decoded raw feed value into an int.
// Accepted: json.Number, float64 (truncated toward zero), int types, and
// numeric strings with optional surrounding whitespace and sign.
func CoerceInt(v interface{}) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing value")
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("non-finite number %v", x)
		}
		// -MinInt is exactly representable; MaxInt is not.
		if x < float64(math.MinInt) || x >= -float64(math.MinInt) {
			return 0, fmt.Errorf("number %v out of range", x)
		}
		return int(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", x.String())
		}
		return CoerceInt(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", x)
		}
		return i, nil
	case []byte:
		return CoerceInt(string(x))
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// CoerceString returns v when it is a string, or an error otherwise.
func CoerceString(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case nil:
		return "", fmt.Errorf("missing value")
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
