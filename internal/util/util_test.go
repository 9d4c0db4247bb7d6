package util_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/derickschaefer/pickup/internal/util"
)

func TestParseDate(t *testing.T) {
	d, err := util.ParseDate("2025-05-13")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !d.Equal(time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ParseDate: got %v", d)
	}
	if _, err := util.ParseDate("13/05/2025"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestParseTimestampOptionalFraction(t *testing.T) {
	cases := map[string]time.Time{
		"2025-05-10 12:00:00":        time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC),
		"2025-05-10 12:00:00.250000": time.Date(2025, 5, 10, 12, 0, 0, 250_000_000, time.UTC),
	}
	for in, want := range cases {
		got, err := util.ParseTimestamp(in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", in, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q): expected %v, got %v", in, want, got)
		}
	}
	if _, err := util.ParseTimestamp("2025-05-10"); err == nil {
		t.Error("expected error for date-only timestamp")
	}
}

func TestCoerceInt(t *testing.T) {
	ok := []struct {
		in   interface{}
		want int
	}{
		{json.Number("12"), 12},
		{json.Number("3.9"), 3},
		{float64(-2), -2},
		{" 7 ", 7},
		{"-4", -4},
		{5, 5},
	}
	for _, c := range ok {
		got, err := util.CoerceInt(c.in)
		if err != nil {
			t.Fatalf("CoerceInt(%v): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("CoerceInt(%v): expected %d, got %d", c.in, c.want, got)
		}
	}
	for _, bad := range []interface{}{nil, "abc", "1.5", true, []int{1}, json.Number("1e20"), float64(-1e19), math.Inf(1), "99999999999999999999"} {
		if _, err := util.CoerceInt(bad); err == nil {
			t.Errorf("CoerceInt(%v): expected error", bad)
		}
	}
}

func TestMultiError(t *testing.T) {
	var m util.MultiError
	if m.Err() != nil {
		t.Fatal("empty MultiError should return nil")
	}
	m.Add(nil)
	m.Add(errors.New("a"))
	m.Add(errors.New("b"))
	if m.Err() == nil || m.Error() != "a; b" {
		t.Errorf("unexpected MultiError: %v", m.Err())
	}
}
