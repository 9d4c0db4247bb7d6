package chart_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/derickschaefer/pickup/internal/analyze"
	"github.com/derickschaefer/pickup/internal/chart"
	"github.com/derickschaefer/pickup/internal/engine"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func progression() *engine.Progression {
	return &engine.Progression{
		CheckIn: "2025-05-13",
		Points: []engine.ProgressionPoint{
			{ParseDate: "2025-05-10", Lead: 3, Observed: 12, Baseline: 10, Lo: 8, Hi: 12, Flag: analyze.FlagNormal},
			{ParseDate: "2025-05-11", Lead: 2, Observed: 9, Baseline: 9, Lo: 7, Hi: 11, Flag: analyze.FlagNormal},
			{ParseDate: "2025-05-12", Lead: 1, Observed: 2, Baseline: 8, Lo: 6, Hi: 10, Flag: analyze.FlagLow},
			{ParseDate: "2025-05-13", Lead: 0, Observed: 20, Baseline: 7, Lo: 5, Hi: 9, Flag: analyze.FlagHigh},
		},
	}
}

// barLine returns the output line containing label.
func barLine(t *testing.T, out, label string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, label) {
			return line
		}
	}
	t.Fatalf("no line starting with %q in:\n%s", label, out)
	return ""
}

// ─── Conversions ──────────────────────────────────────────────────────────────

func TestFromProgression(t *testing.T) {
	pts := chart.FromProgression(progression())
	if len(pts) != 4 {
		t.Fatalf("expected 4 points, got %d", len(pts))
	}
	if !strings.HasPrefix(pts[0].Label, "2025-05-10 L3") {
		t.Errorf("unexpected label %q", pts[0].Label)
	}
	if pts[2].Value != 2 || pts[2].Flag != analyze.FlagLow || pts[2].Hi != 10 {
		t.Errorf("unexpected point %+v", pts[2])
	}
}

func TestCurvePoints(t *testing.T) {
	pts := chart.CurvePoints([]analyze.CurvePoint{{Lead: 2, Expected: 5}, {Lead: 1, Expected: 6.5}, {Lead: 0, Expected: 7}})
	if len(pts) != 3 || pts[0].Label != "L2" || pts[1].Value != 6.5 {
		t.Errorf("unexpected curve points %+v", pts)
	}
}

// ─── Bar ──────────────────────────────────────────────────────────────────────

func TestBar_Basic(t *testing.T) {
	var buf bytes.Buffer
	if err := chart.Bar(&buf, "Check-in 2025-05-13", chart.FromProgression(progression()), chart.BarOptions{Width: 70}); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Check-in 2025-05-13", "2025-05-12 L1", "▼ low", "▲ high", "baseline band"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBar_LongerBarForLargerValue(t *testing.T) {
	var buf bytes.Buffer
	if err := chart.Bar(&buf, "x", chart.FromProgression(progression()), chart.BarOptions{Width: 70}); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	out := buf.String()
	high := strings.Count(barLine(t, out, "2025-05-13"), "█")
	low := strings.Count(barLine(t, out, "2025-05-12"), "█")
	if high <= low || low == 0 {
		t.Errorf("expected 20 to draw a longer bar than 2: high=%d low=%d", high, low)
	}
}

func TestBar_ShadesBandBeyondBar(t *testing.T) {
	var buf bytes.Buffer
	if err := chart.Bar(&buf, "x", chart.FromProgression(progression()), chart.BarOptions{Width: 70}); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	line := barLine(t, buf.String(), "2025-05-12")
	if !strings.Contains(line, "░") || !strings.Contains(line, "┆") {
		t.Errorf("expected band and baseline marker beyond a short bar: %q", line)
	}
}

func TestBar_MaxBarsKeepsLatest(t *testing.T) {
	var buf bytes.Buffer
	if err := chart.Bar(&buf, "x", chart.FromProgression(progression()), chart.BarOptions{Width: 70, MaxBars: 2}); err != nil {
		t.Fatalf("Bar: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "2025-05-10 L3") {
		t.Errorf("oldest bar should have been dropped:\n%s", out)
	}
	if !strings.Contains(out, "2025-05-13 L0") {
		t.Errorf("latest bar missing:\n%s", out)
	}
}

func TestBar_AllZero(t *testing.T) {
	pts := []chart.BandPoint{{Label: "a", Value: 0}, {Label: "b", Value: 0}}
	var buf bytes.Buffer
	if err := chart.Bar(&buf, "x", pts, chart.BarOptions{Width: 40}); err != nil {
		t.Fatalf("Bar on zeros: %v", err)
	}
	if strings.Count(buf.String(), "█") != 1 { // legend only
		t.Errorf("zero values should draw no bar:\n%s", buf.String())
	}
}

func TestBar_NoPoints(t *testing.T) {
	var buf bytes.Buffer
	if err := chart.Bar(&buf, "x", nil, chart.BarOptions{}); err == nil {
		t.Error("expected error for empty input")
	}
	pts := []chart.BandPoint{{Label: "a", Value: math.NaN()}}
	if err := chart.Bar(&buf, "x", pts, chart.BarOptions{}); err == nil {
		t.Error("expected error when every value is NaN")
	}
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

func TestPlot_Basic(t *testing.T) {
	var buf bytes.Buffer
	pts := chart.ObservedPoints(progression())
	if err := chart.Plot(&buf, "Observed", pts, chart.PlotOptions{Width: 60, Height: 8}); err != nil {
		t.Fatalf("Plot: %v", err)
	}
	out := strings.TrimRight(buf.String(), "\n")
	lines := strings.Split(out, "\n")
	// title + body rows + axis + labels
	if len(lines) != 8+3 {
		t.Errorf("expected %d lines, got %d:\n%s", 8+3, len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "Observed  (2025-05-10 to 2025-05-13)") {
		t.Errorf("unexpected title %q", lines[0])
	}
	if !strings.Contains(out, "20") || !strings.Contains(out, "└") {
		t.Errorf("expected max tick and axis:\n%s", out)
	}
	if !strings.Contains(lines[len(lines)-1], "2025-05-13") {
		t.Errorf("x axis missing end label: %q", lines[len(lines)-1])
	}
}

func TestPlot_FlatCurve(t *testing.T) {
	var buf bytes.Buffer
	pts := chart.CurvePoints([]analyze.CurvePoint{{Lead: 1, Expected: 4}, {Lead: 0, Expected: 4}})
	if err := chart.Plot(&buf, "Curve", pts, chart.PlotOptions{Width: 40, Height: 5}); err != nil {
		t.Fatalf("Plot: %v", err)
	}
	if !strings.Contains(buf.String(), "─") {
		t.Errorf("flat series should draw a horizontal line:\n%s", buf.String())
	}
}

func TestPlot_GapsAreBlank(t *testing.T) {
	pts := []chart.Point{{Label: "a", Value: 1}, {Label: "b", Value: math.NaN()}, {Label: "c", Value: 3}, {Label: "d", Value: 2}}
	var buf bytes.Buffer
	if err := chart.Plot(&buf, "g", pts, chart.PlotOptions{Width: 30, Height: 6}); err != nil {
		t.Fatalf("Plot: %v", err)
	}
}

func TestPlot_TooFewPoints(t *testing.T) {
	var buf bytes.Buffer
	if err := chart.Plot(&buf, "x", []chart.Point{{Label: "a", Value: 1}}, chart.PlotOptions{}); err == nil {
		t.Error("expected error for a single point")
	}
}
