package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/pickup/internal/analyze"
	"github.com/derickschaefer/pickup/internal/engine"
	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/source"
	"github.com/derickschaefer/pickup/internal/store"
	"github.com/derickschaefer/pickup/internal/velocity"
)

// ─── Fixtures ─────────────────────────────────────────────────────────────────

func result(kind string, data interface{}) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
		Command:     kind,
		Data:        data,
	}
}

func progressionFixture() *engine.Progression {
	wd, z := 1, 2.0
	return &engine.Progression{
		CheckIn: "2025-05-13",
		Weekday: &wd,
		Z:       &z,
		Points: []engine.ProgressionPoint{
			{ParseDate: "2025-05-10", Lead: 3, Observed: 10, Baseline: 9.5, Lo: 7.5, Hi: 11.5, Z: 0.25, Flag: "normal"},
			{ParseDate: "2025-05-11", Lead: 2, Observed: 2, Baseline: 9, Lo: 7, Hi: 11, Z: -3.5, Flag: "low"},
		},
	}
}

func render(t *testing.T, r *model.Result, format string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Render(&buf, r, format); err != nil {
		t.Fatalf("Render(%s): %v", format, err)
	}
	return buf.String()
}

// ─── Table ────────────────────────────────────────────────────────────────────

func TestRenderProgressionTable(t *testing.T) {
	out := render(t, result(model.KindProgression, progressionFixture()), FormatTable)
	for _, want := range []string{"Check-in 2025-05-13 (Tue)", "PARSE DATE", "2025-05-11", "-3.50", "low"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEmptyProgressionShowsMessage(t *testing.T) {
	p := &engine.Progression{CheckIn: "2024-01-01", Points: []engine.ProgressionPoint{}, Message: engine.MsgNoSnapshots}
	out := render(t, result(model.KindProgression, p), FormatTable)
	if !strings.Contains(out, engine.MsgNoSnapshots) {
		t.Errorf("expected message, got:\n%s", out)
	}
	if strings.Contains(out, "PARSE DATE") {
		t.Errorf("empty progression should not render a table:\n%s", out)
	}
}

func TestRenderBaselineSummaryWithCurve(t *testing.T) {
	s := &engine.BaselineSummary{
		Leads:   2,
		Buckets: 2,
		Rows: []engine.BaselineRow{
			{Lead: 0, Weekday: 1, Day: "Tue", Median: 5, Scale: 1, Count: 3},
			{Lead: 1, Weekday: 1, Day: "Tue", Median: 7.4, Scale: 1.48, Count: 3},
		},
		Curve: &engine.CurveResult{
			CheckIn:   "2025-05-13",
			StartLead: 1,
			Anomaly:   analyze.AnomalyResult{Observed: 7, Baseline: 7.25, Scale: 1.48, ZScore: -0.17, Flag: "normal"},
			Points:    []analyze.CurvePoint{{Lead: 1, Expected: 7}, {Lead: 0, Expected: 9}},
		},
	}
	out := render(t, result(model.KindBaseline, s), FormatTable)
	for _, want := range []string{
		"Computed baselines for 2 lead times",
		"1 Tue",
		"7.4",
		"Anomaly for 2025-05-13 at lead 1:",
		"flag=normal",
		"Predicted availability curve",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("baseline output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderCurveNoData(t *testing.T) {
	c := &engine.CurveResult{CheckIn: "2030-01-01", Points: []analyze.CurvePoint{}, Message: engine.MsgNoData}
	out := render(t, result(model.KindCurve, c), FormatTable)
	if strings.TrimSpace(out) != engine.MsgNoData {
		t.Errorf("expected only the message, got %q", out)
	}
}

func TestRenderVelocityTable(t *testing.T) {
	r := &velocity.Report{
		Cutoff:     time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		WindowDays: 60,
		Candidates: 4,
		Results: []velocity.Metrics{{
			CheckIn:       time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC),
			DaysToArrival: 9,
			Trend:         velocity.TrendStable,
			Flags:         []string{velocity.FlagHighAvailability, velocity.FlagStalledPickup},
		}},
	}
	out := render(t, result(model.KindVelocity, r), FormatTable)
	for _, want := range []string{"Cutoff 2025-08-01, next 60 days: 4 candidates, 1 flagged.", "2025-08-10", "high_availability,stalled_pickup"} {
		if !strings.Contains(out, want) {
			t.Errorf("velocity output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderUnknownKindFallsBackToJSON(t *testing.T) {
	out := render(t, result("other", map[string]int{"a": 1}), FormatTable)
	if !strings.Contains(out, `"kind": "other"`) {
		t.Errorf("expected JSON fallback, got:\n%s", out)
	}
}

func TestRenderWrongPayloadIsError(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, result(model.KindPickup, "nope"), FormatTable); err == nil {
		t.Error("expected error for mismatched payload")
	}
}

// ─── CSV / TSV / Markdown ─────────────────────────────────────────────────────

func TestRenderPickupCSV(t *testing.T) {
	rows := []engine.PickupRow{
		{Lead: 1, Weekday: 0, Day: "Mon", Delta: 2},
		{Lead: 2, Weekday: 0, Day: "Mon", Delta: -0.5},
	}
	out := render(t, result(model.KindPickup, rows), FormatCSV)
	want := "lead,weekday,pickup\n1,0 Mon,2.0\n2,0 Mon,-0.5\n"
	if out != want {
		t.Errorf("CSV:\n got %q\nwant %q", out, want)
	}
}

func TestRenderIngestTSV(t *testing.T) {
	runs := []store.IngestRun{{Command: "baseline", Source: "data.json", Hash: "abc", Rows: 4, Skipped: 1, DurationMs: 12}}
	out := render(t, result(model.KindIngest, runs), FormatTSV)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "loaded\tcommand\tsource\thash\trows\tskipped\tskipped_pct\tduration") {
		t.Errorf("unexpected TSV header %q", lines[0])
	}
	if !strings.Contains(lines[1], "\t25.00\t12ms") {
		t.Errorf("unexpected TSV row %q", lines[1])
	}
}

func TestRenderMarkdownEscapesPipes(t *testing.T) {
	sv := &source.SchemaSurvey{
		Source:  "x.json",
		Sampled: 1,
		Fields:  []source.FieldSurvey{{Name: "raw_meal", Types: []string{"string"}, Present: 1, Examples: []interface{}{"a|b"}}},
	}
	out := render(t, result(model.KindSchema, sv), FormatMD)
	if !strings.Contains(out, "| FIELD | TYPES | PRESENT | EXAMPLES |") {
		t.Errorf("missing markdown header:\n%s", out)
	}
	if !strings.Contains(out, `a\|b`) {
		t.Errorf("pipe not escaped:\n%s", out)
	}
}

// ─── JSON / JSONL ─────────────────────────────────────────────────────────────

func TestRenderJSONEnvelope(t *testing.T) {
	out := render(t, result(model.KindProgression, progressionFixture()), FormatJSON)
	var env struct {
		Kind string `json:"kind"`
		Data struct {
			CheckIn string `json:"check_in"`
			Points  []struct {
				Flag string `json:"flag"`
			} `json:"points"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if env.Kind != model.KindProgression || env.Data.CheckIn != "2025-05-13" || len(env.Data.Points) != 2 {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestRenderSeriesJSONL(t *testing.T) {
	s := &engine.SeriesResult{
		Labels: []string{"2025-05-10", "2025-05-11"},
		Series: []engine.Progression{*progressionFixture(), *progressionFixture()},
	}
	out := render(t, result(model.KindSeries, s), FormatJSONL)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 JSONL lines, got %d", len(lines))
	}
	var row map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &row); err != nil {
		t.Fatalf("invalid JSONL line: %v", err)
	}
	if row["check_in"] != "2025-05-13" || row["flag"] != "low" {
		t.Errorf("unexpected row: %v", row)
	}
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func TestFormatValue(t *testing.T) {
	tests := map[float64]string{4: "4.0", 3.4: "3.4", -0.5: "-0.5", 1.234567: "1.234567"}
	for in, want := range tests {
		if got := formatValue(in); got != want {
			t.Errorf("formatValue(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range Formats {
		if !ValidFormat(f) {
			t.Errorf("%q should be valid", f)
		}
	}
	if ValidFormat("xml") {
		t.Error("xml should not be valid")
	}
}

func TestPrintFooter(t *testing.T) {
	r := result(model.KindPickup, []engine.PickupRow{})
	r.Warnings = []string{"12 rows skipped"}
	r.Stats = model.ResultStats{Items: 3, Records: 40, Skipped: 12, DurationMs: 7}

	var buf bytes.Buffer
	PrintFooter(&buf, r, false)
	if !strings.Contains(buf.String(), "12 rows skipped") || strings.Contains(buf.String(), "items") {
		t.Errorf("quiet footer: %q", buf.String())
	}
	buf.Reset()
	PrintFooter(&buf, r, true)
	if !strings.Contains(buf.String(), "3 items • 40 records • 12 skipped • 7ms") {
		t.Errorf("verbose footer: %q", buf.String())
	}
}
