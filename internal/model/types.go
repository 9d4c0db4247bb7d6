// Package model defines the canonical data types used throughout pickup.
// These types are the single source of truth for raw snapshot rows, the
// composite keys of every derived table, and the result envelope that every
// command returns.
package model

import (
	"time"
)

// ─── Raw Snapshot Rows ────────────────────────────────────────────────────────

// SnapshotRecord is one raw availability row from a re-scrape of the PMS.
// CheckIn and ParseDate are calendar days (UTC midnight). Availability may be
// negative in the raw feed; it is clamped only when totals are aggregated.
type SnapshotRecord struct {
	CheckIn      time.Time `json:"check_in_date"`
	ParseDate    time.Time `json:"parse_date"`
	CreatedAt    time.Time `json:"creation_dt"`
	RoomID       int       `json:"room_id"`
	Availability int       `json:"availability"`
}

// ─── Composite Keys ───────────────────────────────────────────────────────────

// TotalsKey identifies a total-availability figure: one check-in date as seen
// on one observation date.
type TotalsKey struct {
	CheckIn  time.Time
	Observed time.Time
}

// RoomKey identifies one room within a TotalsKey.
type RoomKey struct {
	CheckIn  time.Time
	Observed time.Time
	RoomID   int
}

// LeadKey identifies a total by check-in date and lead time in days.
type LeadKey struct {
	CheckIn time.Time
	Lead    int
}

// BucketKey identifies a statistical bucket: lead time and check-in weekday
// (0=Monday .. 6=Sunday).
type BucketKey struct {
	Lead    int
	Weekday int
}

// Less orders bucket keys by lead, then weekday.
func (k BucketKey) Less(o BucketKey) bool {
	if k.Lead != o.Lead {
		return k.Lead < o.Lead
	}
	return k.Weekday < o.Weekday
}

// ─── Derived Tables ───────────────────────────────────────────────────────────

// Totals maps (check-in, observation date) to non-negative total availability.
type Totals map[TotalsKey]int

// LeadSeries maps (check-in, lead) to total availability. Leads are >= 0.
type LeadSeries map[LeadKey]int

// ─── Calendar Helpers ─────────────────────────────────────────────────────────

// Day truncates t to its calendar day at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekdayOf returns the weekday of d with Monday=0 and Sunday=6.
func WeekdayOf(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// DaysBetween returns the whole number of calendar days from `from` to `to`.
// The result is negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours() / 24)
}

// WeekdayName returns a short English name for a Monday-based weekday index.
func WeekdayName(wd int) string {
	names := [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	if wd < 0 || wd >= len(names) {
		return "?"
	}
	return names[wd]
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance and ingestion metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
	Records    int   `json:"records,omitempty"`
	Skipped    int   `json:"skipped,omitempty"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindBaseline    = "baseline"
	KindPickup      = "pickup"
	KindCurve       = "curve"
	KindProgression = "progression"
	KindSeries      = "series"
	KindVelocity    = "velocity"
	KindIngest      = "ingest"
	KindSchema      = "schema"
)
