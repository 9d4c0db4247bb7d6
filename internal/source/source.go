// Package source loads raw availability snapshot rows from a flat export
// file or a Postgres table. Ingestion is best effort: a row with a missing or
// uncoercible field is dropped and counted, never repaired.
package source

import (
	"context"
	"fmt"

	"github.com/derickschaefer/pickup/internal/model"
	"github.com/derickschaefer/pickup/internal/util"
)

// Raw field names as they appear in the PMS export.
const (
	FieldCheckIn      = "raw_check_in_date"
	FieldParseDate    = "raw_parse_date"
	FieldCreationDate = "raw_creation_date"
	FieldRoomID       = "raw_room_id"
	FieldAvailability = "raw_availability"
)

// Kind constants for Open.
const (
	KindFile     = "file"
	KindPostgres = "postgres"
)

// Batch is the outcome of one full load.
type Batch struct {
	Records []model.SnapshotRecord
	Rows    int    // rows seen, including skipped ones
	Skipped int    // rows dropped during coercion
	Hash    uint64 // xxhash64 fingerprint of the raw input
}

// SkippedPct returns the share of rows dropped, in percent.
func (b *Batch) SkippedPct() float64 {
	if b.Rows == 0 {
		return 0
	}
	return float64(b.Skipped) / float64(b.Rows) * 100
}

// Source yields the complete raw snapshot set.
type Source interface {
	Load(ctx context.Context) (*Batch, error)
	Describe() string
}

// Options selects and configures a Source.
type Options struct {
	Kind  string // file|postgres
	Path  string
	DSN   string
	Table string
}

// Open returns the Source described by opts.
func Open(opts Options) (Source, error) {
	switch opts.Kind {
	case "", KindFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("file source: no data path configured")
		}
		return &File{Path: opts.Path}, nil
	case KindPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres source: no DSN configured")
		}
		return &Postgres{DSN: opts.DSN, Table: opts.Table}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q: expected file|postgres", opts.Kind)
	}
}

// rawRow holds the five raw fields of one row before coercion.
type rawRow struct {
	CheckIn      interface{}
	ParseDate    interface{}
	CreationDate interface{}
	RoomID       interface{}
	Availability interface{}
}

// toRecord coerces a raw row into a SnapshotRecord.
func (r rawRow) toRecord() (model.SnapshotRecord, error) {
	var rec model.SnapshotRecord

	s, err := util.CoerceString(r.CheckIn)
	if err != nil {
		return rec, fmt.Errorf("%s: %w", FieldCheckIn, err)
	}
	if rec.CheckIn, err = util.ParseDate(s); err != nil {
		return rec, err
	}

	if s, err = util.CoerceString(r.ParseDate); err != nil {
		return rec, fmt.Errorf("%s: %w", FieldParseDate, err)
	}
	if rec.ParseDate, err = util.ParseDate(s); err != nil {
		return rec, err
	}

	if s, err = util.CoerceString(r.CreationDate); err != nil {
		return rec, fmt.Errorf("%s: %w", FieldCreationDate, err)
	}
	if rec.CreatedAt, err = util.ParseTimestamp(s); err != nil {
		return rec, err
	}

	if rec.RoomID, err = util.CoerceInt(r.RoomID); err != nil {
		return rec, fmt.Errorf("%s: %w", FieldRoomID, err)
	}
	if rec.Availability, err = util.CoerceInt(r.Availability); err != nil {
		return rec, fmt.Errorf("%s: %w", FieldAvailability, err)
	}
	return rec, nil
}

// fromMap extracts the raw fields from a decoded JSON object.
func fromMap(m map[string]interface{}) rawRow {
	return rawRow{
		CheckIn:      m[FieldCheckIn],
		ParseDate:    m[FieldParseDate],
		CreationDate: m[FieldCreationDate],
		RoomID:       m[FieldRoomID],
		Availability: m[FieldAvailability],
	}
}
