package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DefaultTable is the table read when Postgres.Table is empty.
const DefaultTable = "raw_hotel_pms_data"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Postgres reads raw rows from a table holding the PMS export columns.
// Columns are read as text so that coercion matches the file loader.
type Postgres struct {
	DSN   string
	Table string

	// db, when set, is used instead of connecting with DSN.
	db *sqlx.DB
}

// NewPostgresFromDB wraps an existing connection (used by tests).
func NewPostgresFromDB(db *sqlx.DB, table string) *Postgres {
	return &Postgres{Table: table, db: db}
}

// Describe returns the table name; the DSN is never echoed.
func (p *Postgres) Describe() string {
	return "postgres:" + p.table()
}

func (p *Postgres) table() string {
	if p.Table == "" {
		return DefaultTable
	}
	return p.Table
}

// pgRow mirrors the raw columns in query order. Every column is nullable
// text.
type pgRow struct {
	CheckIn      sql.NullString
	ParseDate    sql.NullString
	CreationDate sql.NullString
	RoomID       sql.NullString
	Availability sql.NullString
}

// pgRowFrom converts the scanned values of one row. Drivers hand text back
// as []byte or string; NULL is nil.
func pgRowFrom(vals []interface{}) (pgRow, error) {
	if len(vals) != 5 {
		return pgRow{}, fmt.Errorf("expected 5 columns, got %d", len(vals))
	}
	ns := make([]sql.NullString, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case nil:
		case []byte:
			ns[i] = sql.NullString{String: string(x), Valid: true}
		case string:
			ns[i] = sql.NullString{String: x, Valid: true}
		default:
			ns[i] = sql.NullString{String: fmt.Sprint(x), Valid: true}
		}
	}
	return pgRow{ns[0], ns[1], ns[2], ns[3], ns[4]}, nil
}

// hashRow feeds one row into digest, keeping NULL distinct from the empty
// string.
func hashRow(digest *xxhash.Digest, r pgRow) {
	for _, ns := range []sql.NullString{r.CheckIn, r.ParseDate, r.CreationDate, r.RoomID, r.Availability} {
		if !ns.Valid {
			_, _ = digest.WriteString("\x00null|")
			continue
		}
		_, _ = digest.WriteString(strconv.Quote(ns.String))
		_, _ = digest.WriteString("|")
	}
	_, _ = digest.WriteString("\n")
}

func (r pgRow) raw() rawRow {
	str := func(ns sql.NullString) interface{} {
		if !ns.Valid {
			return nil
		}
		return ns.String
	}
	return rawRow{
		CheckIn:      str(r.CheckIn),
		ParseDate:    str(r.ParseDate),
		CreationDate: str(r.CreationDate),
		RoomID:       str(r.RoomID),
		Availability: str(r.Availability),
	}
}

// Load streams every row of the table.
func (p *Postgres) Load(ctx context.Context) (*Batch, error) {
	table := p.table()
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("postgres source: invalid table name %q", table)
	}

	db := p.db
	if db == nil {
		var err error
		db, err = sqlx.ConnectContext(ctx, "postgres", p.DSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
	}

	query := fmt.Sprintf(`SELECT %s::text AS raw_check_in_date, %s::text AS raw_parse_date,
		%s::text AS raw_creation_date, %s::text AS raw_room_id, %s::text AS raw_availability
		FROM %s`,
		FieldCheckIn, FieldParseDate, FieldCreationDate, FieldRoomID, FieldAvailability, table)

	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	digest := xxhash.New()
	batch := &Batch{}
	for rows.Next() {
		batch.Rows++
		vals, err := rows.SliceScan()
		if err != nil {
			_, _ = fmt.Fprintf(digest, "\x00scan-error %d\n", batch.Rows)
			batch.Skipped++
			continue
		}
		r, err := pgRowFrom(vals)
		if err != nil {
			_, _ = fmt.Fprintf(digest, "\x00bad-row %d %v\n", batch.Rows, vals)
			batch.Skipped++
			continue
		}
		hashRow(digest, r)
		rec, err := r.raw().toRecord()
		if err != nil {
			batch.Skipped++
			continue
		}
		batch.Records = append(batch.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	batch.Hash = digest.Sum64()
	return batch, nil
}
