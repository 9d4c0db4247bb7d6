// Package store provides a thin bbolt wrapper for pickup's local data store.
//
// The store never holds derived statistics: every baseline is recomputed from
// the raw source on each run. It keeps only operational records.
//
// Buckets:
//
//	ingest   : one record per source load (id, source, hash, row counts)
//	workflows: saved command lines for reproducible reports
//	_meta    : schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketIngest    = []byte("ingest")
	bucketWorkflows = []byte("workflows")
	bucketInternal  = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"ingest", "workflows"}

// Store wraps a bbolt database.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

func openDB(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}
	return db, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.path
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketIngest, bucketWorkflows, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// SchemaVersion returns the schema version recorded in _meta.
func (s *Store) SchemaVersion() (string, error) {
	var v string
	err := s.db.View(func(tx *bolt.Tx) error {
		v = string(tx.Bucket(bucketInternal).Get([]byte("schema_version")))
		return nil
	})
	return v, err
}

// ─── Ingest Runs ──────────────────────────────────────────────────────────────

// IngestRun records one full load of the snapshot source.
type IngestRun struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Source     string    `json:"source"`
	Hash       string    `json:"hash"`
	Rows       int       `json:"rows"`
	Records    int       `json:"records"`
	Skipped    int       `json:"skipped"`
	LoadedAt   time.Time `json:"loaded_at"`
	DurationMs int64     `json:"duration_ms"`
}

// SkippedPct returns the share of rows dropped, in percent.
func (r IngestRun) SkippedPct() float64 {
	if r.Rows == 0 {
		return 0
	}
	return float64(r.Skipped) / float64(r.Rows) * 100
}

// ingestKey orders runs chronologically: run:<unix-nanos, zero padded>|<id>.
func ingestKey(run IngestRun) []byte {
	return []byte(fmt.Sprintf("run:%020d|%s", run.LoadedAt.UnixNano(), run.ID))
}

// PutIngestRun stores run, assigning an ID and LoadedAt when they are unset.
// It returns the stored record.
func (s *Store) PutIngestRun(run IngestRun) (IngestRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.LoadedAt.IsZero() {
		run.LoadedAt = time.Now().UTC()
	}
	b, err := json.Marshal(run)
	if err != nil {
		return run, fmt.Errorf("encoding ingest run: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIngest).Put(ingestKey(run), b)
	})
	return run, err
}

// ListIngestRuns returns the most recent runs, newest first. limit <= 0
// returns every run.
func (s *Store) ListIngestRuns(limit int) ([]IngestRun, error) {
	var runs []IngestRun
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketIngest).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run IngestRun
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decoding ingest run %s: %w", k, err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}

// LastIngestRun returns the newest run, if any.
func (s *Store) LastIngestRun() (IngestRun, bool, error) {
	runs, err := s.ListIngestRuns(1)
	if err != nil || len(runs) == 0 {
		return IngestRun{}, false, err
	}
	return runs[0], true, nil
}

// ─── Workflows ────────────────────────────────────────────────────────────────

// Workflow is a saved command line for a reproducible report.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CommandLine string    `json:"command_line"`
	CreatedAt   time.Time `json:"created_at"`
}

// Args splits the saved command line into arguments.
func (w Workflow) Args() []string {
	return strings.Fields(w.CommandLine)
}

// PutWorkflow saves a workflow. The key is wf:<ID>.
func (s *Store) PutWorkflow(wf Workflow) error {
	b, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("encoding workflow: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkflows).Put([]byte("wf:"+wf.ID), b)
	})
}

// GetWorkflow retrieves a workflow by ID, or by name when no ID matches.
func (s *Store) GetWorkflow(idOrName string) (Workflow, bool, error) {
	var wf Workflow
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkflows)
		if v := b.Get([]byte("wf:" + idOrName)); v != nil {
			return json.Unmarshal(v, &wf)
		}
		return b.ForEach(func(_, v []byte) error {
			var cand Workflow
			if err := json.Unmarshal(v, &cand); err != nil {
				return err
			}
			if wf.ID == "" && cand.Name == idOrName {
				wf = cand
			}
			return nil
		})
	})
	if err != nil {
		return wf, false, err
	}
	return wf, wf.ID != "", nil
}

// ListWorkflows returns all workflows in creation order.
func (s *Store) ListWorkflows() ([]Workflow, error) {
	var wfs []Workflow
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkflows).ForEach(func(k, v []byte) error {
			var wf Workflow
			if err := json.Unmarshal(v, &wf); err != nil {
				return err
			}
			wfs = append(wfs, wf)
			return nil
		})
	})
	sort.SliceStable(wfs, func(i, j int) bool { return wfs[i].CreatedAt.Before(wfs[j].CreatedAt) })
	return wfs, err
}

// DeleteWorkflow removes a workflow by ID.
func (s *Store) DeleteWorkflow(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkflows).Delete([]byte("wf:" + id))
	})
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets, in
// AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			if err := b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			}); err != nil {
				return err
			}
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	if !isUserBucket(name) {
		return fmt.Errorf("unknown bucket %q: expected one of %s", name, strings.Join(AllBuckets, ", "))
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}

func isUserBucket(name string) bool {
	for _, b := range AllBuckets {
		if b == name {
			return true
		}
	}
	return false
}

// CompactResult reports file sizes around a compaction.
type CompactResult struct {
	BeforeBytes int64
	AfterBytes  int64
}

// Compact rewrites the database into a fresh file, reclaiming free pages,
// and reopens it in place.
func (s *Store) Compact() (CompactResult, error) {
	var res CompactResult
	if fi, err := os.Stat(s.path); err == nil {
		res.BeforeBytes = fi.Size()
	}

	tmpPath := s.path + ".compact"
	_ = os.Remove(tmpPath)
	dst, err := openDB(tmpPath)
	if err != nil {
		return res, err
	}
	if err := bolt.Compact(dst, s.db, 64*1024); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return res, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		return res, fmt.Errorf("closing compacted db: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return res, fmt.Errorf("closing db: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return res, fmt.Errorf("replacing db: %w", err)
	}
	db, err := openDB(s.path)
	if err != nil {
		return res, err
	}
	s.db = db

	if fi, err := os.Stat(s.path); err == nil {
		res.AfterBytes = fi.Size()
	}
	return res, nil
}
