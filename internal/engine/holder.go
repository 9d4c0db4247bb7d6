package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/derickschaefer/pickup/internal/source"
)

// Holder publishes the active Model to concurrent readers. Readers call
// Load and keep using the returned Model for the whole request; Reload
// builds a complete replacement before swapping it in.
type Holder struct {
	src  source.Source
	opts Options

	cur atomic.Pointer[Model]
	mu  sync.Mutex // serializes reloads
}

// ReloadResult reports the outcome of one reload.
type ReloadResult struct {
	Changed  bool          `json:"changed"`
	Hash     string        `json:"hash"`
	Records  int           `json:"records"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
}

// NewHolder builds the first Model from src.
func NewHolder(ctx context.Context, src source.Source, opts Options) (*Holder, error) {
	m, err := Build(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	h := &Holder{src: src, opts: opts}
	h.cur.Store(m)
	return h, nil
}

// NewStaticHolder wraps an existing Model. Reload on a static holder
// reports an error.
func NewStaticHolder(m *Model) *Holder {
	h := &Holder{}
	h.cur.Store(m)
	return h
}

// Load returns the active Model.
func (h *Holder) Load() *Model {
	return h.cur.Load()
}

// Swap installs m and returns the Model it replaced.
func (h *Holder) Swap(m *Model) *Model {
	return h.cur.Swap(m)
}

// Reload reads the source again. When the input fingerprint matches the
// active Model nothing is rebuilt; otherwise a new Model replaces it.
// On failure the active Model stays in place.
func (h *Holder) Reload(ctx context.Context) (ReloadResult, error) {
	if h.src == nil {
		return ReloadResult{}, fmt.Errorf("reload: no source attached")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	batch, err := h.src.Load(ctx)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("reload: loading %s: %w", h.src.Describe(), err)
	}

	res := ReloadResult{
		Hash:    fmt.Sprintf("%016x", batch.Hash),
		Records: len(batch.Records),
		Skipped: batch.Skipped,
	}
	if cur := h.cur.Load(); cur != nil && cur.Hash() == batch.Hash {
		res.Duration = time.Since(start)
		log.Debug().Str("hash", res.Hash).Msg("source unchanged, reload skipped")
		return res, nil
	}

	m := FromBatch(batch, h.src.Describe(), h.opts)
	m.stats.Duration = time.Since(start)
	h.cur.Store(m)

	res.Changed = true
	res.Duration = m.stats.Duration
	log.Info().
		Str("hash", res.Hash).
		Int("records", res.Records).
		Int("skipped", res.Skipped).
		Dur("took", res.Duration).
		Msg("model reloaded")
	return res, nil
}
