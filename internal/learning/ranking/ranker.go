// Package ranking computes the trending list. Each recompute builds a new
// immutable snapshot off to the side and swaps it in atomically, so readers
// never wait on a recompute.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yungbote/illumyn-backend/internal/data/repos/blocks"
	"github.com/yungbote/illumyn-backend/internal/data/repos/trending"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/observability"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

type Config struct {
	Interval time.Duration
	Window   time.Duration
	HalfLife time.Duration
	// MaxEntries bounds the snapshot; 0 keeps every scored block.
	MaxEntries int
}

func DefaultConfig() Config {
	return Config{
		Interval:   5 * time.Minute,
		Window:     7 * 24 * time.Hour,
		HalfLife:   24 * time.Hour,
		MaxEntries: 500,
	}
}

type Snapshot struct {
	Version    uint64
	ComputedAt time.Time
	Entries    []learning.TrendingEntry
}

type Option func(*Ranker)

func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

type Ranker struct {
	log    *logger.Logger
	blocks blocks.Repo
	store  trending.Repo
	cfg    Config
	now    func() time.Time

	mu      sync.Mutex // serializes recomputes
	version uint64
	current atomic.Pointer[Snapshot]
}

// New builds a ranker. store may be nil when nothing is persisted.
func New(log *logger.Logger, blockRepo blocks.Repo, store trending.Repo, cfg Config, opts ...Option) *Ranker {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = def.HalfLife
	}
	r := &Ranker{
		log:    log.With("component", "TrendingRanker"),
		blocks: blockRepo,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(&Snapshot{})
	return r
}

// Score is decay(age) * normalized(engagement) for one block.
func Score(b *learning.Block, now time.Time, halfLife time.Duration, maxEngagement int64) float64 {
	if maxEngagement <= 0 {
		return 0
	}
	normalized := math.Log1p(float64(b.Engagement())) / math.Log1p(float64(maxEngagement))
	age := max(now.Sub(b.CreatedAt), 0)
	decay := math.Exp2(-float64(age) / float64(halfLife))
	return decay * normalized
}

// Rank orders blocks by score, then newer first, then smaller id first.
func Rank(in []*learning.Block, now time.Time, halfLife time.Duration) []learning.TrendingEntry {
	var maxE int64
	for _, b := range in {
		maxE = max(maxE, b.Engagement())
	}
	type scored struct {
		b     *learning.Block
		score float64
	}
	list := make([]scored, 0, len(in))
	for _, b := range in {
		list = append(list, scored{b: b, score: Score(b, now, halfLife, maxE)})
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.b.CreatedAt.Equal(b.b.CreatedAt) {
			return a.b.CreatedAt.After(b.b.CreatedAt)
		}
		return a.b.ID.String() < b.b.ID.String()
	})
	out := make([]learning.TrendingEntry, len(list))
	for i, s := range list {
		out[i] = learning.TrendingEntry{BlockID: s.b.ID, Rank: i + 1, Score: s.score, ComputedAt: now}
	}
	return out
}

// Recompute scores every block in the window and publishes the result.
func (r *Ranker) Recompute(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	now := r.now().UTC().Truncate(time.Microsecond)
	dbc := dbctx.New(ctx)
	recent, err := r.blocks.ListSince(dbc, now.Add(-r.cfg.Window))
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	entries := Rank(recent, now, r.cfg.HalfLife)
	if r.cfg.MaxEntries > 0 && len(entries) > r.cfg.MaxEntries {
		entries = entries[:r.cfg.MaxEntries]
	}
	if r.store != nil {
		if err := r.store.ReplaceAll(dbc, entries); err != nil {
			return nil, fmt.Errorf("persist trending: %w", err)
		}
	}
	r.version++
	snap := &Snapshot{Version: r.version, ComputedAt: now, Entries: entries}
	r.current.Store(snap)
	observability.Current().ObserveRanking(time.Since(start), len(entries))
	r.log.Debug("trending recomputed", "entries", len(entries), "version", snap.Version)
	return snap, nil
}

// Current is the latest published snapshot. Callers must not modify it.
func (r *Ranker) Current() *Snapshot {
	return r.current.Load()
}

// Trending returns up to limit entries of the current snapshot.
func (r *Ranker) Trending(limit int) []learning.TrendingEntry {
	entries := r.current.Load().Entries
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	return append([]learning.TrendingEntry(nil), entries[:limit]...)
}

// Warm publishes the persisted ranking so readers have data before the first
// recompute finishes.
func (r *Ranker) Warm(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	entries, err := r.store.List(dbctx.New(ctx), r.cfg.MaxEntries)
	if err != nil {
		return fmt.Errorf("load trending: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.version > 0 {
		return nil
	}
	r.current.Store(&Snapshot{ComputedAt: entries[0].ComputedAt, Entries: entries})
	return nil
}

// Run recomputes immediately and then on every tick until ctx ends.
func (r *Ranker) Run(ctx context.Context) error {
	if err := r.Warm(ctx); err != nil {
		r.log.Warn("trending warm-up failed", "error", err)
	}
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := r.Recompute(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("trending recompute failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
