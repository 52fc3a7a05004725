package datasource

import (
	"context"
	"time"

	"github.com/alem-hub/advising-hub/internal/domain/roster"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/alem-hub/advising-hub/pkg/logger"
)

// RosterStore loads roster tables. Implemented by postgres.RosterRepository.
type RosterStore interface {
	LoadDataset(ctx context.Context, kind roster.Kind) (table.Dataset, error)
}

// Roster serves one roster table.
type Roster struct {
	store RosterStore
	kind  roster.Kind
}

// NewRoster creates a source over a roster table.
func NewRoster(store RosterStore, kind roster.Kind) *Roster {
	return &Roster{store: store, kind: kind}
}

// Load reads the table.
func (r *Roster) Load(ctx context.Context) (table.Dataset, error) {
	return r.store.LoadDataset(ctx, r.kind)
}

// DatasetCache is a key/value store for whole datasets. Implemented by
// redis.DatasetCache.
type DatasetCache interface {
	GetDataset(ctx context.Context, key string) (table.Dataset, bool, error)
	SetDataset(ctx context.Context, key string, rows table.Dataset, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Cached serves rows from a cache, falling through to the inner source on a
// miss. Cache failures are logged and never fail the load.
type Cached struct {
	inner table.Source
	cache DatasetCache
	key   string
	ttl   time.Duration
	log   *logger.Logger
}

// NewCached wraps inner with a cache entry named key.
func NewCached(inner table.Source, cache DatasetCache, key string, ttl time.Duration, log *logger.Logger) *Cached {
	if log == nil {
		log = logger.Nop()
	}
	return &Cached{inner: inner, cache: cache, key: key, ttl: ttl, log: log}
}

// Load returns cached rows when present.
func (c *Cached) Load(ctx context.Context) (table.Dataset, error) {
	rows, ok, err := c.cache.GetDataset(ctx, c.key)
	if err != nil {
		c.log.Warn("dataset cache read failed", logger.String("key", c.key), logger.Err(err))
	} else if ok {
		return rows, nil
	}

	return c.fill(ctx)
}

// Refresh skips the cache read and reloads from the inner source. When the
// new rows cannot be written the old entry is dropped, so later Loads fall
// through instead of serving rows older than this refresh.
func (c *Cached) Refresh(ctx context.Context) (table.Dataset, error) {
	return c.fill(ctx)
}

func (c *Cached) fill(ctx context.Context) (table.Dataset, error) {
	rows, err := c.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetDataset(ctx, c.key, rows, c.ttl); err != nil {
		c.log.Warn("dataset cache write failed", logger.String("key", c.key), logger.Err(err))
		if err := c.cache.Invalidate(ctx, c.key); err != nil {
			c.log.Warn("dataset cache invalidate failed", logger.String("key", c.key), logger.Err(err))
		}
	}
	return rows, nil
}
