package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/advising-hub/internal/domain/table"
)

// DatasetCache stores view datasets as JSON documents under PrefixDataset.
type DatasetCache struct {
	cache *Cache
}

// NewDatasetCache creates a dataset cache on top of c.
func NewDatasetCache(c *Cache) *DatasetCache {
	return &DatasetCache{cache: c}
}

// GetDataset returns the cached rows for key. found is false on a miss.
func (d *DatasetCache) GetDataset(ctx context.Context, key string) (table.Dataset, bool, error) {
	var rows table.Dataset
	err := d.cache.getJSON(ctx, DatasetKey(key), &rows)
	switch {
	case errors.Is(err, ErrCacheMiss):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	if rows == nil {
		rows = table.Dataset{}
	}
	return rows, true, nil
}

// SetDataset caches rows for ttl.
func (d *DatasetCache) SetDataset(ctx context.Context, key string, rows table.Dataset, ttl time.Duration) error {
	if rows == nil {
		rows = table.Dataset{}
	}
	return d.cache.setJSON(ctx, DatasetKey(key), rows, ttl)
}

// Invalidate drops the cached rows for key.
func (d *DatasetCache) Invalidate(ctx context.Context, key string) error {
	return d.cache.del(ctx, DatasetKey(key))
}
