package pager

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache holds recently read pages keyed by file offset. A nil *Cache is a
// valid, disabled cache.
//
// Every Set is followed by Wait so a buffered insert can never land after a
// later Del and resurrect a stale page.
type Cache struct {
	pages *ristretto.Cache[int64, []byte]
}

// NewCache returns a cache holding up to maxCost bytes of pages, or nil when
// maxCost is not positive.
func NewCache(maxCost int64, pageSize int) (*Cache, error) {
	if maxCost <= 0 {
		return nil, nil
	}

	counters := 10 * maxCost / int64(pageSize)
	if counters < 1000 {
		counters = 1000
	}

	pages, err := ristretto.NewCache(&ristretto.Config[int64, []byte]{
		NumCounters:        counters,
		MaxCost:            maxCost,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}
	return &Cache{pages: pages}, nil
}

// Get returns a private copy of the cached page.
func (c *Cache) Get(offset int64) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, ok := c.pages.Get(offset)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Put replaces whatever is cached for offset with a copy of data.
func (c *Cache) Put(offset int64, data []byte) {
	if c == nil {
		return
	}
	c.pages.Del(offset)
	c.pages.Set(offset, append([]byte(nil), data...), int64(len(data)))
	c.pages.Wait()
}

func (c *Cache) Invalidate(offset int64) {
	if c == nil {
		return
	}
	c.pages.Del(offset)
	c.pages.Wait()
}

func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.pages.Clear()
}

func (c *Cache) Stats() (hits, misses uint64) {
	if c == nil || c.pages.Metrics == nil {
		return 0, 0
	}
	return c.pages.Metrics.Hits(), c.pages.Metrics.Misses()
}

func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.pages.Close()
}
