package rasterio

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/pspoerri/demosaic/internal/geo"
)

// ReaderCache is the bounded LRU of open input readers required by
// spec.md §5: "a bounded LRU of open readers lives behind a mutex;
// opening and eviction are the only cross-thread synchronization points
// on the read path." It generalizes the teacher's decoded-tile cache
// (internal/cog/tilecache.go, a map + order-slice eviction list) from
// caching decoded tiles to caching open file handles.
//
// A golang.org/x/sync/semaphore.Weighted bounds the number of
// concurrently *open* readers (spec.md §5's "system may refuse to load
// all DEMs" constraint), and a singleflight.Group collapses concurrent
// first-touch opens of the same handle by racing tile workers.
type ReaderCache struct {
	sem   *semaphore.Weighted
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string // least-recently-used first
	limit   int
}

type cacheEntry struct {
	reader ReaderCloser
}

// NewReaderCache creates a cache that keeps at most limit readers open at
// once. limit <= 0 means unbounded.
func NewReaderCache(limit int) *ReaderCache {
	weight := int64(limit)
	if limit <= 0 {
		weight = 1 << 30 // effectively unbounded
	}
	return &ReaderCache{
		sem:     semaphore.NewWeighted(weight),
		entries: make(map[string]*cacheEntry),
		limit:   limit,
	}
}

// ReadBlock opens h lazily (reusing a cached reader if present), reads box,
// and returns the result. The reader is left open in the cache, subject to
// eviction once the cache is over its limit.
func (c *ReaderCache) ReadBlock(h *InputHandle, box geo.PixelBox) (*Block, error) {
	r, err := c.acquire(h)
	if err != nil {
		return nil, err
	}
	return r.ReadBlock(box)
}

func (c *ReaderCache) acquire(h *InputHandle) (ReaderCloser, error) {
	c.mu.Lock()
	if e, ok := c.entries[h.ID]; ok {
		c.touch(h.ID)
		c.mu.Unlock()
		return e.reader, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(h.ID, func() (any, error) {
		c.mu.Lock()
		if e, ok := c.entries[h.ID]; ok {
			c.mu.Unlock()
			return e.reader, nil
		}
		c.mu.Unlock()

		if err := c.sem.Acquire(context.Background(), 1); err != nil {
			return nil, fmt.Errorf("rasterio: acquiring reader slot for %q: %w", h.ID, err)
		}

		r, err := h.opener.Open()
		if err != nil {
			c.sem.Release(1)
			return nil, fmt.Errorf("rasterio: opening %q: %w", h.ID, err)
		}

		c.mu.Lock()
		c.evictLocked()
		c.entries[h.ID] = &cacheEntry{reader: r}
		c.order = append(c.order, h.ID)
		c.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(ReaderCloser), nil
}

// touch moves id to the most-recently-used end of the order slice. Caller
// must hold c.mu.
func (c *ReaderCache) touch(id string) {
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, id)
}

// evictLocked closes and drops the least-recently-used reader(s) until the
// cache is under its limit, making room for one more entry. Caller must
// hold c.mu.
func (c *ReaderCache) evictLocked() {
	if c.limit <= 0 {
		return
	}
	for len(c.entries) >= c.limit && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if e, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			e.reader.Close()
			c.sem.Release(1)
		}
	}
}

// Close closes every currently-open reader. Safe to call once, at
// shutdown.
func (c *ReaderCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for id, e := range c.entries {
		if err := e.reader.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("rasterio: closing %q: %w", id, err)
		}
	}
	c.entries = make(map[string]*cacheEntry)
	c.order = nil
	return firstErr
}
