package pager

import (
	"context"

	"github.com/basaltdb/sqlitecore/internal/cache"
	"github.com/basaltdb/sqlitecore/internal/logging"
)

// DefaultCachePages is the default number of decoded pages the page cache
// holds before evicting the least recently used one.
const DefaultCachePages = 500

// pageCache is a bounded LRU over transformed page bytes, keyed by page
// number. It sits between the Pager and the Source/transform pipeline so
// that repeated reads of a hot page (a B-tree interior node visited on
// every descent, sqlite_master itself) never re-run the transform or hit
// the Source again.
type pageCache struct {
	bc *cache.BoundedCache[Pgno, []byte]
}

func newPageCache(maxPages int, pageSize int) *pageCache {
	if maxPages <= 0 {
		maxPages = DefaultCachePages
	}
	cfg := cache.Config{
		MaxSize: maxPages,
		OnEvict: func(key, value interface{}) {
			logging.CacheEvicted(context.Background(), uint32(key.(Pgno)), maxPages)
		},
	}
	sizeFunc := func(b []byte) int64 { return int64(len(b)) }
	maxBytes := int64(maxPages) * int64(pageSize)
	return &pageCache{bc: cache.NewBoundedCache[Pgno, []byte](cfg, maxBytes, sizeFunc)}
}

func (c *pageCache) get(pgno Pgno) ([]byte, bool) {
	return c.bc.Get(pgno)
}

func (c *pageCache) put(pgno Pgno, data []byte) {
	c.bc.Put(pgno, data)
}

func (c *pageCache) invalidate() {
	c.bc.Clear()
}

func (c *pageCache) stats() cache.Stats {
	return c.bc.Stats()
}
