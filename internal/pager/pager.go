package pager

import (
	"context"
	"sync"

	"github.com/basaltdb/sqlitecore/internal/dberr"
	"github.com/basaltdb/sqlitecore/internal/logging"
)

// Pager is the L1/L2 page source: it owns the underlying Source (file,
// memory, mmap, or a WAL overlay wrapping one of those), the transform
// pipeline that turns raw bytes into plaintext pages, and the bounded LRU
// that avoids re-running that pipeline on a page already in hand.
//
// mu is a plain mutex, not a reader/writer lock: it serialises page
// fetches from every cursor sharing the handle. It does not detect
// concurrent use; a second caller simply waits for the first.
type Pager struct {
	mu       sync.Mutex
	source   Source
	pipeline *Pipeline
	cache    *pageCache
	header   *DatabaseHeader
	pageSize int
	pageCnt  uint32

	// dataVersion changes whenever the underlying file's change counter
	// (header offset 24) moves, which is how a long-lived handle notices
	// another process committed and invalidates its page cache.
	dataVersion uint32
}

// Options configures how a Pager reads pages once opened.
type Options struct {
	CachePages int       // 0 = DefaultCachePages
	Pipeline   *Pipeline // nil = IdentityTransform
}

// Open reads the file header from source's first page and builds a Pager
// over it. source must already be positioned to serve page 1 at its
// provisional page size (4096). Open takes the header from the first 100
// bytes of that read and does not read page 1 again; later reads use the
// header's declared page size.
func Open(source Source, opts Options) (*Pager, error) {
	raw, err := source.ReadPageRaw(1)
	if err != nil {
		return nil, err
	}
	if len(raw) < DatabaseHeaderSize {
		return nil, &dberr.InvalidDatabaseError{Reason: "file shorter than the 100 byte header"}
	}

	header, err := ParseDatabaseHeader(raw[:DatabaseHeaderSize])
	if err != nil {
		return nil, &dberr.InvalidDatabaseError{Reason: err.Error(), Err: err}
	}
	if err := header.Validate(); err != nil {
		return nil, &dberr.InvalidDatabaseError{Reason: err.Error(), Err: err}
	}

	pageSize := header.GetPageSize()
	if resizer, ok := source.(interface{ SetPageSize(int) }); ok {
		resizer.SetPageSize(pageSize)
	}

	sizeBytes, err := source.Size()
	if err != nil {
		return nil, err
	}
	pageCnt := header.DatabaseSize
	if pageCnt == 0 {
		pageCnt = uint32(sizeBytes / int64(pageSize))
	}

	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = NewPipeline(IdentityTransform{})
	}

	return &Pager{
		source:      source,
		pipeline:    pipeline,
		cache:       newPageCache(opts.CachePages, pageSize),
		header:      header,
		pageSize:    pageSize,
		pageCnt:     pageCnt,
		dataVersion: header.FileChangeCounter,
	}, nil
}

// Get returns the plaintext bytes of page pgno, transforming and caching
// it on first access. The returned slice must not be modified by callers;
// it may be shared with the cache and with other callers of Get.
func (p *Pager) Get(pgno Pgno) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pgno == 0 || uint32(pgno) > p.pageCnt {
		return nil, &dberr.OutOfRangeError{What: "page number", Value: int64(pgno), Bound: int64(p.pageCnt)}
	}

	if data, ok := p.cache.get(pgno); ok {
		return data, nil
	}
	logging.PageFault(context.Background(), uint32(pgno))

	raw, err := p.source.ReadPageRaw(pgno)
	if err != nil {
		return nil, err
	}

	data, err := p.pipeline.Apply(pgno, raw)
	if err != nil {
		return nil, err
	}

	p.cache.put(pgno, data)
	return data, nil
}

// GetPageData implements btree.PageProvider.
func (p *Pager) GetPageData(pgno uint32) ([]byte, error) {
	return p.Get(Pgno(pgno))
}

// ReadPage implements record.PageReader, for overflow chain assembly.
func (p *Pager) ReadPage(pgno uint32) ([]byte, error) {
	return p.Get(Pgno(pgno))
}

// PageSize returns the database's page size in bytes.
func (p *Pager) PageSize() int { return p.pageSize }

// PageCount returns the number of pages in the database.
func (p *Pager) PageCount() uint32 { return p.pageCnt }

// Header returns the parsed database file header.
func (p *Pager) Header() *DatabaseHeader { return p.header }

// DataVersion returns a token that changes whenever the pager has
// observed the underlying file change. Cursors and cached schema data
// keyed to an older token must be considered stale and re-derived.
func (p *Pager) DataVersion() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dataVersion
}

// Refresh re-reads the file header and, if the change counter moved,
// bumps DataVersion and drops every cached page. Safe to call before each
// new read transaction on a handle that might be sharing the file with a
// writer outside this process.
func (p *Pager) Refresh() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := p.source.ReadPageRaw(1)
	if err != nil {
		return err
	}
	header, err := ParseDatabaseHeader(raw[:DatabaseHeaderSize])
	if err != nil {
		return &dberr.InvalidDatabaseError{Reason: err.Error(), Err: err}
	}

	if header.FileChangeCounter != p.header.FileChangeCounter {
		p.header = header
		p.pageCnt = header.DatabaseSize
		p.dataVersion = header.FileChangeCounter
		p.cache.invalidate()
	}
	return nil
}

// Close releases the underlying Source.
func (p *Pager) Close() error {
	return p.source.Close()
}
