// Package sqlitecore is a read-only engine for the SQLite database file
// format: paged I/O with an LRU cache and a decrypt/decompress transform
// pipeline, a B-tree cursor, a record codec, a schema reader, and a WAL
// overlay. There is no SQL surface here - callers open a database, look up
// a table by name, and walk its rows with a forward-only cursor.
package sqlitecore

import (
	"context"
	"fmt"
	"os"

	"github.com/basaltdb/sqlitecore/internal/btree"
	"github.com/basaltdb/sqlitecore/internal/dberr"
	"github.com/basaltdb/sqlitecore/internal/logging"
	"github.com/basaltdb/sqlitecore/internal/pager"
	"github.com/basaltdb/sqlitecore/internal/schema"
	"github.com/basaltdb/sqlitecore/internal/utf"
	"github.com/basaltdb/sqlitecore/internal/wal"
)

const provisionalPageSize = 4096

// DB is an open handle on one SQLite-format file. It owns the page source,
// the transform pipeline, the page cache, and the schema; it outlives every
// cursor it creates and serialises their page reads.
type DB struct {
	pager        *pager.Pager
	bt           *btree.Btree
	schema       *schema.Schema
	textEncoding utf.Encoding
	path         string
	opID         string
	closed       bool
}

// Open parses path as a SQLite-format file, loads its schema, and returns a
// ready-to-use handle. The returned DB must be closed by the caller.
func Open(path string, opts Options) (*DB, error) {
	ctx := context.Background()
	opID := logging.NewOperationID()
	ctx = logging.WithOperationID(ctx, opID)

	fi, err := os.Stat(path)
	if err != nil {
		return nil, &dberr.InvalidDatabaseError{Path: path, Reason: "cannot stat file", Err: err}
	}
	if opts.MaxDatabaseSize > 0 && fi.Size() > opts.MaxDatabaseSize {
		return nil, &dberr.InvalidDatabaseError{Path: path, Reason: "file exceeds MaxDatabaseSize"}
	}

	mainSource, header, err := openMainSource(path, opts)
	if err != nil {
		return nil, err
	}

	finalSource, err := maybeWrapWAL(ctx, mainSource, path, header, opts)
	if err != nil {
		mainSource.Close()
		return nil, err
	}

	pipeline, err := buildPipeline(header, opts)
	if err != nil {
		finalSource.Close()
		return nil, err
	}

	cacheSize := opts.PageCacheSize
	if cacheSize == 0 {
		cacheSize = defaultPageCacheSize
	}

	pg, err := pager.Open(finalSource, pager.Options{CachePages: cacheSize, Pipeline: pipeline})
	if err != nil {
		finalSource.Close()
		return nil, err
	}

	bt := btree.NewBtree(uint32(pg.PageSize()), uint32(pg.PageSize())-uint32(header.ReservedSpace), pg)

	enc := utf.Encoding(header.TextEncoding)
	if opts.TextEncodingOverride != 0 {
		enc = utf.Encoding(opts.TextEncodingOverride)
	}

	sch := schema.NewSchema()
	if err := sch.LoadFromMaster(bt, enc); err != nil {
		pg.Close()
		return nil, fmt.Errorf("sqlitecore: failed to load schema: %w", err)
	}

	logging.DatabaseOpened(ctx, path, fi.Size(), pg.PageSize(), pg.PageCount())
	logging.SchemaLoaded(ctx, len(sch.ListTables()), len(sch.ListIndexes()), 0)

	return &DB{pager: pg, bt: bt, schema: sch, textEncoding: enc, path: path, opID: opID}, nil
}

// openMainSource opens the raw file source (plain or mmap-backed) and reads
// just enough of it to parse the 100-byte file header - needed before the
// transform pipeline or a WAL overlay can be built, since both depend on
// the declared page size.
func openMainSource(path string, opts Options) (pager.Source, *pager.DatabaseHeader, error) {
	var source pager.Source
	var err error
	if opts.UseMmap {
		source, err = pager.NewMmapSource(path, provisionalPageSize)
	} else {
		source, err = pager.NewFileSource(path, provisionalPageSize)
	}
	if err != nil {
		return nil, nil, err
	}

	raw, err := source.ReadPageRaw(1)
	if err != nil {
		source.Close()
		return nil, nil, err
	}
	if len(raw) < pager.DatabaseHeaderSize {
		source.Close()
		return nil, nil, &dberr.InvalidDatabaseError{Path: path, Reason: "file shorter than the 100 byte header"}
	}
	header, err := pager.ParseDatabaseHeader(raw[:pager.DatabaseHeaderSize])
	if err != nil {
		source.Close()
		return nil, nil, &dberr.InvalidDatabaseError{Path: path, Reason: err.Error(), Err: err}
	}
	if err := header.Validate(); err != nil {
		source.Close()
		return nil, nil, &dberr.InvalidDatabaseError{Path: path, Reason: err.Error(), Err: err}
	}

	if resizer, ok := source.(interface{ SetPageSize(int) }); ok {
		resizer.SetPageSize(header.GetPageSize())
	}

	return source, header, nil
}

// maybeWrapWAL opens path+"-wal" and layers it over main when the header
// asks for WAL mode and the caller hasn't forced it off. A missing or
// unreadable WAL file degenerates to "no WAL present" - main is returned
// unwrapped, not an error.
func maybeWrapWAL(ctx context.Context, main pager.Source, path string, header *pager.DatabaseHeader, opts Options) (pager.Source, error) {
	if opts.WALMode == WALForceOff {
		return main, nil
	}
	if header.FileFormatRead != 2 && header.FileFormatWrite != 2 {
		return main, nil
	}

	overlay, err := wal.Open(main, path+"-wal", header.GetPageSize())
	if err != nil {
		if invalidDB := new(dberr.InvalidDatabaseError); dberr.As(err, &invalidDB) {
			return nil, err
		}
		return main, nil
	}

	logging.WALFrameIndexed(ctx, overlay.FrameCount(), 0, overlay.PageCount(header.DatabaseSize))
	return overlay, nil
}

// buildPipeline assembles the page transform pipeline: decrypt (if a key
// was supplied) then decompress (if enabled); with neither, the pipeline is
// the identity transform alone.
func buildPipeline(header *pager.DatabaseHeader, opts Options) (*pager.Pipeline, error) {
	var stages []pager.Transform

	if len(opts.EncryptionKey) > 0 {
		if len(opts.EncryptionKeyHash) > 0 {
			if err := pager.VerifyKey(opts.EncryptionKey, opts.EncryptionSalt, opts.EncryptionKeyHash); err != nil {
				return nil, err
			}
		}
		ct, err := pager.NewCryptoTransform(opts.EncryptionKey, opts.EncryptionSalt)
		if err != nil {
			return nil, err
		}
		stages = append(stages, ct)
	}

	if opts.Decompress {
		stages = append(stages, pager.NewDecompressTransform(header.GetPageSize()))
	}

	if len(stages) == 0 {
		stages = append(stages, pager.IdentityTransform{})
	}
	return pager.NewPipeline(stages...), nil
}

// Schema returns the tables and indexes discovered in sqlite_master at
// open. The returned Schema is safe for concurrent read access.
func (db *DB) Schema() *schema.Schema { return db.schema }

// PageCount returns the number of pages in the database's current snapshot.
func (db *DB) PageCount() uint32 { return db.pager.PageCount() }

// DataVersion returns the page source's change-counter token. A cursor
// created before this value changes observes the snapshot it was opened
// against.
func (db *DB) DataVersion() uint32 { return db.pager.DataVersion() }

// OpenCursor creates a forward-only cursor over tableName's rows. The
// returned Cursor starts Fresh; call MoveNext or Seek to position it.
func (db *DB) OpenCursor(tableName string) (*Cursor, error) {
	if db.closed {
		return nil, &dberr.InvalidStateError{Operation: "open cursor", State: "database closed"}
	}
	table, ok := db.schema.GetTable(tableName)
	if !ok {
		return nil, fmt.Errorf("sqlitecore: no such table: %s", tableName)
	}
	return newCursor(db, table), nil
}

// PrepareReader returns a Cursor intended for repeated Reset+Seek point
// lookups. Every Cursor already reuses its ancestor stack, assembled-payload
// buffer, and decoder column slices across Reset+Seek cycles (see
// Cursor.decoder), so this is OpenCursor under a name that advertises the
// intended usage pattern rather than a distinct mechanism.
func (db *DB) PrepareReader(tableName string) (*Cursor, error) {
	return db.OpenCursor(tableName)
}

// Close releases the underlying page source. Idempotent; never fails.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	return db.pager.Close()
}
