package sqlitecore

import (
	"github.com/basaltdb/sqlitecore/internal/btree"
	"github.com/basaltdb/sqlitecore/internal/dberr"
	"github.com/basaltdb/sqlitecore/internal/record"
	"github.com/basaltdb/sqlitecore/internal/schema"
)

// cursorState is a small state machine layered on top of btree.BtCursor,
// which already tracks Fresh/Positioned/Exhausted internally (CursorInvalid
// covers both Fresh and Exhausted); Cursor adds Disposed on top, since
// that's a concept the underlying b-tree cursor has no notion of.
type cursorState int

const (
	stateFresh cursorState = iota
	statePositioned
	stateExhausted
	stateDisposed
)

// Cursor is a forward-only reader over one table's rows, decoding each
// cell it visits into typed column values on demand. A Cursor is private
// to the goroutine using it; concurrent cursors on the same DB serialise
// their underlying page reads through the DB's pager, not through the
// Cursor itself.
type Cursor struct {
	db    *DB
	table *schema.Table
	bc    *btree.BtCursor
	dec   *record.Decoder // reused across rows; see decValid
	// decValid is true while dec holds the current row's decoded columns.
	// dec itself (and payloadBuf) stay allocated across Seek/Reset cycles
	// so a prepared reader's steady-state point lookups reuse their
	// backing slices instead of allocating one per row.
	decValid   bool
	payloadBuf []byte
	state      cursorState
}

func newCursor(db *DB, table *schema.Table) *Cursor {
	return &Cursor{
		db:    db,
		table: table,
		bc:    btree.NewCursor(db.bt, table.RootPage),
		state: stateFresh,
	}
}

// Seek positions the cursor at rowid, returning whether an exact match was
// found. On a miss, the cursor lands on the smallest rowid strictly
// greater than rowid, or Exhausted if none exists.
func (c *Cursor) Seek(rowid int64) (bool, error) {
	if c.state == stateDisposed {
		return false, &dberr.InvalidStateError{Operation: "seek", State: "disposed"}
	}
	if !c.table.HasRowID() {
		return false, &dberr.UnsupportedFeatureError{Feature: "seek by rowid on a WITHOUT ROWID table"}
	}

	found, err := c.bc.Seek(rowid)
	if err != nil {
		c.state = stateExhausted
		return false, err
	}
	if !c.bc.IsValid() {
		c.state = stateExhausted
		c.decValid = false
		return false, nil
	}
	c.state = statePositioned
	c.decValid = false
	return found, nil
}

// MoveNext advances to the next row in key order, returning false once the
// table is exhausted.
func (c *Cursor) MoveNext() (bool, error) {
	if c.state == stateDisposed {
		return false, &dberr.InvalidStateError{Operation: "move_next", State: "disposed"}
	}

	var err error
	if c.state == stateFresh {
		err = c.bc.MoveToFirst()
	} else {
		err = c.bc.Next()
	}

	if err != nil || !c.bc.IsValid() {
		c.state = stateExhausted
		c.decValid = false
		return false, nil
	}
	c.state = statePositioned
	c.decValid = false
	return true, nil
}

// Rowid returns the current row's key. Valid only while Positioned.
func (c *Cursor) Rowid() (int64, error) {
	if c.state != statePositioned {
		return 0, &dberr.InvalidStateError{Operation: "rowid", State: "not positioned"}
	}
	return c.bc.GetKey(), nil
}

// decoder lazily assembles the current cell's payload (following any
// overflow chain) and decodes its record header, memoizing the result
// until the cursor advances. Both the assembled-payload buffer and the
// decoder's column slices are reused across rows rather than reallocated,
// so repeated Reset+Seek point lookups settle into zero steady-state
// allocation once the buffers have grown to their working size.
func (c *Cursor) decoder() (*record.Decoder, error) {
	if c.state != statePositioned {
		return nil, &dberr.InvalidStateError{Operation: "column access", State: "not positioned"}
	}
	if c.decValid {
		return c.dec, nil
	}
	cell := c.bc.CurrentCell
	if cell == nil {
		return nil, &dberr.InvalidStateError{Operation: "column access", State: "no current cell"}
	}
	payload, err := record.AssemblePayloadInto(cell.Payload, int(cell.PayloadSize), cell.OverflowPage, int(c.db.bt.UsableSize), c.db.bt, &c.payloadBuf)
	if err != nil {
		return nil, err
	}
	dec, err := record.DecodeInto(payload, c.db.textEncoding, c.dec)
	if err != nil {
		return nil, err
	}
	c.dec = dec
	c.decValid = true
	return dec, nil
}

// columnIndex validates i against the table's declared column list only.
// A record with fewer stored columns than the schema declares is handled
// by each accessor, which reports NULL (or the zero value) for the
// trailing columns instead of erroring.
func (c *Cursor) columnIndex(i int) error {
	if i < 0 || i >= len(c.table.Columns) {
		return &dberr.OutOfRangeError{What: "column", Value: int64(i), Bound: int64(len(c.table.Columns))}
	}
	return nil
}

// IsNull reports whether column i is NULL, including when the stored
// record has fewer columns than the schema declares. A rowid-alias column
// is never NULL: its value is the row's rowid, not whatever the record
// itself stored (typically SQL NULL, since SQLite doesn't duplicate it).
func (c *Cursor) IsNull(i int) (bool, error) {
	if err := c.columnIndex(i); err != nil {
		return false, err
	}
	if c.table.Columns[i].RowIDAlias {
		return false, nil
	}
	dec, err := c.decoder()
	if err != nil {
		return false, err
	}
	if i >= dec.NumColumns() {
		return true, nil
	}
	return dec.IsNull(i)
}

// Int returns column i as an integer. A rowid-alias column (an INTEGER
// PRIMARY KEY aliasing the table's implicit rowid) reads back the cursor's
// current rowid rather than the record's own storage for that column,
// which SQLite leaves NULL since the value already lives in the cell key.
func (c *Cursor) Int(i int) (int64, error) {
	if err := c.columnIndex(i); err != nil {
		return 0, err
	}
	if c.table.Columns[i].RowIDAlias {
		return c.Rowid()
	}
	dec, err := c.decoder()
	if err != nil {
		return 0, err
	}
	if i >= dec.NumColumns() {
		return 0, nil
	}
	return dec.Int(i)
}

// Real returns column i as a float64.
func (c *Cursor) Real(i int) (float64, error) {
	if err := c.columnIndex(i); err != nil {
		return 0, err
	}
	dec, err := c.decoder()
	if err != nil {
		return 0, err
	}
	if i >= dec.NumColumns() {
		return 0, nil
	}
	return dec.Real(i)
}

// Text returns column i as a string. The string is a copy of the stored
// bytes (transcoded to UTF-8 for a UTF-16 database), not an alias of the
// cursor's payload buffer or a cached page, so it stays valid after the
// cursor advances.
func (c *Cursor) Text(i int) (string, error) {
	if err := c.columnIndex(i); err != nil {
		return "", err
	}
	dec, err := c.decoder()
	if err != nil {
		return "", err
	}
	if i >= dec.NumColumns() {
		return "", nil
	}
	return dec.Text(i)
}

// Blob returns column i as a byte slice under the same borrowed-slice
// contract as Text.
func (c *Cursor) Blob(i int) ([]byte, error) {
	if err := c.columnIndex(i); err != nil {
		return nil, err
	}
	dec, err := c.decoder()
	if err != nil {
		return nil, err
	}
	if i >= dec.NumColumns() {
		return nil, nil
	}
	return dec.Blob(i)
}

// ColumnType reports the storage class of column i's current value. A
// rowid-alias column always reports ColumnInteger, regardless of what the
// underlying record stored for it.
func (c *Cursor) ColumnType(i int) (record.ColumnType, error) {
	if err := c.columnIndex(i); err != nil {
		return record.ColumnNull, err
	}
	if c.table.Columns[i].RowIDAlias {
		return record.ColumnInteger, nil
	}
	dec, err := c.decoder()
	if err != nil {
		return record.ColumnNull, err
	}
	if i >= dec.NumColumns() {
		return record.ColumnNull, nil
	}
	return dec.ColumnType(i)
}

// ColumnName returns the declared name of column i.
func (c *Cursor) ColumnName(i int) (string, error) {
	if err := c.columnIndex(i); err != nil {
		return "", err
	}
	return c.table.Columns[i].Name, nil
}

// Reset returns the cursor to Fresh without releasing its ancestor stack,
// leaf cache, or decoder buffers - the mechanism a prepared reader uses to
// do repeated point lookups at zero steady-state allocation.
func (c *Cursor) Reset() {
	if c.state == stateDisposed {
		return
	}
	c.bc.Reset()
	c.decValid = false
	c.state = stateFresh
}

// Close disposes the cursor. Idempotent; never fails.
func (c *Cursor) Close() error {
	c.state = stateDisposed
	c.dec = nil
	c.decValid = false
	c.payloadBuf = nil
	return nil
}
