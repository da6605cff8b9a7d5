package sqlitecore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/basaltdb/sqlitecore/internal/pager"
	"github.com/basaltdb/sqlitecore/internal/record"
)

// encodeRecord builds a SQLite record body (varint header-length, serial
// type varints, then column bodies) from a small set of Go values: nil
// (NULL), int64 (8-byte integer), and string (TEXT).
func encodeRecord(cols ...interface{}) []byte {
	var serialTypes []uint64
	var bodies [][]byte

	for _, c := range cols {
		switch v := c.(type) {
		case nil:
			serialTypes = append(serialTypes, 0)
			bodies = append(bodies, nil)
		case int64:
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(v))
			serialTypes = append(serialTypes, 6)
			bodies = append(bodies, buf)
		case string:
			serialTypes = append(serialTypes, uint64(13+2*len(v)))
			bodies = append(bodies, []byte(v))
		default:
			panic("encodeRecord: unsupported type")
		}
	}

	var headerBuf []byte
	tmp := make([]byte, 10)
	for _, st := range serialTypes {
		n := record.PutVarint(tmp, st)
		headerBuf = append(headerBuf, tmp[:n]...)
	}

	hlBuf := make([]byte, 10)
	headerLen := len(headerBuf) + record.VarintLen(uint64(len(headerBuf)+1))
	// VarintLen of the final header length depends on itself; at these
	// sizes 1 byte always suffices, so this converges without a loop.
	n := record.PutVarint(hlBuf, uint64(headerLen))

	out := append([]byte{}, hlBuf[:n]...)
	out = append(out, headerBuf...)
	for _, b := range bodies {
		out = append(out, b...)
	}
	return out
}

type testCell struct {
	rowid   int64
	payload []byte
}

// buildLeafPage writes a table-leaf b-tree page into a pageSize buffer,
// accounting for page 1's 100-byte file header prefix.
func buildLeafPage(pageNum uint32, pageSize int, cells []testCell) []byte {
	data := make([]byte, pageSize)
	headerOffset := 0
	if pageNum == 1 {
		headerOffset = 100
	}

	data[headerOffset+0] = 0x0d // leaf table page
	binary.BigEndian.PutUint16(data[headerOffset+3:], uint16(len(cells)))

	cellContentOffset := pageSize
	cellPtrOffset := headerOffset + 8

	offsets := make([]int, len(cells))
	varintBuf := make([]byte, 10)
	for i, cell := range cells {
		var buf []byte
		n := record.PutVarint(varintBuf, uint64(len(cell.payload)))
		buf = append(buf, varintBuf[:n]...)
		n = record.PutVarint(varintBuf, uint64(cell.rowid))
		buf = append(buf, varintBuf[:n]...)
		buf = append(buf, cell.payload...)

		cellContentOffset -= len(buf)
		copy(data[cellContentOffset:], buf)
		offsets[i] = cellContentOffset
	}

	for i := range cells {
		binary.BigEndian.PutUint16(data[cellPtrOffset:], uint16(offsets[i]))
		cellPtrOffset += 2
	}

	binary.BigEndian.PutUint16(data[headerOffset+5:], uint16(cellContentOffset))
	return data
}

// buildFixtureDB writes a two-page database to a temp file: page 1 holds
// the file header plus a sqlite_master leaf with one "table" row
// describing table u(id INTEGER, name TEXT); page 2 is u's own leaf,
// holding the given rows.
func buildFixtureDB(t *testing.T, rows []testCell) string {
	t.Helper()
	return buildFixtureDBWithSchema(t, "CREATE TABLE u (id INTEGER, name TEXT)", rows)
}

// buildFixtureDBWithSchema is buildFixtureDB but with a caller-supplied
// CREATE TABLE statement, for tests that need a schema buildFixtureDB's
// fixed one doesn't cover (e.g. an INTEGER PRIMARY KEY rowid alias).
func buildFixtureDBWithSchema(t *testing.T, createSQL string, rows []testCell) string {
	t.Helper()
	const pageSize = 4096

	masterRow := encodeRecord("table", "u", "u", int64(2), createSQL)
	page1 := buildLeafPage(1, pageSize, []testCell{{rowid: 1, payload: masterRow}})

	header := pager.NewDatabaseHeader(pageSize)
	header.DatabaseSize = 2
	header.FileChangeCounter = 1
	copy(page1, header.Serialize())

	page2 := buildLeafPage(2, pageSize, rows)

	path := filepath.Join(t.TempDir(), "fixture.db")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(page1); err != nil {
		t.Fatalf("write page1: %v", err)
	}
	if _, err := f.Write(page2); err != nil {
		t.Fatalf("write page2: %v", err)
	}
	return path
}

func TestOpenAndSchema(t *testing.T) {
	path := buildFixtureDB(t, nil)

	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.PageCount() != 2 {
		t.Errorf("PageCount() = %d, want 2", db.PageCount())
	}

	tables := db.Schema().ListTables()
	if len(tables) != 1 || tables[0] != "u" {
		t.Fatalf("ListTables() = %v, want [u]", tables)
	}

	table, ok := db.Schema().GetTable("u")
	if !ok {
		t.Fatal("GetTable(u) not found")
	}
	if len(table.Columns) != 2 || table.Columns[0].Name != "id" || table.Columns[1].Name != "name" {
		t.Errorf("unexpected columns: %+v", table.Columns)
	}
}

func TestOpenCursorEmptyTable(t *testing.T) {
	path := buildFixtureDB(t, nil)
	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	cur, err := db.OpenCursor("u")
	if err != nil {
		t.Fatalf("OpenCursor() error = %v", err)
	}
	ok, err := cur.MoveNext()
	if err != nil {
		t.Fatalf("MoveNext() error = %v", err)
	}
	if ok {
		t.Error("MoveNext() on empty table = true, want false")
	}
}

func TestCursorSeekAndScan(t *testing.T) {
	rows := []testCell{
		{rowid: 1, payload: encodeRecord(int64(1), "alice")},
		{rowid: 2, payload: encodeRecord(int64(2), "bob")},
	}
	path := buildFixtureDB(t, rows)

	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	cur, err := db.OpenCursor("u")
	if err != nil {
		t.Fatalf("OpenCursor() error = %v", err)
	}

	found, err := cur.Seek(1)
	if err != nil {
		t.Fatalf("Seek(1) error = %v", err)
	}
	if !found {
		t.Fatal("Seek(1) = false, want true")
	}
	name, err := cur.Text(1)
	if err != nil {
		t.Fatalf("Text(1) error = %v", err)
	}
	if name != "alice" {
		t.Errorf("Text(1) = %q, want %q", name, "alice")
	}

	found, err = cur.Seek(99)
	if err != nil {
		t.Fatalf("Seek(99) error = %v", err)
	}
	if found {
		t.Error("Seek(99) = true, want false")
	}

	cur.Reset()
	count := 0
	for {
		ok, err := cur.MoveNext()
		if err != nil {
			t.Fatalf("MoveNext() error = %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != len(rows) {
		t.Errorf("scanned %d rows, want %d", count, len(rows))
	}
}

func TestCursorColumnTypeAndOutOfRange(t *testing.T) {
	rows := []testCell{{rowid: 1, payload: encodeRecord(int64(7), nil)}}
	path := buildFixtureDB(t, rows)

	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	cur, err := db.OpenCursor("u")
	if err != nil {
		t.Fatalf("OpenCursor() error = %v", err)
	}
	if ok, err := cur.MoveNext(); err != nil || !ok {
		t.Fatalf("MoveNext() = %v, %v", ok, err)
	}

	isNull, err := cur.IsNull(1)
	if err != nil {
		t.Fatalf("IsNull(1) error = %v", err)
	}
	if !isNull {
		t.Error("IsNull(1) = false, want true")
	}

	typ, err := cur.ColumnType(1)
	if err != nil {
		t.Fatalf("ColumnType(1) error = %v", err)
	}
	if typ != record.ColumnNull {
		t.Errorf("ColumnType(1) = %v, want ColumnNull", typ)
	}

	if _, err := cur.Int(5); err == nil {
		t.Error("Int(5) expected out-of-range error, got nil")
	}
}

// TestCursorRowIDAliasColumn exercises the testable property that an
// INTEGER PRIMARY KEY column reads back the row's rowid: SQLite itself
// stores NULL in the record for such a column (the value lives in the
// cell key, not the payload), so a plain record decode would wrongly read
// NULL/0 here without the rowid-alias substitution in Cursor.Int.
func TestCursorRowIDAliasColumn(t *testing.T) {
	rows := []testCell{
		{rowid: 1, payload: encodeRecord(nil, "alice")},
	}
	path := buildFixtureDBWithSchema(t, "CREATE TABLE u (id INTEGER PRIMARY KEY, name TEXT)", rows)

	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	table, ok := db.Schema().GetTable("u")
	if !ok {
		t.Fatal("GetTable(u) not found")
	}
	if !table.Columns[0].RowIDAlias {
		t.Fatal("id column not recognized as a rowid alias")
	}

	cur, err := db.OpenCursor("u")
	if err != nil {
		t.Fatalf("OpenCursor() error = %v", err)
	}
	if ok, err := cur.Seek(1); err != nil || !ok {
		t.Fatalf("Seek(1) = %v, %v", ok, err)
	}

	id, err := cur.Int(0)
	if err != nil {
		t.Fatalf("Int(0) error = %v", err)
	}
	if id != 1 {
		t.Errorf("Int(0) = %d, want 1 (the rowid)", id)
	}
	if isNull, err := cur.IsNull(0); err != nil || isNull {
		t.Errorf("IsNull(0) = %v, %v, want false", isNull, err)
	}
	typ, err := cur.ColumnType(0)
	if err != nil {
		t.Fatalf("ColumnType(0) error = %v", err)
	}
	if typ != record.ColumnInteger {
		t.Errorf("ColumnType(0) = %v, want ColumnInteger", typ)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.db"), Options{}); err == nil {
		t.Fatal("expected error opening a nonexistent file")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	path := buildFixtureDB(t, nil)
	db, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
