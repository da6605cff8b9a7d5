package record

import (
	"fmt"

	"github.com/basaltdb/sqlitecore/internal/utf"
)

// columnEntry locates one column's payload bytes within the decoder's
// assembled payload slice.
type columnEntry struct {
	typ    SerialType
	offset int
	length int
}

// Decoder reads a single SQLite record (the body of a table-leaf or
// index-leaf cell) column by column. Column values are decoded lazily on
// first access and memoized; a Decoder built over a payload with no
// overflow borrows directly from the page buffer. Blob returns slices into
// that buffer without copying; Text returns a new string, so TEXT bytes are
// copied on every Text call.
type Decoder struct {
	payload []byte
	enc     utf.Encoding
	cols    []columnEntry
	decoded []bool
	ints    []int64
	floats  []float64
	blobs   [][]byte
}

// Decode parses a record header and returns a Decoder over payload,
// assuming UTF-8 text encoding. payload must already be the fully
// assembled logical record (local cell bytes plus any overflow, see
// AssemblePayload) - decoding itself never touches overflow pages.
func Decode(payload []byte) (*Decoder, error) {
	return DecodeWithEncoding(payload, utf.UTF8)
}

// DecodeWithEncoding is Decode, but TEXT columns are transcoded from enc
// (the database's declared text encoding, utf.UTF16LE or utf.UTF16BE) to
// UTF-8 on access. Pass utf.UTF8 for a plain UTF-8 database, which makes
// this equivalent to Decode.
func DecodeWithEncoding(payload []byte, enc utf.Encoding) (*Decoder, error) {
	return DecodeInto(payload, enc, nil)
}

// DecodeInto is DecodeWithEncoding, but reuses reuse's column-value slices
// when they already have enough capacity instead of allocating fresh ones
// - the mechanism a prepared reader uses to decode one row after another
// at zero steady-state allocation. reuse may be nil, in which case this is
// exactly DecodeWithEncoding.
func DecodeInto(payload []byte, enc utf.Encoding, reuse *Decoder) (*Decoder, error) {
	headerSize, n := GetVarint(payload)
	if n == 0 {
		return nil, fmt.Errorf("record: truncated header varint")
	}
	if headerSize < uint64(n) || headerSize > uint64(len(payload)) {
		return nil, fmt.Errorf("record: header size %d out of range for %d byte payload", headerSize, len(payload))
	}

	var cols []columnEntry
	if reuse != nil {
		cols = reuse.cols[:0]
	}
	pos := n
	bodyOffset := int(headerSize)
	for pos < int(headerSize) {
		st, m := GetVarint(payload[pos:])
		if m == 0 {
			return nil, fmt.Errorf("record: truncated serial type varint")
		}
		pos += m
		typ := SerialType(st)
		length := typ.Len()
		if bodyOffset+length > len(payload) {
			return nil, fmt.Errorf("record: column overruns payload (offset %d, len %d, payload %d)", bodyOffset, length, len(payload))
		}
		cols = append(cols, columnEntry{typ: typ, offset: bodyOffset, length: length})
		bodyOffset += length
	}
	if pos != int(headerSize) {
		return nil, fmt.Errorf("record: header size mismatch (walked %d, declared %d)", pos, headerSize)
	}

	if enc == 0 {
		enc = utf.UTF8
	}

	d := reuse
	if d == nil {
		d = &Decoder{}
	}
	d.payload = payload
	d.enc = enc
	d.cols = cols
	d.decoded = resizeBools(d.decoded, len(cols))
	d.ints = resizeInt64s(d.ints, len(cols))
	d.floats = resizeFloat64s(d.floats, len(cols))
	d.blobs = resizeByteSlices(d.blobs, len(cols))
	return d, nil
}

func resizeBools(s []bool, n int) []bool {
	if cap(s) >= n {
		s = s[:n]
		for i := range s {
			s[i] = false
		}
		return s
	}
	return make([]bool, n)
}

func resizeInt64s(s []int64, n int) []int64 {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]int64, n)
}

func resizeFloat64s(s []float64, n int) []float64 {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]float64, n)
}

func resizeByteSlices(s [][]byte, n int) [][]byte {
	if cap(s) >= n {
		s = s[:n]
		for i := range s {
			s[i] = nil
		}
		return s
	}
	return make([][]byte, n)
}

// NumColumns returns the number of columns found in the record header.
// For a table row this may be fewer than the schema's column count if the
// row predates an ALTER TABLE ADD COLUMN; missing trailing columns take
// their declared default (NULL, absent DEFAULT support).
func (d *Decoder) NumColumns() int {
	return len(d.cols)
}

func (d *Decoder) checkIndex(i int) error {
	if i < 0 || i >= len(d.cols) {
		return fmt.Errorf("record: column index %d out of range [0,%d)", i, len(d.cols))
	}
	return nil
}

// ColumnType reports the storage class of column i.
func (d *Decoder) ColumnType(i int) (ColumnType, error) {
	if err := d.checkIndex(i); err != nil {
		return ColumnNull, err
	}
	return d.cols[i].typ.ColumnType(), nil
}

// IsNull reports whether column i is SQL NULL.
func (d *Decoder) IsNull(i int) (bool, error) {
	if err := d.checkIndex(i); err != nil {
		return false, err
	}
	return d.cols[i].typ == SerialNull, nil
}

func (d *Decoder) ensure(i int) {
	if d.decoded[i] {
		return
	}
	e := d.cols[i]
	b := d.payload[e.offset : e.offset+e.length]
	switch e.typ.ColumnType() {
	case ColumnInteger:
		d.ints[i] = decodeInt(e.typ, b)
	case ColumnFloat:
		d.floats[i] = decodeFloat(b)
	case ColumnText, ColumnBlob:
		d.blobs[i] = b
	}
	d.decoded[i] = true
}

// Int returns column i interpreted as an integer, applying SQLite's usual
// storage-class coercions (floats truncate; text and blob read as 0, even
// when the text is numeric - callers needing full manifest-typed coercion
// should check ColumnType first).
func (d *Decoder) Int(i int) (int64, error) {
	if err := d.checkIndex(i); err != nil {
		return 0, err
	}
	d.ensure(i)
	switch d.cols[i].typ.ColumnType() {
	case ColumnInteger:
		return d.ints[i], nil
	case ColumnFloat:
		return int64(d.floats[i]), nil
	default:
		return 0, nil
	}
}

// Real returns column i interpreted as a float64.
func (d *Decoder) Real(i int) (float64, error) {
	if err := d.checkIndex(i); err != nil {
		return 0, err
	}
	d.ensure(i)
	switch d.cols[i].typ.ColumnType() {
	case ColumnFloat:
		return d.floats[i], nil
	case ColumnInteger:
		return float64(d.ints[i]), nil
	default:
		return 0, nil
	}
}

// Text returns column i's bytes interpreted as text and transcoded to
// UTF-8 per the Decoder's declared encoding. The result is always a new
// string - a copy of the stored bytes for a UTF-8 database, a transcoded
// copy for a UTF-16 one - so it does not alias the payload buffer and stays
// valid after the page or buffer is reused.
func (d *Decoder) Text(i int) (string, error) {
	if err := d.checkIndex(i); err != nil {
		return "", err
	}
	d.ensure(i)
	if d.cols[i].typ.ColumnType() != ColumnText {
		return "", nil
	}
	raw := d.blobs[i]
	if d.enc == utf.UTF8 {
		return string(raw), nil
	}
	return string(utf.UTF16ToUTF8(raw, d.enc)), nil
}

// Blob returns column i's raw bytes. The returned slice aliases the
// decoder's payload buffer and must be copied by the caller before the
// owning page is released back to the cache.
func (d *Decoder) Blob(i int) ([]byte, error) {
	if err := d.checkIndex(i); err != nil {
		return nil, err
	}
	d.ensure(i)
	if d.cols[i].typ.ColumnType() != ColumnBlob {
		return nil, nil
	}
	return d.blobs[i], nil
}

// Materialize forces every column to decode immediately instead of on
// first access. Used by callers (e.g. schema loading) that need every
// column of every row and would rather pay the cost up front than on a
// scattered set of later accessor calls.
func (d *Decoder) Materialize() {
	for i := range d.cols {
		d.ensure(i)
	}
}
