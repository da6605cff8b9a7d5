package record

// SerialType is the per-column type tag stored in a record header. Values
// 0-9 are fixed meanings; values >= 12 encode BLOB/TEXT lengths directly.
type SerialType uint64

const (
	SerialNull    SerialType = 0
	SerialInt8    SerialType = 1
	SerialInt16   SerialType = 2
	SerialInt24   SerialType = 3
	SerialInt32   SerialType = 4
	SerialInt48   SerialType = 5
	SerialInt64   SerialType = 6
	SerialFloat64 SerialType = 7
	SerialZero    SerialType = 8
	SerialOne     SerialType = 9
	// 10 and 11 are reserved by SQLite and never appear in a valid file.
)

// ColumnType classifies a decoded value the way the public API reports it
// (sqlite3_column_type semantics: storage class, not declared type).
type ColumnType int

const (
	ColumnNull ColumnType = iota
	ColumnInteger
	ColumnFloat
	ColumnText
	ColumnBlob
)

// Len returns the number of payload bytes a column with this serial type
// occupies in the record body, independent of any header bytes.
func (t SerialType) Len() int {
	switch {
	case t == SerialNull, t == SerialZero, t == SerialOne:
		return 0
	case t == SerialInt8:
		return 1
	case t == SerialInt16:
		return 2
	case t == SerialInt24:
		return 3
	case t == SerialInt32:
		return 4
	case t == SerialInt48:
		return 6
	case t == SerialInt64:
		return 8
	case t == SerialFloat64:
		return 8
	case t >= 12 && t%2 == 0:
		return int((t - 12) / 2)
	case t >= 13:
		return int((t - 13) / 2)
	default:
		// 10, 11: reserved, treated as zero-length so a corrupt record
		// can't run the cursor past the end of the page.
		return 0
	}
}

// ColumnType classifies the storage class a serial type decodes to.
func (t SerialType) ColumnType() ColumnType {
	switch {
	case t == SerialNull:
		return ColumnNull
	case t >= SerialInt8 && t <= SerialInt64, t == SerialZero, t == SerialOne:
		return ColumnInteger
	case t == SerialFloat64:
		return ColumnFloat
	case t >= 12 && t%2 == 0:
		return ColumnBlob
	default:
		return ColumnText
	}
}

// IsInline reports whether the serial type is one of the zero-length
// constant-value encodings (NULL, 0, 1) that store no payload bytes.
func (t SerialType) IsInline() bool {
	return t == SerialNull || t == SerialZero || t == SerialOne
}
