package pager

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/basaltdb/sqlitecore/internal/dberr"
)

// DecompressTransform reverses a per-page xz stream stored in place of
// plaintext. Each compressed page is laid out as a 4-byte big-endian
// length of the xz stream followed by the stream itself, zero-padded out
// to the full page size; this layout is particular to this engine, not
// something any real SQLite database format does on its own, so it only
// applies to a database explicitly opened with the compression page
// transform enabled.
type DecompressTransform struct {
	pageSize int
}

// NewDecompressTransform builds a transform for pages of the given size.
func NewDecompressTransform(pageSize int) *DecompressTransform {
	return &DecompressTransform{pageSize: pageSize}
}

func (d *DecompressTransform) Apply(pgno Pgno, raw []byte) ([]byte, error) {
	if err := requireLen(pgno, raw, 4, "page too short to hold compressed stream length"); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(raw[:4])
	if int(n) > len(raw)-4 {
		return nil, &dberr.CorruptPageError{Page: uint32(pgno), Reason: "compressed stream length exceeds page"}
	}

	r, err := xz.NewReader(bytes.NewReader(raw[4 : 4+n]))
	if err != nil {
		return nil, &dberr.CorruptPageError{Page: uint32(pgno), Reason: "invalid xz stream", Err: err}
	}

	out := make([]byte, d.pageSize)
	m, err := io.ReadFull(r, out)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, &dberr.CorruptPageError{Page: uint32(pgno), Reason: "xz decompression failed", Err: err}
	}
	if m < d.pageSize {
		// The original page's true content was shorter than pageSize and
		// was zero-padded before compression; io.ReadFull already left
		// the remainder of out zeroed.
		_ = m
	}
	return out, nil
}
