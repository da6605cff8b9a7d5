// Package wal implements the read-only overlay over a SQLite write-ahead
// log: parsing the WAL file header, scanning its frames into a page-number
// index with salt and checksum verification, and resolving page reads
// against that index before falling back to the main database file. There
// is no checkpointing, no -shm index, and no locking - a reader only ever
// consumes frames another connection already committed.
package wal

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/basaltdb/sqlitecore/internal/dberr"
	"github.com/basaltdb/sqlitecore/internal/pager"
)

const (
	// HeaderSize is the size of the WAL file header.
	HeaderSize = 32

	// FrameHeaderSize is the size of a WAL frame header, preceding each
	// page_size-byte frame body.
	FrameHeaderSize = 24

	// magicBig and magicLittle select the byte order used for the header
	// and frame checksums; magicLittle is magicBig with its low bit set.
	magicBig    uint32 = 0x377f0682
	magicLittle uint32 = 0x377f0683
)

// Header is the 32-byte WAL file header.
type Header struct {
	Magic            uint32
	FormatVersion    uint32
	PageSize         uint32
	CheckpointSeq    uint32
	Salt1            uint32
	Salt2            uint32
	Checksum1        uint32
	Checksum2        uint32
	byteOrder        binary.ByteOrder
}

// ParseHeader parses the 32-byte WAL header from raw and verifies its own
// checksum against the preceding 24 bytes.
func ParseHeader(raw []byte) (*Header, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("wal: header truncated: got %d bytes, want %d", len(raw), HeaderSize)
	}

	magic := binary.BigEndian.Uint32(raw[0:4])
	var order binary.ByteOrder
	switch magic {
	case magicBig:
		order = binary.BigEndian
	case magicLittle:
		order = binary.LittleEndian
	default:
		return nil, fmt.Errorf("wal: bad magic 0x%08x", magic)
	}

	h := &Header{
		Magic:         magic,
		FormatVersion: order.Uint32(raw[4:8]),
		PageSize:      order.Uint32(raw[8:12]),
		CheckpointSeq: order.Uint32(raw[12:16]),
		Salt1:         order.Uint32(raw[16:20]),
		Salt2:         order.Uint32(raw[20:24]),
		Checksum1:     order.Uint32(raw[24:28]),
		Checksum2:     order.Uint32(raw[28:32]),
		byteOrder:     order,
	}

	s0, s1 := checksum(order, 0, 0, raw[0:24])
	if s0 != h.Checksum1 || s1 != h.Checksum2 {
		return nil, fmt.Errorf("wal: header checksum mismatch")
	}

	return h, nil
}

// checksum folds data (a multiple of 8 bytes) into the running
// accumulator (s0, s1), SQLite's WAL checksum: each 8-byte chunk is two
// native-endian uint32 words x0, x1, folded as s0 += x0 + s1; s1 += x1 + s0.
func checksum(order binary.ByteOrder, s0, s1 uint32, data []byte) (uint32, uint32) {
	for i := 0; i+8 <= len(data); i += 8 {
		x0 := order.Uint32(data[i:])
		x1 := order.Uint32(data[i+4:])
		s0 += x0 + s1
		s1 += x1 + s0
	}
	return s0, s1
}

// frameHeader is one parsed 24-byte WAL frame header.
type frameHeader struct {
	pgno          uint32
	dbSizeCommit  uint32 // non-zero only on a commit frame
	salt1, salt2  uint32
	checksum1, c2 uint32
}

func parseFrameHeader(order binary.ByteOrder, raw []byte) frameHeader {
	return frameHeader{
		pgno:         order.Uint32(raw[0:4]),
		dbSizeCommit: order.Uint32(raw[4:8]),
		salt1:        order.Uint32(raw[8:12]),
		salt2:        order.Uint32(raw[12:16]),
		checksum1:    order.Uint32(raw[16:20]),
		c2:           order.Uint32(raw[20:24]),
	}
}

// FrameIndex maps a page number to its byte offset (of the page_size-byte
// payload, past the frame header) within the WAL file, for the most
// recent committed frame that wrote it.
type FrameIndex struct {
	offsets     map[uint32]int64
	pageCount   uint32 // effective page count as of the last verified commit
	frameCount  int
}

// BuildFrameIndex scans walData (the full contents of the -wal file)
// against header and returns the frame index for the snapshot defined by
// the last successfully verified commit frame. A salt mismatch or a
// checksum mismatch silently truncates the scan - everything after that
// point is either from a different WAL generation or an incompletely
// written frame, and in both cases invisible to a reader.
func BuildFrameIndex(header *Header, walData []byte) (*FrameIndex, error) {
	idx := &FrameIndex{offsets: make(map[uint32]int64)}
	if header.PageSize == 0 {
		return idx, nil
	}
	frameStride := FrameHeaderSize + int(header.PageSize)

	s0, s1 := header.Checksum1, header.Checksum2
	offset := HeaderSize
	lastCommittedOffsets := map[uint32]int64{}
	lastCommittedPageCount := uint32(0)

	for offset+frameStride <= len(walData) {
		raw := walData[offset : offset+frameStride]
		fh := parseFrameHeader(header.byteOrder, raw[:FrameHeaderSize])

		if fh.salt1 != header.Salt1 || fh.salt2 != header.Salt2 {
			break
		}

		body := raw[FrameHeaderSize:]
		ns0, ns1 := checksum(header.byteOrder, s0, s1, raw[:8])
		ns0, ns1 = checksum(header.byteOrder, ns0, ns1, body)
		if ns0 != fh.checksum1 || ns1 != fh.c2 {
			break
		}
		s0, s1 = ns0, ns1

		idx.offsets[fh.pgno] = int64(offset + FrameHeaderSize)
		idx.frameCount++

		if fh.dbSizeCommit != 0 {
			for k, v := range idx.offsets {
				lastCommittedOffsets[k] = v
			}
			lastCommittedPageCount = fh.dbSizeCommit
		}

		offset += frameStride
	}

	idx.offsets = lastCommittedOffsets
	idx.pageCount = lastCommittedPageCount
	return idx, nil
}

// Source wraps a main-file pager.Source with a WAL frame index: a page
// read consults the index first and falls back to the main source only
// for pages the WAL never touched.
type Source struct {
	main      pager.Source
	walFile   *os.File
	index     *FrameIndex
	pageSize  int
}

// Open opens walPath alongside a main file source already positioned to
// read page size mainPageSize, parses the WAL header, and builds its
// frame index. A missing or unreadable WAL file is reported as the error
// from opening or reading it; a malformed header or a page size other than
// mainPageSize is reported as an InvalidDatabaseError.
func Open(main pager.Source, walPath string, mainPageSize int) (*Source, error) {
	f, err := os.Open(walPath)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, HeaderSize)
	if _, err := f.ReadAt(raw, 0); err != nil {
		f.Close()
		return nil, err
	}
	header, err := ParseHeader(raw)
	if err != nil {
		f.Close()
		return nil, &dberr.InvalidDatabaseError{Path: walPath, Reason: "malformed WAL header", Err: err}
	}
	if int(header.PageSize) != mainPageSize {
		f.Close()
		return nil, &dberr.InvalidDatabaseError{Path: walPath, Reason: "WAL page size does not match main file"}
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	body := make([]byte, fi.Size())
	if _, err := f.ReadAt(body, 0); err != nil && fi.Size() > 0 {
		f.Close()
		return nil, err
	}

	idx, err := BuildFrameIndex(header, body)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Source{main: main, walFile: f, index: idx, pageSize: mainPageSize}, nil
}

// PageCount returns the effective page count of the snapshot this Source
// was opened against: the main file's count unless the WAL committed a
// frame that changed it.
func (s *Source) PageCount(mainPageCount uint32) uint32 {
	if s.index.pageCount == 0 {
		return mainPageCount
	}
	return s.index.pageCount
}

// FrameCount reports how many frames were indexed (for logging/metrics).
func (s *Source) FrameCount() int { return s.index.frameCount }

// ReadPageRaw implements pager.Source: pages the WAL overwrote are served
// from the frame's payload region; everything else falls through to the
// main file.
func (s *Source) ReadPageRaw(pgno pager.Pgno) ([]byte, error) {
	if off, ok := s.index.offsets[uint32(pgno)]; ok {
		buf := make([]byte, s.pageSize)
		n, err := s.walFile.ReadAt(buf, off)
		if err != nil || n < s.pageSize {
			return nil, &dberr.CorruptPageError{Page: uint32(pgno), Reason: "short WAL frame read", Err: err}
		}
		return buf, nil
	}
	return s.main.ReadPageRaw(pgno)
}

// Size returns the main file's size; the WAL overlay does not change how
// much of the main file exists on disk, only which of its pages are
// stale.
func (s *Source) Size() (int64, error) {
	return s.main.Size()
}

// Close closes both the WAL file handle and the wrapped main source.
func (s *Source) Close() error {
	werr := s.walFile.Close()
	merr := s.main.Close()
	if werr != nil {
		return werr
	}
	return merr
}
