package pager

import (
	"fmt"
	"io"
	"os"

	"github.com/basaltdb/sqlitecore/internal/dberr"
)

// Pgno is a 1-based SQLite page number. Page 0 never exists; page 1 holds
// the 100-byte file header in its first 100 bytes.
type Pgno uint32

// Source is the page source contract every variant (file-backed,
// memory-backed, or a wrapper around one of those) implements. It returns
// raw page bytes exactly as they sit in the file or buffer - no decryption,
// no decompression. Those happen in the transform pipeline layered on top.
type Source interface {
	// ReadPageRaw returns the pageSize bytes of page pgno, untransformed.
	ReadPageRaw(pgno Pgno) ([]byte, error)

	// Size returns the total size of the backing store in bytes.
	Size() (int64, error)

	// Close releases any underlying file handle or mapping.
	Close() error
}

// FileSource reads pages directly from an *os.File. Each ReadPageRaw call
// issues one pread-equivalent; there is no buffering here, because the
// cache wrapper above this is where reuse is supposed to happen.
type FileSource struct {
	file     *os.File
	pageSize int
}

// NewFileSource opens path read-only and wraps it as a page Source.
// pageSize is not known until the file header is parsed, so callers open
// with a provisional size (the default 4096) and call SetPageSize once
// the real header has been read from page 1.
func NewFileSource(path string, pageSize int) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dberr.InvalidDatabaseError{Path: path, Reason: "cannot open file", Err: err}
	}
	return &FileSource{file: f, pageSize: pageSize}, nil
}

// SetPageSize updates the page size used to compute byte offsets, once the
// real value has been parsed out of the file header.
func (s *FileSource) SetPageSize(pageSize int) {
	s.pageSize = pageSize
}

func (s *FileSource) ReadPageRaw(pgno Pgno) ([]byte, error) {
	if pgno == 0 {
		return nil, &dberr.OutOfRangeError{What: "page number", Value: 0, Bound: 1}
	}
	buf := make([]byte, s.pageSize)
	off := int64(pgno-1) * int64(s.pageSize)
	n, err := s.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, &dberr.CorruptPageError{Page: uint32(pgno), Reason: "short read", Err: err}
	}
	if n < s.pageSize {
		return nil, &dberr.CorruptPageError{Page: uint32(pgno), Reason: fmt.Sprintf("read %d of %d bytes", n, s.pageSize)}
	}
	return buf, nil
}

func (s *FileSource) Size() (int64, error) {
	fi, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *FileSource) Close() error {
	return s.file.Close()
}

// MemorySource serves pages out of an in-memory byte slice: a database
// opened from :memory: or one whose bytes were already loaded by the
// caller (e.g. an embedded fixture in a test).
type MemorySource struct {
	data     []byte
	pageSize int
}

// NewMemorySource wraps data as a page Source.
func NewMemorySource(data []byte, pageSize int) *MemorySource {
	return &MemorySource{data: data, pageSize: pageSize}
}

func (s *MemorySource) SetPageSize(pageSize int) {
	s.pageSize = pageSize
}

func (s *MemorySource) ReadPageRaw(pgno Pgno) ([]byte, error) {
	if pgno == 0 {
		return nil, &dberr.OutOfRangeError{What: "page number", Value: 0, Bound: 1}
	}
	off := int(pgno-1) * s.pageSize
	if off+s.pageSize > len(s.data) {
		return nil, &dberr.CorruptPageError{Page: uint32(pgno), Reason: "page beyond end of buffer"}
	}
	buf := make([]byte, s.pageSize)
	copy(buf, s.data[off:off+s.pageSize])
	return buf, nil
}

func (s *MemorySource) Size() (int64, error) {
	return int64(len(s.data)), nil
}

func (s *MemorySource) Close() error { return nil }
