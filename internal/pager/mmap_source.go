package pager

import (
	"golang.org/x/exp/mmap"

	"github.com/basaltdb/sqlitecore/internal/dberr"
)

// MmapSource reads pages through a memory-mapped view of the database
// file instead of explicit pread calls. Useful for large databases opened
// read-only, where the OS page cache can serve repeated reads of the same
// file region without a syscall per access.
type MmapSource struct {
	ra       *mmap.ReaderAt
	pageSize int
}

// NewMmapSource memory-maps path read-only.
func NewMmapSource(path string, pageSize int) (*MmapSource, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, &dberr.InvalidDatabaseError{Path: path, Reason: "cannot mmap file", Err: err}
	}
	return &MmapSource{ra: ra, pageSize: pageSize}, nil
}

func (s *MmapSource) SetPageSize(pageSize int) {
	s.pageSize = pageSize
}

func (s *MmapSource) ReadPageRaw(pgno Pgno) ([]byte, error) {
	if pgno == 0 {
		return nil, &dberr.OutOfRangeError{What: "page number", Value: 0, Bound: 1}
	}
	buf := make([]byte, s.pageSize)
	off := int64(pgno-1) * int64(s.pageSize)
	n, err := s.ra.ReadAt(buf, off)
	if err != nil || n < s.pageSize {
		return nil, &dberr.CorruptPageError{Page: uint32(pgno), Reason: "short mmap read", Err: err}
	}
	return buf, nil
}

func (s *MmapSource) Size() (int64, error) {
	return int64(s.ra.Len()), nil
}

func (s *MmapSource) Close() error {
	return s.ra.Close()
}
