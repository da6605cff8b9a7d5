package wal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/basaltdb/sqlitecore/internal/pager"
)

// buildWAL assembles a valid in-memory WAL file: a header followed by the
// given frames (page number -> page data), computing the rolling checksum
// as SQLite itself would when appending frames.
func buildWAL(t *testing.T, order binary.ByteOrder, magic uint32, pageSize uint32, salt1, salt2 uint32, frames []walFrameSpec) []byte {
	t.Helper()

	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], magic) // read big-endian before the order is known
	order.PutUint32(header[4:8], 3007000)
	order.PutUint32(header[8:12], pageSize)
	order.PutUint32(header[12:16], 1)
	order.PutUint32(header[16:20], salt1)
	order.PutUint32(header[20:24], salt2)

	s0, s1 := checksum(order, 0, 0, header[0:24])
	order.PutUint32(header[24:28], s0)
	order.PutUint32(header[28:32], s1)

	buf := append([]byte{}, header...)

	for _, f := range frames {
		fh := make([]byte, FrameHeaderSize)
		order.PutUint32(fh[0:4], f.pgno)
		order.PutUint32(fh[4:8], f.commitSize)
		order.PutUint32(fh[8:12], salt1)
		order.PutUint32(fh[12:16], salt2)

		ns0, ns1 := checksum(order, s0, s1, fh[:8])
		ns0, ns1 = checksum(order, ns0, ns1, f.data)
		order.PutUint32(fh[16:20], ns0)
		order.PutUint32(fh[20:24], ns1)
		s0, s1 = ns0, ns1

		buf = append(buf, fh...)
		buf = append(buf, f.data...)
	}

	return buf
}

type walFrameSpec struct {
	pgno       uint32
	commitSize uint32
	data       []byte
}

func pageFilled(pageSize int, b byte) []byte {
	buf := make([]byte, pageSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestParseHeaderBigEndian(t *testing.T) {
	raw := buildWAL(t, binary.BigEndian, magicBig, 4096, 111, 222, nil)
	h, err := ParseHeader(raw[:HeaderSize])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.PageSize != 4096 || h.Salt1 != 111 || h.Salt2 != 222 {
		t.Errorf("unexpected header fields: %+v", h)
	}
	if h.byteOrder != binary.BigEndian {
		t.Error("expected big-endian byte order")
	}
}

func TestParseHeaderLittleEndian(t *testing.T) {
	raw := buildWAL(t, binary.LittleEndian, magicLittle, 4096, 7, 8, nil)
	h, err := ParseHeader(raw[:HeaderSize])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.byteOrder != binary.LittleEndian {
		t.Error("expected little-endian byte order")
	}
}

func TestParseHeaderBadMagic(t *testing.T) {
	raw := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(raw[0:4], 0xdeadbeef)
	if _, err := ParseHeader(raw); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestParseHeaderTruncated(t *testing.T) {
	if _, err := ParseHeader(make([]byte, 10)); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestParseHeaderBadChecksum(t *testing.T) {
	raw := buildWAL(t, binary.BigEndian, magicBig, 4096, 1, 2, nil)
	raw[24] ^= 0xff
	if _, err := ParseHeader(raw[:HeaderSize]); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestBuildFrameIndexSingleCommit(t *testing.T) {
	pageSize := 512
	data := buildWAL(t, binary.LittleEndian, magicLittle, uint32(pageSize), 5, 6, []walFrameSpec{
		{pgno: 1, commitSize: 0, data: pageFilled(pageSize, 0x01)},
		{pgno: 3, commitSize: 3, data: pageFilled(pageSize, 0x03)},
	})
	h, err := ParseHeader(data[:HeaderSize])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	idx, err := BuildFrameIndex(h, data)
	if err != nil {
		t.Fatalf("BuildFrameIndex: %v", err)
	}
	if idx.frameCount != 2 {
		t.Errorf("frameCount = %d, want 2", idx.frameCount)
	}
	if idx.pageCount != 3 {
		t.Errorf("pageCount = %d, want 3", idx.pageCount)
	}
	if _, ok := idx.offsets[1]; !ok {
		t.Error("expected page 1 in frame index")
	}
	if _, ok := idx.offsets[3]; !ok {
		t.Error("expected page 3 in frame index")
	}
}

func TestBuildFrameIndexUncommittedFramesInvisible(t *testing.T) {
	pageSize := 512
	data := buildWAL(t, binary.LittleEndian, magicLittle, uint32(pageSize), 1, 1, []walFrameSpec{
		{pgno: 1, commitSize: 1, data: pageFilled(pageSize, 0xaa)},
		{pgno: 2, commitSize: 0, data: pageFilled(pageSize, 0xbb)}, // never commits
	})
	h, err := ParseHeader(data[:HeaderSize])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	idx, err := BuildFrameIndex(h, data)
	if err != nil {
		t.Fatalf("BuildFrameIndex: %v", err)
	}
	if _, ok := idx.offsets[2]; ok {
		t.Error("uncommitted frame for page 2 should not be visible")
	}
	if idx.pageCount != 1 {
		t.Errorf("pageCount = %d, want 1 (last commit)", idx.pageCount)
	}
}

func TestBuildFrameIndexLastWriteWins(t *testing.T) {
	pageSize := 512
	data := buildWAL(t, binary.LittleEndian, magicLittle, uint32(pageSize), 9, 9, []walFrameSpec{
		{pgno: 5, commitSize: 0, data: pageFilled(pageSize, 0x01)},
		{pgno: 5, commitSize: 5, data: pageFilled(pageSize, 0x02)},
	})
	h, err := ParseHeader(data[:HeaderSize])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	idx, err := BuildFrameIndex(h, data)
	if err != nil {
		t.Fatalf("BuildFrameIndex: %v", err)
	}
	off := idx.offsets[5]
	if data[off] != 0x02 {
		t.Errorf("expected last-write-wins value 0x02, got 0x%02x", data[off])
	}
}

func TestBuildFrameIndexSaltMismatchTruncatesScan(t *testing.T) {
	pageSize := 512
	data := buildWAL(t, binary.LittleEndian, magicLittle, uint32(pageSize), 1, 2, []walFrameSpec{
		{pgno: 1, commitSize: 1, data: pageFilled(pageSize, 0x11)},
	})
	h, err := ParseHeader(data[:HeaderSize])
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}

	// Append a frame written with the wrong salt (stale WAL generation).
	extra := make([]byte, FrameHeaderSize+pageSize)
	binary.LittleEndian.PutUint32(extra[0:4], 2)
	binary.LittleEndian.PutUint32(extra[8:12], 999)
	binary.LittleEndian.PutUint32(extra[12:16], 999)
	data = append(data, extra...)

	idx, err := BuildFrameIndex(h, data)
	if err != nil {
		t.Fatalf("BuildFrameIndex: %v", err)
	}
	if _, ok := idx.offsets[2]; ok {
		t.Error("frame with mismatched salt should not be indexed")
	}
	if idx.frameCount != 1 {
		t.Errorf("frameCount = %d, want 1", idx.frameCount)
	}
}

func TestSourceReadPageRawFallsBackToMain(t *testing.T) {
	pageSize := 512
	mainData := append(pageFilled(pageSize, 0x10), pageFilled(pageSize, 0x20)...)
	main := pager.NewMemorySource(mainData, pageSize)

	dir := t.TempDir()
	walPath := filepath.Join(dir, "test.db-wal")
	walData := buildWAL(t, binary.LittleEndian, magicLittle, uint32(pageSize), 3, 4, []walFrameSpec{
		{pgno: 1, commitSize: 2, data: pageFilled(pageSize, 0xaa)},
	})
	if err := os.WriteFile(walPath, walData, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src, err := Open(main, walPath, pageSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	p1, err := src.ReadPageRaw(1)
	if err != nil {
		t.Fatalf("ReadPageRaw(1): %v", err)
	}
	if p1[0] != 0xaa {
		t.Errorf("page 1 should come from WAL, got %#x", p1[0])
	}

	p2, err := src.ReadPageRaw(2)
	if err != nil {
		t.Fatalf("ReadPageRaw(2): %v", err)
	}
	if p2[0] != 0x20 {
		t.Errorf("page 2 should fall back to main file, got %#x", p2[0])
	}

	if src.PageCount(2) != 2 {
		t.Errorf("PageCount = %d, want 2", src.PageCount(2))
	}
	if src.FrameCount() != 1 {
		t.Errorf("FrameCount = %d, want 1", src.FrameCount())
	}
}

func TestOpenMissingWALFile(t *testing.T) {
	main := pager.NewMemorySource(pageFilled(512, 0x00), 512)
	_, err := Open(main, filepath.Join(t.TempDir(), "absent-wal"), 512)
	if err == nil {
		t.Fatal("expected error opening a nonexistent WAL file")
	}
}

func TestOpenPageSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	walPath := filepath.Join(dir, "test.db-wal")
	walData := buildWAL(t, binary.LittleEndian, magicLittle, 4096, 1, 1, nil)
	if err := os.WriteFile(walPath, walData, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	main := pager.NewMemorySource(pageFilled(512, 0x00), 512)
	if _, err := Open(main, walPath, 512); err == nil {
		t.Fatal("expected error for page size mismatch")
	}
}
