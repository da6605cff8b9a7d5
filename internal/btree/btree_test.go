package btree

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/basaltdb/sqlitecore/internal/record"
)

// mapProvider is a PageProvider backed by an in-memory map, standing in
// for the pager in tests that don't need real file I/O.
type mapProvider struct {
	pages map[uint32][]byte
}

func newMapProvider() *mapProvider {
	return &mapProvider{pages: make(map[uint32][]byte)}
}

func (m *mapProvider) GetPageData(pgno uint32) ([]byte, error) {
	data, ok := m.pages[pgno]
	if !ok {
		return nil, fmt.Errorf("page %d not found", pgno)
	}
	return data, nil
}

func createTestLeafPage(pageSize uint32, cells []struct {
	rowid   int64
	payload []byte
}) []byte {
	data := make([]byte, pageSize)

	data[0] = PageTypeLeafTable
	numCells := uint16(len(cells))
	binary.BigEndian.PutUint16(data[3:], numCells)

	cellContentOffset := pageSize
	cellPtrOffset := PageHeaderSizeLeaf

	cellOffsets := make([]uint32, len(cells))
	for i := 0; i < len(cells); i++ {
		cell := cells[i]

		var cellBuf [1024]byte
		offset := 0

		n := record.PutVarint(cellBuf[offset:], uint64(len(cell.payload)))
		offset += n

		n = record.PutVarint(cellBuf[offset:], uint64(cell.rowid))
		offset += n

		copy(cellBuf[offset:], cell.payload)
		offset += len(cell.payload)

		cellContentOffset -= uint32(offset)
		copy(data[cellContentOffset:], cellBuf[:offset])
		cellOffsets[i] = cellContentOffset
	}

	for i := 0; i < len(cells); i++ {
		binary.BigEndian.PutUint16(data[cellPtrOffset:], uint16(cellOffsets[i]))
		cellPtrOffset += 2
	}

	binary.BigEndian.PutUint16(data[5:], uint16(cellContentOffset))

	return data
}

func TestParsePageHeader(t *testing.T) {
	tests := []struct {
		name     string
		pageNum  uint32
		data     []byte
		wantType byte
		wantLeaf bool
		wantErr  bool
	}{
		{
			name:     "leaf table page",
			pageNum:  2,
			data:     []byte{0x0d, 0, 0, 0, 1, 0, 100, 0},
			wantType: PageTypeLeafTable,
			wantLeaf: true,
		},
		{
			name:     "interior table page",
			pageNum:  2,
			data:     []byte{0x05, 0, 0, 0, 2, 0, 200, 0, 0, 0, 0, 5},
			wantType: PageTypeInteriorTable,
			wantLeaf: false,
		},
		{
			name:     "leaf index page",
			pageNum:  3,
			data:     []byte{0x0a, 0, 0, 0, 3, 0, 150, 0},
			wantType: PageTypeLeafIndex,
			wantLeaf: true,
		},
		{
			name:    "invalid page type",
			pageNum: 2,
			data:    []byte{0xff, 0, 0, 0, 0, 0, 0, 0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, err := ParsePageHeader(tt.data, tt.pageNum)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePageHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if header.PageType != tt.wantType {
				t.Errorf("PageType = 0x%02x, want 0x%02x", header.PageType, tt.wantType)
			}
			if header.IsLeaf != tt.wantLeaf {
				t.Errorf("IsLeaf = %v, want %v", header.IsLeaf, tt.wantLeaf)
			}
		})
	}
}

func TestBtreeIteratePage(t *testing.T) {
	provider := newMapProvider()
	bt := NewBtree(4096, 4096, provider)

	cells := []struct {
		rowid   int64
		payload []byte
	}{
		{1, []byte("hello")},
		{2, []byte("world")},
		{3, []byte("btree")},
	}

	provider.pages[2] = createTestLeafPage(4096, cells)

	visitCount := 0
	err := bt.IteratePage(2, func(cellIndex int, cell *CellInfo) error {
		if cellIndex >= len(cells) {
			t.Fatalf("unexpected cell index: %d", cellIndex)
		}
		if cell.Key != cells[cellIndex].rowid {
			t.Errorf("cell %d: rowid = %d, want %d", cellIndex, cell.Key, cells[cellIndex].rowid)
		}
		if string(cell.Payload) != string(cells[cellIndex].payload) {
			t.Errorf("cell %d: payload = %q, want %q", cellIndex, cell.Payload, cells[cellIndex].payload)
		}
		visitCount++
		return nil
	})
	if err != nil {
		t.Fatalf("IteratePage() error = %v", err)
	}
	if visitCount != len(cells) {
		t.Errorf("visited %d cells, want %d", visitCount, len(cells))
	}
}

func TestBtreeGetPage(t *testing.T) {
	provider := newMapProvider()
	bt := NewBtree(4096, 4096, provider)

	pageData := make([]byte, 4096)
	pageData[0] = PageTypeLeafTable
	provider.pages[1] = pageData

	retrieved, err := bt.GetPage(1)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if len(retrieved) != len(pageData) {
		t.Errorf("retrieved page length = %d, want %d", len(retrieved), len(pageData))
	}

	if _, err := bt.GetPage(999); err == nil {
		t.Error("GetPage(999) expected error, got nil")
	}
}
