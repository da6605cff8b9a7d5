package btree

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/basaltdb/sqlitecore/internal/logging"
)

// Page type constants (first byte of page header)
const (
	PageTypeInteriorIndex = 0x02 // Interior index b-tree page
	PageTypeInteriorTable = 0x05 // Interior table b-tree page
	PageTypeLeafIndex     = 0x0a // Leaf index b-tree page
	PageTypeLeafTable     = 0x0d // Leaf table b-tree page
)

// Page type flags (bit flags in page type byte)
const (
	PTF_INTKEY   = 0x01 // True if table b-trees (integer key)
	PTF_ZERODATA = 0x02 // True for index b-trees (no data, only keys)
	PTF_LEAFDATA = 0x04 // True if data is stored in leaves
	PTF_LEAF     = 0x08 // True if this is a leaf page
)

// Page header offsets
const (
	PageHeaderOffsetType       = 0 // Page type (1 byte)
	PageHeaderOffsetFreeblock  = 1 // First freeblock offset (2 bytes)
	PageHeaderOffsetNumCells   = 3 // Number of cells (2 bytes)
	PageHeaderOffsetCellStart  = 5 // Start of cell content area (2 bytes)
	PageHeaderOffsetFragmented = 7 // Fragmented free bytes (1 byte)
	PageHeaderOffsetRightChild = 8 // Right-most child pointer (4 bytes, interior only)
)

// Header sizes
const (
	PageHeaderSizeLeaf     = 8   // Leaf pages: 8 bytes
	PageHeaderSizeInterior = 12  // Interior pages: 12 bytes (includes right child pointer)
	FileHeaderSize         = 100 // Database file header on page 1
)

// PageHeader represents the parsed header of a B-tree page
type PageHeader struct {
	PageType         byte   // Page type (0x02, 0x05, 0x0a, 0x0d)
	FirstFreeblock   uint16 // Offset to first freeblock (0 if none)
	NumCells         uint16 // Number of cells on this page
	CellContentStart uint16 // Start of cell content area
	FragmentedBytes  byte   // Number of fragmented free bytes
	RightChild       uint32 // Right-most child page number (interior pages only)

	// Derived properties
	IsLeaf        bool // True if this is a leaf page
	IsInterior    bool // True if this is an interior page
	IsTable       bool // True if this is a table b-tree (intkey)
	IsIndex       bool // True if this is an index b-tree (blob key)
	HeaderSize    int  // Size of page header (8 or 12 bytes)
	CellPtrOffset int  // Offset where cell pointer array starts
}

// ParsePageHeader parses the B-tree page header from raw page data
func ParsePageHeader(data []byte, pageNum uint32) (*PageHeader, error) {
	if len(data) < PageHeaderSizeLeaf {
		return nil, fmt.Errorf("page data too small: %d bytes", len(data))
	}

	// Handle page 1 which has a 100-byte file header
	offset := 0
	if pageNum == 1 {
		offset = FileHeaderSize
		if len(data) < FileHeaderSize+PageHeaderSizeLeaf {
			return nil, fmt.Errorf("page 1 data too small: %d bytes", len(data))
		}
	}

	h := &PageHeader{
		PageType:         data[offset+PageHeaderOffsetType],
		FirstFreeblock:   binary.BigEndian.Uint16(data[offset+PageHeaderOffsetFreeblock:]),
		NumCells:         binary.BigEndian.Uint16(data[offset+PageHeaderOffsetNumCells:]),
		CellContentStart: binary.BigEndian.Uint16(data[offset+PageHeaderOffsetCellStart:]),
		FragmentedBytes:  data[offset+PageHeaderOffsetFragmented],
	}

	h.IsLeaf = (h.PageType & PTF_LEAF) != 0
	h.IsInterior = !h.IsLeaf
	h.IsTable = (h.PageType & PTF_INTKEY) != 0
	h.IsIndex = !h.IsTable

	if h.IsInterior {
		if len(data) < offset+PageHeaderSizeInterior {
			return nil, fmt.Errorf("interior page data too small: %d bytes", len(data))
		}
		h.RightChild = binary.BigEndian.Uint32(data[offset+PageHeaderOffsetRightChild:])
		h.HeaderSize = PageHeaderSizeInterior
	} else {
		h.HeaderSize = PageHeaderSizeLeaf
	}

	h.CellPtrOffset = offset + h.HeaderSize

	if h.PageType != PageTypeInteriorIndex &&
		h.PageType != PageTypeInteriorTable &&
		h.PageType != PageTypeLeafIndex &&
		h.PageType != PageTypeLeafTable {
		reason := fmt.Sprintf("invalid page type: 0x%02x", h.PageType)
		logging.CorruptPage(context.Background(), pageNum, reason)
		return nil, errors.New(reason)
	}

	return h, nil
}

// GetCellPointer returns the offset of the i-th cell in the page
func (h *PageHeader) GetCellPointer(data []byte, cellIndex int) (uint16, error) {
	if cellIndex < 0 || cellIndex >= int(h.NumCells) {
		return 0, fmt.Errorf("cell index out of range: %d (max %d)", cellIndex, h.NumCells-1)
	}

	ptrOffset := h.CellPtrOffset + (cellIndex * 2)
	if ptrOffset+2 > len(data) {
		return 0, fmt.Errorf("cell pointer offset out of bounds: %d", ptrOffset)
	}

	return binary.BigEndian.Uint16(data[ptrOffset:]), nil
}

// GetCellPointers returns all cell pointers in the page
func (h *PageHeader) GetCellPointers(data []byte) ([]uint16, error) {
	pointers := make([]uint16, h.NumCells)
	for i := 0; i < int(h.NumCells); i++ {
		ptr, err := h.GetCellPointer(data, i)
		if err != nil {
			return nil, err
		}
		pointers[i] = ptr
	}
	return pointers, nil
}

// String returns a string representation of the page header
func (h *PageHeader) String() string {
	pageTypeStr := "unknown"
	switch h.PageType {
	case PageTypeInteriorIndex:
		pageTypeStr = "interior index"
	case PageTypeInteriorTable:
		pageTypeStr = "interior table"
	case PageTypeLeafIndex:
		pageTypeStr = "leaf index"
	case PageTypeLeafTable:
		pageTypeStr = "leaf table"
	}

	return fmt.Sprintf("PageHeader{type=%s, cells=%d, contentStart=%d, freeblock=%d, fragmented=%d}",
		pageTypeStr, h.NumCells, h.CellContentStart, h.FirstFreeblock, h.FragmentedBytes)
}

// BtreePage wraps a raw page buffer for read access: the header plus
// whatever convenience accessors the cursor needs. There is no mutation
// surface - a page once read never changes shape.
type BtreePage struct {
	Data       []byte      // Raw page data
	PageNum    uint32      // Page number
	Header     *PageHeader // Parsed page header
	UsableSize uint32      // Usable bytes per page
}

// NewBtreePage creates a new BtreePage wrapper from raw page data
func NewBtreePage(pageNum uint32, data []byte, usableSize uint32) (*BtreePage, error) {
	header, err := ParsePageHeader(data, pageNum)
	if err != nil {
		return nil, err
	}

	return &BtreePage{
		Data:       data,
		PageNum:    pageNum,
		Header:     header,
		UsableSize: usableSize,
	}, nil
}

// Cell returns the parsed cell at index idx.
func (p *BtreePage) Cell(idx int) (*CellInfo, error) {
	offset, err := p.Header.GetCellPointer(p.Data, idx)
	if err != nil {
		return nil, err
	}
	if int(offset) >= len(p.Data) {
		return nil, fmt.Errorf("cell offset %d out of bounds", offset)
	}
	return ParseCell(p.Header.PageType, p.Data[offset:], p.UsableSize)
}
