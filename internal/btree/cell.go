package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/basaltdb/sqlitecore/internal/record"
)

// CellInfo contains parsed information about a B-tree cell
type CellInfo struct {
	Key          int64  // The integer key for table b-trees, or payload size for index b-trees
	Payload      []byte // Pointer to start of payload data
	PayloadSize  uint32 // Total bytes of payload
	LocalPayload uint16 // Amount of payload stored locally (not in overflow pages)
	CellSize     uint16 // Total size of cell on the page
	OverflowPage uint32 // First overflow page number (0 if none)
	ChildPage    uint32 // Child page number (interior pages only)
}

// ParseCell parses a cell from a B-tree page
func ParseCell(pageType byte, cellData []byte, usableSize uint32) (*CellInfo, error) {
	switch pageType {
	case PageTypeLeafTable:
		return parseTableLeafCell(cellData, usableSize)
	case PageTypeInteriorTable:
		return parseTableInteriorCell(cellData)
	case PageTypeLeafIndex:
		return parseIndexLeafCell(cellData, usableSize)
	case PageTypeInteriorIndex:
		return parseIndexInteriorCell(cellData, usableSize)
	default:
		return nil, fmt.Errorf("invalid page type: 0x%02x", pageType)
	}
}

// parseTableLeafCell parses a table leaf cell
// Format: varint(payload_size), varint(rowid), payload
func parseTableLeafCell(cellData []byte, usableSize uint32) (*CellInfo, error) {
	if len(cellData) == 0 {
		return nil, fmt.Errorf("empty cell data")
	}

	info := &CellInfo{}
	offset := 0

	payloadSize64, n := record.GetVarint(cellData[offset:])
	if n == 0 {
		return nil, fmt.Errorf("failed to read payload size")
	}
	info.PayloadSize = uint32(payloadSize64)
	offset += n

	rowid, n := record.GetVarint(cellData[offset:])
	if n == 0 {
		return nil, fmt.Errorf("failed to read rowid")
	}
	info.Key = int64(rowid)
	offset += n

	maxLocal := calculateMaxLocal(usableSize, true)
	minLocal := calculateMinLocal(usableSize, true)

	if info.PayloadSize <= maxLocal {
		info.LocalPayload = uint16(info.PayloadSize)
		info.CellSize = uint16(offset + int(info.PayloadSize))
		if info.CellSize < 4 {
			info.CellSize = 4
		}
	} else {
		info.LocalPayload = calculateLocalPayload(info.PayloadSize, minLocal, maxLocal, usableSize)
		info.CellSize = uint16(offset + int(info.LocalPayload) + 4)
	}

	if offset+int(info.LocalPayload) > len(cellData) {
		return nil, fmt.Errorf("cell data truncated")
	}
	info.Payload = cellData[offset : offset+int(info.LocalPayload)]

	if info.PayloadSize > maxLocal {
		overflowOffset := offset + int(info.LocalPayload)
		if overflowOffset+4 > len(cellData) {
			return nil, fmt.Errorf("overflow page number truncated")
		}
		info.OverflowPage = binary.BigEndian.Uint32(cellData[overflowOffset:])
	}

	return info, nil
}

// parseTableInteriorCell parses a table interior cell
// Format: 4-byte child page number, varint(rowid)
func parseTableInteriorCell(cellData []byte) (*CellInfo, error) {
	if len(cellData) < 4 {
		return nil, fmt.Errorf("cell data too small for interior cell")
	}

	info := &CellInfo{}
	info.ChildPage = binary.BigEndian.Uint32(cellData[0:4])

	rowid, n := record.GetVarint(cellData[4:])
	if n == 0 {
		return nil, fmt.Errorf("failed to read rowid")
	}
	info.Key = int64(rowid)
	info.CellSize = uint16(4 + n)

	return info, nil
}

// parseIndexLeafCell parses an index leaf cell
// Format: varint(payload_size), payload
func parseIndexLeafCell(cellData []byte, usableSize uint32) (*CellInfo, error) {
	if len(cellData) == 0 {
		return nil, fmt.Errorf("empty cell data")
	}

	info := &CellInfo{}
	offset := 0

	payloadSize64, n := record.GetVarint(cellData[offset:])
	if n == 0 {
		return nil, fmt.Errorf("failed to read payload size")
	}
	info.PayloadSize = uint32(payloadSize64)
	info.Key = int64(payloadSize64)
	offset += n

	maxLocal := calculateMaxLocal(usableSize, false)
	minLocal := calculateMinLocal(usableSize, false)

	if info.PayloadSize <= maxLocal {
		info.LocalPayload = uint16(info.PayloadSize)
		info.CellSize = uint16(offset + int(info.PayloadSize))
		if info.CellSize < 4 {
			info.CellSize = 4
		}
	} else {
		info.LocalPayload = calculateLocalPayload(info.PayloadSize, minLocal, maxLocal, usableSize)
		info.CellSize = uint16(offset + int(info.LocalPayload) + 4)
	}

	if offset+int(info.LocalPayload) > len(cellData) {
		return nil, fmt.Errorf("cell data truncated")
	}
	info.Payload = cellData[offset : offset+int(info.LocalPayload)]

	if info.PayloadSize > maxLocal {
		overflowOffset := offset + int(info.LocalPayload)
		if overflowOffset+4 > len(cellData) {
			return nil, fmt.Errorf("overflow page number truncated")
		}
		info.OverflowPage = binary.BigEndian.Uint32(cellData[overflowOffset:])
	}

	return info, nil
}

// parseIndexInteriorCell parses an index interior cell
// Format: 4-byte child page number, varint(payload_size), payload
func parseIndexInteriorCell(cellData []byte, usableSize uint32) (*CellInfo, error) {
	if len(cellData) < 4 {
		return nil, fmt.Errorf("cell data too small for interior cell")
	}

	info := &CellInfo{}
	info.ChildPage = binary.BigEndian.Uint32(cellData[0:4])
	offset := 4

	payloadSize64, n := record.GetVarint(cellData[offset:])
	if n == 0 {
		return nil, fmt.Errorf("failed to read payload size")
	}
	info.PayloadSize = uint32(payloadSize64)
	info.Key = int64(payloadSize64)
	offset += n

	maxLocal := calculateMaxLocal(usableSize, false)
	minLocal := calculateMinLocal(usableSize, false)

	if info.PayloadSize <= maxLocal {
		info.LocalPayload = uint16(info.PayloadSize)
		info.CellSize = uint16(offset + int(info.PayloadSize))
		if info.CellSize < 4 {
			info.CellSize = 4
		}
	} else {
		info.LocalPayload = calculateLocalPayload(info.PayloadSize, minLocal, maxLocal, usableSize)
		info.CellSize = uint16(offset + int(info.LocalPayload) + 4)
	}

	if offset+int(info.LocalPayload) > len(cellData) {
		return nil, fmt.Errorf("cell data truncated")
	}
	info.Payload = cellData[offset : offset+int(info.LocalPayload)]

	if info.PayloadSize > maxLocal {
		overflowOffset := offset + int(info.LocalPayload)
		if overflowOffset+4 > len(cellData) {
			return nil, fmt.Errorf("overflow page number truncated")
		}
		info.OverflowPage = binary.BigEndian.Uint32(cellData[overflowOffset:])
	}

	return info, nil
}

// calculateMaxLocal calculates the maximum amount of payload that can be stored locally.
func calculateMaxLocal(usableSize uint32, isTable bool) uint32 {
	if isTable {
		return usableSize - 35 // table leaf cells
	}
	return ((usableSize - 12) * 64 / 255) - 23 // index cells: the 64/255 embedded fraction
}

// calculateMinLocal calculates the minimum amount of payload that must be stored locally.
func calculateMinLocal(usableSize uint32, isTable bool) uint32 {
	_ = isTable
	return ((usableSize - 12) * 32 / 255) - 23
}

// calculateLocalPayload calculates how much payload to store locally when it overflows.
func calculateLocalPayload(payloadSize uint32, minLocal, maxLocal, usableSize uint32) uint16 {
	surplus := minLocal + (payloadSize-minLocal)%(usableSize-4)
	if surplus <= maxLocal {
		return uint16(surplus)
	}
	return uint16(minLocal)
}

// String returns a string representation of the cell info
func (c *CellInfo) String() string {
	return fmt.Sprintf("CellInfo{key=%d, payloadSize=%d, localPayload=%d, cellSize=%d, overflow=%d, child=%d}",
		c.Key, c.PayloadSize, c.LocalPayload, c.CellSize, c.OverflowPage, c.ChildPage)
}
