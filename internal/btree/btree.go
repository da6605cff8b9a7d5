// Package btree reads SQLite table and index B-trees: page headers, cells,
// and a cursor that walks rows in key order. It never writes a page -
// mutation is entirely out of scope for this engine.
package btree

import "fmt"

// PageProvider supplies page bytes to a Btree. The pager's cached,
// transform-applied page source satisfies this.
type PageProvider interface {
	GetPageData(pgno uint32) ([]byte, error)
}

// Btree is a read-only handle onto one or more table/index B-trees backed
// by a shared page source.
type Btree struct {
	PageSize     uint32
	UsableSize   uint32 // PageSize minus any reserved trailer (header offset 20)
	ReservedSize uint32
	Provider     PageProvider
}

// NewBtree creates a Btree over the given page provider.
func NewBtree(pageSize, usableSize uint32, provider PageProvider) *Btree {
	return &Btree{
		PageSize:     pageSize,
		UsableSize:   usableSize,
		ReservedSize: pageSize - usableSize,
		Provider:     provider,
	}
}

// GetPage fetches the raw bytes of a page through the provider.
func (bt *Btree) GetPage(pageNum uint32) ([]byte, error) {
	if bt.Provider == nil {
		return nil, fmt.Errorf("btree: no page provider configured")
	}
	return bt.Provider.GetPageData(pageNum)
}

// ReadPage implements record.PageReader, letting cell parsing hand the
// Btree straight to record.AssemblePayload for overflow chains.
func (bt *Btree) ReadPage(pageNum uint32) ([]byte, error) {
	return bt.GetPage(pageNum)
}

// ParsePage parses a page's header and every cell it contains.
func (bt *Btree) ParsePage(pageNum uint32) (*PageHeader, []*CellInfo, error) {
	pageData, err := bt.GetPage(pageNum)
	if err != nil {
		return nil, nil, err
	}

	header, err := ParsePageHeader(pageData, pageNum)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse page %d header: %w", pageNum, err)
	}

	cells := make([]*CellInfo, header.NumCells)
	for i := 0; i < int(header.NumCells); i++ {
		cellOffset, err := header.GetCellPointer(pageData, i)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get cell pointer %d: %w", i, err)
		}
		if int(cellOffset) >= len(pageData) {
			return nil, nil, fmt.Errorf("cell offset %d out of bounds", cellOffset)
		}
		cellData := pageData[cellOffset:]

		cellInfo, err := ParseCell(header.PageType, cellData, bt.UsableSize)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse cell %d: %w", i, err)
		}
		cells[i] = cellInfo
	}

	return header, cells, nil
}

// IteratePage calls visitor for every cell on a page, in on-page order.
func (bt *Btree) IteratePage(pageNum uint32, visitor func(cellIndex int, cell *CellInfo) error) error {
	_, cells, err := bt.ParsePage(pageNum)
	if err != nil {
		return err
	}
	for i, cell := range cells {
		if err := visitor(i, cell); err != nil {
			return err
		}
	}
	return nil
}

// String returns a short diagnostic summary of the Btree.
func (bt *Btree) String() string {
	return fmt.Sprintf("Btree{pageSize=%d, usableSize=%d}", bt.PageSize, bt.UsableSize)
}
