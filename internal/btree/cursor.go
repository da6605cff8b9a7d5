package btree

import (
	"fmt"
)

// Cursor state constants
const (
	CursorValid   = 0 // Cursor points to a valid entry
	CursorInvalid = 1 // Cursor does not point to a valid entry
	CursorFault   = 4 // Unrecoverable error
)

// Maximum B-tree depth (to prevent infinite loops in corrupt databases)
const MaxBtreeDepth = 20

// BtCursor reads rows from a table or index b-tree in key order. There is
// no write surface: Insert/Delete/balance belong to a writer, not this
// engine.
type BtCursor struct {
	Btree    *Btree // The B-tree this cursor belongs to
	RootPage uint32 // Root page number of the tree
	State    int    // Cursor state (valid, invalid, etc.)

	// Current position in the tree
	PageStack  [MaxBtreeDepth]uint32 // Stack of page numbers from root to current
	IndexStack [MaxBtreeDepth]int    // Stack of cell indices
	Depth      int                   // Current depth in tree (0 = root)

	// Current cell information
	CurrentPage   uint32      // Current page number
	CurrentIndex  int         // Current cell index in page
	CurrentCell   *CellInfo   // Parsed current cell
	CurrentHeader *PageHeader // Current page header

	// leafMinKey/leafMaxKey bound the current leaf's key range, letting
	// Seek skip a full root descent when the target key is already known
	// to live on the page the cursor is sitting on.
	leafMinKey int64
	leafMaxKey int64
	haveRange  bool

	// Navigation flags
	AtFirst bool // True if at first entry
	AtLast  bool // True if at last entry
}

// NewCursor creates a new cursor for the given B-tree and root page
func NewCursor(bt *Btree, rootPage uint32) *BtCursor {
	return &BtCursor{
		Btree:    bt,
		RootPage: rootPage,
		State:    CursorInvalid,
		Depth:    -1,
	}
}

// Reset returns the cursor to its just-constructed, unpositioned state so
// it can be reused for a fresh traversal without reallocating.
func (c *BtCursor) Reset() {
	c.State = CursorInvalid
	c.Depth = -1
	c.CurrentPage = 0
	c.CurrentIndex = 0
	c.CurrentCell = nil
	c.CurrentHeader = nil
	c.haveRange = false
	c.AtFirst = false
	c.AtLast = false
}

// MoveToFirst moves the cursor to the first entry in the B-tree
func (c *BtCursor) MoveToFirst() error {
	c.Depth = 0
	c.PageStack[0] = c.RootPage
	c.IndexStack[0] = 0
	c.AtFirst = false
	c.AtLast = false
	c.haveRange = false

	return c.descendToFirst(c.RootPage)
}

// MoveToLast moves the cursor to the last entry in the B-tree
func (c *BtCursor) MoveToLast() error {
	c.Depth = 0
	c.PageStack[0] = c.RootPage
	c.AtFirst = false
	c.AtLast = false
	c.haveRange = false

	pageNum := c.RootPage
	for {
		pageData, err := c.Btree.GetPage(pageNum)
		if err != nil {
			c.State = CursorInvalid
			return fmt.Errorf("failed to get page %d: %w", pageNum, err)
		}

		header, err := ParsePageHeader(pageData, pageNum)
		if err != nil {
			c.State = CursorInvalid
			return fmt.Errorf("failed to parse page %d: %w", pageNum, err)
		}

		if header.IsLeaf {
			if header.NumCells == 0 {
				c.State = CursorInvalid
				return fmt.Errorf("empty leaf page %d", pageNum)
			}

			c.CurrentPage = pageNum
			c.CurrentIndex = int(header.NumCells) - 1
			c.CurrentHeader = header
			c.AtLast = true
			c.IndexStack[c.Depth] = c.CurrentIndex

			cell, err := c.cellAt(header, pageData, c.CurrentIndex)
			if err != nil {
				c.State = CursorInvalid
				return err
			}
			c.CurrentCell = cell
			c.State = CursorValid
			c.cacheLeafRange(pageData, header)
			return nil
		}

		if header.RightChild == 0 {
			c.State = CursorInvalid
			return fmt.Errorf("interior page %d has no right child", pageNum)
		}

		c.Depth++
		if c.Depth >= MaxBtreeDepth {
			c.State = CursorInvalid
			return fmt.Errorf("btree depth exceeded (possible corruption)")
		}

		pageNum = header.RightChild
		c.PageStack[c.Depth] = pageNum
		c.IndexStack[c.Depth] = -1
	}
}

// Next moves the cursor to the next entry
func (c *BtCursor) Next() error {
	if c.State != CursorValid {
		return fmt.Errorf("cursor not in valid state")
	}

	c.AtFirst = false

	pageData, err := c.Btree.GetPage(c.CurrentPage)
	if err != nil {
		c.State = CursorInvalid
		return err
	}

	if c.CurrentIndex < int(c.CurrentHeader.NumCells)-1 {
		c.CurrentIndex++
		c.IndexStack[c.Depth] = c.CurrentIndex

		cell, err := c.cellAt(c.CurrentHeader, pageData, c.CurrentIndex)
		if err != nil {
			c.State = CursorInvalid
			return err
		}
		c.CurrentCell = cell
		return nil
	}

	for c.Depth > 0 {
		c.Depth--
		parentPage := c.PageStack[c.Depth]
		parentIndex := c.IndexStack[c.Depth]

		parentData, err := c.Btree.GetPage(parentPage)
		if err != nil {
			c.State = CursorInvalid
			return err
		}

		parentHeader, err := ParsePageHeader(parentData, parentPage)
		if err != nil {
			c.State = CursorInvalid
			return err
		}

		if parentIndex < int(parentHeader.NumCells)-1 {
			c.IndexStack[c.Depth] = parentIndex + 1

			cell, err := c.cellAt(parentHeader, parentData, parentIndex+1)
			if err != nil {
				c.State = CursorInvalid
				return err
			}

			return c.descendToFirst(cell.ChildPage)
		}
	}

	c.State = CursorInvalid
	c.AtLast = true
	return fmt.Errorf("end of btree")
}

// Previous moves the cursor to the previous entry
func (c *BtCursor) Previous() error {
	if c.State != CursorValid {
		return fmt.Errorf("cursor not in valid state")
	}

	c.AtLast = false

	if c.CurrentIndex > 0 {
		c.CurrentIndex--
		c.IndexStack[c.Depth] = c.CurrentIndex

		pageData, err := c.Btree.GetPage(c.CurrentPage)
		if err != nil {
			c.State = CursorInvalid
			return err
		}

		cell, err := c.cellAt(c.CurrentHeader, pageData, c.CurrentIndex)
		if err != nil {
			c.State = CursorInvalid
			return err
		}
		c.CurrentCell = cell
		return nil
	}

	for c.Depth > 0 {
		c.Depth--
		parentPage := c.PageStack[c.Depth]
		parentIndex := c.IndexStack[c.Depth]

		if parentIndex > 0 {
			c.IndexStack[c.Depth] = parentIndex - 1

			parentData, err := c.Btree.GetPage(parentPage)
			if err != nil {
				c.State = CursorInvalid
				return err
			}

			parentHeader, err := ParsePageHeader(parentData, parentPage)
			if err != nil {
				c.State = CursorInvalid
				return err
			}

			cell, err := c.cellAt(parentHeader, parentData, parentIndex-1)
			if err != nil {
				c.State = CursorInvalid
				return err
			}

			return c.descendToLast(cell.ChildPage)
		}
	}

	c.State = CursorInvalid
	c.AtFirst = true
	return fmt.Errorf("beginning of btree")
}

// descendToFirst descends to the first (leftmost) entry starting from the given page
func (c *BtCursor) descendToFirst(pageNum uint32) error {
	for {
		c.Depth++
		if c.Depth >= MaxBtreeDepth {
			c.State = CursorInvalid
			return fmt.Errorf("btree depth exceeded")
		}

		c.PageStack[c.Depth] = pageNum
		c.IndexStack[c.Depth] = 0

		pageData, err := c.Btree.GetPage(pageNum)
		if err != nil {
			c.State = CursorInvalid
			return err
		}

		header, err := ParsePageHeader(pageData, pageNum)
		if err != nil {
			c.State = CursorInvalid
			return err
		}

		if header.IsLeaf {
			if header.NumCells == 0 {
				c.State = CursorInvalid
				return fmt.Errorf("empty leaf")
			}

			c.CurrentPage = pageNum
			c.CurrentIndex = 0
			c.CurrentHeader = header

			cell, err := c.cellAt(header, pageData, 0)
			if err != nil {
				c.State = CursorInvalid
				return err
			}
			c.CurrentCell = cell
			c.State = CursorValid
			c.cacheLeafRange(pageData, header)
			return nil
		}

		cell, err := c.cellAt(header, pageData, 0)
		if err != nil {
			c.State = CursorInvalid
			return err
		}

		pageNum = cell.ChildPage
	}
}

// descendToLast descends to the last (rightmost) entry starting from the given page
func (c *BtCursor) descendToLast(pageNum uint32) error {
	for {
		c.Depth++
		if c.Depth >= MaxBtreeDepth {
			c.State = CursorInvalid
			return fmt.Errorf("btree depth exceeded")
		}

		c.PageStack[c.Depth] = pageNum

		pageData, err := c.Btree.GetPage(pageNum)
		if err != nil {
			c.State = CursorInvalid
			return err
		}

		header, err := ParsePageHeader(pageData, pageNum)
		if err != nil {
			c.State = CursorInvalid
			return err
		}

		if header.IsLeaf {
			if header.NumCells == 0 {
				c.State = CursorInvalid
				return fmt.Errorf("empty leaf")
			}

			c.CurrentPage = pageNum
			c.CurrentIndex = int(header.NumCells) - 1
			c.CurrentHeader = header
			c.IndexStack[c.Depth] = c.CurrentIndex

			cell, err := c.cellAt(header, pageData, c.CurrentIndex)
			if err != nil {
				c.State = CursorInvalid
				return err
			}
			c.CurrentCell = cell
			c.State = CursorValid
			c.cacheLeafRange(pageData, header)
			return nil
		}

		c.IndexStack[c.Depth] = int(header.NumCells)
		pageNum = header.RightChild
	}
}

// IsValid returns true if the cursor is pointing to a valid entry
func (c *BtCursor) IsValid() bool {
	return c.State == CursorValid
}

// GetKey returns the key of the current entry
func (c *BtCursor) GetKey() int64 {
	if c.State != CursorValid || c.CurrentCell == nil {
		return 0
	}
	return c.CurrentCell.Key
}

// GetPayload returns the payload of the current entry
func (c *BtCursor) GetPayload() []byte {
	if c.State != CursorValid || c.CurrentCell == nil {
		return nil
	}
	return c.CurrentCell.Payload
}

// String returns a string representation of the cursor
func (c *BtCursor) String() string {
	if c.State != CursorValid {
		return fmt.Sprintf("BtCursor{state=%d, invalid}", c.State)
	}
	return fmt.Sprintf("BtCursor{page=%d, index=%d, key=%d, depth=%d}",
		c.CurrentPage, c.CurrentIndex, c.GetKey(), c.Depth)
}

// Seek positions the cursor at rowid, returning whether an exact match
// was found. It tries three tiers before paying for a full descent from
// the root: the cursor is already there, the key is within the leaf page
// the cursor already sits on, or (failing both) a binary-searched descent
// from the root.
func (c *BtCursor) Seek(rowid int64) (bool, error) {
	if c.State == CursorValid && c.CurrentCell != nil && c.CurrentCell.Key == rowid {
		return true, nil
	}

	if c.State == CursorValid && c.haveRange && rowid >= c.leafMinKey && rowid <= c.leafMaxKey {
		pageData, err := c.Btree.GetPage(c.CurrentPage)
		if err != nil {
			c.State = CursorInvalid
			return false, err
		}
		idx, found := c.binarySearch(pageData, c.CurrentHeader, rowid)
		c.CurrentIndex = idx
		c.IndexStack[c.Depth] = idx
		if found && idx < int(c.CurrentHeader.NumCells) {
			cell, err := c.cellAt(c.CurrentHeader, pageData, idx)
			if err != nil {
				c.State = CursorInvalid
				return false, err
			}
			c.CurrentCell = cell
			return true, nil
		}
		if idx < int(c.CurrentHeader.NumCells) {
			if cell, err := c.cellAt(c.CurrentHeader, pageData, idx); err == nil {
				c.CurrentCell = cell
			}
		}
		return false, nil
	}

	return c.seekFromRoot(rowid)
}

// SeekRowid is a backward-compatible alias for Seek.
func (c *BtCursor) SeekRowid(rowid int64) (bool, error) { return c.Seek(rowid) }

// seekFromRoot performs the full binary-search descent from the tree
// root - the fallback path when the two cheaper tiers in Seek don't apply.
func (c *BtCursor) seekFromRoot(rowid int64) (bool, error) {
	c.Depth = 0
	c.PageStack[0] = c.RootPage
	c.IndexStack[0] = 0
	c.haveRange = false

	pageNum := c.RootPage

	for {
		pageData, err := c.Btree.GetPage(pageNum)
		if err != nil {
			c.State = CursorInvalid
			return false, fmt.Errorf("failed to get page %d: %w", pageNum, err)
		}

		header, err := ParsePageHeader(pageData, pageNum)
		if err != nil {
			c.State = CursorInvalid
			return false, fmt.Errorf("failed to parse page %d: %w", pageNum, err)
		}

		idx, found := c.binarySearch(pageData, header, rowid)

		if header.IsLeaf {
			c.CurrentPage = pageNum
			c.CurrentIndex = idx
			c.CurrentHeader = header
			c.IndexStack[c.Depth] = idx
			c.State = CursorValid
			c.cacheLeafRange(pageData, header)

			if found && idx < int(header.NumCells) {
				cell, err := c.cellAt(header, pageData, idx)
				if err != nil {
					c.State = CursorInvalid
					return false, err
				}
				c.CurrentCell = cell
				return true, nil
			}

			if idx >= int(header.NumCells) {
				// No key on this leaf is >= rowid: nothing left to position on.
				c.State = CursorInvalid
				c.CurrentCell = nil
				return false, nil
			}
			if cell, err := c.cellAt(header, pageData, idx); err == nil {
				c.CurrentCell = cell
			}
			return false, nil
		}

		var childPage uint32
		if idx >= int(header.NumCells) {
			childPage = header.RightChild
		} else {
			cell, err := c.cellAt(header, pageData, idx)
			if err != nil {
				c.State = CursorInvalid
				return false, err
			}
			childPage = cell.ChildPage
		}

		c.Depth++
		if c.Depth >= MaxBtreeDepth {
			c.State = CursorInvalid
			return false, fmt.Errorf("btree depth exceeded")
		}

		pageNum = childPage
		c.PageStack[c.Depth] = pageNum
		c.IndexStack[c.Depth] = 0
	}
}

// binarySearch performs binary search for a rowid in a page.
// Returns (index, exactMatch) where index is the position where the rowid should be.
func (c *BtCursor) binarySearch(pageData []byte, header *PageHeader, rowid int64) (int, bool) {
	left := 0
	right := int(header.NumCells)

	for left < right {
		mid := (left + right) / 2

		cell, err := c.cellAt(header, pageData, mid)
		if err != nil {
			return left, false
		}

		if cell.Key == rowid {
			return mid, true
		} else if cell.Key < rowid {
			left = mid + 1
		} else {
			right = mid
		}
	}

	return left, false
}

// cellAt parses the cell at cellIndex on a page already known by header/data.
func (c *BtCursor) cellAt(header *PageHeader, pageData []byte, cellIndex int) (*CellInfo, error) {
	offset, err := header.GetCellPointer(pageData, cellIndex)
	if err != nil {
		return nil, err
	}
	if int(offset) >= len(pageData) {
		return nil, fmt.Errorf("cell offset %d out of bounds", offset)
	}
	return ParseCell(header.PageType, pageData[offset:], c.Btree.UsableSize)
}

// cacheLeafRange records the key range of a leaf page the cursor just
// landed on, table b-trees only (keys are monotonic rowids; index
// b-trees have no single orderable int64 key to cache here).
func (c *BtCursor) cacheLeafRange(pageData []byte, header *PageHeader) {
	c.haveRange = false
	if !header.IsLeaf || !header.IsTable || header.NumCells == 0 {
		return
	}
	first, err := c.cellAt(header, pageData, 0)
	if err != nil {
		return
	}
	last, err := c.cellAt(header, pageData, int(header.NumCells)-1)
	if err != nil {
		return
	}
	c.leafMinKey = first.Key
	c.leafMaxKey = last.Key
	c.haveRange = true
}
