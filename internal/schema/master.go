package schema

import (
	"fmt"

	"github.com/basaltdb/sqlitecore/internal/btree"
	"github.com/basaltdb/sqlitecore/internal/record"
	"github.com/basaltdb/sqlitecore/internal/utf"
)

// sqlite_master table schema:
//
// CREATE TABLE sqlite_master (
//   type TEXT,      -- "table", "index", "trigger", "view"
//   name TEXT,      -- object name
//   tbl_name TEXT,  -- table name (for indexes/triggers)
//   rootpage INT,   -- root B-tree page
//   sql TEXT        -- CREATE statement
// );
//
// sqlite_master is always rooted at page 1.

const masterPageNum = 1

// MasterRow represents a row in the sqlite_master table.
type MasterRow struct {
	Type     string // "table", "index", "trigger", "view"
	Name     string // Object name
	TblName  string // Associated table name
	RootPage uint32 // Root page number
	SQL      string // CREATE statement
}

// LoadFromMaster walks sqlite_master on bt and populates s with the tables
// and indexes it describes, skipping the internal tables sqlite_sequence,
// sqlite_stat1 and sqlite_stat4 and every sqlite_autoindex_* index. enc is
// the database's declared text
// encoding, used to decode the name/sql text columns. Views and triggers
// are recognised but skipped: reading their rows isn't meaningful without
// a query engine.
func (s *Schema) LoadFromMaster(bt *btree.Btree, enc utf.Encoding) error {
	if bt == nil {
		return fmt.Errorf("nil btree")
	}

	rows, err := parseMasterPage(bt, masterPageNum, enc)
	if err != nil {
		return fmt.Errorf("failed to parse sqlite_master: %w", err)
	}

	for _, row := range rows {
		switch row.Type {
		case "table":
			if row.Name == "sqlite_sequence" || row.Name == "sqlite_stat1" || row.Name == "sqlite_stat4" {
				continue
			}
			table, err := parseTableSQL(row)
			if err != nil {
				return fmt.Errorf("failed to parse table %s: %w", row.Name, err)
			}
			s.loadTable(table)

		case "index":
			if len(row.Name) >= 16 && row.Name[:16] == "sqlite_autoindex" {
				continue
			}
			index, err := parseIndexSQL(row)
			if err != nil {
				return fmt.Errorf("failed to parse index %s: %w", row.Name, err)
			}
			s.loadIndex(index)

		case "view", "trigger":
			continue
		}
	}

	return nil
}

// parseMasterPage walks the sqlite_master table b-tree rooted at pageNum
// and decodes every row into a MasterRow.
func parseMasterPage(bt *btree.Btree, pageNum uint32, enc utf.Encoding) ([]MasterRow, error) {
	cursor := btree.NewCursor(bt, pageNum)
	if err := cursor.MoveToFirst(); err != nil {
		return nil, fmt.Errorf("sqlite_master: %w", err)
	}

	var rows []MasterRow
	for cursor.IsValid() {
		cell := cursor.CurrentCell
		if cell == nil {
			return nil, fmt.Errorf("sqlite_master: cursor has no current cell")
		}

		payload, err := record.AssemblePayload(cell.Payload, int(cell.PayloadSize), cell.OverflowPage, int(bt.UsableSize), bt)
		if err != nil {
			return nil, fmt.Errorf("sqlite_master: row %d: %w", cell.Key, err)
		}

		dec, err := record.DecodeWithEncoding(payload, enc)
		if err != nil {
			return nil, fmt.Errorf("sqlite_master: row %d: %w", cell.Key, err)
		}
		if dec.NumColumns() < 5 {
			return nil, fmt.Errorf("sqlite_master: row %d has %d columns, want 5", cell.Key, dec.NumColumns())
		}

		row, err := decodeMasterRow(dec)
		if err != nil {
			return nil, fmt.Errorf("sqlite_master: row %d: %w", cell.Key, err)
		}
		rows = append(rows, row)

		err = cursor.Next()
		if err != nil {
			break // end of btree
		}
	}

	return rows, nil
}

// decodeMasterRow reads the five sqlite_master columns off dec in order:
// type, name, tbl_name, rootpage, sql.
func decodeMasterRow(dec *record.Decoder) (MasterRow, error) {
	var row MasterRow

	typ, err := dec.Text(0)
	if err != nil {
		return row, err
	}
	row.Type = typ

	name, err := dec.Text(1)
	if err != nil {
		return row, err
	}
	row.Name = name

	tblName, err := dec.Text(2)
	if err != nil {
		return row, err
	}
	row.TblName = tblName

	rootPage, err := dec.Int(3)
	if err != nil {
		return row, err
	}
	row.RootPage = uint32(rootPage)

	if isNull, _ := dec.IsNull(4); !isNull {
		sql, err := dec.Text(4)
		if err != nil {
			return row, err
		}
		row.SQL = sql
	}

	return row, nil
}

// parseTableSQL builds a Table from a sqlite_master row whose type is
// "table". A row with no SQL text (certain system tables) becomes a
// column-less placeholder - its rootpage is still usable for a raw scan.
func parseTableSQL(row MasterRow) (*Table, error) {
	table := &Table{
		Name:     row.Name,
		RootPage: row.RootPage,
		SQL:      row.SQL,
	}
	if row.SQL == "" {
		return table, nil
	}
	if err := parseCreateTableTokens(row.SQL, table); err != nil {
		return nil, err
	}
	return table, nil
}

// parseIndexSQL builds an Index from a sqlite_master row whose type is
// "index". Auto-indexes backing a UNIQUE/PRIMARY KEY constraint have no
// SQL text; Unique defaults true for those since that's the only reason
// SQLite creates one without a CREATE INDEX statement.
func parseIndexSQL(row MasterRow) (*Index, error) {
	idx := &Index{
		Name:     row.Name,
		Table:    row.TblName,
		RootPage: row.RootPage,
		SQL:      row.SQL,
	}
	if row.SQL == "" {
		idx.Unique = true
		return idx, nil
	}
	if err := parseCreateIndexTokens(row.SQL, idx); err != nil {
		return nil, err
	}
	idx.Unique = containsWord(row.SQL, "UNIQUE")
	return idx, nil
}

func containsWord(sql, word string) bool {
	for _, t := range ddlScan(sql) {
		if upper(t.text) == word {
			return true
		}
		if t.text == "(" {
			break
		}
	}
	return false
}
