// Command sqlitecore-inspect opens a SQLite-format file through the core
// read engine and prints its page count, data version, tables and indexes,
// and optionally table rows. It
// exists as surrounding tooling around the library, not as part of the
// core itself - the core exposes no CLI surface of its own.
package main

import (
	"flag"
	"fmt"
	"os"

	sqlitecore "github.com/basaltdb/sqlitecore"
	"github.com/basaltdb/sqlitecore/internal/logging"
)

func main() {
	var (
		mmap       = flag.Bool("mmap", false, "use a memory-mapped page source")
		walOff     = flag.Bool("no-wal", false, "never open a sibling -wal file")
		verbose    = flag.Bool("v", false, "debug-level logging")
		tableFlag  = flag.String("table", "", "dump rows of a single table")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sqlitecore-inspect [flags] <database-file>")
		os.Exit(2)
	}

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logging.InitLogger(level, logging.FormatAuto)

	opts := sqlitecore.Options{UseMmap: *mmap}
	if *walOff {
		opts.WALMode = sqlitecore.WALForceOff
	}

	db, err := sqlitecore.Open(flag.Arg(0), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("page count: %d\n", db.PageCount())
	fmt.Printf("data version: %d\n", db.DataVersion())

	sch := db.Schema()
	fmt.Println("tables:")
	for _, name := range sch.ListTables() {
		t, _ := sch.GetTable(name)
		fmt.Printf("  %s (root page %d, %d columns)\n", t.Name, t.RootPage, len(t.Columns))
	}
	fmt.Println("indexes:")
	for _, name := range sch.ListIndexes() {
		idx, _ := sch.GetIndex(name)
		fmt.Printf("  %s on %s (root page %d)\n", idx.Name, idx.Table, idx.RootPage)
	}

	if *tableFlag == "" {
		return
	}
	if err := dumpTable(db, *tableFlag); err != nil {
		fmt.Fprintf(os.Stderr, "dump %s: %v\n", *tableFlag, err)
		os.Exit(1)
	}
}

func dumpTable(db *sqlitecore.DB, name string) error {
	cur, err := db.OpenCursor(name)
	if err != nil {
		return err
	}
	defer cur.Close()

	table, _ := db.Schema().GetTable(name)
	for {
		ok, err := cur.MoveNext()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		rowid, _ := cur.Rowid()
		fmt.Printf("rowid=%d", rowid)
		for i := range table.Columns {
			typ, err := cur.ColumnType(i)
			if err != nil {
				return err
			}
			fmt.Printf(" %s=", table.Columns[i].Name)
			switch typ {
			case 0: // ColumnNull
				fmt.Print("NULL")
			case 1: // ColumnInteger
				v, _ := cur.Int(i)
				fmt.Print(v)
			case 2: // ColumnFloat
				v, _ := cur.Real(i)
				fmt.Print(v)
			case 3: // ColumnText
				v, _ := cur.Text(i)
				fmt.Printf("%q", v)
			case 4: // ColumnBlob
				v, _ := cur.Blob(i)
				fmt.Printf("<%d bytes>", len(v))
			}
		}
		fmt.Println()
	}
}
