package schema

import (
	"fmt"
	"strings"
)

// ddl is a narrow scanner over CREATE TABLE / CREATE INDEX text pulled from
// sqlite_master.sql. It recognises only what a reader needs to describe a
// schema: column names, declared types, PRIMARY KEY, and NOT NULL. It has
// no opinion on expressions, defaults, or any of the rest of SQLite's DDL
// grammar - unrecognised clauses are skipped, not rejected.
type ddlToken struct {
	text string
}

// ddlScan splits SQL text into a flat token stream: identifiers (including
// quoted ones, quotes stripped), numbers, string literals, and single-byte
// punctuation. Whitespace and -- line comments are dropped; /* */ block
// comments are not recognised and come through as ordinary tokens.
func ddlScan(sql string) []ddlToken {
	var toks []ddlToken
	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '"' || c == '`':
			j := i + 1
			for j < n && sql[j] != c {
				j++
			}
			toks = append(toks, ddlToken{sql[i+1 : j]})
			i = j + 1
		case c == '[':
			j := i + 1
			for j < n && sql[j] != ']' {
				j++
			}
			toks = append(toks, ddlToken{sql[i+1 : j]})
			i = j + 1
		case c == '\'':
			j := i + 1
			for j < n {
				if sql[j] == '\'' && j+1 < n && sql[j+1] == '\'' {
					j += 2
					continue
				}
				if sql[j] == '\'' {
					break
				}
				j++
			}
			toks = append(toks, ddlToken{sql[i : j+1]})
			i = j + 1
		case c == '(' || c == ')' || c == ',':
			toks = append(toks, ddlToken{string(c)})
			i++
		case isIdentByte(c):
			j := i
			for j < n && isIdentByte(sql[j]) {
				j++
			}
			toks = append(toks, ddlToken{sql[i:j]})
			i = j
		default:
			// Punctuation we don't otherwise care about (e.g. operators
			// inside a CHECK expression); keep as its own token so callers
			// skipping a clause can still count parens correctly.
			toks = append(toks, ddlToken{string(c)})
			i++
		}
	}
	return toks
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func upper(s string) string { return strings.ToUpper(s) }

// splitTopLevel splits a token slice on commas at paren depth 0.
func splitTopLevel(toks []ddlToken) [][]ddlToken {
	var groups [][]ddlToken
	var cur []ddlToken
	depth := 0
	for _, t := range toks {
		switch t.text {
		case "(":
			depth++
			cur = append(cur, t)
		case ")":
			depth--
			cur = append(cur, t)
		case ",":
			if depth == 0 {
				groups = append(groups, cur)
				cur = nil
				continue
			}
			cur = append(cur, t)
		default:
			cur = append(cur, t)
		}
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// parenSpan returns the tokens between the first top-level "(" and its
// matching ")", plus whatever trailing tokens follow the close paren.
func parenSpan(toks []ddlToken) (inner []ddlToken, trailer []ddlToken, ok bool) {
	start := -1
	for i, t := range toks {
		if t.text == "(" {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, nil, false
	}
	depth := 0
	for i := start; i < len(toks); i++ {
		switch toks[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return toks[start+1 : i], toks[i+1:], true
			}
		}
	}
	return nil, nil, false
}

var ddlConstraintKeywords = map[string]bool{
	"PRIMARY": true, "UNIQUE": true, "FOREIGN": true, "CHECK": true, "CONSTRAINT": true,
}

// parseCreateTableTokens fills in Columns, PrimaryKey, WithoutRowID, and
// Strict on table from the column/constraint list and trailing modifiers of
// a CREATE TABLE statement. SQL unrelated to those facts (CHECK
// expressions, DEFAULT expressions, foreign key actions) is scanned past,
// not interpreted.
func parseCreateTableTokens(sql string, table *Table) error {
	toks := ddlScan(sql)
	inner, trailer, ok := parenSpan(toks)
	if !ok {
		return fmt.Errorf("ddl: no column list in %q", sql)
	}

	for _, t := range trailer {
		switch upper(t.text) {
		case "STRICT":
			table.Strict = true
		}
	}
	for i := 0; i+1 < len(trailer); i++ {
		if upper(trailer[i].text) == "WITHOUT" && upper(trailer[i+1].text) == "ROWID" {
			table.WithoutRowID = true
		}
	}

	var pk []string
	for _, group := range splitTopLevel(inner) {
		if len(group) == 0 {
			continue
		}
		if ddlConstraintKeywords[upper(group[0].text)] {
			if upper(group[0].text) == "PRIMARY" {
				cols, _, ok := parenSpan(group)
				if ok {
					for _, c := range splitTopLevel(cols) {
						if len(c) > 0 {
							pk = append(pk, c[0].text)
						}
					}
				}
			}
			continue
		}

		col := &Column{Name: group[0].text}
		rest := group[1:]

		var typeParts []string
		j := 0
		for j < len(rest) {
			up := upper(rest[j].text)
			if ddlConstraintKeywords[up] || up == "NOT" || up == "NULL" ||
				up == "DEFAULT" || up == "COLLATE" || up == "GENERATED" || up == "AS" ||
				up == "AUTOINCREMENT" || up == "REFERENCES" {
				break
			}
			typeParts = append(typeParts, rest[j].text)
			if rest[j].text == "(" {
				depth := 1
				j++
				for j < len(rest) && depth > 0 {
					if rest[j].text == "(" {
						depth++
					} else if rest[j].text == ")" {
						depth--
					}
					typeParts = append(typeParts, rest[j].text)
					j++
				}
				continue
			}
			j++
		}
		col.Type = strings.Join(typeParts, " ")
		col.Affinity = DetermineAffinity(col.Type)

		for j < len(rest) {
			up := upper(rest[j].text)
			switch up {
			case "PRIMARY":
				col.PrimaryKey = true
				pk = append(pk, col.Name)
			case "NOT":
				if j+1 < len(rest) && upper(rest[j+1].text) == "NULL" {
					col.NotNull = true
					j++
				}
			case "UNIQUE":
				col.Unique = true
			case "AUTOINCREMENT":
				col.Autoincrement = true
			case "COLLATE":
				if j+1 < len(rest) {
					col.Collation = rest[j+1].text
					j++
				}
			}
			j++
		}

		table.Columns = append(table.Columns, col)
	}

	table.PrimaryKey = uniqueStrings(pk)
	for rank, name := range table.PrimaryKey {
		if c, found := table.GetColumn(name); found {
			c.PrimaryKey = true
			c.PrimaryKeyRank = rank + 1
		}
	}

	// A single INTEGER PRIMARY KEY column on a rowid table is stored as the
	// rowid itself, not as a separate record column - mirrors the teacher's
	// isRowidAlias check in its VDBE column-vs-rowid codegen.
	if !table.WithoutRowID && len(table.PrimaryKey) == 1 {
		if c, found := table.GetColumn(table.PrimaryKey[0]); found {
			if up := upper(c.Type); up == "INTEGER" || up == "INT" {
				c.RowIDAlias = true
			}
		}
	}
	return nil
}

// parseCreateIndexTokens fills in Columns and Where on idx. CREATE INDEX
// name ON table (col1, col2, ...) [WHERE ...].
func parseCreateIndexTokens(sql string, idx *Index) error {
	toks := ddlScan(sql)
	inner, trailer, ok := parenSpan(toks)
	if !ok {
		return fmt.Errorf("ddl: no column list in %q", sql)
	}
	for _, group := range splitTopLevel(inner) {
		if len(group) > 0 {
			idx.Columns = append(idx.Columns, group[0].text)
		}
	}
	for i, t := range trailer {
		if upper(t.text) == "WHERE" {
			var parts []string
			for _, rt := range trailer[i+1:] {
				parts = append(parts, rt.text)
			}
			idx.Where = strings.Join(parts, " ")
			idx.Partial = true
			break
		}
	}
	return nil
}
