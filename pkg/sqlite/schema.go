package sqlite

import (
	"fmt"
	"strings"
)

// TableInfo describes one table found in sqlite_schema.
type TableInfo struct {
	Name     string
	RootPage uint32
	SQL      string

	// Columns holds the declared column names in storage order,
	// extracted from the CREATE TABLE text. Deriving positions from
	// the artifact's own schema keeps the mapper correct when a
	// Windows build adds or reorders columns.
	Columns []string
}

// Column returns the storage position of the named column, or -1 when
// the table does not declare it.
func (t TableInfo) Column(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// LoadSchema walks the sqlite_schema table (rooted at page 1) and
// returns the tables it declares, keyed by name. Rows describing
// indexes, views, and triggers are ignored; only the table read path
// is supported.
func LoadSchema(pt *PageTable) (map[string]TableInfo, []Warning, error) {
	tables := make(map[string]TableInfo)
	var warnings []Warning

	// sqlite_schema columns: type, name, tbl_name, rootpage, sql.
	w, err := WalkTable(pt, 1, func(row Row) error {
		if len(row.Values) < 5 {
			warnings = append(warnings, Warning{
				Code:   WarnCorruptPage,
				Detail: fmt.Sprintf("schema row %d has %d columns, expected 5", row.RowID, len(row.Values)),
			})
			return nil
		}
		typ, _ := row.Values[0].AsText()
		if typ != "table" {
			return nil
		}
		name, ok := row.Values[1].AsText()
		if !ok {
			return nil
		}
		root, ok := row.Values[3].AsInt()
		if !ok || root <= 0 {
			warnings = append(warnings, Warning{
				Code:   WarnCorruptPage,
				Detail: fmt.Sprintf("table %q has no valid root page", name),
			})
			return nil
		}
		sql, _ := row.Values[4].AsText()
		tables[name] = TableInfo{
			Name:     name,
			RootPage: uint32(root),
			SQL:      sql,
			Columns:  parseCreateColumns(sql),
		}
		return nil
	})
	warnings = append(warnings, w...)
	if err != nil {
		return nil, warnings, err
	}
	return tables, warnings, nil
}

// Keywords that open a table-level constraint rather than a column
// definition.
var constraintKeywords = map[string]bool{
	"CONSTRAINT": true,
	"PRIMARY":    true,
	"UNIQUE":     true,
	"CHECK":      true,
	"FOREIGN":    true,
}

// parseCreateColumns extracts column names, in order, from a CREATE
// TABLE statement. This is not a SQL parser; it only needs to split
// the top-level definition list and take the first identifier of each
// entry, which covers everything SQLite itself emits into
// sqlite_schema.
func parseCreateColumns(sql string) []string {
	open := strings.Index(sql, "(")
	if open < 0 {
		return nil
	}
	depth := 0
	end := -1
	for i := open; i < len(sql); i++ {
		switch sql[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		end = len(sql)
	}

	var cols []string
	for _, def := range splitTopLevel(sql[open+1 : end]) {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		name := firstIdentifier(def)
		if name == "" || constraintKeywords[strings.ToUpper(name)] {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}

// splitTopLevel splits s on commas that are not nested inside
// parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// firstIdentifier returns the leading identifier of a column
// definition, stripping the quoting styles SQLite accepts.
func firstIdentifier(def string) string {
	switch def[0] {
	case '"', '\'', '`':
		quote := def[0]
		if i := strings.IndexByte(def[1:], quote); i >= 0 {
			return def[1 : i+1]
		}
		return ""
	case '[':
		if i := strings.IndexByte(def, ']'); i >= 0 {
			return def[1:i]
		}
		return ""
	default:
		end := strings.IndexAny(def, " \t\r\n(")
		if end < 0 {
			return def
		}
		return def[:end]
	}
}
