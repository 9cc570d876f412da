package tablegen

import (
	"fmt"
	"strconv"
	"strings"
)

// CreateTableQuery renders the CREATE TABLE statement.
//
// Without columns only the header is returned, with no parentheses and no
// terminating semicolon. In pretty mode every column and foreign key sits on
// its own line and the statement ends with ";".
func (g *TableGenerator) CreateTableQuery(pretty bool) string {
	header := g.createTableString()
	if len(g.columns) == 0 {
		// SQLite rejects this statement; callers get the header back unchanged.
		return header
	}

	clauses := make([]string, 0, len(g.columns)+len(g.foreignKeys))
	for _, c := range g.columns {
		clauses = append(clauses, createColumnString(c))
	}
	for _, fk := range g.foreignKeys {
		clauses = append(clauses, createForeignKeyString(fk))
	}

	if pretty {
		return header + " (\n" + strings.Join(clauses, ",\n") + "\n);"
	}
	return header + " (" + strings.Join(clauses, ",") + ")"
}

func (g *TableGenerator) createTableString() string {
	parts := []string{"CREATE"}
	if g.options.Temporary {
		parts = append(parts, "TEMP")
	}
	parts = append(parts, "TABLE")
	if g.options.IfNotExists {
		parts = append(parts, "IF NOT EXISTS")
	}
	parts = append(parts, g.name)
	return strings.Join(parts, " ")
}

func createColumnString(c Column) string {
	parts := []string{c.Name, c.Type}
	opts := c.Options
	if opts.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if opts.AutoIncrement {
		parts = append(parts, "AUTOINCREMENT")
	}
	if opts.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if opts.Unique {
		parts = append(parts, "UNIQUE")
	}
	if opts.OnConflict != "" {
		parts = append(parts, "ON CONFLICT "+opts.OnConflict)
	}
	if opts.Default != nil {
		parts = append(parts, "DEFAULT "+formatDefault(opts.Default))
	}
	return strings.Join(parts, " ")
}

func formatDefault(v any) string {
	switch d := v.(type) {
	case string:
		return `"` + d + `"`
	case float64:
		// Descriptors decoded from JSON or YAML carry every number as float64.
		return strconv.FormatFloat(d, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(d), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", d)
	}
}

func createForeignKeyString(fk ForeignKey) string {
	s := fmt.Sprintf("FOREIGN KEY(%s) REFERENCES %s(%s)", fk.Column, fk.TargetTable, fk.TargetColumn)
	if fk.OnUpdate != "" {
		s += " ON UPDATE " + fk.OnUpdate
	}
	if fk.OnDelete != "" {
		s += " ON DELETE " + fk.OnDelete
	}
	return s
}
