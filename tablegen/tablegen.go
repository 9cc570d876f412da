// Package tablegen builds SQLite CREATE TABLE statements from a declarative
// table description.
//
// A TableGenerator is either built incrementally (New, SetTableOptions,
// AddColumn, AddForeignKey) or rehydrated from a complete TableData value with
// FromData. Rendering never touches a database and never fails: malformed
// descriptions produce malformed SQL, which is left for SQLite to reject.
package tablegen

// TableOptions controls the statement header.
type TableOptions struct {
	Temporary   bool `json:"temporary,omitempty"`
	IfNotExists bool `json:"ifNotExists,omitempty"`
}

// ColumnOptions are the column constraints, rendered in a fixed order.
type ColumnOptions struct {
	PrimaryKey    bool   `json:"primaryKey,omitempty"`
	AutoIncrement bool   `json:"autoIncrement,omitempty"`
	NotNull       bool   `json:"notNull,omitempty"`
	Unique        bool   `json:"unique,omitempty"`
	OnConflict    string `json:"onConflict,omitempty"`
	// Default is unset when nil. Strings are double-quoted, anything else is
	// written as is.
	Default any `json:"default,omitempty"`
}

type Column struct {
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Options ColumnOptions `json:"options"`
}

// ForeignKey references TargetTable(TargetColumn) from Column. Empty actions
// are omitted.
type ForeignKey struct {
	Column       string `json:"column"`
	TargetTable  string `json:"targetTable"`
	TargetColumn string `json:"targetColumn"`
	OnUpdate     string `json:"onUpdate,omitempty"`
	OnDelete     string `json:"onDelete,omitempty"`
}

// TableData is the complete description of a table.
type TableData struct {
	Name        string       `json:"name"`
	Options     TableOptions `json:"options"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreignKeys,omitempty"`
}

// ClassicIDColumn is the conventional auto-incremented integer key.
var ClassicIDColumn = Column{
	Name: "id",
	Type: "INTEGER",
	Options: ColumnOptions{
		PrimaryKey:    true,
		AutoIncrement: true,
	},
}

type TableGenerator struct {
	name        string
	options     TableOptions
	columns     []Column
	foreignKeys []ForeignKey
}

func New(name string) *TableGenerator {
	return &TableGenerator{name: name}
}

// FromData creates a generator holding a copy of the given description.
// Column names are not checked for duplicates.
func FromData(data TableData) *TableGenerator {
	return &TableGenerator{
		name:        data.Name,
		options:     data.Options,
		columns:     append([]Column(nil), data.Columns...),
		foreignKeys: append([]ForeignKey(nil), data.ForeignKeys...),
	}
}

func (g *TableGenerator) Name() string {
	return g.name
}

func (g *TableGenerator) Options() TableOptions {
	return g.options
}

func (g *TableGenerator) Columns() []Column {
	return append([]Column(nil), g.columns...)
}

func (g *TableGenerator) ForeignKeys() []ForeignKey {
	return append([]ForeignKey(nil), g.foreignKeys...)
}

// Data returns a copy of the description held by the generator.
func (g *TableGenerator) Data() TableData {
	return TableData{
		Name:        g.name,
		Options:     g.options,
		Columns:     g.Columns(),
		ForeignKeys: g.ForeignKeys(),
	}
}

// SetTableOptions replaces the table options.
func (g *TableGenerator) SetTableOptions(options TableOptions) {
	g.options = options
}

// AddColumn appends a column unless one with the same name already exists.
// It reports whether the column was added; the first definition of a name
// always wins.
func (g *TableGenerator) AddColumn(name, sqlType string, options ColumnOptions) bool {
	for _, c := range g.columns {
		if c.Name == name {
			return false
		}
	}
	g.columns = append(g.columns, Column{Name: name, Type: sqlType, Options: options})
	return true
}

// AddClassicIDColumn adds ClassicIDColumn with the same duplicate rule as
// AddColumn.
func (g *TableGenerator) AddClassicIDColumn() bool {
	return g.AddColumn(ClassicIDColumn.Name, ClassicIDColumn.Type, ClassicIDColumn.Options)
}

// AddForeignKey appends a foreign key. Redundant keys are kept.
func (g *TableGenerator) AddForeignKey(fk ForeignKey) {
	g.foreignKeys = append(g.foreignKeys, fk)
}
