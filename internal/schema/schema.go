// Package schema describes the tables of the mesh database.
//
// The schema is declared in an embedded CUE file and decoded once at
// startup. CUE validates the declaration itself (column types, reference
// strengths) before Go code ever sees it.
package schema

import (
	_ "embed"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// ColumnType enumerates the value kinds a column may hold.
type ColumnType string

const (
	TypeString  ColumnType = "string"
	TypeInteger ColumnType = "integer"
	TypeBoolean ColumnType = "boolean"
	TypeSet     ColumnType = "set"
	TypeMap     ColumnType = "map"
)

// RefStrength describes how strongly a reference column holds its target.
// Only strong references keep a row reachable under store garbage
// collection; weak references are cleared when the target disappears.
type RefStrength string

const (
	RefNone   RefStrength = ""
	RefStrong RefStrength = "strong"
	RefWeak   RefStrength = "weak"
)

// Column is one column of a table.
type Column struct {
	Name     string
	Type     ColumnType
	Ref      string // referenced table, set columns only
	Strength RefStrength
}

// IsRef reports whether the column holds row references.
func (c *Column) IsRef() bool { return c.Ref != "" }

// Table is one table of the database.
type Table struct {
	Name    string
	Root    bool // root rows are always reachable
	Columns map[string]*Column
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.Columns[name]
	return c, ok
}

// ColumnNames returns the column names in sorted order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema is the decoded database schema.
type Schema struct {
	Tables map[string]*Table
}

// Table looks up a table by name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

// TableNames returns the table names in sorted order.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load compiles the embedded CUE schema and decodes it.
func Load() (*Schema, error) {
	return decode(schemaCUE)
}

// MustLoad is Load for initialization paths where the embedded schema is
// known to be well formed.
func MustLoad() *Schema {
	s, err := Load()
	if err != nil {
		panic(fmt.Sprintf("schema: %v", err))
	}
	return s
}

func decode(src string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate schema: %w", err)
	}

	tablesVal := v.LookupPath(cue.ParsePath("tables"))
	if !tablesVal.Exists() {
		return nil, fmt.Errorf("schema has no tables")
	}

	s := &Schema{Tables: make(map[string]*Table)}
	it, err := tablesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	for it.Next() {
		tbl, err := decodeTable(it.Selector().String(), it.Value())
		if err != nil {
			return nil, err
		}
		s.Tables[tbl.Name] = tbl
	}

	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeTable(name string, v cue.Value) (*Table, error) {
	tbl := &Table{Name: name, Columns: make(map[string]*Column)}

	rootVal := v.LookupPath(cue.ParsePath("root"))
	if rootVal.Exists() {
		root, err := rootVal.Bool()
		if err != nil {
			return nil, fmt.Errorf("table %s: root: %w", name, err)
		}
		tbl.Root = root
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	it, err := colsVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("table %s: iterate columns: %w", name, err)
	}
	for it.Next() {
		col, err := decodeColumn(it.Selector().String(), it.Value())
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		tbl.Columns[col.Name] = col
	}
	return tbl, nil
}

func decodeColumn(name string, v cue.Value) (*Column, error) {
	col := &Column{Name: name}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	typ, err := typeVal.String()
	if err != nil {
		return nil, fmt.Errorf("column %s: type: %w", name, err)
	}
	col.Type = ColumnType(typ)

	if refVal := v.LookupPath(cue.ParsePath("ref")); refVal.Exists() {
		ref, err := refVal.String()
		if err != nil {
			return nil, fmt.Errorf("column %s: ref: %w", name, err)
		}
		col.Ref = ref
		col.Strength = RefStrong
	}
	if strVal := v.LookupPath(cue.ParsePath("strength")); strVal.Exists() {
		strength, err := strVal.String()
		if err != nil {
			return nil, fmt.Errorf("column %s: strength: %w", name, err)
		}
		col.Strength = RefStrength(strength)
	}
	return col, nil
}

// check enforces cross-table rules CUE cannot express locally: reference
// targets must name declared tables, and references require set columns.
func (s *Schema) check() error {
	for _, tbl := range s.Tables {
		for _, col := range tbl.Columns {
			if !col.IsRef() {
				continue
			}
			if col.Type != TypeSet {
				return fmt.Errorf("table %s: column %s: references require a set column", tbl.Name, col.Name)
			}
			if _, ok := s.Tables[col.Ref]; !ok {
				return fmt.Errorf("table %s: column %s: references unknown table %q", tbl.Name, col.Name, col.Ref)
			}
		}
	}
	return nil
}
