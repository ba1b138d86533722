// Package catalog holds the read-only schema snapshot the seeder plans against.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Rana718/graftseed/internal/types"
	"github.com/sahilm/fuzzy"
)

// ErrSchema matches every SchemaError.
var ErrSchema = errors.New("schema introspection error")

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// SchemaError reports a catalog that cannot be read or seeded.
type SchemaError struct {
	Table  string
	Column string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error [phase=building]")
	if e.Table != "" {
		b.WriteString(" table=" + e.Table)
	}
	if e.Column != "" {
		b.WriteString(" column=" + e.Column)
	}
	b.WriteString(": " + e.Reason)
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *SchemaError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSchema, e.Err}
	}
	return []error{ErrSchema}
}

type Column struct {
	Name          string
	Type          string
	Nullable      bool
	Default       string
	HasDefault    bool
	AutoIncrement bool
	EnumValues    []string
}

type UniqueConstraint struct {
	Name    string
	Columns []string
}

type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	// Nullable is true when every source column accepts NULL.
	Nullable bool
}

// Self reports whether the constraint points back at its own table.
func (fk ForeignKey) Self(table string) bool {
	return fk.RefTable == table
}

type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	Uniques     []UniqueConstraint
	ForeignKeys []ForeignKey

	colIndex map[string]int
}

func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.colIndex[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

type Catalog struct {
	tables map[string]*Table
	names  []string
	source []types.SchemaTable
	// external tables are resolvable but not seeded.
	external map[string]bool
}

// New builds a catalog from introspected tables, rejecting dangling references.
func New(schema []types.SchemaTable) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]*Table, len(schema)), source: schema}

	for _, st := range schema {
		if !validIdentifier.MatchString(st.Name) {
			return nil, &SchemaError{Table: st.Name, Reason: "invalid table name"}
		}
		if _, dup := c.tables[st.Name]; dup {
			return nil, &SchemaError{Table: st.Name, Reason: "duplicate table"}
		}
		t, err := buildTable(st)
		if err != nil {
			return nil, err
		}
		c.tables[t.Name] = t
		c.names = append(c.names, t.Name)
	}
	sort.Strings(c.names)

	for _, name := range c.names {
		t := c.tables[name]
		for _, fk := range t.ForeignKeys {
			ref, ok := c.tables[fk.RefTable]
			if !ok {
				return nil, &SchemaError{Table: t.Name, Column: strings.Join(fk.Columns, ","),
					Reason: fmt.Sprintf("foreign key %s references unknown table %s", fk.Name, fk.RefTable)}
			}
			for _, rc := range fk.RefColumns {
				if _, ok := ref.Column(rc); !ok {
					return nil, &SchemaError{Table: t.Name, Column: strings.Join(fk.Columns, ","),
						Reason: fmt.Sprintf("foreign key %s references unknown column %s.%s", fk.Name, fk.RefTable, rc)}
				}
			}
		}
	}
	return c, nil
}

func buildTable(st types.SchemaTable) (*Table, error) {
	t := &Table{Name: st.Name, colIndex: make(map[string]int, len(st.Columns))}

	for _, sc := range st.Columns {
		if !validIdentifier.MatchString(sc.Name) {
			return nil, &SchemaError{Table: st.Name, Column: sc.Name, Reason: "invalid column name"}
		}
		t.colIndex[sc.Name] = len(t.Columns)
		t.Columns = append(t.Columns, Column{
			Name:          sc.Name,
			Type:          sc.Type,
			Nullable:      sc.Nullable,
			Default:       sc.Default,
			HasDefault:    sc.HasDefault || sc.Default != "",
			AutoIncrement: sc.IsAutoIncrement,
			EnumValues:    sc.EnumValues,
		})
		if sc.IsPrimary {
			t.PrimaryKey = append(t.PrimaryKey, sc.Name)
		}
		if sc.IsUnique {
			t.addUnique(UniqueConstraint{Name: st.Name + "_" + sc.Name + "_key", Columns: []string{sc.Name}})
		}
	}

	for _, idx := range st.Indexes {
		if !idx.Unique || len(idx.Columns) == 0 {
			continue
		}
		for _, c := range idx.Columns {
			if _, ok := t.colIndex[c]; !ok {
				return nil, &SchemaError{Table: st.Name, Column: c, Reason: "unique index " + idx.Name + " on unknown column"}
			}
		}
		t.addUnique(UniqueConstraint{Name: idx.Name, Columns: idx.Columns})
	}

	for _, sfk := range st.ForeignKeys {
		if len(sfk.Columns) == 0 || len(sfk.Columns) != len(sfk.RefColumns) {
			return nil, &SchemaError{Table: st.Name, Reason: "malformed foreign key " + sfk.Name}
		}
		fk := ForeignKey{
			Name:       sfk.Name,
			Columns:    sfk.Columns,
			RefTable:   sfk.RefTable,
			RefColumns: sfk.RefColumns,
			Nullable:   true,
		}
		for _, c := range sfk.Columns {
			col, ok := t.Column(c)
			if !ok {
				return nil, &SchemaError{Table: st.Name, Column: c, Reason: "foreign key " + sfk.Name + " on unknown column"}
			}
			if !col.Nullable {
				fk.Nullable = false
			}
		}
		if fk.Name == "" {
			fk.Name = fmt.Sprintf("%s_%s_fkey", st.Name, strings.Join(fk.Columns, "_"))
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	sort.SliceStable(t.ForeignKeys, func(i, j int) bool { return t.ForeignKeys[i].Name < t.ForeignKeys[j].Name })

	return t, nil
}

func (t *Table) addUnique(u UniqueConstraint) {
	key := strings.Join(u.Columns, ",")
	if key == strings.Join(t.PrimaryKey, ",") {
		return
	}
	for _, existing := range t.Uniques {
		if strings.Join(existing.Columns, ",") == key {
			return
		}
	}
	t.Uniques = append(t.Uniques, u)
}

func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// Names returns table names in lexical order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.tables[n])
	}
	return out
}

func (c *Catalog) Len() int { return len(c.names) }

// IsExternal reports whether a table is referenced but excluded from seeding.
func (c *Catalog) IsExternal(name string) bool {
	return c.external[name]
}

// ReferencedColumns returns, for a table, every column some FK in the catalog
// points at, in table column order.
func (c *Catalog) ReferencedColumns(table string) []string {
	target, ok := c.tables[table]
	if !ok {
		return nil
	}
	wanted := make(map[string]bool)
	for _, t := range c.tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable != table {
				continue
			}
			for _, rc := range fk.RefColumns {
				wanted[rc] = true
			}
		}
	}
	var cols []string
	for _, col := range target.Columns {
		if wanted[col.Name] {
			cols = append(cols, col.Name)
		}
	}
	return cols
}

// Suggest returns the closest known table name, or "" when nothing is close.
func (c *Catalog) Suggest(name string) string {
	matches := fuzzy.Find(strings.ToLower(name), c.names)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// Lookup resolves a user-provided table name, returning a helpful error.
func (c *Catalog) Lookup(name string) (*Table, error) {
	if t, ok := c.tables[name]; ok {
		return t, nil
	}
	if s := c.Suggest(name); s != "" {
		return nil, fmt.Errorf("unknown table %q (did you mean %q?)", name, s)
	}
	return nil, fmt.Errorf("unknown table %q", name)
}

// KeyColumns returns the columns whose committed values the seeder must keep
// for a table: its primary key plus every referenced column, in column order.
func (c *Catalog) KeyColumns(table string) []string {
	t, ok := c.tables[table]
	if !ok {
		return nil
	}
	want := make(map[string]bool)
	for _, pk := range t.PrimaryKey {
		want[pk] = true
	}
	for _, rc := range c.ReferencedColumns(table) {
		want[rc] = true
	}
	var cols []string
	for _, col := range t.Columns {
		if want[col.Name] {
			cols = append(cols, col.Name)
		}
	}
	return cols
}
