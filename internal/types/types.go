package types

type SchemaEnum struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

type SchemaTable struct {
	Name        string             `yaml:"name"`
	Columns     []SchemaColumn     `yaml:"columns"`
	Indexes     []SchemaIndex      `yaml:"indexes,omitempty"`
	ForeignKeys []SchemaForeignKey `yaml:"foreign_keys,omitempty"`
}

type SchemaColumn struct {
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	Nullable        bool     `yaml:"nullable"`
	Default         string   `yaml:"default,omitempty"`
	HasDefault      bool     `yaml:"has_default,omitempty"`
	IsPrimary       bool     `yaml:"primary,omitempty"`
	IsUnique        bool     `yaml:"unique,omitempty"`
	IsAutoIncrement bool     `yaml:"auto_increment,omitempty"` // SERIAL, AUTO_INCREMENT, INTEGER PRIMARY KEY on sqlite
	EnumValues      []string `yaml:"enum_values,omitempty"`
}

type SchemaIndex struct {
	Name    string   `yaml:"name"`
	Table   string   `yaml:"table,omitempty"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
}

// SchemaForeignKey is one FK constraint. Columns and RefColumns are positional.
type SchemaForeignKey struct {
	Name       string   `yaml:"name"`
	Columns    []string `yaml:"columns"`
	RefTable   string   `yaml:"ref_table"`
	RefColumns []string `yaml:"ref_columns"`
	OnDelete   string   `yaml:"on_delete,omitempty"`
}

// InsertBatch is a multi-row insert executed in a single transaction.
// Returning lists database-generated columns whose values must be read back,
// one row of Returning values per inserted row, in insert order.
type InsertBatch struct {
	Table     string
	Columns   []string
	Rows      [][]interface{}
	Returning []string
}

// UpdateBatch sets SetColumns on the rows addressed by KeyColumns, in one transaction.
type UpdateBatch struct {
	Table      string
	KeyColumns []string
	SetColumns []string
	Rows       []UpdateRow
}

type UpdateRow struct {
	Key    []interface{}
	Values []interface{}
}

// KeyRows holds existing key tuples read back from a table.
type KeyRows struct {
	Columns []string
	Rows    [][]interface{}
}
