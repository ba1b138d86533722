// Package catalogtest provides small schemas shared by the engine tests.
package catalogtest

import (
	"testing"

	"github.com/Rana718/graftseed/internal/catalog"
	"github.com/Rana718/graftseed/internal/types"
)

func IntPK(name string) types.SchemaColumn {
	return types.SchemaColumn{Name: name, Type: "INTEGER", IsPrimary: true}
}

func SerialPK(name string) types.SchemaColumn {
	return types.SchemaColumn{Name: name, Type: "INTEGER", IsPrimary: true, IsAutoIncrement: true, HasDefault: true}
}

func Col(name, typ string, nullable bool) types.SchemaColumn {
	return types.SchemaColumn{Name: name, Type: typ, Nullable: nullable}
}

func FK(table, column, refTable, refColumn string) types.SchemaForeignKey {
	return types.SchemaForeignKey{
		Name:       table + "_" + column + "_fkey",
		Columns:    []string{column},
		RefTable:   refTable,
		RefColumns: []string{refColumn},
	}
}

// UsersOrders is users(id PK) and orders(id PK, user_id NOT NULL → users.id).
func UsersOrders() []types.SchemaTable {
	return []types.SchemaTable{
		{Name: "users", Columns: []types.SchemaColumn{IntPK("id"), Col("email", "VARCHAR(255)", false)}},
		{
			Name:        "orders",
			Columns:     []types.SchemaColumn{IntPK("id"), Col("user_id", "INTEGER", false), Col("total", "NUMERIC(10,2)", false)},
			ForeignKeys: []types.SchemaForeignKey{FK("orders", "user_id", "users", "id")},
		},
	}
}

// Employees is employees(id PK, manager_id NULL → employees.id).
func Employees() []types.SchemaTable {
	return []types.SchemaTable{{
		Name:        "employees",
		Columns:     []types.SchemaColumn{IntPK("id"), Col("name", "VARCHAR(100)", false), Col("manager_id", "INTEGER", true)},
		ForeignKeys: []types.SchemaForeignKey{FK("employees", "manager_id", "employees", "id")},
	}}
}

// MutualCycle is a(b_id → b) and b(a_id → a); nullable controls a.b_id.
func MutualCycle(aNullable, bNullable bool) []types.SchemaTable {
	return []types.SchemaTable{
		{
			Name:        "a",
			Columns:     []types.SchemaColumn{IntPK("id"), Col("b_id", "INTEGER", aNullable)},
			ForeignKeys: []types.SchemaForeignKey{FK("a", "b_id", "b", "id")},
		},
		{
			Name:        "b",
			Columns:     []types.SchemaColumn{IntPK("id"), Col("a_id", "INTEGER", bNullable)},
			ForeignKeys: []types.SchemaForeignKey{FK("b", "a_id", "a", "id")},
		},
	}
}

// Shop is a small acyclic schema with a diamond: order_items depends on orders and products.
func Shop() []types.SchemaTable {
	return []types.SchemaTable{
		{Name: "customers", Columns: []types.SchemaColumn{SerialPK("id"), Col("name", "VARCHAR(80)", false), Col("email", "VARCHAR(120)", false)},
			Indexes: []types.SchemaIndex{{Name: "customers_email_key", Columns: []string{"email"}, Unique: true}}},
		{Name: "categories", Columns: []types.SchemaColumn{IntPK("id"), Col("title", "VARCHAR(60)", false)}},
		{Name: "products", Columns: []types.SchemaColumn{IntPK("id"), Col("category_id", "INTEGER", false), Col("price", "NUMERIC(8,2)", false), Col("sku", "UUID", false)},
			ForeignKeys: []types.SchemaForeignKey{FK("products", "category_id", "categories", "id")}},
		{Name: "orders", Columns: []types.SchemaColumn{SerialPK("id"), Col("customer_id", "INTEGER", false), Col("placed_at", "TIMESTAMP", false)},
			ForeignKeys: []types.SchemaForeignKey{FK("orders", "customer_id", "customers", "id")}},
		{Name: "order_items", Columns: []types.SchemaColumn{IntPK("id"), Col("order_id", "INTEGER", false), Col("product_id", "INTEGER", false), Col("qty", "SMALLINT", false)},
			ForeignKeys: []types.SchemaForeignKey{FK("order_items", "order_id", "orders", "id"), FK("order_items", "product_id", "products", "id")}},
	}
}

// MustCatalog builds a catalog or fails the test.
func MustCatalog(t testing.TB, schema []types.SchemaTable) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(schema)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}
