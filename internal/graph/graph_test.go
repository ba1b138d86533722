package graph

import (
	"testing"

	"github.com/Rana718/graftseed/internal/catalog/catalogtest"
	"github.com/Rana718/graftseed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequiredEdge(t *testing.T) {
	g := Build(catalogtest.MustCatalog(t, catalogtest.UsersOrders()))

	e, ok := g.Edge("orders", "users")
	require.True(t, ok)
	assert.Equal(t, Required, e.Tag)
	assert.True(t, e.Blocking())

	_, ok = g.Edge("users", "orders")
	assert.False(t, ok)
}

func TestBuildSelfEdge(t *testing.T) {
	g := Build(catalogtest.MustCatalog(t, catalogtest.Employees()))

	e, ok := g.Edge("employees", "employees")
	require.True(t, ok)
	assert.Equal(t, Self, e.Tag)
	assert.False(t, e.Blocking())
}

func TestParallelForeignKeysCollapse(t *testing.T) {
	schema := []types.SchemaTable{
		{Name: "users", Columns: []types.SchemaColumn{catalogtest.IntPK("id")}},
		{
			Name: "messages",
			Columns: []types.SchemaColumn{
				catalogtest.IntPK("id"),
				catalogtest.Col("sender_id", "INTEGER", true),
				catalogtest.Col("recipient_id", "INTEGER", true),
			},
			ForeignKeys: []types.SchemaForeignKey{
				catalogtest.FK("messages", "sender_id", "users", "id"),
				catalogtest.FK("messages", "recipient_id", "users", "id"),
			},
		},
	}

	g := Build(catalogtest.MustCatalog(t, schema))
	e, ok := g.Edge("messages", "users")
	require.True(t, ok)
	assert.Equal(t, Nullable, e.Tag, "all contributing columns are nullable")
	assert.Len(t, e.ForeignKeys, 2)

	schema[1].Columns[2].Nullable = false
	g = Build(catalogtest.MustCatalog(t, schema))
	e, _ = g.Edge("messages", "users")
	assert.Equal(t, Required, e.Tag, "one NOT NULL column makes the pair required")
	assert.Len(t, g.Edges(), 1)
}

func TestExternalReferencesProduceNoEdge(t *testing.T) {
	c := catalogtest.MustCatalog(t, catalogtest.UsersOrders())
	sub, _, err := c.Without([]string{"users"})
	require.NoError(t, err)

	g := Build(sub)
	assert.Equal(t, []string{"orders"}, g.Nodes())
	assert.Empty(t, g.Edges())
}

func TestEdgeTagString(t *testing.T) {
	assert.Equal(t, "required", Required.String())
	assert.Equal(t, "nullable", Nullable.String())
	assert.Equal(t, "self", Self.String())
	assert.Equal(t, "deferred", Deferred.String())
}
