package plan

import (
	"errors"
	"testing"

	"github.com/Rana718/graftseed/internal/catalog"
	"github.com/Rana718/graftseed/internal/catalog/catalogtest"
	"github.com/Rana718/graftseed/internal/generator"
	"github.com/Rana718/graftseed/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildShopPlan(t *testing.T) {
	c := catalogtest.MustCatalog(t, catalogtest.Shop())
	p, err := Build(c, Request{RowsPerTable: 10, Tables: map[string]int{"order_items": 40}})
	require.NoError(t, err)

	assert.Equal(t, []string{"categories", "customers", "orders", "products", "order_items"}, p.Order())
	assert.Equal(t, 80, p.TotalRows())
	assert.Equal(t, 40, p.Tables["order_items"].Rows)
	assert.Equal(t, 2, p.Tables["order_items"].Wave)
	assert.Equal(t, []string{"id"}, p.Tables["customers"].Spec.Returning)
	assert.Empty(t, p.Deferred)
	assert.Empty(t, p.External)

	pools := p.NewPools()
	assert.Len(t, pools, 5)
	pools["orders"].Add([]interface{}{int64(9)})
	assert.Equal(t, int64(9), pools["orders"].Value(0, "id"))
}

func TestBuildDefersNullableCycle(t *testing.T) {
	c := catalogtest.MustCatalog(t, catalogtest.MutualCycle(true, false))
	p, err := Build(c, Request{RowsPerTable: 5})
	require.NoError(t, err)

	require.Len(t, p.Deferred, 1)
	assert.Equal(t, "a", p.Deferred[0].From)
	require.Len(t, p.Tables["a"].Spec.Deferred, 1)
	assert.Empty(t, p.Tables["b"].Spec.Deferred)
	assert.Contains(t, p.Summary(), "a→b via a_b_id_fkey")
}

func TestBuildRejectsRequiredCycle(t *testing.T) {
	c := catalogtest.MustCatalog(t, catalogtest.MutualCycle(false, false))
	_, err := Build(c, Request{RowsPerTable: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, scheduler.ErrCycle))
}

func TestBuildSkipTablesMarksExternal(t *testing.T) {
	c := catalogtest.MustCatalog(t, catalogtest.UsersOrders())
	p, err := Build(c, Request{RowsPerTable: 3, SkipTables: []string{"users"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"orders"}, p.Order())
	assert.Equal(t, []string{"users"}, p.External)
	assert.Equal(t, []string{"users"}, p.Skipped)
	assert.Equal(t, []string{"id"}, p.Keys["users"])
	assert.Contains(t, p.NewPools(), "users")
	assert.Contains(t, p.Summary(), "Existing keys reused from: users")
}

func TestBuildSuggestsUnknownTables(t *testing.T) {
	c := catalogtest.MustCatalog(t, catalogtest.Shop())

	_, err := Build(c, Request{Tables: map[string]int{"custmers": 3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "customers"`)

	_, err = Build(c, Request{SkipTables: []string{"prodcts"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "products"`)

	_, err = Build(c, Request{Overrides: map[string]map[string]generator.Override{"ordrs": {}}})
	require.Error(t, err)
}

func TestBuildRejectsBadRequests(t *testing.T) {
	c := catalogtest.MustCatalog(t, catalogtest.UsersOrders())

	_, err := Build(c, Request{RowsPerTable: -1})
	require.Error(t, err)

	_, err = Build(c, Request{Tables: map[string]int{"users": -4}})
	require.Error(t, err)

	_, err = Build(c, Request{Overrides: map[string]map[string]generator.Override{
		"users": {"email": {Generator: "nope"}},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrSchema))
}

func TestSummaryAndDetails(t *testing.T) {
	c := catalogtest.MustCatalog(t, catalogtest.UsersOrders())
	p, err := Build(c, Request{RowsPerTable: 2})
	require.NoError(t, err)

	s := p.Summary()
	assert.Contains(t, s, "Seed plan: 2 tables, 4 rows, 2 waves")
	assert.Contains(t, s, "wave 1: users (2)")
	assert.Contains(t, s, "Order: users → orders")

	d := p.Details()
	assert.Contains(t, d, "fk:users")
	assert.Contains(t, d, "sequence")
}

func TestBuildResolvesDataPools(t *testing.T) {
	c := catalogtest.MustCatalog(t, catalogtest.Shop())
	overrides := map[string]map[string]generator.Override{
		"categories": {"title": {Generator: "from_pool", Pool: "departments"}},
	}

	p, err := Build(c, Request{
		RowsPerTable: 3,
		Overrides:    overrides,
		DataPools:    generator.DataPools{"departments": {"Garden", "Kitchen"}},
	})
	require.NoError(t, err)
	assert.Contains(t, p.Details(), "one_of")

	_, err = Build(c, Request{RowsPerTable: 3, Overrides: overrides})
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrSchema))
	assert.Contains(t, err.Error(), `unknown data pool "departments"`)
}
