package scheduler

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/Rana718/graftseed/internal/catalog/catalogtest"
	"github.com/Rana718/graftseed/internal/graph"
	"github.com/Rana718/graftseed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedule(t *testing.T, schema []types.SchemaTable, opts Options) (*Schedule, *graph.DependencyGraph, error) {
	t.Helper()
	g := graph.Build(catalogtest.MustCatalog(t, schema))
	s, err := Build(g, opts)
	return s, g, err
}

func TestUsersOrdersWaves(t *testing.T) {
	s, _, err := schedule(t, catalogtest.UsersOrders(), Options{})
	require.NoError(t, err)

	require.Len(t, s.Waves, 2)
	assert.Equal(t, []string{"users"}, s.Waves[0].Tables)
	assert.Equal(t, []string{"orders"}, s.Waves[1].Tables)
	assert.Empty(t, s.Deferred)
	assert.Equal(t, []string{"users", "orders"}, s.Order())
}

func TestShopWavesAreLexicalWithinWave(t *testing.T) {
	s, _, err := schedule(t, catalogtest.Shop(), Options{})
	require.NoError(t, err)

	require.Len(t, s.Waves, 3)
	assert.Equal(t, []string{"categories", "customers"}, s.Waves[0].Tables)
	assert.Equal(t, []string{"orders", "products"}, s.Waves[1].Tables)
	assert.Equal(t, []string{"order_items"}, s.Waves[2].Tables)
}

func TestSelfReferenceNeverBlocks(t *testing.T) {
	s, _, err := schedule(t, catalogtest.Employees(), Options{})
	require.NoError(t, err)
	require.Len(t, s.Waves, 1)
	assert.Equal(t, []string{"employees"}, s.Waves[0].Tables)
}

func TestRequiredCycleIsRejected(t *testing.T) {
	_, _, err := schedule(t, catalogtest.MutualCycle(false, false), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)

	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"a", "b"}, ce.Tables)
	assert.Len(t, ce.Edges, 2)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestNullableCycleIsBroken(t *testing.T) {
	s, _, err := schedule(t, catalogtest.MutualCycle(true, false), Options{})
	require.NoError(t, err)

	require.Len(t, s.Deferred, 1)
	d := s.Deferred[0]
	assert.Equal(t, "a", d.From)
	assert.Equal(t, "b", d.To)
	assert.Equal(t, graph.Deferred, d.Tag)
	assert.True(t, s.IsDeferred("a", "b"))

	require.Len(t, s.Waves, 2)
	assert.Equal(t, []string{"a"}, s.Waves[0].Tables)
	assert.Equal(t, []string{"b"}, s.Waves[1].Tables)
}

func TestBreakingDoesNotMutateGraph(t *testing.T) {
	_, g, err := schedule(t, catalogtest.MutualCycle(true, true), Options{})
	require.NoError(t, err)
	e, _ := g.Edge("a", "b")
	assert.Equal(t, graph.Nullable, e.Tag)
}

func TestDeferStrategies(t *testing.T) {
	schema := catalogtest.MutualCycle(true, true)

	s, _, err := schedule(t, schema, Options{Strategy: DeferLexical})
	require.NoError(t, err)
	assert.Equal(t, "a", s.Deferred[0].From)

	s, _, err = schedule(t, schema, Options{Strategy: DeferMinRows, RowCounts: map[string]int{"a": 50, "b": 3}})
	require.NoError(t, err)
	assert.Equal(t, "b", s.Deferred[0].From)
	assert.Equal(t, []string{"b"}, s.Waves[0].Tables)
}

func TestUnaddressableTablesCannotBeDeferred(t *testing.T) {
	_, _, err := schedule(t, catalogtest.MutualCycle(true, false), Options{
		Addressable: func(table string) bool { return table != "a" },
	})
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "primary key")
}

func TestParseDeferStrategy(t *testing.T) {
	s, err := ParseDeferStrategy("")
	require.NoError(t, err)
	assert.Equal(t, DeferLexical, s)

	s, err = ParseDeferStrategy("min-rows")
	require.NoError(t, err)
	assert.Equal(t, DeferMinRows, s)

	_, err = ParseDeferStrategy("random")
	assert.Error(t, err)
}

// Random acyclic graphs: every required dependency lands in a strictly earlier wave.
func TestRandomAcyclicGraphsRespectDependencies(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		n := 2 + rng.Intn(12)
		schema := make([]types.SchemaTable, n)
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("t%02d", i)
			schema[i] = types.SchemaTable{Name: name, Columns: []types.SchemaColumn{catalogtest.IntPK("id")}}
			// Edges only point at lower indices, so the graph is acyclic.
			for j := 0; j < i; j++ {
				if rng.Intn(3) != 0 {
					continue
				}
				col := fmt.Sprintf("ref_%02d", j)
				schema[i].Columns = append(schema[i].Columns, catalogtest.Col(col, "INTEGER", rng.Intn(2) == 0))
				schema[i].ForeignKeys = append(schema[i].ForeignKeys, catalogtest.FK(name, col, fmt.Sprintf("t%02d", j), "id"))
			}
		}

		s, g, err := schedule(t, schema, Options{})
		require.NoError(t, err)
		assert.Empty(t, s.Deferred)

		seen := make(map[string]bool)
		for _, w := range s.Waves {
			for _, table := range w.Tables {
				assert.False(t, seen[table], "table %s scheduled twice", table)
				seen[table] = true
			}
		}
		assert.Len(t, seen, n)

		for _, e := range g.Edges() {
			if e.Tag != graph.Required {
				continue
			}
			from, _ := s.WaveOf(e.From)
			to, _ := s.WaveOf(e.To)
			assert.Less(t, to, from, "edge %s", e)
		}
	}
}
