package seeder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Rana718/graftseed/internal/catalog/catalogtest"
	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/database/memory"
	"github.com/Rana718/graftseed/internal/generator"
	"github.com/Rana718/graftseed/internal/plan"
	"github.com/Rana718/graftseed/internal/scheduler"
	"github.com/Rana718/graftseed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	o := DefaultOptions()
	o.Quiet = true
	o.RngSeed = 42
	o.NullRatio = 0
	o.RetryBackoff = time.Millisecond
	o.MaxBackoff = 4 * time.Millisecond
	o.Now = testNow
	return o
}

func newSeeder(t *testing.T, schema []types.SchemaTable, opts Options) (*Seeder, *memory.Adapter) {
	t.Helper()
	db := memory.New(schema)
	return New(db, opts), db
}

func column(rows []map[string]interface{}, name string) []interface{} {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r[name]
	}
	return out
}

func TestUsersAndOrders(t *testing.T) {
	s, db := newSeeder(t, catalogtest.UsersOrders(), testOptions())

	report, err := s.Run(context.Background(), plan.Request{Tables: map[string]int{"users": 5, "orders": 20}})
	require.NoError(t, err)

	assert.Equal(t, 5, db.Count("users"))
	assert.Equal(t, 20, db.Count("orders"))

	userIDs := make(map[interface{}]bool)
	for _, id := range column(db.Rows("users"), "id") {
		userIDs[id] = true
	}
	for _, uid := range column(db.Rows("orders"), "user_id") {
		assert.True(t, userIDs[uid], "orders.user_id %v is not a generated user", uid)
	}

	assert.Equal(t, PhaseDone, s.State().Phase)
	assert.Equal(t, PhaseDone, report.State.Phase)
	assert.Equal(t, 25, report.Inserted())
	assert.Equal(t, 1, report.Table("users").Wave)
	assert.Equal(t, 2, report.Table("orders").Wave)
	assert.Equal(t, TableDone, report.Table("orders").State)
	assert.Empty(t, report.Failures)
}

func TestSelfReferencingEmployees(t *testing.T) {
	s, db := newSeeder(t, catalogtest.Employees(), testOptions())

	_, err := s.Run(context.Background(), plan.Request{RowsPerTable: 10})
	require.NoError(t, err)

	rows := db.Rows("employees")
	require.Len(t, rows, 10)
	assert.Nil(t, rows[0]["manager_id"])
	for _, row := range rows[1:] {
		manager, ok := row["manager_id"].(int64)
		require.True(t, ok, "row %v has no manager", row["id"])
		assert.Less(t, manager, row["id"].(int64))
	}
}

func TestSelfReferenceWithSerialKeys(t *testing.T) {
	schema := []types.SchemaTable{{
		Name: "nodes",
		Columns: []types.SchemaColumn{
			catalogtest.SerialPK("id"),
			catalogtest.Col("label", "TEXT", false),
			catalogtest.Col("parent_id", "INTEGER", true),
		},
		ForeignKeys: []types.SchemaForeignKey{catalogtest.FK("nodes", "parent_id", "nodes", "id")},
	}}
	s, db := newSeeder(t, schema, testOptions())

	_, err := s.Run(context.Background(), plan.Request{RowsPerTable: 6})
	require.NoError(t, err)

	rows := db.Rows("nodes")
	require.Len(t, rows, 6)
	assert.Nil(t, rows[0]["parent_id"])
	for _, row := range rows[1:] {
		assert.NotNil(t, row["parent_id"])
	}
	// The first row goes alone so later rows can point at its assigned id.
	assert.Equal(t, 2, db.Batches("nodes"))
}

func TestCycleWithNullableEdgeIsBackfilled(t *testing.T) {
	s, db := newSeeder(t, catalogtest.MutualCycle(true, false), testOptions())

	report, err := s.Run(context.Background(), plan.Request{RowsPerTable: 5})
	require.NoError(t, err)

	bIDs := make(map[interface{}]bool)
	for _, id := range column(db.Rows("b"), "id") {
		bIDs[id] = true
	}
	for _, v := range column(db.Rows("a"), "b_id") {
		require.NotNil(t, v)
		assert.True(t, bIDs[v])
	}
	assert.Equal(t, 5, report.Table("a").Backfilled)
	assert.Equal(t, 5, report.Backfilled())
}

func TestRequiredCycleFails(t *testing.T) {
	s, _ := newSeeder(t, catalogtest.MutualCycle(false, false), testOptions())

	report, err := s.Run(context.Background(), plan.Request{RowsPerTable: 5})
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseScheduling, runErr.Phase)
	assert.True(t, errors.Is(err, scheduler.ErrCycle))
	assert.Contains(t, err.Error(), "a, b")
	assert.Equal(t, PhaseFailed, s.State().Phase)
	assert.NotNil(t, report)
}

func TestUniqueColumnAcrossTenThousandRows(t *testing.T) {
	opts := testOptions()
	opts.BatchSize = 1000
	s, db := newSeeder(t, catalogtest.Shop(), opts)

	_, err := s.Run(context.Background(), plan.Request{
		Tables:     map[string]int{"customers": 10000},
		SkipTables: []string{"categories", "products", "orders", "order_items"},
	})
	require.NoError(t, err)

	seen := make(map[interface{}]bool)
	for _, row := range db.Rows("customers") {
		require.NotNil(t, row["email"])
		require.NotNil(t, row["name"])
		assert.False(t, seen[row["email"]], "duplicate email %v", row["email"])
		seen[row["email"]] = true
	}
	assert.Len(t, seen, 10000)
}

func TestTransientFailureIsRetried(t *testing.T) {
	s, db := newSeeder(t, catalogtest.UsersOrders(), testOptions())
	db.FailNext("users", 2, errors.New("connection reset by peer"))

	report, err := s.Run(context.Background(), plan.Request{Tables: map[string]int{"users": 5, "orders": 3}})
	require.NoError(t, err)

	assert.Equal(t, 5, db.Count("users"))
	assert.Equal(t, 2, report.Table("users").Retries)
	assert.Equal(t, 3, db.Batches("users"))
}

func TestConstraintViolationRegeneratesBatch(t *testing.T) {
	s, db := newSeeder(t, catalogtest.UsersOrders(), testOptions())
	db.FailNext("users", 1, &common.ConstraintError{Table: "users", Err: errors.New("duplicate key")})

	report, err := s.Run(context.Background(), plan.Request{Tables: map[string]int{"users": 5, "orders": 0}})
	require.NoError(t, err)

	assert.Equal(t, 5, db.Count("users"))
	assert.Equal(t, 1, report.Table("users").Retries)
	// The regenerated batch continues the key sequence.
	assert.Equal(t, []interface{}{int64(6), int64(7), int64(8), int64(9), int64(10)}, column(db.Rows("users"), "id"))
}

func TestAbortKeepsCommittedRows(t *testing.T) {
	opts := testOptions()
	opts.MaxRetries = 2
	s, db := newSeeder(t, catalogtest.UsersOrders(), opts)
	boom := errors.New("server closed the connection")
	db.FailNext("orders", 10, boom)

	report, err := s.Run(context.Background(), plan.Request{Tables: map[string]int{"users": 5, "orders": 20}})
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.False(t, runErr.Cancelled)
	assert.Equal(t, PhaseSeeding, runErr.Phase)
	assert.True(t, errors.Is(err, ErrTableSeed))
	assert.True(t, errors.Is(err, boom))

	var seedErr *TableSeedError
	require.ErrorAs(t, err, &seedErr)
	assert.Equal(t, "orders", seedErr.Table)
	assert.Equal(t, 0, seedErr.Batch)
	assert.Equal(t, 3, seedErr.Attempts)

	assert.Equal(t, 5, db.Count("users"))
	assert.Equal(t, 0, db.Count("orders"))
	assert.Same(t, report, runErr.Report)
	assert.Equal(t, TableDone, report.Table("users").State)
	assert.Equal(t, TableFailed, report.Table("orders").State)
	assert.Equal(t, PhaseFailed, s.State().Phase)
}

func TestSkipPolicyContinues(t *testing.T) {
	opts := testOptions()
	opts.MaxRetries = -1
	opts.OnTableError = Skip
	s, db := newSeeder(t, catalogtest.Shop(), opts)
	db.FailNext("categories", 100, errors.New("disk full"))

	report, err := s.Run(context.Background(), plan.Request{RowsPerTable: 4})
	require.NoError(t, err)

	failed := make(map[string]bool)
	for _, f := range report.Failures {
		failed[f.Table] = true
	}
	assert.Equal(t, map[string]bool{"categories": true, "products": true, "order_items": true}, failed)

	assert.Equal(t, 4, db.Count("customers"))
	assert.Equal(t, 4, db.Count("orders"))
	assert.Equal(t, 0, db.Count("products"))
	assert.Equal(t, TableSkipped, report.Table("products").State)
	assert.Contains(t, report.Table("products").Error, "pool empty")
	assert.Equal(t, PhaseDone, report.State.Phase)
	assert.NotEmpty(t, report.State.Reason)
}

func TestEmptyReferencedPoolAborts(t *testing.T) {
	s, db := newSeeder(t, catalogtest.UsersOrders(), testOptions())

	_, err := s.Run(context.Background(), plan.Request{Tables: map[string]int{"users": 0, "orders": 5}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, generator.ErrPoolEmpty))
	assert.Equal(t, 0, db.Count("orders"))
}

func TestCancellationDrainsInFlightBatch(t *testing.T) {
	opts := testOptions()
	opts.BatchSize = 1
	s, db := newSeeder(t, catalogtest.UsersOrders(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	db.OnInsert(func(table string, rows int) { cancel() })

	report, err := s.Run(ctx, plan.Request{Tables: map[string]int{"users": 5, "orders": 5}})
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.True(t, runErr.Cancelled)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, db.Count("users"))
	assert.Equal(t, 0, db.Count("orders"))
	assert.Equal(t, TableCancelled, report.Table("users").State)
	assert.Equal(t, "cancelled", s.State().Reason)
}

func TestDryRunWritesNothing(t *testing.T) {
	opts := testOptions()
	opts.DryRun = true
	s, db := newSeeder(t, catalogtest.Shop(), opts)

	report, err := s.Run(context.Background(), plan.Request{RowsPerTable: 10})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 50, report.Inserted())
	for _, name := range []string{"customers", "categories", "products", "orders", "order_items"} {
		assert.Equal(t, 0, db.Count(name), name)
		assert.Equal(t, 0, db.Batches(name), name)
	}
}

func TestSkippedTableKeysAreReused(t *testing.T) {
	for _, dryRun := range []bool{false, true} {
		opts := testOptions()
		opts.DryRun = dryRun
		s, db := newSeeder(t, catalogtest.UsersOrders(), opts)
		require.NoError(t, db.Load("users", []map[string]interface{}{
			{"id": int64(100), "email": "a@x"},
			{"id": int64(101), "email": "b@x"},
		}))

		report, err := s.Run(context.Background(), plan.Request{RowsPerTable: 10, SkipTables: []string{"users"}})
		require.NoError(t, err, "dry run %v", dryRun)
		assert.Equal(t, 10, report.Inserted())
		assert.Nil(t, report.Table("users"))

		if dryRun {
			assert.Equal(t, 0, db.Count("orders"))
			continue
		}
		for _, uid := range column(db.Rows("orders"), "user_id") {
			assert.Contains(t, []interface{}{int64(100), int64(101)}, uid)
		}
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	opts := testOptions()
	opts.Concurrency = 8
	s, db := newSeeder(t, catalogtest.Shop(), opts)
	db.SetMaxConns(1)
	db.SetLatency(2 * time.Millisecond)

	_, err := s.Run(context.Background(), plan.Request{RowsPerTable: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, db.MaxInFlight())
}

func TestProgressAndReproducibility(t *testing.T) {
	var mu sync.Mutex
	last := make(map[string][2]int)
	opts := testOptions()
	opts.BatchSize = 4
	opts.Progress = func(table string, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		last[table] = [2]int{done, total}
	}

	s1, db1 := newSeeder(t, catalogtest.UsersOrders(), opts)
	_, err := s1.Run(context.Background(), plan.Request{RowsPerTable: 10})
	require.NoError(t, err)
	assert.Equal(t, [2]int{10, 10}, last["users"])
	assert.Equal(t, [2]int{10, 10}, last["orders"])

	opts.Progress = nil
	s2, db2 := newSeeder(t, catalogtest.UsersOrders(), opts)
	_, err = s2.Run(context.Background(), plan.Request{RowsPerTable: 10})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(db1.Rows("users")), fmt.Sprint(db2.Rows("users")))
	assert.Equal(t, fmt.Sprint(db1.Rows("orders")), fmt.Sprint(db2.Rows("orders")))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "seeding (wave 2 of 3)", State{Phase: PhaseSeeding, Wave: 2, Waves: 3}.String())
	assert.Equal(t, "failed(cancelled)", State{Phase: PhaseFailed, Reason: "cancelled"}.String())
	assert.Equal(t, "backfilling", State{Phase: PhaseBackfilling}.String())
	assert.True(t, State{Phase: PhaseDone}.Terminal())
	assert.False(t, State{Phase: PhaseScheduling}.Terminal())
}

func TestOptionsZeroValueDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	d := DefaultOptions()
	assert.Equal(t, d.MaxRetries, o.MaxRetries)
	assert.Equal(t, d.BatchSize, o.BatchSize)
	assert.Equal(t, d.UniquenessRetries, o.UniquenessRetries)
	assert.Equal(t, Abort, o.OnTableError)

	assert.Equal(t, 0, Options{MaxRetries: -1}.withDefaults().MaxRetries)
	assert.Equal(t, 7, Options{MaxRetries: 7}.withDefaults().MaxRetries)
}

func TestZeroOptionsStillRetry(t *testing.T) {
	db := memory.New(catalogtest.UsersOrders())
	db.FailNext("users", 2, errors.New("connection reset"))
	opts := Options{Quiet: true, RngSeed: 1, RetryBackoff: time.Millisecond}

	report, err := New(db, opts).Run(context.Background(), plan.Request{RowsPerTable: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, db.Count("users"))
	assert.Equal(t, 2, report.Table("users").Retries)
}

func TestOptionsBackoff(t *testing.T) {
	o := Options{RetryBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}
	assert.Equal(t, 100*time.Millisecond, o.backoff(1))
	assert.Equal(t, 200*time.Millisecond, o.backoff(2))
	assert.Equal(t, 400*time.Millisecond, o.backoff(3))
	assert.Equal(t, time.Second, o.backoff(6))

	p, err := ParseErrorPolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, Skip, p)
	_, err = ParseErrorPolicy("ignore")
	assert.Error(t, err)
}
