// Package memory is an in-process database adapter. It enforces NOT NULL,
// unique and foreign key constraints per batch, which makes it the target
// for dry runs and for exercising the seeder without a server.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Rana718/graftseed/internal/catalog"
	"github.com/Rana718/graftseed/internal/types"
)

const defaultMaxConns = 8

type Adapter struct {
	mu       sync.Mutex
	schema   []types.SchemaTable
	tables   map[string]*table
	maxConns int

	failures map[string][]error
	latency  time.Duration
	onInsert func(table string, rows int)

	inFlight    int
	maxInFlight int
	batches     map[string]int
}

// New returns an adapter holding empty tables shaped like schema.
func New(schema []types.SchemaTable) *Adapter {
	a := &Adapter{maxConns: defaultMaxConns}
	a.reset(schema)
	return a
}

func (a *Adapter) reset(schema []types.SchemaTable) {
	a.schema = schema
	a.tables = make(map[string]*table, len(schema))
	a.failures = make(map[string][]error)
	a.batches = make(map[string]int)
	for _, st := range schema {
		a.tables[st.Name] = newTable(st)
	}
}

// Connect accepts memory:// URLs. A path after the scheme names a catalog
// snapshot whose tables replace the current schema.
func (a *Adapter) Connect(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, "memory://") || url == "memory://" {
		return nil
	}
	c, err := catalog.Load(strings.TrimPrefix(url, "memory://"))
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset(c.Schema())
	return nil
}

func (a *Adapter) Close() error { return nil }

func (a *Adapter) Ping(ctx context.Context) error { return ctx.Err() }

func (a *Adapter) Provider() string { return "memory" }

func (a *Adapter) MaxConns() int { return a.maxConns }

func (a *Adapter) SetMaxConns(n int) {
	if n > 0 {
		a.maxConns = n
	}
}

// SetLatency delays every write, so concurrent batches overlap.
func (a *Adapter) SetLatency(d time.Duration) { a.latency = d }

// OnInsert registers a callback run after each committed insert batch.
func (a *Adapter) OnInsert(fn func(table string, rows int)) { a.onInsert = fn }

// FailNext makes the next n writes to table fail with err, leaving the table untouched.
func (a *Adapter) FailNext(table string, n int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < n; i++ {
		a.failures[table] = append(a.failures[table], err)
	}
}

// MaxInFlight is the highest number of writes that overlapped.
func (a *Adapter) MaxInFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxInFlight
}

// Batches counts write attempts against table, failed ones included.
func (a *Adapter) Batches(table string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.batches[table]
}

// Rows returns copies of the stored rows, keyed by column name.
func (a *Adapter) Rows(tableName string) []map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, len(t.rows))
	for i, row := range t.rows {
		m := make(map[string]interface{}, len(row))
		for j, col := range t.schema.Columns {
			m[col.Name] = row[j]
		}
		out[i] = m
	}
	return out
}

func (a *Adapter) Count(tableName string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.tables[tableName]; ok {
		return len(t.rows)
	}
	return 0
}

// Load inserts rows without constraint checks. Missing columns are NULL.
func (a *Adapter) Load(tableName string, rows []map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tables[tableName]
	if !ok {
		return fmt.Errorf("unknown table %s", tableName)
	}
	for _, m := range rows {
		row := make([]interface{}, len(t.schema.Columns))
		for col, v := range m {
			i, ok := t.colIndex[col]
			if !ok {
				return fmt.Errorf("unknown column %s.%s", tableName, col)
			}
			row[i] = v
		}
		t.bumpSequences(row)
		t.rows = append(t.rows, row)
	}
	t.reindex()
	return nil
}

func (a *Adapter) GetCurrentSchema(ctx context.Context) ([]types.SchemaTable, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.SchemaTable, len(a.schema))
	copy(out, a.schema)
	return out, nil
}

func (a *Adapter) GetAllTableNames(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.schema))
	for _, st := range a.schema {
		names = append(names, st.Name)
	}
	return names, nil
}

// begin waits out the configured latency and consumes an injected failure.
func (a *Adapter) begin(ctx context.Context, tableName string) error {
	a.mu.Lock()
	a.inFlight++
	if a.inFlight > a.maxInFlight {
		a.maxInFlight = a.inFlight
	}
	a.batches[tableName]++
	a.mu.Unlock()

	if a.latency > 0 {
		select {
		case <-time.After(a.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if queued := a.failures[tableName]; len(queued) > 0 {
		a.failures[tableName] = queued[1:]
		return queued[0]
	}
	return nil
}

func (a *Adapter) end() {
	a.mu.Lock()
	a.inFlight--
	a.mu.Unlock()
}
