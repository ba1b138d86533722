// Package generator produces rows for one table at a time, drawing foreign keys
// from the key pools of tables seeded earlier.
package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

type Options struct {
	// NullRatio is the chance a nullable, non-unique column is left NULL.
	NullRatio float64
	// UniquenessRetries bounds regeneration on a unique collision.
	UniquenessRetries int
	// Now anchors generated dates so a seeded run is reproducible.
	Now time.Time
}

// Batch is a set of rows in insert-column order plus, per row, the key tuple
// that enters the table's pool once the rows are committed.
type Batch struct {
	Rows [][]interface{}
	Keys [][]interface{}
}

func (b *Batch) Len() int { return len(b.Rows) }

type Generator struct {
	spec  *TableSpec
	pools Pools
	own   *Pool
	rand  *rand.Rand
	fake  *faker
	opts  Options

	seen    []map[string]struct{}
	next    int64
	pending [][]interface{}
}

// New returns a generator for spec. pools must already hold a pool for every
// table spec can reference, including its own.
func New(spec *TableSpec, pools Pools, rng *rand.Rand, opts Options) *Generator {
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	own := pools[spec.Table]
	if own == nil {
		own = NewPool(spec.Tracked)
	}
	g := &Generator{
		spec:  spec,
		pools: pools,
		own:   own,
		rand:  rng,
		fake:  &faker{rand: rng},
		opts:  opts,
		seen:  make([]map[string]struct{}, len(spec.uniques)),
		next:  1,
	}
	for i := range g.seen {
		g.seen[i] = make(map[string]struct{})
	}
	return g
}

func (g *Generator) Spec() *TableSpec { return g.spec }

// StartSequenceAfter makes minted integer keys continue past max.
func (g *Generator) StartSequenceAfter(max int64) {
	if max+1 > g.next {
		g.next = max + 1
	}
}

// Next generates up to n rows.
func (g *Generator) Next(n int) (*Batch, error) {
	b := &Batch{
		Rows: make([][]interface{}, 0, n),
		Keys: make([][]interface{}, 0, n),
	}
	g.pending = g.pending[:0]

	for i := 0; i < n; i++ {
		row, err := g.row()
		if err != nil {
			return nil, err
		}
		key := g.key(row)
		b.Rows = append(b.Rows, row)
		b.Keys = append(b.Keys, key)
		if g.spec.MintedKeys() {
			g.pending = append(g.pending, key)
		}
	}
	return b, nil
}

// Commit merges a committed batch's keys into the pool. returned holds the
// database-assigned values for spec.Returning, one row per batch row.
func (g *Generator) Commit(b *Batch, returned [][]interface{}) error {
	if len(g.spec.Returning) > 0 && len(returned) != len(b.Keys) {
		return fmt.Errorf("table %s: %d rows returned for a batch of %d", g.spec.Table, len(returned), len(b.Keys))
	}
	for i, key := range b.Keys {
		for ri, col := range g.spec.Returning {
			if ri >= len(returned[i]) {
				return fmt.Errorf("table %s: returned row %d is missing column %s", g.spec.Table, i, col)
			}
			key[g.spec.keyIndex[col]] = returned[i][ri]
		}
		g.own.Add(key)
	}
	g.pending = g.pending[:0]
	return nil
}

func (g *Generator) row() ([]interface{}, error) {
	row := make([]interface{}, len(g.spec.cols))
	seq := g.next

	for i, cs := range g.spec.cols {
		if cs.fk >= 0 {
			continue
		}
		row[i] = g.value(cs, seq)
	}
	for fi := range g.spec.fks {
		if err := g.fillFK(row, fi); err != nil {
			return nil, err
		}
	}
	if err := g.ensureUnique(row, seq); err != nil {
		return nil, err
	}
	for ui, us := range g.spec.uniques {
		if k, ok := tupleKey(row, us.idx); ok {
			g.seen[ui][k] = struct{}{}
		}
	}
	g.next++
	return row, nil
}

func (g *Generator) value(cs columnSpec, seq int64) interface{} {
	if cs.nullable && g.opts.NullRatio > 0 && g.rand.Float64() < g.opts.NullRatio {
		return nil
	}
	return cs.gen.generate(g.fake, g.opts.Now, seq)
}

func (g *Generator) fillFK(row []interface{}, fi int) error {
	fs := g.spec.fks[fi]
	if fs.deferred {
		for _, ci := range fs.cols {
			row[ci] = nil
		}
		return nil
	}

	if fs.self {
		committed := g.own.Len()
		total := committed + len(g.pending)
		if total == 0 {
			switch {
			case fs.fk.Nullable:
				for _, ci := range fs.cols {
					row[ci] = nil
				}
				return nil
			case g.spec.MintedKeys():
				for k, rc := range fs.fk.RefColumns {
					row[fs.cols[k]] = row[g.spec.colIndex[rc]]
				}
				return nil
			}
			return &PoolEmptyError{Table: g.spec.Table, Columns: fs.fk.Columns, RefTable: fs.fk.RefTable}
		}
		i := g.rand.Intn(total)
		for k, rc := range fs.fk.RefColumns {
			if i < committed {
				row[fs.cols[k]] = g.own.Value(i, rc)
			} else {
				row[fs.cols[k]] = g.pending[i-committed][g.spec.keyIndex[rc]]
			}
		}
		return nil
	}

	pool := g.pools[fs.fk.RefTable]
	if pool.Len() == 0 {
		if fs.fk.Nullable {
			for _, ci := range fs.cols {
				row[ci] = nil
			}
			return nil
		}
		return &PoolEmptyError{Table: g.spec.Table, Columns: fs.fk.Columns, RefTable: fs.fk.RefTable}
	}
	i := pool.Draw(g.rand)
	for k, rc := range fs.fk.RefColumns {
		row[fs.cols[k]] = pool.Value(i, rc)
	}
	return nil
}

// ensureUnique regenerates colliding columns until no constraint clashes.
func (g *Generator) ensureUnique(row []interface{}, seq int64) error {
	attempts := 0
	for {
		clash := -1
		for ui, us := range g.spec.uniques {
			k, ok := tupleKey(row, us.idx)
			if !ok {
				continue
			}
			if _, dup := g.seen[ui][k]; dup {
				clash = ui
				break
			}
		}
		if clash < 0 {
			return nil
		}
		us := g.spec.uniques[clash]
		if attempts >= g.opts.UniquenessRetries {
			return &UniquenessExhaustedError{Table: g.spec.Table, Constraint: us.name, Columns: us.columns, Attempts: attempts}
		}
		attempts++

		refilled := make(map[int]bool)
		for _, ci := range us.idx {
			cs := g.spec.cols[ci]
			if cs.fk < 0 {
				row[ci] = cs.gen.generate(g.fake, g.opts.Now, seq)
				continue
			}
			if refilled[cs.fk] {
				continue
			}
			refilled[cs.fk] = true
			if err := g.fillFK(row, cs.fk); err != nil {
				return err
			}
		}
	}
}

func (g *Generator) key(row []interface{}) []interface{} {
	key := make([]interface{}, len(g.spec.Tracked))
	for i, col := range g.spec.Tracked {
		if ci, ok := g.spec.colIndex[col]; ok {
			key[i] = row[ci]
		}
	}
	return key
}

// tupleKey renders the constrained values. ok is false when any is NULL.
func tupleKey(row []interface{}, idx []int) (string, bool) {
	parts := make([]string, len(idx))
	for i, ci := range idx {
		if row[ci] == nil {
			return "", false
		}
		parts[i] = fmt.Sprintf("%v", row[ci])
	}
	return strings.Join(parts, "\x1f"), true
}
