package generator

import "math/rand"

// Pool holds the key tuples committed for one table. It is append-only and
// written by a single owner; readers only touch it once the owner is done.
type Pool struct {
	index map[string]int
	rows  [][]interface{}
}

func NewPool(columns []string) *Pool {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return &Pool{index: idx}
}

// Pools maps table name to its pool. The map itself is built before seeding
// starts and never modified afterwards.
type Pools map[string]*Pool

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.rows)
}

func (p *Pool) Add(key []interface{}) {
	row := make([]interface{}, len(key))
	copy(row, key)
	p.rows = append(p.rows, row)
}

// Value returns column col of pool row i.
func (p *Pool) Value(i int, col string) interface{} {
	return p.rows[i][p.index[col]]
}

// Draw picks a row index uniformly. The pool must not be empty.
func (p *Pool) Draw(r *rand.Rand) int {
	return r.Intn(len(p.rows))
}
