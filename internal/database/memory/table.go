package memory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Rana718/graftseed/internal/types"
	"github.com/google/uuid"
)

type uniqueIndex struct {
	name string
	cols []int
	seen map[string]bool
}

type table struct {
	schema   types.SchemaTable
	colIndex map[string]int
	rows     [][]interface{}
	uniques  []*uniqueIndex
	nextID   map[int]int64
}

func newTable(st types.SchemaTable) *table {
	t := &table{schema: st, colIndex: make(map[string]int, len(st.Columns)), nextID: make(map[int]int64)}
	var pk []int
	for i, c := range st.Columns {
		t.colIndex[c.Name] = i
		if c.IsPrimary {
			pk = append(pk, i)
		}
		if c.IsAutoIncrement {
			t.nextID[i] = 1
		}
	}
	if len(pk) > 0 {
		t.addUnique(st.Name+"_pkey", pk)
	}
	for i, c := range st.Columns {
		if c.IsUnique {
			t.addUnique(st.Name+"_"+c.Name+"_key", []int{i})
		}
	}
	for _, idx := range st.Indexes {
		if !idx.Unique {
			continue
		}
		cols := make([]int, 0, len(idx.Columns))
		for _, c := range idx.Columns {
			if i, ok := t.colIndex[c]; ok {
				cols = append(cols, i)
			}
		}
		if len(cols) == len(idx.Columns) {
			t.addUnique(idx.Name, cols)
		}
	}
	return t
}

func (t *table) addUnique(name string, cols []int) {
	t.uniques = append(t.uniques, &uniqueIndex{name: name, cols: cols, seen: make(map[string]bool)})
}

func (t *table) column(name string) (types.SchemaColumn, int, bool) {
	i, ok := t.colIndex[name]
	if !ok {
		return types.SchemaColumn{}, 0, false
	}
	return t.schema.Columns[i], i, true
}

// tuple renders the values at idx as a comparable key. NULL anywhere
// exempts the tuple from comparison.
func tuple(row []interface{}, idx []int) (string, bool) {
	parts := make([]string, len(idx))
	for i, c := range idx {
		if row[c] == nil {
			return "", false
		}
		parts[i] = render(row[c])
	}
	return strings.Join(parts, "\x1f"), true
}

func render(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func (t *table) reindex() {
	for _, u := range t.uniques {
		u.seen = make(map[string]bool, len(t.rows))
		for _, row := range t.rows {
			if k, ok := tuple(row, u.cols); ok {
				u.seen[k] = true
			}
		}
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// bumpSequences moves auto-increment counters past explicit values.
func (t *table) bumpSequences(row []interface{}) {
	for i, next := range t.nextID {
		if n, ok := asInt64(row[i]); ok && n >= next {
			t.nextID[i] = n + 1
		}
	}
}

// fill builds a full row from the inserted columns, assigning
// auto-increment and default values to the rest.
func (t *table) fill(columns []string, values []interface{}) ([]interface{}, error) {
	row := make([]interface{}, len(t.schema.Columns))
	given := make([]bool, len(row))
	for i, name := range columns {
		_, ci, ok := t.column(name)
		if !ok {
			return nil, fmt.Errorf("column %q of relation %q does not exist", name, t.schema.Name)
		}
		row[ci] = values[i]
		given[ci] = true
	}
	t.bumpSequences(row)

	for i, col := range t.schema.Columns {
		if given[i] {
			continue
		}
		switch {
		case col.IsAutoIncrement:
			row[i] = t.nextID[i]
			t.nextID[i]++
		case col.HasDefault && strings.Contains(strings.ToUpper(col.Type), "UUID"):
			row[i] = uuid.NewString()
		case col.HasDefault:
			row[i] = col.Default
		}
	}
	return row, nil
}

func (t *table) checkNotNull(row []interface{}) error {
	for i, col := range t.schema.Columns {
		if row[i] == nil && !col.Nullable {
			return fmt.Errorf("null value in column %q of relation %q violates not-null constraint", col.Name, t.schema.Name)
		}
	}
	return nil
}
