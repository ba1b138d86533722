package memory

import (
	"context"
	"fmt"

	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/types"
)

// InsertBatch applies every row or none of them. Foreign keys are checked
// once the whole batch is in place, so rows may reference earlier rows of
// the same batch.
func (a *Adapter) InsertBatch(ctx context.Context, batch types.InsertBatch) ([][]interface{}, error) {
	if err := common.ValidateIdentifiers(batch.Table, batch.Columns, batch.Returning); err != nil {
		return nil, err
	}
	if err := a.begin(ctx, batch.Table); err != nil {
		a.end()
		return nil, err
	}
	defer a.end()

	a.mu.Lock()
	t, ok := a.tables[batch.Table]
	if !ok {
		a.mu.Unlock()
		return nil, fmt.Errorf("relation %q does not exist", batch.Table)
	}
	returned, err := a.insert(t, batch)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if a.onInsert != nil {
		a.onInsert(batch.Table, len(batch.Rows))
	}
	return returned, nil
}

func (a *Adapter) insert(t *table, batch types.InsertBatch) ([][]interface{}, error) {
	retIdx := make([]int, len(batch.Returning))
	for i, name := range batch.Returning {
		_, ci, ok := t.column(name)
		if !ok {
			return nil, fmt.Errorf("column %q of relation %q does not exist", name, t.schema.Name)
		}
		retIdx[i] = ci
	}

	savedIDs := make(map[int]int64, len(t.nextID))
	for k, v := range t.nextID {
		savedIDs[k] = v
	}
	rollback := func(err error) ([][]interface{}, error) {
		t.nextID = savedIDs
		return nil, err
	}

	fresh := make([][]interface{}, 0, len(batch.Rows))
	for _, values := range batch.Rows {
		if len(values) != len(batch.Columns) {
			return rollback(fmt.Errorf("INSERT has %d values for %d columns", len(values), len(batch.Columns)))
		}
		row, err := t.fill(batch.Columns, values)
		if err != nil {
			return rollback(err)
		}
		if err := t.checkNotNull(row); err != nil {
			return rollback(&common.ConstraintError{Table: t.schema.Name, Err: err})
		}
		fresh = append(fresh, row)
	}

	if err := t.checkUnique(fresh); err != nil {
		return rollback(&common.ConstraintError{Table: t.schema.Name, Err: err})
	}

	before := len(t.rows)
	t.rows = append(t.rows, fresh...)
	if err := a.checkForeignKeys(t, fresh); err != nil {
		t.rows = t.rows[:before]
		return rollback(&common.ConstraintError{Table: t.schema.Name, Err: err})
	}
	for _, row := range fresh {
		for _, u := range t.uniques {
			if k, ok := tuple(row, u.cols); ok {
				u.seen[k] = true
			}
		}
	}

	if len(retIdx) == 0 {
		return nil, nil
	}
	returned := make([][]interface{}, len(fresh))
	for i, row := range fresh {
		out := make([]interface{}, len(retIdx))
		for j, ci := range retIdx {
			out[j] = row[ci]
		}
		returned[i] = out
	}
	return returned, nil
}

// checkUnique tests candidate rows against the stored rows and each other.
func (t *table) checkUnique(rows [][]interface{}) error {
	for _, u := range t.uniques {
		batch := make(map[string]bool, len(rows))
		for _, row := range rows {
			k, ok := tuple(row, u.cols)
			if !ok {
				continue
			}
			if u.seen[k] || batch[k] {
				return fmt.Errorf("duplicate key value violates unique constraint %q", u.name)
			}
			batch[k] = true
		}
	}
	return nil
}

func (a *Adapter) checkForeignKeys(t *table, rows [][]interface{}) error {
	for _, fk := range t.schema.ForeignKeys {
		parent, ok := a.tables[fk.RefTable]
		if !ok {
			return fmt.Errorf("foreign key %q references unknown relation %q", fk.Name, fk.RefTable)
		}
		src := make([]int, len(fk.Columns))
		for i, c := range fk.Columns {
			_, ci, ok := t.column(c)
			if !ok {
				return fmt.Errorf("foreign key %q on unknown column %q", fk.Name, c)
			}
			src[i] = ci
		}
		dst := make([]int, len(fk.RefColumns))
		for i, c := range fk.RefColumns {
			_, ci, ok := parent.column(c)
			if !ok {
				return fmt.Errorf("foreign key %q references unknown column %q", fk.Name, c)
			}
			dst[i] = ci
		}

		keys := make(map[string]bool, len(parent.rows))
		for _, row := range parent.rows {
			if k, ok := tuple(row, dst); ok {
				keys[k] = true
			}
		}
		for _, row := range rows {
			k, ok := tuple(row, src)
			if ok && !keys[k] {
				return fmt.Errorf("insert or update on table %q violates foreign key constraint %q", t.schema.Name, fk.Name)
			}
		}
	}
	return nil
}

// UpdateBatch sets columns on rows addressed by key, atomically. Every key
// must match exactly one row.
func (a *Adapter) UpdateBatch(ctx context.Context, batch types.UpdateBatch) error {
	if err := common.ValidateIdentifiers(batch.Table, batch.KeyColumns, batch.SetColumns); err != nil {
		return err
	}
	if err := a.begin(ctx, batch.Table); err != nil {
		a.end()
		return err
	}
	defer a.end()

	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tables[batch.Table]
	if !ok {
		return fmt.Errorf("relation %q does not exist", batch.Table)
	}

	keyIdx, err := t.indexes(batch.KeyColumns)
	if err != nil {
		return err
	}
	setIdx, err := t.indexes(batch.SetColumns)
	if err != nil {
		return err
	}

	byKey := make(map[string]int, len(t.rows))
	for i, row := range t.rows {
		if k, ok := tuple(row, keyIdx); ok {
			byKey[k] = i
		}
	}

	saved := make(map[int][]interface{}, len(batch.Rows))
	restore := func() {
		for i, row := range saved {
			t.rows[i] = row
		}
	}
	var touched [][]interface{}
	for _, ur := range batch.Rows {
		i, ok := byKey[tupleValues(ur.Key)]
		if !ok {
			restore()
			return fmt.Errorf("no row in %s with key %v", batch.Table, ur.Key)
		}
		if _, done := saved[i]; !done {
			saved[i] = t.rows[i]
			cp := make([]interface{}, len(t.rows[i]))
			copy(cp, t.rows[i])
			t.rows[i] = cp
		}
		for j, ci := range setIdx {
			t.rows[i][ci] = ur.Values[j]
		}
		touched = append(touched, t.rows[i])
	}

	for _, row := range touched {
		if err := t.checkNotNull(row); err != nil {
			restore()
			return &common.ConstraintError{Table: t.schema.Name, Err: err}
		}
	}
	if err := t.checkUniqueAll(); err != nil {
		restore()
		return &common.ConstraintError{Table: t.schema.Name, Err: err}
	}
	if err := a.checkForeignKeys(t, touched); err != nil {
		restore()
		return &common.ConstraintError{Table: t.schema.Name, Err: err}
	}
	t.reindex()
	return nil
}

// tupleValues renders a key the same way tuple does for stored rows.
func tupleValues(key []interface{}) string {
	idx := make([]int, len(key))
	for i := range idx {
		idx[i] = i
	}
	k, _ := tuple(key, idx)
	return k
}

func (t *table) indexes(columns []string) ([]int, error) {
	out := make([]int, len(columns))
	for i, c := range columns {
		_, ci, ok := t.column(c)
		if !ok {
			return nil, fmt.Errorf("column %q of relation %q does not exist", c, t.schema.Name)
		}
		out[i] = ci
	}
	return out, nil
}

func (t *table) checkUniqueAll() error {
	for _, u := range t.uniques {
		seen := make(map[string]bool, len(t.rows))
		for _, row := range t.rows {
			k, ok := tuple(row, u.cols)
			if !ok {
				continue
			}
			if seen[k] {
				return fmt.Errorf("duplicate key value violates unique constraint %q", u.name)
			}
			seen[k] = true
		}
	}
	return nil
}

func (a *Adapter) FetchKeys(ctx context.Context, tableName string, columns []string, limit int) (types.KeyRows, error) {
	out := types.KeyRows{Columns: columns}
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tables[tableName]
	if !ok {
		return out, fmt.Errorf("relation %q does not exist", tableName)
	}
	idx, err := t.indexes(columns)
	if err != nil {
		return out, err
	}
	for _, row := range t.rows {
		if limit > 0 && len(out.Rows) >= limit {
			break
		}
		key := make([]interface{}, len(idx))
		for i, ci := range idx {
			key[i] = row[ci]
		}
		out.Rows = append(out.Rows, key)
	}
	return out, nil
}

func (a *Adapter) MaxValue(ctx context.Context, tableName, column string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tables[tableName]
	if !ok {
		return 0, fmt.Errorf("relation %q does not exist", tableName)
	}
	_, ci, ok := t.column(column)
	if !ok {
		return 0, fmt.Errorf("column %q of relation %q does not exist", column, tableName)
	}
	var max int64
	for _, row := range t.rows {
		if n, ok := asInt64(row[ci]); ok && n > max {
			max = n
		}
	}
	return max, nil
}
