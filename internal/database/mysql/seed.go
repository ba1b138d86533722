package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/types"
	mysqldrv "github.com/go-sql-driver/mysql"
)

// Server error numbers for integrity violations.
var constraintErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1364: true, // field has no default
	1451: true, // parent row referenced
	1452: true, // child row without parent
}

// InsertBatch writes the batch in one transaction. MySQL has no RETURNING, so
// a batch that needs its auto-increment key back is inserted row by row and
// read through LastInsertId.
func (m *Adapter) InsertBatch(ctx context.Context, batch types.InsertBatch) ([][]interface{}, error) {
	if err := common.ValidateIdentifiers(batch.Table, batch.Columns, batch.Returning); err != nil {
		return nil, err
	}
	if len(batch.Returning) > 1 {
		return nil, fmt.Errorf("mysql can only read back one auto-increment column, %s asks for %v", batch.Table, batch.Returning)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var returned [][]interface{}
	if len(batch.Returning) == 1 {
		returned = make([][]interface{}, 0, len(batch.Rows))
		for _, row := range batch.Rows {
			query, args, err := m.insertSQL(batch.Table, batch.Columns, [][]interface{}{row})
			if err != nil {
				return nil, err
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return nil, classify(batch.Table, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("failed to read generated key: %w", err)
			}
			returned = append(returned, []interface{}{id})
		}
	} else {
		for _, chunk := range common.ChunkRows(batch.Rows, len(batch.Columns), common.MySQLMaxParams) {
			query, args, err := m.insertSQL(batch.Table, batch.Columns, chunk)
			if err != nil {
				return nil, err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return nil, classify(batch.Table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(batch.Table, err)
	}
	return returned, nil
}

func (m *Adapter) insertSQL(table string, columns []string, rows [][]interface{}) (string, []interface{}, error) {
	if len(columns) == 0 {
		values := "()"
		for i := 1; i < len(rows); i++ {
			values += ", ()"
		}
		return fmt.Sprintf("INSERT INTO %s () VALUES %s", quote(table), values), nil, nil
	}
	q := m.qb.Insert(quote(table)).Columns(quoteAll(columns)...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	return q.ToSql()
}

func (m *Adapter) UpdateBatch(ctx context.Context, batch types.UpdateBatch) error {
	if err := common.ValidateIdentifiers(batch.Table, batch.KeyColumns, batch.SetColumns); err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range batch.Rows {
		q := m.qb.Update(quote(batch.Table))
		for i, col := range batch.SetColumns {
			q = q.Set(quote(col), row.Values[i])
		}
		where := squirrel.Eq{}
		for i, col := range batch.KeyColumns {
			where[quote(col)] = row.Key[i]
		}
		query, args, err := q.Where(where).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classify(batch.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(batch.Table, err)
	}
	return nil
}

func (m *Adapter) FetchKeys(ctx context.Context, table string, columns []string, limit int) (types.KeyRows, error) {
	out := types.KeyRows{Columns: columns}
	if err := common.ValidateIdentifiers(table, columns); err != nil {
		return out, err
	}

	q := m.qb.Select(quoteAll(columns)...).From(quote(table))
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return out, err
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return out, fmt.Errorf("failed to read keys of %s: %w", table, err)
	}
	defer rows.Close()

	out.Rows, err = scanAll(rows, len(columns))
	return out, err
}

func (m *Adapter) MaxValue(ctx context.Context, table, column string) (int64, error) {
	if err := common.ValidateIdentifiers(table, []string{column}); err != nil {
		return 0, err
	}
	query, args, err := m.qb.Select(fmt.Sprintf("COALESCE(MAX(%s), 0)", quote(column))).From(quote(table)).ToSql()
	if err != nil {
		return 0, err
	}

	var max int64
	if err := m.db.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to read max %s.%s: %w", table, column, err)
	}
	return max, nil
}

func scanAll(rows *sql.Rows, width int) ([][]interface{}, error) {
	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, width)
		ptrs := make([]interface{}, width)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

func classify(table string, err error) error {
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) && constraintErrors[myErr.Number] {
		return &common.ConstraintError{Table: table, Err: err}
	}
	return err
}
