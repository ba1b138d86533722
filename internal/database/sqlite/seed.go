package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/types"
	"github.com/mattn/go-sqlite3"
)

func (s *Adapter) InsertBatch(ctx context.Context, batch types.InsertBatch) ([][]interface{}, error) {
	if err := common.ValidateIdentifiers(batch.Table, batch.Columns, batch.Returning); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var returned [][]interface{}
	for _, chunk := range common.ChunkRows(batch.Rows, len(batch.Columns), common.SQLiteMaxParams) {
		query, args, err := s.insertSQL(batch, chunk)
		if err != nil {
			return nil, err
		}

		if len(batch.Returning) == 0 {
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return nil, classify(batch.Table, err)
			}
			continue
		}

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, classify(batch.Table, err)
		}
		got, err := scanAll(rows, len(batch.Returning))
		rows.Close()
		if err != nil {
			return nil, classify(batch.Table, err)
		}
		returned = append(returned, got...)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(batch.Table, err)
	}
	return returned, nil
}

func (s *Adapter) insertSQL(batch types.InsertBatch, rows [][]interface{}) (string, []interface{}, error) {
	returning := ""
	if len(batch.Returning) > 0 {
		returning = " RETURNING " + strings.Join(quoteAll(batch.Returning), ", ")
	}

	if len(batch.Columns) == 0 {
		// DEFAULT VALUES inserts exactly one row.
		if len(rows) == 1 {
			return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES%s", quote(batch.Table), returning), nil, nil
		}
		return "", nil, fmt.Errorf("table %s has no writable columns; insert one row per batch", batch.Table)
	}

	q := s.qb.Insert(quote(batch.Table)).Columns(quoteAll(batch.Columns)...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	if returning != "" {
		q = q.Suffix(strings.TrimSpace(returning))
	}
	return q.ToSql()
}

func (s *Adapter) UpdateBatch(ctx context.Context, batch types.UpdateBatch) error {
	if err := common.ValidateIdentifiers(batch.Table, batch.KeyColumns, batch.SetColumns); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, row := range batch.Rows {
		q := s.qb.Update(quote(batch.Table))
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

func (s *Adapter) FetchKeys(ctx context.Context, table string, columns []string, limit int) (types.KeyRows, error) {
	out := types.KeyRows{Columns: columns}
	if err := common.ValidateIdentifiers(table, columns); err != nil {
		return out, err
	}

	q := s.qb.Select(quoteAll(columns)...).From(quote(table))
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return out, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return out, fmt.Errorf("failed to read keys of %s: %w", table, err)
	}
	defer rows.Close()

	out.Rows, err = scanAll(rows, len(columns))
	return out, err
}

func (s *Adapter) MaxValue(ctx context.Context, table, column string) (int64, error) {
	if err := common.ValidateIdentifiers(table, []string{column}); err != nil {
		return 0, err
	}
	query, args, err := s.qb.Select(fmt.Sprintf("COALESCE(MAX(%s), 0)", quote(column))).From(quote(table)).ToSql()
	if err != nil {
		return 0, err
	}

	var max int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
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
		out = append(out, values)
	}
	return out, rows.Err()
}

func classify(table string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return &common.ConstraintError{Table: table, Err: err}
	}
	return err
}
