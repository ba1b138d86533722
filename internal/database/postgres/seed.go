package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/types"
	"github.com/jackc/pgx/v5/pgconn"
)

func (p *Adapter) InsertBatch(ctx context.Context, batch types.InsertBatch) ([][]interface{}, error) {
	if err := common.ValidateIdentifiers(batch.Table, batch.Columns, batch.Returning); err != nil {
		return nil, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var returned [][]interface{}
	for _, chunk := range common.ChunkRows(batch.Rows, len(batch.Columns), common.PostgresMaxParams) {
		query, args, err := p.insertSQL(batch, chunk)
		if err != nil {
			return nil, err
		}

		if len(batch.Returning) == 0 {
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return nil, classify(batch.Table, err)
			}
			continue
		}

		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return nil, classify(batch.Table, err)
		}
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan returned keys: %w", err)
			}
			returned = append(returned, values)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, classify(batch.Table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(batch.Table, err)
	}
	return returned, nil
}

// insertSQL builds one multi-row INSERT. A table whose every column is
// database-assigned is filled from a zero-column SELECT.
func (p *Adapter) insertSQL(batch types.InsertBatch, rows [][]interface{}) (string, []interface{}, error) {
	returning := ""
	if len(batch.Returning) > 0 {
		returning = "RETURNING " + strings.Join(quoteAll(batch.Returning), ", ")
	}

	if len(batch.Columns) == 0 {
		query := fmt.Sprintf("INSERT INTO %s SELECT FROM generate_series(1, %d) %s", quote(batch.Table), len(rows), returning)
		return strings.TrimSpace(query), nil, nil
	}

	q := p.qb.Insert(quote(batch.Table)).Columns(quoteAll(batch.Columns)...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	if returning != "" {
		q = q.Suffix(returning)
	}
	return q.ToSql()
}

func (p *Adapter) UpdateBatch(ctx context.Context, batch types.UpdateBatch) error {
	if err := common.ValidateIdentifiers(batch.Table, batch.KeyColumns, batch.SetColumns); err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range batch.Rows {
		query, args, err := updateSQL(p.qb, batch, row)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return classify(batch.Table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(batch.Table, err)
	}
	return nil
}

func updateSQL(qb squirrel.StatementBuilderType, batch types.UpdateBatch, row types.UpdateRow) (string, []interface{}, error) {
	q := qb.Update(quote(batch.Table))
	for i, col := range batch.SetColumns {
		q = q.Set(quote(col), row.Values[i])
	}
	where := squirrel.Eq{}
	for i, col := range batch.KeyColumns {
		where[quote(col)] = row.Key[i]
	}
	return q.Where(where).ToSql()
}

func (p *Adapter) FetchKeys(ctx context.Context, table string, columns []string, limit int) (types.KeyRows, error) {
	out := types.KeyRows{Columns: columns}
	if err := common.ValidateIdentifiers(table, columns); err != nil {
		return out, err
	}

	q := p.qb.Select(quoteAll(columns)...).From(quote(table))
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return out, err
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return out, fmt.Errorf("failed to read keys of %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return out, err
		}
		out.Rows = append(out.Rows, values)
	}
	return out, rows.Err()
}

func (p *Adapter) MaxValue(ctx context.Context, table, column string) (int64, error) {
	if err := common.ValidateIdentifiers(table, []string{column}); err != nil {
		return 0, err
	}
	query, args, err := p.qb.Select(fmt.Sprintf("COALESCE(MAX(%s), 0)::bigint", quote(column))).From(quote(table)).ToSql()
	if err != nil {
		return 0, err
	}

	var max int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to read max %s.%s: %w", table, column, err)
	}
	return max, nil
}

// classify wraps integrity violations (SQLSTATE class 23) as ConstraintError.
func classify(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return &common.ConstraintError{Table: table, Err: err}
	}
	return err
}
