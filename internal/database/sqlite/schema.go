package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/types"
)

func (s *Adapter) GetCurrentSchema(ctx context.Context) ([]types.SchemaTable, error) {
	tableNames, err := s.GetAllTableNames(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]types.SchemaTable, 0, len(tableNames))
	for _, name := range tableNames {
		// PRAGMA doesn't support parameterized table names, so we validate them
		if err := common.ValidateIdentifier(name); err != nil {
			return nil, err
		}

		columns, err := s.getTableColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", name, err)
		}
		fks, err := s.getForeignKeys(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get foreign keys for table %s: %w", name, err)
		}
		indexes, err := s.getUniqueIndexes(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get indexes for table %s: %w", name, err)
		}

		tables = append(tables, types.SchemaTable{
			Name:        name,
			Columns:     columns,
			Indexes:     indexes,
			ForeignKeys: fks,
		})
	}
	return tables, nil
}

func (s *Adapter) GetAllTableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

func (s *Adapter) getTableColumns(ctx context.Context, tableName string) ([]types.SchemaColumn, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(\"%s\")", tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []types.SchemaColumn
	pkCount := 0
	for rows.Next() {
		var cid int
		var column types.SchemaColumn
		var dataType string
		var notNull int
		var defaultValue sql.NullString
		var pk int

		if err := rows.Scan(&cid, &column.Name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		column.Type = strings.ToUpper(strings.TrimSpace(dataType))
		column.Nullable = notNull == 0 && pk == 0
		column.IsPrimary = pk > 0
		if pk > 0 {
			pkCount++
		}
		if defaultValue.Valid {
			column.HasDefault = true
			column.Default = formatSQLiteDefault(defaultValue.String)
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// A lone INTEGER PRIMARY KEY aliases the rowid and is assigned on insert.
	if pkCount == 1 {
		for i := range columns {
			if columns[i].IsPrimary && columns[i].Type == "INTEGER" {
				columns[i].IsAutoIncrement = true
				columns[i].HasDefault = true
			}
		}
	}
	return columns, nil
}

func (s *Adapter) getForeignKeys(ctx context.Context, tableName string) ([]types.SchemaForeignKey, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(\"%s\")", tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []types.SchemaForeignKey
	lastID := -1
	for rows.Next() {
		var id, seq int
		var table, from, onUpdate, onDelete, match string
		var to sql.NullString

		if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		if id != lastID {
			fks = append(fks, types.SchemaForeignKey{
				Name:     fmt.Sprintf("%s_fk_%d", tableName, id),
				RefTable: table,
				OnDelete: onDelete,
			})
			lastID = id
		}
		fk := &fks[len(fks)-1]
		fk.Columns = append(fk.Columns, from)
		// A missing target column means the referenced table's primary key.
		fk.RefColumns = append(fk.RefColumns, to.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range fks {
		if err := s.resolveImplicitTargets(ctx, &fks[i]); err != nil {
			return nil, err
		}
	}
	return fks, nil
}

func (s *Adapter) resolveImplicitTargets(ctx context.Context, fk *types.SchemaForeignKey) error {
	implicit := false
	for _, c := range fk.RefColumns {
		if c == "" {
			implicit = true
		}
	}
	if !implicit {
		return nil
	}
	if err := common.ValidateIdentifier(fk.RefTable); err != nil {
		return err
	}
	cols, err := s.getTableColumns(ctx, fk.RefTable)
	if err != nil {
		return err
	}
	var pk []string
	for _, c := range cols {
		if c.IsPrimary {
			pk = append(pk, c.Name)
		}
	}
	if len(pk) != len(fk.Columns) {
		return fmt.Errorf("foreign key %s references %s without columns and the primary key does not match", fk.Name, fk.RefTable)
	}
	fk.RefColumns = pk
	return nil
}

func (s *Adapter) getUniqueIndexes(ctx context.Context, tableName string) ([]types.SchemaIndex, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(\"%s\")", tableName))
	if err != nil {
		return nil, err
	}

	type entry struct {
		name    string
		partial bool
	}
	var unique []entry
	for rows.Next() {
		var seq int
		var indexName, origin string
		var isUnique, partial int

		if err := rows.Scan(&seq, &indexName, &isUnique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if isUnique == 1 && origin != "pk" {
			unique = append(unique, entry{indexName, partial == 1})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var indexes []types.SchemaIndex
	for _, e := range unique {
		if e.partial {
			continue
		}
		columns, err := s.getIndexColumns(ctx, e.name)
		if err != nil {
			return nil, err
		}
		if len(columns) > 0 {
			indexes = append(indexes, types.SchemaIndex{
				Name:    e.name,
				Table:   tableName,
				Columns: columns,
				Unique:  true,
			})
		}
	}
	return indexes, nil
}

func (s *Adapter) getIndexColumns(ctx context.Context, indexName string) ([]string, error) {
	if err := common.ValidateIdentifier(indexName); err != nil {
		return nil, err
	}
	colRows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(\"%s\")", indexName))
	if err != nil {
		return nil, err
	}
	defer colRows.Close()

	var columns []string
	for colRows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := colRows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		// Expression columns have no name.
		if !name.Valid {
			return nil, nil
		}
		columns = append(columns, name.String)
	}
	return columns, colRows.Err()
}

func formatSQLiteDefault(defaultValue string) string {
	if defaultValue == "" {
		return ""
	}

	if strings.Contains(strings.ToLower(defaultValue), "current_timestamp") {
		return "CURRENT_TIMESTAMP"
	}

	return defaultValue
}
