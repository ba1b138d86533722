package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Rana718/graftseed/internal/types"
)

func (m *Adapter) GetCurrentSchema(ctx context.Context) ([]types.SchemaTable, error) {
	tableNames, err := m.GetAllTableNames(ctx)
	if err != nil {
		return nil, err
	}
	if len(tableNames) == 0 {
		return []types.SchemaTable{}, nil
	}

	allColumns, err := m.getAllTablesColumns(ctx, tableNames)
	if err != nil {
		return nil, err
	}
	allIndexes, err := m.getUniqueIndexes(ctx, tableNames)
	if err != nil {
		return nil, err
	}
	allFKs, err := m.getForeignKeys(ctx, tableNames)
	if err != nil {
		return nil, err
	}

	tables := make([]types.SchemaTable, 0, len(tableNames))
	for _, name := range tableNames {
		tables = append(tables, types.SchemaTable{
			Name:        name,
			Columns:     allColumns[name],
			Indexes:     allIndexes[name],
			ForeignKeys: allFKs[name],
		})
	}
	return tables, nil
}

func (m *Adapter) GetAllTableNames(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
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

func inClause(tableNames []string) (string, []interface{}) {
	placeholders := make([]string, len(tableNames))
	args := make([]interface{}, len(tableNames))
	for i, name := range tableNames {
		placeholders[i] = "?"
		args[i] = name
	}
	return strings.Join(placeholders, ","), args
}

func (m *Adapter) getAllTablesColumns(ctx context.Context, tableNames []string) (map[string][]types.SchemaColumn, error) {
	in, args := inClause(tableNames)
	query := fmt.Sprintf(`
		SELECT
			c.table_name,
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.column_type,
			c.column_key,
			c.extra
		FROM information_schema.columns c
		WHERE c.table_name IN (%s) AND c.table_schema = DATABASE()
		ORDER BY c.table_name, c.ordinal_position
	`, in)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]types.SchemaColumn)
	for rows.Next() {
		var tableName string
		var column types.SchemaColumn
		var dataType, isNullable, columnType, columnKey, extra string
		var columnDefault sql.NullString
		var charMaxLength, numericPrecision, numericScale sql.NullInt64

		if err := rows.Scan(
			&tableName,
			&column.Name,
			&dataType,
			&isNullable,
			&columnDefault,
			&charMaxLength,
			&numericPrecision,
			&numericScale,
			&columnType,
			&columnKey,
			&extra,
		); err != nil {
			return nil, err
		}

		column.Type = m.formatMySQLType(dataType, columnType, charMaxLength, numericPrecision, numericScale)
		column.Nullable = isNullable == "YES"
		column.IsPrimary = columnKey == "PRI"
		column.IsAutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		column.EnumValues = extractEnumValues(columnType)
		if columnDefault.Valid {
			column.HasDefault = true
			column.Default = formatMySQLDefault(columnDefault.String, column.Type)
		}
		// Generated columns cannot be written.
		if x := strings.ToLower(extra); strings.Contains(x, "virtual generated") || strings.Contains(x, "stored generated") {
			column.HasDefault = true
			column.IsAutoIncrement = true
		}

		result[tableName] = append(result[tableName], column)
	}
	return result, rows.Err()
}

// getUniqueIndexes returns every non-primary unique index, constraint-backed or not.
func (m *Adapter) getUniqueIndexes(ctx context.Context, tableNames []string) (map[string][]types.SchemaIndex, error) {
	in, args := inClause(tableNames)
	query := fmt.Sprintf(`
		SELECT s.table_name, s.index_name, s.column_name
		FROM information_schema.statistics s
		WHERE s.table_name IN (%s)
		  AND s.table_schema = DATABASE()
		  AND s.index_name != 'PRIMARY'
		  AND s.non_unique = 0
		ORDER BY s.table_name, s.index_name, s.seq_in_index
	`, in)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]types.SchemaIndex)
	for rows.Next() {
		var tableName, indexName, columnName string
		if err := rows.Scan(&tableName, &indexName, &columnName); err != nil {
			return nil, err
		}
		list := result[tableName]
		if n := len(list); n > 0 && list[n-1].Name == indexName {
			list[n-1].Columns = append(list[n-1].Columns, columnName)
			continue
		}
		result[tableName] = append(list, types.SchemaIndex{
			Name:    indexName,
			Table:   tableName,
			Columns: []string{columnName},
			Unique:  true,
		})
	}
	return result, rows.Err()
}

func (m *Adapter) getForeignKeys(ctx context.Context, tableNames []string) (map[string][]types.SchemaForeignKey, error) {
	in, args := inClause(tableNames)
	query := fmt.Sprintf(`
		SELECT
			k.table_name,
			k.constraint_name,
			k.column_name,
			k.referenced_table_name,
			k.referenced_column_name,
			r.delete_rule
		FROM information_schema.key_column_usage k
		JOIN information_schema.referential_constraints r
			ON k.constraint_name = r.constraint_name
			AND k.table_schema = r.constraint_schema
		WHERE k.table_name IN (%s)
		  AND k.table_schema = DATABASE()
		  AND k.referenced_table_name IS NOT NULL
		ORDER BY k.table_name, k.constraint_name, k.ordinal_position
	`, in)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]types.SchemaForeignKey)
	for rows.Next() {
		var tableName, name, column, refTable, refColumn, onDelete string
		if err := rows.Scan(&tableName, &name, &column, &refTable, &refColumn, &onDelete); err != nil {
			return nil, err
		}
		list := result[tableName]
		if n := len(list); n > 0 && list[n-1].Name == name {
			list[n-1].Columns = append(list[n-1].Columns, column)
			list[n-1].RefColumns = append(list[n-1].RefColumns, refColumn)
			continue
		}
		result[tableName] = append(list, types.SchemaForeignKey{
			Name:       name,
			Columns:    []string{column},
			RefTable:   refTable,
			RefColumns: []string{refColumn},
			OnDelete:   onDelete,
		})
	}
	return result, rows.Err()
}

func extractEnumValues(columnType string) []string {
	if !strings.HasPrefix(strings.ToLower(columnType), "enum(") {
		return nil
	}

	values := columnType[len("enum("):]
	values = strings.TrimSuffix(values, ")")

	var result []string
	parts := strings.Split(values, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, "'\"")
		if part != "" {
			result = append(result, part)
		}
	}

	return result
}

func (m *Adapter) formatMySQLType(dataType, columnType string, charMaxLength, numericPrecision, numericScale sql.NullInt64) string {
	switch dataType {
	case "varchar":
		if charMaxLength.Valid {
			return fmt.Sprintf("VARCHAR(%d)", charMaxLength.Int64)
		}
		return "VARCHAR(255)"
	case "char":
		if charMaxLength.Valid {
			return fmt.Sprintf("CHAR(%d)", charMaxLength.Int64)
		}
		return "CHAR(1)"
	case "decimal":
		if numericPrecision.Valid && numericScale.Valid {
			return fmt.Sprintf("DECIMAL(%d,%d)", numericPrecision.Int64, numericScale.Int64)
		} else if numericPrecision.Valid {
			return fmt.Sprintf("DECIMAL(%d)", numericPrecision.Int64)
		}
		return "DECIMAL"
	default:
		if columnType != "" {
			return strings.ToUpper(columnType)
		}
		return m.MapColumnType(dataType)
	}
}

func formatMySQLDefault(defaultValue, columnType string) string {
	if defaultValue == "" {
		return ""
	}

	if strings.Contains(strings.ToLower(defaultValue), "current_timestamp") {
		return "CURRENT_TIMESTAMP"
	}

	if strings.HasPrefix(strings.ToUpper(columnType), "ENUM(") {
		trimmed := strings.TrimSpace(defaultValue)
		if !strings.HasPrefix(trimmed, "'") && !strings.HasPrefix(trimmed, "\"") &&
			!strings.EqualFold(trimmed, "NULL") {
			return fmt.Sprintf("'%s'", trimmed)
		}
	}

	return defaultValue
}
