package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/Rana718/graftseed/internal/types"
)

// constraintRow is one column of a PK, UNIQUE or FK constraint.
type constraintRow struct {
	table     string
	name      string
	kind      string // p, u or f
	column    string
	refTable  string
	refColumn string
	onDelete  string
}

func (p *Adapter) GetCurrentSchema(ctx context.Context) ([]types.SchemaTable, error) {
	tableNames, err := p.GetAllTableNames(ctx)
	if err != nil {
		return nil, err
	}
	if len(tableNames) == 0 {
		return []types.SchemaTable{}, nil
	}

	enums, err := p.getEnumValues(ctx)
	if err != nil {
		return nil, err
	}

	allColumns, err := p.getAllTablesColumns(ctx, tableNames, enums)
	if err != nil {
		return nil, err
	}

	constraints, err := p.getConstraints(ctx, tableNames)
	if err != nil {
		return nil, err
	}

	allIndexes, err := p.getAllTablesIndexes(ctx, tableNames)
	if err != nil {
		return nil, err
	}

	return assembleTables(tableNames, allColumns, allIndexes, constraints), nil
}

func (p *Adapter) GetAllTableNames(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make([]string, 0, 32)
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

func (p *Adapter) getEnumValues(ctx context.Context) (map[string][]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON t.oid = e.enumtypid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname IN (current_schema(), 'public')
		ORDER BY t.typname, e.enumsortorder
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	enumMap := make(map[string][]string)
	for rows.Next() {
		var enumName, enumValue string
		if err := rows.Scan(&enumName, &enumValue); err != nil {
			return nil, err
		}
		enumMap[enumName] = append(enumMap[enumName], enumValue)
	}
	return enumMap, rows.Err()
}

func (p *Adapter) getAllTablesColumns(ctx context.Context, tableNames []string, enums map[string][]string) (map[string][]types.SchemaColumn, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT
			c.table_name,
			c.column_name,
			c.udt_name,
			c.is_nullable,
			c.column_default,
			c.is_identity,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale
		FROM information_schema.columns c
		WHERE c.table_name = ANY($1)
		  AND c.table_schema = current_schema()
		ORDER BY c.table_name, c.ordinal_position
	`, tableNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]types.SchemaColumn, len(tableNames))
	for rows.Next() {
		var tableName, udtName, isNullable, isIdentity string
		var column types.SchemaColumn
		var columnDefault sql.NullString
		var charMaxLength, numericPrecision, numericScale sql.NullInt64

		if err := rows.Scan(
			&tableName,
			&column.Name,
			&udtName,
			&isNullable,
			&columnDefault,
			&isIdentity,
			&charMaxLength,
			&numericPrecision,
			&numericScale,
		); err != nil {
			return nil, err
		}

		column.Type = p.formatPostgresType(udtName, charMaxLength, numericPrecision, numericScale)
		column.Nullable = isNullable == "YES"
		column.EnumValues = enums[udtName]
		column.IsAutoIncrement = isIdentity == "YES"
		if columnDefault.Valid {
			column.HasDefault = true
			if strings.Contains(strings.ToLower(columnDefault.String), "nextval") {
				column.IsAutoIncrement = true
			}
			column.Default = cleanDefaultValue(columnDefault.String)
		}

		result[tableName] = append(result[tableName], column)
	}
	return result, rows.Err()
}

// getConstraints reads PK, UNIQUE and FK constraints, one row per column,
// with FK columns paired positionally through UNNEST ... WITH ORDINALITY.
func (p *Adapter) getConstraints(ctx context.Context, tableNames []string) ([]constraintRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT
			src.relname,
			con.conname,
			con.contype::text,
			src_attr.attname,
			COALESCE(tgt.relname, ''),
			COALESCE(tgt_attr.attname, ''),
			CASE con.confdeltype
				WHEN 'a' THEN 'NO ACTION'
				WHEN 'r' THEN 'RESTRICT'
				WHEN 'c' THEN 'CASCADE'
				WHEN 'n' THEN 'SET NULL'
				WHEN 'd' THEN 'SET DEFAULT'
				ELSE ''
			END
		FROM pg_constraint con
		JOIN pg_class src ON con.conrelid = src.oid
		JOIN pg_namespace ns ON src.relnamespace = ns.oid
		CROSS JOIN LATERAL UNNEST(con.conkey, COALESCE(con.confkey, con.conkey)) WITH ORDINALITY AS cols(src_col, tgt_col, ord)
		JOIN pg_attribute src_attr ON src_attr.attrelid = src.oid AND src_attr.attnum = cols.src_col
		LEFT JOIN pg_class tgt ON con.contype = 'f' AND con.confrelid = tgt.oid
		LEFT JOIN pg_attribute tgt_attr ON tgt_attr.attrelid = tgt.oid AND tgt_attr.attnum = cols.tgt_col
		WHERE src.relname = ANY($1)
		  AND ns.nspname = current_schema()
		  AND con.contype IN ('p', 'u', 'f')
		ORDER BY src.relname, con.conname, cols.ord
	`, tableNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []constraintRow
	for rows.Next() {
		var c constraintRow
		if err := rows.Scan(&c.table, &c.name, &c.kind, &c.column, &c.refTable, &c.refColumn, &c.onDelete); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// getAllTablesIndexes returns unique indexes that are not backed by a constraint.
func (p *Adapter) getAllTablesIndexes(ctx context.Context, tableNames []string) (map[string][]types.SchemaIndex, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT p.tablename, p.indexname, p.indexdef
		FROM pg_indexes p
		LEFT JOIN pg_constraint c
			ON p.indexname = c.conname
			AND c.contype IN ('u', 'p')
		WHERE p.tablename = ANY($1)
		  AND p.schemaname = current_schema()
		  AND c.conname IS NULL
		ORDER BY p.tablename, p.indexname
	`, tableNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]types.SchemaIndex, len(tableNames))
	for rows.Next() {
		var tableName, indexName, indexDef string
		if err := rows.Scan(&tableName, &indexName, &indexDef); err != nil {
			return nil, err
		}
		if idx, ok := parseIndexDef(tableName, indexName, indexDef); ok {
			result[tableName] = append(result[tableName], idx)
		}
	}
	return result, rows.Err()
}

func parseIndexDef(tableName, indexName, indexDef string) (types.SchemaIndex, bool) {
	index := types.SchemaIndex{
		Name:   indexName,
		Table:  tableName,
		Unique: strings.Contains(strings.ToUpper(indexDef), "UNIQUE"),
	}
	// Partial and expression indexes do not constrain every row.
	if strings.Contains(strings.ToUpper(indexDef), " WHERE ") {
		return index, false
	}

	if start := strings.Index(indexDef, "("); start != -1 {
		if end := strings.Index(indexDef[start:], ")"); end != -1 {
			columnsStr := indexDef[start+1 : start+end]
			for _, col := range strings.Split(columnsStr, ",") {
				col = strings.Trim(strings.TrimSpace(col), `"`)
				if strings.ContainsAny(col, "( ") {
					return index, false
				}
				index.Columns = append(index.Columns, col)
			}
		}
	}
	return index, len(index.Columns) > 0
}

// assembleTables folds constraint rows into columns, unique indexes and FKs.
func assembleTables(names []string, columns map[string][]types.SchemaColumn, indexes map[string][]types.SchemaIndex, constraints []constraintRow) []types.SchemaTable {
	type conKey struct{ table, name string }
	uniques := make(map[conKey]*types.SchemaIndex)
	fks := make(map[conKey]*types.SchemaForeignKey)
	var uniqueOrder, fkOrder []conKey

	colPtr := func(table, name string) *types.SchemaColumn {
		cols := columns[table]
		for i := range cols {
			if cols[i].Name == name {
				return &cols[i]
			}
		}
		return nil
	}

	for _, c := range constraints {
		key := conKey{c.table, c.name}
		switch c.kind {
		case "p":
			if col := colPtr(c.table, c.column); col != nil {
				col.IsPrimary = true
			}
		case "u":
			idx, ok := uniques[key]
			if !ok {
				idx = &types.SchemaIndex{Name: c.name, Table: c.table, Unique: true}
				uniques[key] = idx
				uniqueOrder = append(uniqueOrder, key)
			}
			idx.Columns = append(idx.Columns, c.column)
		case "f":
			fk, ok := fks[key]
			if !ok {
				fk = &types.SchemaForeignKey{Name: c.name, RefTable: c.refTable, OnDelete: c.onDelete}
				fks[key] = fk
				fkOrder = append(fkOrder, key)
			}
			fk.Columns = append(fk.Columns, c.column)
			fk.RefColumns = append(fk.RefColumns, c.refColumn)
		}
	}

	tables := make([]types.SchemaTable, 0, len(names))
	for _, name := range names {
		t := types.SchemaTable{Name: name, Columns: columns[name], Indexes: indexes[name]}
		for _, key := range uniqueOrder {
			if key.table == name {
				t.Indexes = append(t.Indexes, *uniques[key])
			}
		}
		for _, key := range fkOrder {
			if key.table == name {
				t.ForeignKeys = append(t.ForeignKeys, *fks[key])
			}
		}
		sort.SliceStable(t.Indexes, func(i, j int) bool { return t.Indexes[i].Name < t.Indexes[j].Name })
		tables = append(tables, t)
	}
	return tables
}

func (p *Adapter) formatPostgresType(udtName string, charMaxLength, numericPrecision, numericScale sql.NullInt64) string {
	switch udtName {
	case "varchar", "character varying":
		if charMaxLength.Valid {
			return fmt.Sprintf("VARCHAR(%d)", charMaxLength.Int64)
		}
		return "VARCHAR"
	case "bpchar", "character":
		if charMaxLength.Valid {
			return fmt.Sprintf("CHAR(%d)", charMaxLength.Int64)
		}
		return "CHAR"
	case "numeric":
		if numericPrecision.Valid && numericScale.Valid {
			return fmt.Sprintf("NUMERIC(%d,%d)", numericPrecision.Int64, numericScale.Int64)
		} else if numericPrecision.Valid {
			return fmt.Sprintf("NUMERIC(%d)", numericPrecision.Int64)
		}
		return "NUMERIC"
	case "timestamptz":
		return "TIMESTAMP WITH TIME ZONE"
	case "timestamp":
		return "TIMESTAMP"
	default:
		if mapped, exists := typeMap[strings.ToLower(udtName)]; exists {
			return mapped
		}
		return udtName
	}
}

func cleanDefaultValue(defaultVal string) string {
	if defaultVal == "" {
		return ""
	}

	if idx := strings.Index(defaultVal, "::"); idx != -1 {
		value := strings.TrimSpace(defaultVal[:idx])

		if strings.Contains(strings.ToLower(value), "nextval") {
			return ""
		}

		if strings.Contains(strings.ToUpper(value), "NOW()") || strings.Contains(strings.ToUpper(value), "CURRENT_TIMESTAMP") {
			return "NOW()"
		}

		return value
	}

	upper := strings.ToUpper(defaultVal)
	if strings.Contains(upper, "NEXTVAL") {
		return ""
	}
	if strings.Contains(upper, "NOW()") || strings.Contains(upper, "CURRENT_TIMESTAMP") {
		return "NOW()"
	}
	if upper == "TRUE" || upper == "FALSE" {
		return upper
	}

	return defaultVal
}
