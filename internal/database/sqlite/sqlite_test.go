package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Masterminds/squirrel"
	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/types"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Adapter{db: db, qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question), poolSize: 1}, mock
}

func TestToDSN(t *testing.T) {
	dsn, path := toDSN("sqlite://./dev.db")
	assert.Equal(t, "./dev.db", path)
	assert.Equal(t, "./dev.db?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dsn)
	assert.NotContains(t, dsn, "cache=shared")

	dsn, path = toDSN("sqlite://:memory:")
	assert.Equal(t, ":memory:", path)
	assert.Equal(t, ":memory:?cache=shared&_foreign_keys=on&_busy_timeout=5000", dsn)

	dsn, path = toDSN("file:test.db?_foreign_keys=off")
	assert.Equal(t, "test.db", path)
	assert.Equal(t, "test.db?_foreign_keys=off&_busy_timeout=5000", dsn)
}

func TestInsertBatchReturning(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "customers" ("email") VALUES (?),(?) RETURNING "id"`)).
		WithArgs("a@x", "b@x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectCommit()

	returned, err := s.InsertBatch(context.Background(), types.InsertBatch{
		Table:     "customers",
		Columns:   []string{"email"},
		Rows:      [][]interface{}{{"a@x"}, {"b@x"}},
		Returning: []string{"id"},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(1)}, {int64(2)}}, returned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchConstraintViolation(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "orders"`).WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint})
	mock.ExpectRollback()

	_, err := s.InsertBatch(context.Background(), types.InsertBatch{
		Table: "orders", Columns: []string{"id", "user_id"}, Rows: [][]interface{}{{1, 99}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConstraint))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSQLDefaultValues(t *testing.T) {
	s, _ := newMock(t)

	query, _, err := s.insertSQL(types.InsertBatch{Table: "ticks", Returning: []string{"id"}}, make([][]interface{}, 1))
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "ticks" DEFAULT VALUES RETURNING "id"`, query)

	_, _, err = s.insertSQL(types.InsertBatch{Table: "ticks"}, make([][]interface{}, 2))
	assert.Error(t, err)
}

func TestUpdateBatchRollsBack(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "a" SET "b_id" = ? WHERE "id" = ?`)).
		WithArgs(5, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "a" SET "b_id" = ? WHERE "id" = ?`)).
		WithArgs(6, 2).WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	err := s.UpdateBatch(context.Background(), types.UpdateBatch{
		Table: "a", KeyColumns: []string{"id"}, SetColumns: []string{"b_id"},
		Rows: []types.UpdateRow{
			{Key: []interface{}{1}, Values: []interface{}{5}},
			{Key: []interface{}{2}, Values: []interface{}{6}},
		},
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrConstraint))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrentSchema(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery("FROM sqlite_master").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("employees"))

	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA table_info("employees")`)).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", 0, nil, 1).
			AddRow(1, "email", "varchar(120)", 1, nil, 0).
			AddRow(2, "manager_id", "INTEGER", 0, nil, 0).
			AddRow(3, "hired_at", "DATETIME", 1, "CURRENT_TIMESTAMP", 0))

	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA foreign_key_list("employees")`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}).
			AddRow(0, 0, "employees", "manager_id", "id", "NO ACTION", "SET NULL", "NONE"))

	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA index_list("employees")`)).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "name", "unique", "origin", "partial"}).
			AddRow(0, "sqlite_autoindex_employees_1", 1, "u", 0).
			AddRow(1, "employees_manager_idx", 0, "c", 0))

	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA index_info("sqlite_autoindex_employees_1")`)).
		WillReturnRows(sqlmock.NewRows([]string{"seqno", "cid", "name"}).AddRow(0, 1, "email"))

	tables, err := s.GetCurrentSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)

	emp := tables[0]
	assert.True(t, emp.Columns[0].IsPrimary)
	assert.True(t, emp.Columns[0].IsAutoIncrement)
	assert.False(t, emp.Columns[0].Nullable)
	assert.Equal(t, "VARCHAR(120)", emp.Columns[1].Type)
	assert.True(t, emp.Columns[2].Nullable)
	assert.Equal(t, "CURRENT_TIMESTAMP", emp.Columns[3].Default)

	require.Len(t, emp.ForeignKeys, 1)
	assert.Equal(t, "employees", emp.ForeignKeys[0].RefTable)
	assert.Equal(t, []string{"manager_id"}, emp.ForeignKeys[0].Columns)
	assert.Equal(t, []string{"id"}, emp.ForeignKeys[0].RefColumns)

	require.Len(t, emp.Indexes, 1)
	assert.Equal(t, []string{"email"}, emp.Indexes[0].Columns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
