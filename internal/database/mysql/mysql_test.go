package mysql

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Masterminds/squirrel"
	"github.com/Rana718/graftseed/internal/database/common"
	"github.com/Rana718/graftseed/internal/types"
	mysqldrv "github.com/go-sql-driver/mysql"
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
	assert.Equal(t, "root:pw@tcp(localhost:3306)/shop?tls=false&parseTime=true",
		toDSN("mysql://root:pw@localhost:3306/shop?sslmode=disable"))
	assert.Equal(t, "root:pw@tcp(db:3306)/shop?parseTime=true", toDSN("root:pw@tcp(db:3306)/shop"))
	assert.Equal(t, "shop", databaseName("root:pw@tcp(db:3306)/shop?parseTime=true"))
}

func TestInsertBatchMultiRow(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `tags` (`id`,`label`) VALUES (?,?),(?,?)")).
		WithArgs(1, "a", 2, "b").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	returned, err := m.InsertBatch(context.Background(), types.InsertBatch{
		Table:   "tags",
		Columns: []string{"id", "label"},
		Rows:    [][]interface{}{{1, "a"}, {2, "b"}},
	})
	require.NoError(t, err)
	assert.Nil(t, returned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchReadsAutoIncrementKeys(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `customers` (`email`) VALUES (?)")).
		WithArgs("a@x").WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `customers` (`email`) VALUES (?)")).
		WithArgs("b@x").WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	returned, err := m.InsertBatch(context.Background(), types.InsertBatch{
		Table:     "customers",
		Columns:   []string{"email"},
		Rows:      [][]interface{}{{"a@x"}, {"b@x"}},
		Returning: []string{"id"},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(41)}, {int64(42)}}, returned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchRollsBackOnDuplicate(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `tags`").
		WillReturnError(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry 'a'"})
	mock.ExpectRollback()

	_, err := m.InsertBatch(context.Background(), types.InsertBatch{
		Table: "tags", Columns: []string{"label"}, Rows: [][]interface{}{{"a"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConstraint))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchTransientErrorIsNotConstraint(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `tags`").WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	_, err := m.InsertBatch(context.Background(), types.InsertBatch{
		Table: "tags", Columns: []string{"label"}, Rows: [][]interface{}{{"a"}},
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrConstraint))
}

func TestInsertBatchRejectsBadIdentifiers(t *testing.T) {
	m, _ := newMock(t)
	_, err := m.InsertBatch(context.Background(), types.InsertBatch{Table: "tags`; drop", Columns: []string{"a"}})
	assert.Error(t, err)
}

func TestUpdateBatch(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `a` SET `b_id` = ? WHERE `id` = ?")).
		WithArgs(3, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `a` SET `b_id` = ? WHERE `id` = ?")).
		WithArgs(4, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := m.UpdateBatch(context.Background(), types.UpdateBatch{
		Table: "a", KeyColumns: []string{"id"}, SetColumns: []string{"b_id"},
		Rows: []types.UpdateRow{
			{Key: []interface{}{1}, Values: []interface{}{3}},
			{Key: []interface{}{2}, Values: []interface{}{4}},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchKeysAndMaxValue(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT `id` FROM `users` LIMIT 100")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
	keys, err := m.FetchKeys(context.Background(), "users", []string{"id"}, 100)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(1)}, {int64(2)}}, keys.Rows)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(`id`), 0) FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(17)))
	max, err := m.MaxValue(context.Background(), "users", "id")
	require.NoError(t, err)
	assert.Equal(t, int64(17), max)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrentSchema(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders").AddRow("users"))

	cols := sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable", "column_default",
		"character_maximum_length", "numeric_precision", "numeric_scale", "column_type", "column_key", "extra"}).
		AddRow("orders", "id", "int", "NO", nil, nil, 10, 0, "int", "PRI", "auto_increment").
		AddRow("orders", "user_id", "int", "NO", nil, nil, 10, 0, "int", "MUL", "").
		AddRow("orders", "status", "enum", "NO", "new", nil, nil, nil, "enum('new','paid')", "", "").
		AddRow("users", "id", "int", "NO", nil, nil, 10, 0, "int", "PRI", "").
		AddRow("users", "email", "varchar", "NO", nil, 120, nil, nil, "varchar(120)", "UNI", "")
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("orders", "users").WillReturnRows(cols)

	mock.ExpectQuery("FROM information_schema.statistics").WithArgs("orders", "users").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "index_name", "column_name"}).
			AddRow("users", "users_email_key", "email"))

	mock.ExpectQuery("FROM information_schema.key_column_usage").WithArgs("orders", "users").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "constraint_name", "column_name",
			"referenced_table_name", "referenced_column_name", "delete_rule"}).
			AddRow("orders", "orders_user_fk", "user_id", "users", "id", "CASCADE"))

	tables, err := m.GetCurrentSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)

	orders := tables[0]
	assert.True(t, orders.Columns[0].IsPrimary)
	assert.True(t, orders.Columns[0].IsAutoIncrement)
	assert.Equal(t, []string{"new", "paid"}, orders.Columns[2].EnumValues)
	assert.True(t, orders.Columns[2].HasDefault)
	require.Len(t, orders.ForeignKeys, 1)
	assert.Equal(t, "users", orders.ForeignKeys[0].RefTable)
	assert.Equal(t, []string{"user_id"}, orders.ForeignKeys[0].Columns)

	users := tables[1]
	assert.Equal(t, "VARCHAR(120)", users.Columns[1].Type)
	require.Len(t, users.Indexes, 1)
	assert.True(t, users.Indexes[0].Unique)
	assert.NoError(t, mock.ExpectationsWereMet())
}
