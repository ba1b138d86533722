package database

import (
	"context"

	"github.com/Rana718/graftseed/internal/types"
)

type DatabaseAdapter interface {
	Connect(ctx context.Context, url string) error
	Close() error
	Ping(ctx context.Context) error

	// Provider is the normalized provider name.
	Provider() string
	// MaxConns is the size of the connection pool.
	MaxConns() int

	// Schema operations
	GetCurrentSchema(ctx context.Context) ([]types.SchemaTable, error)
	GetAllTableNames(ctx context.Context) ([]string, error)

	// Seeding operations. Each batch is one transaction.
	InsertBatch(ctx context.Context, batch types.InsertBatch) ([][]interface{}, error)
	UpdateBatch(ctx context.Context, batch types.UpdateBatch) error
	FetchKeys(ctx context.Context, table string, columns []string, limit int) (types.KeyRows, error)
	MaxValue(ctx context.Context, table, column string) (int64, error)
}
