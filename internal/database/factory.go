package database

import (
	"github.com/Rana718/graftseed/internal/database/memory"
	"github.com/Rana718/graftseed/internal/database/mysql"
	"github.com/Rana718/graftseed/internal/database/postgres"
	"github.com/Rana718/graftseed/internal/database/sqlite"
	"github.com/Rana718/graftseed/internal/types"
)

// DefaultPoolSize is used when no pool size is configured.
const DefaultPoolSize = 4

func NewAdapter(provider string, poolSize int) DatabaseAdapter {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	switch provider {
	case "postgresql", "postgres":
		return postgres.New(poolSize)
	case "mysql":
		return mysql.New(poolSize)
	case "sqlite", "sqlite3":
		return sqlite.New(poolSize)
	case "memory":
		return memory.New(nil)
	default:
		return postgres.New(poolSize)
	}
}

// NewDryRun returns an in-memory adapter shaped like schema.
func NewDryRun(schema []types.SchemaTable, poolSize int) *memory.Adapter {
	m := memory.New(schema)
	if poolSize > 0 {
		m.SetMaxConns(poolSize)
	}
	return m
}
