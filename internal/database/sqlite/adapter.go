package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Adapter struct {
	db       *sql.DB
	qb       squirrel.StatementBuilderType
	poolSize int
	path     string
}

func New(poolSize int) *Adapter {
	return &Adapter{
		qb:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		poolSize: poolSize,
	}
}

// toDSN strips the sqlite:// scheme and turns on foreign keys, WAL and a busy
// timeout so concurrent batch writers queue instead of failing. File databases
// use private caches: a shared cache reports SQLITE_LOCKED at once instead of
// honouring the busy timeout. Only :memory: needs it so every pooled
// connection sees the same database.
func toDSN(url string) (string, string) {
	dbPath := strings.TrimPrefix(url, "sqlite://")
	dbPath = strings.TrimPrefix(dbPath, "file:")

	path := dbPath
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}

	if !strings.Contains(dbPath, "?") {
		if path == ":memory:" {
			dbPath += "?cache=shared"
		} else {
			dbPath += "?_journal_mode=WAL"
		}
	}
	if !strings.Contains(dbPath, "_foreign_keys") {
		dbPath += "&_foreign_keys=on"
	}
	if !strings.Contains(dbPath, "_busy_timeout") {
		dbPath += "&_busy_timeout=5000"
	}
	return dbPath, path
}

func (s *Adapter) Connect(ctx context.Context, url string) error {
	dsn, path := toDSN(url)
	s.path = path

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(s.poolSize)
	db.SetMaxIdleConns(s.poolSize)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s.db = db
	return nil
}

func (s *Adapter) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Adapter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Adapter) Provider() string { return "sqlite" }

func (s *Adapter) MaxConns() int { return s.poolSize }

func quote(name string) string {
	return pq.QuoteIdentifier(name)
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}
