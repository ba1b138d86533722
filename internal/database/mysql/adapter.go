package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
)

type Adapter struct {
	db        *sql.DB
	qb        squirrel.StatementBuilderType
	poolSize  int
	currentDB string
}

var typeMap = map[string]string{
	"varchar": "VARCHAR", "char": "CHAR",
	"text": "TEXT", "longtext": "TEXT", "mediumtext": "TEXT", "tinytext": "TEXT",
	"int": "INT", "integer": "INT", "bigint": "BIGINT", "smallint": "SMALLINT", "tinyint": "TINYINT",
	"boolean": "BOOLEAN", "bool": "BOOLEAN",
	"datetime": "DATETIME", "timestamp": "TIMESTAMP", "date": "DATE", "time": "TIME",
	"decimal": "DECIMAL", "numeric": "DECIMAL", "float": "FLOAT", "double": "DOUBLE",
	"json": "JSON", "blob": "BLOB", "binary": "BINARY", "varbinary": "VARBINARY",
}

func New(poolSize int) *Adapter {
	return &Adapter{
		qb:       squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		poolSize: poolSize,
	}
}

// toDSN converts a mysql:// URL into a go-sql-driver DSN.
func toDSN(url string) string {
	dsn := url
	if strings.HasPrefix(url, "mysql://") {
		dsn = strings.TrimPrefix(url, "mysql://")

		atIndex := strings.Index(dsn, "@")
		if atIndex > 0 {
			credentials := dsn[:atIndex]
			remainder := dsn[atIndex+1:]

			slashIndex := strings.Index(remainder, "/")
			if slashIndex > 0 {
				hostPort := remainder[:slashIndex]
				dbAndParams := remainder[slashIndex+1:]

				dbAndParams = strings.ReplaceAll(dbAndParams, "ssl-mode=REQUIRED", "tls=skip-verify")
				dbAndParams = strings.ReplaceAll(dbAndParams, "ssl-mode=DISABLED", "tls=false")
				dbAndParams = strings.ReplaceAll(dbAndParams, "ssl-mode=VERIFY_CA", "tls=true")
				dbAndParams = strings.ReplaceAll(dbAndParams, "ssl-mode=VERIFY_IDENTITY", "tls=true")
				dbAndParams = strings.ReplaceAll(dbAndParams, "sslmode=require", "tls=skip-verify")
				dbAndParams = strings.ReplaceAll(dbAndParams, "sslmode=disable", "tls=false")
				dbAndParams = strings.ReplaceAll(dbAndParams, "sslmode=verify-ca", "tls=true")
				dbAndParams = strings.ReplaceAll(dbAndParams, "sslmode=verify-full", "tls=true")

				dsn = fmt.Sprintf("%s@tcp(%s)/%s", credentials, hostPort, dbAndParams)
			}
		}
	}

	if !strings.Contains(dsn, "parseTime=") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	return dsn
}

func databaseName(dsn string) string {
	idx := strings.LastIndex(dsn, "/")
	if idx < 0 {
		return ""
	}
	dbPart := dsn[idx+1:]
	if qIdx := strings.Index(dbPart, "?"); qIdx >= 0 {
		return dbPart[:qIdx]
	}
	return dbPart
}

func (m *Adapter) Connect(ctx context.Context, url string) error {
	dsn := toDSN(url)
	m.currentDB = databaseName(dsn)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	db.SetMaxOpenConns(m.poolSize)
	db.SetMaxIdleConns(m.poolSize)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	m.db = db
	return nil
}

func (m *Adapter) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

func (m *Adapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *Adapter) Provider() string { return "mysql" }

func (m *Adapter) MaxConns() int { return m.poolSize }

func (m *Adapter) MapColumnType(dbType string) string {
	if mapped, exists := typeMap[strings.ToLower(dbType)]; exists {
		return mapped
	}
	return strings.ToUpper(dbType)
}

func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}
