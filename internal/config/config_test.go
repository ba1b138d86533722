package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Rana718/graftseed/internal/scheduler"
	"github.com/Rana718/graftseed/internal/seeder"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, raw string) *Config {
	t.Helper()
	v := viper.New()
	v.SetConfigType("json")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(raw)))
	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := load(t, `{}`)

	assert.Equal(t, "postgresql", cfg.Database.Provider)
	assert.Equal(t, "DATABASE_URL", cfg.Database.URLEnv)
	assert.Equal(t, 4, cfg.Database.PoolSize)
	assert.Equal(t, 10, cfg.Seed.RowsPerTable)
	assert.Equal(t, 500, cfg.Seed.BatchSize)
	assert.Equal(t, 200*time.Millisecond, cfg.Seed.RetryBackoff)
	assert.Equal(t, 50, cfg.Seed.UniquenessRetries)
	assert.InDelta(t, 0.2, cfg.Seed.NullRatio, 1e-9)
	assert.Equal(t, "lexical", cfg.Seed.DeferStrategy)
	assert.Equal(t, "abort", cfg.Seed.OnTableError)
	assert.Equal(t, 10*time.Second, cfg.Notify.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	cfg := load(t, `{
  "database": {"provider": "sqlite3", "url_env": "SEED_DB", "pool_size": 2},
  "seed": {"rows_per_table": 25, "null_ratio": 0, "max_retries": 0, "concurrency_limit": 2, "retry_backoff": "1s", "on_table_error": "skip", "defer_strategy": "min-rows"},
  "tables": {"orders": 100},
  "skip_tables": ["audit_log"],
  "overrides": {"users": {"role": {"generator": "one_of", "values": ["admin", "member"]}, "city": {"generator": "from_pool", "pool": "cities"}}},
  "data_pools": {"cities": ["Lviv", "Kyiv"]}
}`)

	assert.Equal(t, "sqlite", cfg.Database.Provider)
	assert.Equal(t, 0.0, cfg.Seed.NullRatio)
	assert.Equal(t, time.Second, cfg.Seed.RetryBackoff)
	require.NoError(t, cfg.Validate())

	req, err := cfg.Request()
	require.NoError(t, err)
	assert.Equal(t, 25, req.RowsPerTable)
	assert.Equal(t, 100, req.Tables["orders"])
	assert.Equal(t, []string{"audit_log"}, req.SkipTables)
	assert.Equal(t, scheduler.DeferMinRows, req.DeferStrategy)
	assert.Equal(t, "one_of", req.Overrides["users"]["role"].Generator)
	assert.Len(t, req.Overrides["users"]["role"].Values, 2)
	assert.Equal(t, "cities", req.Overrides["users"]["city"].Pool)
	assert.Equal(t, []interface{}{"Lviv", "Kyiv"}, req.DataPools["cities"])

	opts, err := cfg.SeederOptions()
	require.NoError(t, err)
	assert.Equal(t, seeder.Skip, opts.OnTableError)
	assert.Equal(t, time.Second, opts.RetryBackoff)
	assert.Equal(t, 0.0, opts.NullRatio)
	assert.Equal(t, 2, opts.Concurrency)
	// A configured zero disables retries rather than falling back to the default.
	assert.Equal(t, -1, opts.MaxRetries)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GRAFTSEED_SEED_BATCH_SIZE", "42")

	v := viper.New()
	v.SetEnvPrefix("GRAFTSEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Seed.BatchSize)
}

func TestValidate(t *testing.T) {
	cfg := load(t, `{"database": {"provider": "oracle"}, "seed": {"null_ratio": 1.5, "on_table_error": "ignore"}, "tables": {"users": -1}}`)

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "Database.Provider")
	assert.Contains(t, msg, "Seed.NullRatio")
	assert.Contains(t, msg, "Seed.OnTableError")
	assert.Contains(t, msg, "Tables[users]")

	cfg = load(t, `{"notify": {"url": "not a url"}}`)
	assert.Error(t, cfg.Validate())

	cfg = load(t, `{"data_pools": {"cities": []}}`)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DataPools[cities]")
}

func TestGetDatabaseURL(t *testing.T) {
	cfg := load(t, `{"database": {"url_env": "GRAFTSEED_TEST_URL"}}`)

	t.Setenv("GRAFTSEED_TEST_URL", "")
	_, err := cfg.GetDatabaseURL()
	assert.Error(t, err)

	t.Setenv("GRAFTSEED_TEST_URL", "postgres://localhost/app")
	url, err := cfg.GetDatabaseURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/app", url)
}
