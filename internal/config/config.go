package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Rana718/graftseed/internal/generator"
	"github.com/Rana718/graftseed/internal/plan"
	"github.com/Rana718/graftseed/internal/scheduler"
	"github.com/Rana718/graftseed/internal/seeder"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the working directory.
const FileName = "seed.config"

type Config struct {
	Version  string   `json:"version" mapstructure:"version"`
	Database Database `json:"database" mapstructure:"database"`
	Seed     Seed     `json:"seed" mapstructure:"seed"`
	// Tables overrides the row count per table.
	Tables     map[string]int                          `json:"tables,omitempty" mapstructure:"tables" validate:"dive,gte=0"`
	Overrides  map[string]map[string]generator.Override `json:"overrides,omitempty" mapstructure:"overrides"`
	DataPools  map[string][]interface{}                `json:"data_pools,omitempty" mapstructure:"data_pools" validate:"dive,min=1"`
	SkipTables []string                                `json:"skip_tables,omitempty" mapstructure:"skip_tables"`
	// CatalogPath points at a YAML schema snapshot used instead of introspection.
	CatalogPath string `json:"catalog_path,omitempty" mapstructure:"catalog_path"`
	ReportPath  string `json:"report_path,omitempty" mapstructure:"report_path"`
	MetricsFile string `json:"metrics_file,omitempty" mapstructure:"metrics_file"`
	Notify      Notify `json:"notify,omitempty" mapstructure:"notify"`
}

type Database struct {
	Provider string `json:"provider" mapstructure:"provider" validate:"required,oneof=postgresql postgres mysql sqlite sqlite3 memory"`
	URLEnv   string `json:"url_env" mapstructure:"url_env" validate:"required"`
	PoolSize int    `json:"pool_size" mapstructure:"pool_size" validate:"gte=1,lte=256"`
}

type Seed struct {
	RowsPerTable      int           `json:"rows_per_table" mapstructure:"rows_per_table" validate:"gte=0"`
	BatchSize         int           `json:"batch_size" mapstructure:"batch_size" validate:"gte=1,lte=100000"`
	Concurrency       int           `json:"concurrency" mapstructure:"concurrency" validate:"gte=1"`
	RngSeed           int64         `json:"rng_seed" mapstructure:"rng_seed"`
	MaxRetries        int           `json:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	RetryBackoff      time.Duration `json:"retry_backoff" mapstructure:"retry_backoff" validate:"gt=0"`
	UniquenessRetries int           `json:"uniqueness_retries" mapstructure:"uniqueness_retries" validate:"gte=1"`
	NullRatio         float64       `json:"null_ratio" mapstructure:"null_ratio" validate:"gte=0,lte=1"`
	DeferStrategy     string        `json:"defer_strategy" mapstructure:"defer_strategy" validate:"oneof=lexical min-rows"`
	OnTableError      string        `json:"on_table_error" mapstructure:"on_table_error" validate:"oneof=abort skip"`
	BatchesPerSecond  float64       `json:"batches_per_second" mapstructure:"batches_per_second" validate:"gte=0"`
	DryRun            bool          `json:"dry_run" mapstructure:"dry_run"`
}

type Notify struct {
	URL     string            `json:"url,omitempty" mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration     `json:"timeout,omitempty" mapstructure:"timeout"`
	Headers map[string]string `json:"headers,omitempty" mapstructure:"headers"`
}

// SetDefaults registers every default on v. Keys with a default are also
// the ones AutomaticEnv can override.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("version", "1")
	v.SetDefault("database.provider", "postgresql")
	v.SetDefault("database.url_env", "DATABASE_URL")
	v.SetDefault("database.pool_size", 4)
	v.SetDefault("seed.rows_per_table", 10)
	v.SetDefault("seed.batch_size", 500)
	v.SetDefault("seed.concurrency", 4)
	v.SetDefault("seed.rng_seed", 0)
	v.SetDefault("seed.max_retries", 3)
	v.SetDefault("seed.retry_backoff", "200ms")
	v.SetDefault("seed.uniqueness_retries", 50)
	v.SetDefault("seed.null_ratio", 0.2)
	v.SetDefault("seed.defer_strategy", string(scheduler.DeferLexical))
	v.SetDefault("seed.on_table_error", string(seeder.Abort))
	v.SetDefault("seed.batches_per_second", 0)
	v.SetDefault("seed.dry_run", false)
	v.SetDefault("report_path", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("catalog_path", "")
	v.SetDefault("notify.url", "")
	v.SetDefault("notify.timeout", "10s")
}

// Load reads the global viper instance the CLI configured.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if v.IsSet("seed.concurrency_limit") {
		cfg.Seed.Concurrency = v.GetInt("seed.concurrency_limit")
	}
	if cfg.Database.Provider == "postgres" {
		cfg.Database.Provider = "postgresql"
	}
	if cfg.Database.Provider == "sqlite3" {
		cfg.Database.Provider = "sqlite"
	}
	return &cfg, nil
}

func (c *Config) GetDatabaseURL() (string, error) {
	dbURL := os.Getenv(c.Database.URLEnv)
	if dbURL == "" {
		return "", fmt.Errorf("database URL not found in environment variable %s", c.Database.URLEnv)
	}
	return dbURL, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Request builds the plan request from the config.
func (c *Config) Request() (plan.Request, error) {
	strategy, err := scheduler.ParseDeferStrategy(c.Seed.DeferStrategy)
	if err != nil {
		return plan.Request{}, err
	}
	return plan.Request{
		RowsPerTable:  c.Seed.RowsPerTable,
		Tables:        c.Tables,
		Overrides:     c.Overrides,
		DataPools:     generator.DataPools(c.DataPools),
		SkipTables:    c.SkipTables,
		DeferStrategy: strategy,
	}, nil
}

// SeederOptions maps the seed section onto executor options.
func (c *Config) SeederOptions() (seeder.Options, error) {
	policy, err := seeder.ParseErrorPolicy(c.Seed.OnTableError)
	if err != nil {
		return seeder.Options{}, err
	}
	opts := seeder.DefaultOptions()
	opts.BatchSize = c.Seed.BatchSize
	opts.Concurrency = c.Seed.Concurrency
	opts.RngSeed = c.Seed.RngSeed
	opts.MaxRetries = c.Seed.MaxRetries
	if opts.MaxRetries == 0 {
		opts.MaxRetries = -1
	}
	opts.RetryBackoff = c.Seed.RetryBackoff
	opts.UniquenessRetries = c.Seed.UniquenessRetries
	opts.NullRatio = c.Seed.NullRatio
	opts.OnTableError = policy
	opts.BatchesPerSecond = c.Seed.BatchesPerSecond
	opts.DryRun = c.Seed.DryRun
	return opts, nil
}
