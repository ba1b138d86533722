package cmd

import (
	"context"
	"fmt"

	"github.com/Rana718/graftseed/internal/catalog"
	"github.com/Rana718/graftseed/internal/config"
	"github.com/Rana718/graftseed/internal/database"
	"github.com/Rana718/graftseed/internal/plan"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagAliases lets the long option names stand in for the short ones.
var flagAliases = map[string]string{
	"rows-per-table":    "rows",
	"concurrency-limit": "concurrency",
	"rng-seed":          "seed",
	"skip-tables":       "skip",
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

// planFlags maps flags shared by plan and seed onto config keys.
var planFlags = map[string]string{
	"rows":           "seed.rows_per_table",
	"defer-strategy": "seed.defer_strategy",
	"catalog":        "catalog_path",
}

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().Int("rows", 10, "Rows to generate per table (alias --rows-per-table)")
	cmd.Flags().StringToInt("table", nil, "Row count for a single table, as name=count (repeatable)")
	cmd.Flags().StringSlice("skip", nil, "Tables to leave untouched; their existing keys are reused (alias --skip-tables)")
	cmd.Flags().String("defer-strategy", "lexical", "Which nullable FK to defer when breaking a cycle (lexical|min-rows)")
	cmd.Flags().String("catalog", "", "Plan against a saved catalog snapshot instead of introspecting")
}

// bindFlags binds only the invoked command's flags so shared flag names
// on sibling commands do not shadow each other.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig reads and validates the config, merging the repeatable
// --table and --skip flags on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if f := cmd.Flags().Lookup("table"); f != nil && f.Changed {
		counts, _ := cmd.Flags().GetStringToInt("table")
		if cfg.Tables == nil {
			cfg.Tables = make(map[string]int, len(counts))
		}
		for name, n := range counts {
			cfg.Tables[name] = n
		}
	}
	if f := cmd.Flags().Lookup("skip"); f != nil && f.Changed {
		skip, _ := cmd.Flags().GetStringSlice("skip")
		cfg.SkipTables = append(cfg.SkipTables, skip...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func connect(ctx context.Context, cfg *config.Config) (database.DatabaseAdapter, error) {
	dbURL, err := cfg.GetDatabaseURL()
	if err != nil {
		return nil, err
	}

	adapter := database.NewAdapter(cfg.Database.Provider, cfg.Database.PoolSize)
	if err := adapter.Connect(ctx, dbURL); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := adapter.Ping(ctx); err != nil {
		adapter.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return adapter, nil
}

// loadCatalog reads the snapshot named in the config, or introspects the
// live database when none is set.
func loadCatalog(ctx context.Context, cfg *config.Config, adapter database.DatabaseAdapter) (*catalog.Catalog, error) {
	if cfg.CatalogPath != "" {
		return catalog.Load(cfg.CatalogPath)
	}
	schema, err := adapter.GetCurrentSchema(ctx)
	if err != nil {
		return nil, &catalog.SchemaError{Reason: "cannot read schema", Err: err}
	}
	return catalog.New(schema)
}

func buildPlan(ctx context.Context, cfg *config.Config, adapter database.DatabaseAdapter) (*plan.SeedPlan, error) {
	c, err := loadCatalog(ctx, cfg, adapter)
	if err != nil {
		return nil, err
	}
	req, err := cfg.Request()
	if err != nil {
		return nil, err
	}
	return plan.Build(c, req)
}
