package cmd

import (
	"context"
	"fmt"

	"github.com/Rana718/graftseed/internal/database"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var planDetails bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the insertion order without writing anything",
	Long: `Build the dependency graph and wave schedule for the current schema and
print it. Deferred foreign keys are listed with the edge they break.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, planFlags)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := context.Background()

		var adapter database.DatabaseAdapter
		if cfg.CatalogPath == "" {
			adapter, err = connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer adapter.Close()
		}

		p, err := buildPlan(ctx, cfg, adapter)
		if err != nil {
			return err
		}

		color.Cyan("📋 %s", p.Summary())
		if planDetails {
			fmt.Println()
			fmt.Print(p.Details())
		}
		return nil
	},
}

func init() {
	addPlanFlags(planCmd)
	planCmd.Flags().BoolVar(&planDetails, "details", false, "Also list the generator chosen for each column")
}
