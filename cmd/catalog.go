package cmd

import (
	"context"
	"fmt"

	"github.com/Rana718/graftseed/internal/catalog"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var catalogOut string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or save the introspected schema",
}

var catalogDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Save the live schema as a YAML snapshot",
	Long: `Introspect the database and write the catalog to a YAML file. Pass the file
to 'plan' or 'seed' with --catalog to skip introspection on later runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := context.Background()

		adapter, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer adapter.Close()

		schema, err := adapter.GetCurrentSchema(ctx)
		if err != nil {
			return &catalog.SchemaError{Reason: "cannot read schema", Err: err}
		}
		c, err := catalog.New(schema)
		if err != nil {
			return err
		}
		if err := c.Save(catalogOut, adapter.Provider()); err != nil {
			return err
		}

		color.Green("✅ Saved %d tables to %s", c.Len(), catalogOut)
		for _, t := range c.Tables() {
			fmt.Printf("   %-28s %2d columns  %d foreign keys\n", t.Name, len(t.Columns), len(t.ForeignKeys))
		}
		return nil
	},
}

func init() {
	catalogDumpCmd.Flags().StringVarP(&catalogOut, "output", "o", "catalog.yaml", "Snapshot file to write")
	catalogCmd.AddCommand(catalogDumpCmd)
}
