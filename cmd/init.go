package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Rana718/graftseed/internal/config"
	"github.com/Rana718/graftseed/template"
	"github.com/spf13/cobra"
)

var (
	sqliteFlag     bool
	postgresqlFlag bool
	mysqlFlag      bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a seed config for this project",
	Long:  `Write ` + config.FileName + `.json with default seeding settings and add DATABASE_URL to .env.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbType := template.PostgreSQL
		flagCount := 0

		if sqliteFlag {
			dbType = template.SQLite
			flagCount++
		}
		if postgresqlFlag {
			dbType = template.PostgreSQL
			flagCount++
		}
		if mysqlFlag {
			dbType = template.MySQL
			flagCount++
		}

		if flagCount > 1 {
			return fmt.Errorf("please specify only one database type (--sqlite, --postgresql, or --mysql)")
		}

		force, _ := cmd.Flags().GetBool("force")
		return initializeProject(".", dbType, force)
	},
}

func init() {
	initCmd.Flags().BoolVar(&sqliteFlag, "sqlite", false, "Initialize for SQLite")
	initCmd.Flags().BoolVar(&postgresqlFlag, "postgresql", false, "Initialize for PostgreSQL")
	initCmd.Flags().BoolVar(&mysqlFlag, "mysql", false, "Initialize for MySQL")
}

func initializeProject(dir string, dbType template.DatabaseType, force bool) error {
	tmpl := template.NewProjectTemplate(dbType)

	configPath := dir + "/" + config.FileName + ".json"
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(tmpl.GetSeedConfig()), 0644); err != nil {
		return fmt.Errorf("failed to create file %s: %w", configPath, err)
	}

	if err := handleEnvFile(dir+"/.env", tmpl.GetEnvTemplate()); err != nil {
		return fmt.Errorf("failed to handle .env file: %w", err)
	}

	fmt.Printf("✅ Initialized graftseed with %s database support\n", dbType)
	fmt.Println()
	fmt.Println("📝 Configuration file created:")
	fmt.Printf("   %s.json\n", config.FileName)

	if os.Getenv("DATABASE_URL") != "" {
		fmt.Println()
		fmt.Println("ℹ️  Using existing DATABASE_URL from environment")
	}

	fmt.Println()
	fmt.Printf("🚀 Next steps:\n")
	fmt.Printf("   graftseed plan                 # Preview the insertion order\n")
	fmt.Printf("   graftseed seed --dry-run       # Validate generated rows in memory\n")
	fmt.Printf("   graftseed seed                 # Seed the database\n")

	return nil
}

func handleEnvFile(envPath, defaultEnvContent string) error {
	existingContent, err := os.ReadFile(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.WriteFile(envPath, []byte(defaultEnvContent), 0644)
		}
		return err
	}

	existingStr := string(existingContent)
	if strings.Contains(existingStr, "DATABASE_URL") {
		return nil
	}

	// Append DATABASE_URL to existing .env
	if len(existingStr) > 0 && !strings.HasSuffix(existingStr, "\n") {
		existingStr += "\n"
	}

	existingStr += "\n# Added by graftseed\n" + defaultEnvContent

	return os.WriteFile(envPath, []byte(existingStr), 0644)
}
