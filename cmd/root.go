package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Rana718/graftseed/internal/config"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	Version = "0.4.0"
)

func showBanner() {
	greenColor := color.New(color.FgGreen, color.Bold)

	banner := []string{
		"╔══════════════════════════════════════════════════════════════╗",
		"║     ██████╗ ██████╗  █████╗ ███████╗████████╗               ║",
		"║    ██╔════╝ ██╔══██╗██╔══██╗██╔════╝╚══██╔══╝               ║",
		"║    ██║  ███╗██████╔╝███████║█████╗     ██║                  ║",
		"║    ██║   ██║██╔══██╗██╔══██║██╔══╝     ██║                  ║",
		"║    ╚██████╔╝██║  ██║██║  ██║██║        ██║                  ║",
		"║     ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═╝        ╚═╝    seed          ║",
		"║                                                              ║",
		"║       🌱 Dependency-aware database seeding 🌱                ║",
		"╚══════════════════════════════════════════════════════════════╝",
	}

	for _, line := range banner {
		greenColor.Println(line)
	}

	fmt.Print("                        ")
	color.New(color.FgCyan, color.Bold).Print("Version: ")
	color.New(color.FgYellow, color.Bold).Printf("%s\n", Version)
}

var rootCmd = &cobra.Command{
	Use:   "graftseed",
	Short: "Populate a relational schema with realistic, constraint-valid rows",
	Long: `
graftseed reads your database schema, orders tables by their foreign keys
and fills them with generated rows that satisfy every NOT NULL, UNIQUE and
FOREIGN KEY constraint. Cycles through nullable foreign keys are broken and
backfilled after the main pass.

Database Support:
- PostgreSQL
- MySQL
- SQLite`,
	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Printf("graftseed version %s\n", Version)
			os.Exit(0)
		}

		if len(args) == 0 {
			showBanner()
			fmt.Println()
			cmd.Help()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.FileName+".json)")
	rootCmd.PersistentFlags().BoolP("force", "f", false, "Skip confirmations")
	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env")
		godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName(config.FileName)
	}

	viper.SetEnvPrefix("GRAFTSEED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; defaults apply.
	_ = viper.ReadInConfig()
}
