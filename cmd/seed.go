package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rana718/graftseed/internal/config"
	"github.com/Rana718/graftseed/internal/metrics"
	"github.com/Rana718/graftseed/internal/notify"
	"github.com/Rana718/graftseed/internal/seeder"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var seedFlags = map[string]string{
	"batch-size":         "seed.batch_size",
	"concurrency":        "seed.concurrency",
	"seed":               "seed.rng_seed",
	"max-retries":        "seed.max_retries",
	"retry-backoff":      "seed.retry_backoff",
	"uniqueness-retries": "seed.uniqueness_retries",
	"null-ratio":         "seed.null_ratio",
	"on-error":           "seed.on_table_error",
	"batches-per-second": "seed.batches_per_second",
	"dry-run":            "seed.dry_run",
	"report":             "report_path",
	"metrics-file":       "metrics_file",
}

var seedQuiet bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill every table with generated rows",
	Long: `Introspect the schema, plan the insertion order and insert generated rows
wave by wave. Foreign keys deferred to break cycles are backfilled at the end.

Interrupting the run lets in-flight batches finish; committed rows are kept.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, planFlags); err != nil {
			return err
		}
		return bindFlags(cmd, seedFlags)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		adapter, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer adapter.Close()

		p, err := buildPlan(ctx, cfg, adapter)
		if err != nil {
			return err
		}
		if !seedQuiet {
			color.Cyan("📋 %s", p.Summary())
		}

		opts, err := cfg.SeederOptions()
		if err != nil {
			return err
		}
		opts.Quiet = seedQuiet
		if !seedQuiet {
			opts.Progress = newProgressPrinter().update
		}
		if cfg.MetricsFile != "" {
			opts.Metrics = metrics.New()
		}

		report, runErr := seeder.New(adapter, opts).Execute(ctx, p)
		if !seedQuiet {
			printReport(report)
		}

		if cfg.ReportPath != "" {
			if err := report.WriteFile(cfg.ReportPath); err != nil {
				color.Yellow("⚠️  %v", err)
			} else if !seedQuiet {
				color.Green("📝 Report written to %s", cfg.ReportPath)
			}
		}
		if cfg.MetricsFile != "" {
			if err := opts.Metrics.WriteFile(cfg.MetricsFile); err != nil {
				color.Yellow("⚠️  %v", err)
			}
		}
		sendNotification(cfg, adapter.Provider(), report, runErr)

		return runErr
	},
}

// sendNotification never fails the command.
func sendNotification(cfg *config.Config, provider string, report *seeder.Report, runErr error) {
	hook := notify.NewWebhook(cfg.Notify.URL, cfg.Notify.Timeout, cfg.Notify.Headers)
	if hook == nil {
		return
	}
	ev := notify.Event{
		Status:   string(report.State.Phase),
		Report:   report,
		SentAt:   time.Now().UTC(),
		Provider: provider,
	}
	if wd, err := os.Getwd(); err == nil {
		ev.Project = wd
	}
	if runErr != nil {
		ev.Error = runErr.Error()
		var re *seeder.RunError
		if errors.As(runErr, &re) && re.Cancelled {
			ev.Status = "cancelled"
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Notify.Timeout+time.Second)
	defer cancel()
	if err := hook.Send(ctx, ev); err != nil {
		color.Yellow("⚠️  Notification failed: %v", err)
	}
}

func init() {
	addPlanFlags(seedCmd)
	seedCmd.Flags().Int("batch-size", 500, "Rows per INSERT batch")
	seedCmd.Flags().Int("concurrency", 4, "Tables seeded in parallel within a wave (alias --concurrency-limit)")
	seedCmd.Flags().Int64("seed", 0, "RNG seed for reproducible data, 0 picks one (alias --rng-seed)")
	seedCmd.Flags().Int("max-retries", 3, "Retries per failed batch")
	seedCmd.Flags().Duration("retry-backoff", 200*time.Millisecond, "Initial delay between batch retries")
	seedCmd.Flags().Int("uniqueness-retries", 50, "Attempts to draw a fresh value for a unique column")
	seedCmd.Flags().Float64("null-ratio", 0.2, "Share of NULLs in nullable columns")
	seedCmd.Flags().String("on-error", "abort", "What a failing table does to the run (abort|skip)")
	seedCmd.Flags().Float64("batches-per-second", 0, "Throttle batch submission (0 disables)")
	seedCmd.Flags().Bool("dry-run", false, "Generate and validate rows in memory without writing")
	seedCmd.Flags().String("report", "", "Write the JSON report to this path")
	seedCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this path")
	seedCmd.Flags().BoolVarP(&seedQuiet, "quiet", "q", false, "Only print errors")
}
