package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"vehicle-etl/config"
	"vehicle-etl/models"
	"vehicle-etl/pipeline"
	"vehicle-etl/rules"
	"vehicle-etl/services"
	"vehicle-etl/storage"
	"vehicle-etl/utils"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	catalog *rules.Catalog
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "vehicle-etl",
		Short:         "Clean scraped vehicle listings and load them into the analytics store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(jsonOutput)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON on stdout")

	rootCmd.AddCommand(newRunCommand(a, &jsonOutput))
	rootCmd.AddCommand(newVerifyCommand(a))
	rootCmd.AddCommand(newRulesCommand(a))
	return rootCmd
}

func (a *app) init(jsonOutput bool) error {
	cfg, err := config.Load()
	if err != nil {
		return models.ErrConfiguration{Err: err}
	}
	a.cfg = cfg

	// JSON mode keeps stdout for the report.
	if jsonOutput {
		a.logger = utils.NewLoggerTo(os.Stderr)
	} else {
		a.logger = utils.NewLogger()
	}
	a.logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	catalog, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return models.ErrConfiguration{Err: err}
	}
	a.catalog = catalog
	if cfg.RulesFile != "" {
		a.logger.Info("Rule overrides loaded from %s", cfg.RulesFile)
	}
	return nil
}

func (a *app) openTarget(ctx context.Context) (storage.Target, error) {
	switch a.cfg.TargetDriver {
	case "sqlite":
		a.logger.Info("Target: SQLite %s", a.cfg.TargetSQLitePath)
		return storage.NewSQLiteLoader(ctx, a.cfg.TargetSQLitePath)
	default:
		a.logger.Info("Target: PostgreSQL %s:%s/%s", a.cfg.PostgresHost, a.cfg.PostgresPort, a.cfg.PostgresDB)
		return storage.NewPostgresLoader(ctx, a.cfg.DSN(), &utils.RetryConfig{
			MaxAttempts: a.cfg.MaxRetries,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
			Logger:      a.logger,
		})
	}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newRunCommand(a *app, jsonOutput *bool) *cobra.Command {
	var (
		mode          string
		lookbackHours int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, clean, validate and load one batch",
		Example: `  vehicle-etl run --mode full
  vehicle-etl run --mode incremental --lookback-hours 24 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			a.logger.Info("=== Vehicle ETL starting (%s) ===", mode)

			source := storage.NewSQLiteSource(a.cfg.SourceDBPath)
			defer source.Close()

			target, err := a.openTarget(ctx)
			if err != nil {
				loadErr := models.ErrLoadFailure{Err: err}
				return reportFailure(a.logger, &pipeline.RunError{
					Stage: pipeline.Loading, Kind: models.ErrorKind(loadErr), Err: loadErr,
				})
			}
			defer target.Close()

			deps := pipeline.Deps{
				Extractor: storage.NewExtractor(source, a.logger, a.cfg.SourceTimeout),
				Cleaner:   services.NewCleaner(a.logger, a.catalog),
				Validator: services.NewValidator(a.logger, a.catalog, services.ValidatorOptions{
					RejectionThreshold: a.cfg.RejectionThreshold,
					MaxMissingPercent:  a.cfg.MaxMissingPercent,
				}),
				Target:          target,
				Lock:            utils.NewWriteLock(a.cfg.LockPath),
				Metrics:         pipeline.NewMetrics(),
				Logger:          a.logger,
				LoadTimeout:     a.cfg.LoadTimeout,
				MetricsTextfile: a.cfg.MetricsTextfile,
			}
			if path := a.cfg.CSVOutputPath; path != "" {
				deps.OpenExporter = func() (storage.ListingExporter, error) {
					return storage.NewCSVWriter(path)
				}
			}

			report, err := pipeline.New(deps).Run(ctx, pipeline.RunOptions{
				Mode:          models.RunMode(mode),
				LookbackHours: lookbackHours,
			})
			if err != nil {
				return reportFailure(a.logger, err)
			}

			out := cmd.OutOrStdout()
			if *jsonOutput {
				return services.NewReportPrinter(out, false).PrintJSON(report)
			}
			services.NewReportPrinter(out, isatty.IsTerminal(os.Stdout.Fd())).Print(report)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(models.ModeFull), "Run mode: full or incremental")
	cmd.Flags().IntVar(&lookbackHours, "lookback-hours", 0, "Hours of scraped data to process in incremental mode")
	return cmd
}

// reportFailure logs the failing stage and returns an error carrying the
// stage, error kind and processed count for the exit message.
func reportFailure(logger *utils.Logger, err error) error {
	var runErr *pipeline.RunError
	if !errors.As(err, &runErr) {
		return err
	}
	logger.Error("Run failed at %s: %v", runErr.Stage, runErr.Err)
	return fmt.Errorf("run failed: stage=%s kind=%s processed=%d: %w",
		runErr.Stage, runErr.Kind, runErr.Processed, runErr.Err)
}

func newVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Compare the raw store with the cleaned target",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			source := storage.NewSQLiteSource(a.cfg.SourceDBPath)
			defer source.Close()
			raw, err := source.ReadAll(ctx)
			if err != nil {
				return err
			}

			target, err := a.openTarget(ctx)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			defer target.Close()
			clean, err := target.FetchAll(ctx)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			services.PrintComparison(cmd.OutOrStdout(), services.Compare(raw, clean))
			return nil
		},
	}
}

func newRulesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective cleaning rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			services.PrintCatalog(cmd.OutOrStdout(), a.catalog)
			return nil
		},
	}
}
