package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"audiostream/core"
	"audiostream/core/validation"
	"audiostream/db"
	"audiostream/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "audiostream",
		Short:         "Byte-range audio streaming server",
		Long:          "Serves audio files with HTTP Range support, a fixed-size chunk endpoint and a persisted stream log.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newMigrateCmd(),
		newValidateCmd(),
		newVersionCmd(),
		newServiceCmd(),
	)
	return root
}

// loadConfigAndLogger is the shared prologue of commands that need both.
func loadConfigAndLogger() (*core.Config, *logging.Logger, error) {
	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(logging.Options{
		Development: cfg.DevMode,
		FilePath:    cfg.LogFile,
		Level:       cfg.LogLevel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func newServeCmd() *cobra.Command {
	var reindex, skipValidation bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			logger.Info("starting",
				zap.String("version", core.VersionString()),
				zap.String("addr", cfg.Addr()),
				zap.String("media_root", cfg.MediaRoot),
				zap.String("database", cfg.DatabasePath),
				zap.Strings("allowed_extensions", cfg.AllowedExtensions),
				zap.Bool("streaming_enabled", cfg.EnableStreaming),
				zap.Bool("redirect_enabled", cfg.RedirectEnabled),
				zap.Int64("redirect_threshold_mb", cfg.RedirectThresholdMB),
				zap.Int("buffer_size_kb", cfg.BufferSizeKB),
				zap.Int64("throttle_bytes_per_sec", cfg.ThrottleBytesPerSec),
				zap.Bool("admin_enabled", cfg.AdminPasswordHash != ""),
				zap.Bool("dev_mode", cfg.DevMode),
			)

			if !skipValidation {
				if err := runStartupValidation(cmd, cfg, logger); err != nil {
					_ = logger.Sync()
					return err
				}
			}

			app, err := newApp(cfg, logger)
			if err != nil {
				logger.Error("startup failed", zap.Error(err))
				_ = logger.Sync()
				return err
			}
			app.reindex = reindex
			return app.Run()
		},
	}
	cmd.Flags().BoolVar(&reindex, "reindex", false, "scan the media root into the catalog in the background at startup")
	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "start without running the startup checks")
	return cmd
}

// runStartupValidation prints the check list and logs every failed step.
func runStartupValidation(cmd *cobra.Command, cfg *core.Config, logger *logging.Logger) error {
	result := validation.NewValidationSuite().WithOutput(cmd.OutOrStdout()).Validate(cfg)
	if result.Success {
		logger.Info("startup validation passed",
			zap.Int("checks_passed", result.PassedSteps),
			zap.Int("warnings", result.Warnings),
			zap.Duration("duration", result.Duration))
		return nil
	}

	for _, step := range result.Steps {
		if step.Status == validation.StepFailed {
			logger.Error("validation step failed",
				zap.String("step", step.Name),
				zap.String("message", step.Message),
				zap.Error(step.Error))
		}
	}
	return &exitError{code: core.ExitCodeValidation, err: fmt.Errorf("%s", result.Summary())}
}

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Scan the media root and update the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			database, err := db.NewDatabase(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer database.Close()
			if err := database.Migrate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := runIndex(ctx, cfg, db.NewRepository(database, nil), logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, upserted %d, removed %d, skipped %d, failed %d in %v\n",
				result.Scanned, result.Upserted, result.Removed, result.Skipped, result.Failed, result.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db",
		core.GetEnvOrDefault("DATABASE_PATH", "data/audiostream.db"), "path to the SQLite database")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.MigrateUpFromPath(dbPath); err != nil {
				return err
			}
			return printVersion(cmd, dbPath)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := steps
			if n <= 0 {
				n = -1
			}
			if err := db.MigrateDownFromPath(dbPath, n); err != nil {
				return err
			}
			return printVersion(cmd, dbPath)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back; 0 rolls back all")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd, dbPath)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	version, dirty, err := db.MigrationVersionFromPath(dbPath)
	if err != nil {
		return err
	}
	latest, err := db.LatestMigrationVersion()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d (%s)\n", version, latest, state)
	return nil
}

func newValidateCmd() *cobra.Command {
	var envPath string
	var failFast bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check configuration, media root and database before serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := validation.NewValidationSuite().
				WithOutput(cmd.OutOrStdout()).
				WithEnvPath(envPath).
				WithFailFast(failFast).
				Validate(core.ReadConfig())
			if !result.Success {
				return &exitError{code: core.ExitCodeValidation, err: fmt.Errorf("%s", result.Summary())}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envPath, "env", ".env", "path of the .env file to check")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed check")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), core.VersionString())
		},
	}
}
