// Package cmd provides the CLI commands for plantsearch.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/plantsearch/internal/config"
	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
	"github.com/Aman-CERP/plantsearch/internal/locale"
	"github.com/Aman-CERP/plantsearch/internal/logging"
	"github.com/Aman-CERP/plantsearch/pkg/version"
)

// Global flags
var (
	debugMode      bool
	projectDir     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the plantsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plantsearch",
		Short: "Build and query the multilingual plant search index",
		Long: `plantsearch rebuilds a full-text index of a botanical database and
searches it.

Each plant is indexed once per configured locale with its properties,
its names and the derived edible and sustainable flags, using the field
names of that locale.

Run 'plantsearch refresh' to (re)build the index.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("plantsearch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.plantsearch/logs/")
	cmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project directory holding .plantsearch.yaml")

	cmd.PersistentPreRunE = startDebugLogging
	cmd.PersistentPostRunE = stopDebugLogging

	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newValuesCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command. Errors are printed to stderr with their
// code and hint; the caller only sets the exit status.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		printError(os.Stderr, err)
	}
	return err
}

func printError(w io.Writer, err error) {
	_, _ = fmt.Fprint(w, amerrors.FormatForCLI(err))
}

func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug_logging_enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// startLogging sends the default logger to the log file at the configured
// level. Debug mode already did this at debug level.
func startLogging(cfg *config.Config) func() {
	if debugMode {
		return func() {}
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		// The command still works without a log file.
		return func() {}
	}
	return cleanup
}

func loadConfig() (*config.Config, error) {
	return config.Load(projectDir)
}

func loadVocabulary(cfg *config.Config) (*locale.Vocabulary, error) {
	if cfg.Vocabulary != "" {
		return locale.LoadVocabulary(cfg.Vocabulary)
	}
	return locale.DefaultVocabulary()
}
