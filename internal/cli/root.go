package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/asad/bluectl/internal/config"
	"github.com/asad/bluectl/internal/dispatch"
	"github.com/asad/bluectl/internal/logging"
	"github.com/asad/bluectl/internal/storage"
	"github.com/asad/bluectl/internal/telemetry"
)

var (
	// Version is set at build time via ldflags.
	// Example: go build -ldflags "-X github.com/asad/bluectl/internal/cli.Version=1.0.0"
	Version = "dev"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	connectionString string
}

// NewRootCommand builds the bluectl command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "bluectl",
		Short: "Concurrency-bounded storage operation runner",
		Long: `Bluectl runs blob, queue and table storage operations through a
process-wide dispatcher that caps how many calls are in flight at once.

Without a connection string it talks to the local emulator started with
"bluectl start", using the development storage account.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.connectionString, "connection-string", "",
		"storage connection string (defaults to $"+storage.ConnectionStringEnv+", then development storage)")

	rootCmd.AddCommand(
		newStartCmd(),
		newVersionCmd(),
		newExecCmd(opts),
		newMethodsCmd(opts),
		newBlobCmd(opts),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  `Print the version number of bluectl.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bluectl version %s\n", Version)
		},
	}
}

// Execute is the entry point for the CLI. It should be called from main.go.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session is the process context of a command that dispatches operations.
type session struct {
	cfg        *config.Config
	logger     logging.Logger
	dispatcher *dispatch.Dispatcher
	shutdown   telemetry.ShutdownFunc
}

// openSession loads configuration, starts telemetry and builds the dispatcher.
// Concurrency and timeout settings come from BLUECTL_* variables first, then
// the key/value store.
func openSession(ctx context.Context, opts *globalOptions) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	store, err := config.OpenFileStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "bluectl", Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	factory := storage.NewFactory(storage.WithLocalEndpoint(cfg.LocalEndpoint()))
	d := dispatch.Init(config.Chain{config.NewEnvSource(), store},
		dispatch.WithResolver(factory),
		dispatch.WithConnectionString(opts.connectionString),
		dispatch.WithLogger(logger),
	)
	return &session{cfg: cfg, logger: logger, dispatcher: d, shutdown: shutdown}, nil
}

func (s *session) Close(ctx context.Context) {
	if err := s.shutdown(ctx); err != nil {
		s.logger.Warn("failed to flush traces", logging.ErrorField(err))
	}
	_ = s.logger.Sync()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
