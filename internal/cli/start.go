package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/asad/bluectl/internal/config"
	"github.com/asad/bluectl/internal/core"
	"github.com/asad/bluectl/internal/httpx"
	"github.com/asad/bluectl/internal/logging"
	"github.com/asad/bluectl/internal/services/blob"
	"github.com/asad/bluectl/internal/services/queue"
	"github.com/asad/bluectl/internal/services/table"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the local storage emulator",
		Long: `Start the emulator edge server on the configured port.
Blob, queue and table requests are routed to the enabled services. The
development connection settings point at this server.`,
		RunE: runStart,
	}
}

// buildRegistry creates the emulator services backed by cfg.DataDir.
func buildRegistry(cfg *config.Config, logger logging.Logger) (*core.Registry, error) {
	blobStore, err := blob.NewFileBlobStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	return core.NewRegistry(
		blob.NewBlobService(blobStore, logger),
		queue.NewQueueService(queue.NewMemoryQueueStore(nil), logger),
		table.NewTableService(table.NewMemoryTableStore(nil), logger),
	), nil
}

// runStart initializes and starts the HTTP server.
func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting bluectl emulator",
		logging.String("version", Version),
		logging.Int("edge_port", cfg.EdgePort),
		logging.String("data_dir", cfg.DataDir),
		logging.String("log_level", cfg.LogLevel),
		logging.Strings("enabled_services", cfg.EnabledServices),
	)

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("registered services",
		logging.Int("count", len(registry.Services())),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.EdgePort),
		Handler:           httpx.NewEdgeRouter(cfg, logger, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on edge port", logging.String("address", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
