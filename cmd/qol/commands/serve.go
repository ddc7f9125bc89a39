package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/qolindex/internal/api"
	"github.com/wonny/qolindex/internal/api/handlers"
	"github.com/wonny/qolindex/internal/dataset"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API",
	Long: `Loads the dataset once and serves it read-only over HTTP.

Endpoints:
  GET  /health          - Health check
  GET  /api/countries   - Countries and years in the dataset
  GET  /api/metrics     - Chartable metrics and the default selection
  GET  /api/chart       - Chart series (?country=..&metric=..&rank=recompute|stored)

Example:
  go run ./cmd/qol serve
  go run ./cmd/qol serve --port 9000 --input /tmp/qol.csv`,
	RunE: runServe,
}

var (
	servePort  string
	serveInput string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (default PORT)")
	serveCmd.Flags().StringVarP(&serveInput, "input", "i", "", "dataset path (default INGEST_OUTPUT_PATH)")
}

func runServe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// 1. Load config
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	path := cfg.Ingest.OutputPath
	if serveInput != "" {
		path = serveInput
	}

	// 2. Load the dataset once
	ds, err := dataset.Load(path)
	if err != nil {
		return fmt.Errorf("load dataset (run \"qol collect\" first?): %w", err)
	}

	log.WithFields(map[string]interface{}{
		"path":      path,
		"records":   ds.Len(),
		"countries": len(ds.Countries()),
	}).Info("Dataset loaded")

	// 3. Router and server
	router := api.NewRouter(handlers.NewDashboardHandler(ds, log), log)
	server := api.New(cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	PrintSuccess(out, fmt.Sprintf("Serving %d records on http://localhost:%s", ds.Len(), cfg.Port))
	fmt.Fprintln(out, "\nAvailable endpoints:")
	fmt.Fprintln(out, "  GET  /health")
	fmt.Fprintln(out, "  GET  /api/countries")
	fmt.Fprintln(out, "  GET  /api/metrics")
	fmt.Fprintln(out, "  GET  /api/chart")
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	// 4. Wait for interrupt or failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
