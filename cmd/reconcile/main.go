package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/torxlabs/treasury-engine/internal/application/engine"
	"github.com/torxlabs/treasury-engine/internal/application/reconcile"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/logging"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		dryRun     = flag.Bool("dry-run", false, "Detect and match without writing anything")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)

	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	logger := logging.NewLogger(cfg.Observability.Logging)

	eng, err := engine.Build(cfg, logger)
	if err != nil {
		logger.Error("failed to build engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer eng.Close()

	result, err := eng.Orchestrator.Run(context.Background(), reconcile.Options{DryRun: *dryRun})
	if err != nil {
		logger.Error("reconciliation run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Per-bank errors are part of a normal run; they were already logged
	// with context and do not affect the exit code.
	logger.Info("reconciliation complete",
		slog.Int("detected", result.Detected),
		slog.Int("reconciled", result.Reconciled),
		slog.Int("errors", len(result.Errors)),
		slog.Bool("dry_run", result.DryRun),
	)
}
