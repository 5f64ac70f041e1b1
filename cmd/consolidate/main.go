package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/torxlabs/treasury-engine/internal/application/consolidate"
	"github.com/torxlabs/treasury-engine/internal/application/engine"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/logging"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		dryRun     = flag.Bool("dry-run", false, "Compute the plan without moving money")
		force      = flag.Bool("force", false, "Run even with pending transfers outstanding")
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

	plan, err := eng.Consolidator.Run(context.Background(), consolidate.Options{
		DryRun: *dryRun,
		Force:  *force,
	})
	if err != nil {
		logger.Error("consolidation run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("consolidation complete",
		slog.String("status", plan.Status),
		slog.Int("sweeps", len(plan.Sweeps)),
		slog.Int("topups", len(plan.Topups)),
		slog.Float64("total_moved", plan.TotalMoved),
		slog.Int("errors", len(plan.Errors)),
	)
}
