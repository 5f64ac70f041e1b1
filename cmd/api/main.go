package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/torxlabs/treasury-engine/internal/api"
	"github.com/torxlabs/treasury-engine/internal/application/engine"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/logging"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
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

	server := api.NewServer(cfg, eng.Storage, eng.Registry, eng.Orchestrator, eng.Consolidator, logger)
	if err := server.Run(); err != nil {
		logger.Error("api server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
