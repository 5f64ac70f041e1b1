// Package engine assembles the full treasury engine from configuration:
// storage, bank connectors, the payout record store, the notification sink,
// and the reconciliation and consolidation entry points.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/torxlabs/treasury-engine/internal/adapters/banks"
	"github.com/torxlabs/treasury-engine/internal/adapters/banks/mercury"
	"github.com/torxlabs/treasury-engine/internal/adapters/banks/revolut"
	"github.com/torxlabs/treasury-engine/internal/adapters/banks/wise"
	"github.com/torxlabs/treasury-engine/internal/adapters/notify"
	"github.com/torxlabs/treasury-engine/internal/adapters/records/sheetproxy"
	"github.com/torxlabs/treasury-engine/internal/application/consolidate"
	"github.com/torxlabs/treasury-engine/internal/application/reconcile"
	"github.com/torxlabs/treasury-engine/internal/domain/delta"
	"github.com/torxlabs/treasury-engine/internal/domain/matcher"
	"github.com/torxlabs/treasury-engine/internal/domain/planner"
	"github.com/torxlabs/treasury-engine/internal/domain/policy"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/storage"
)

// Engine bundles the assembled components
type Engine struct {
	Cfg          *config.Config
	Storage      *storage.Storage
	Registry     *banks.Registry
	Sink         notify.Sink
	Orchestrator *reconcile.Orchestrator
	Consolidator *consolidate.Runner
}

// Build assembles the engine from configuration
func Build(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	registry := banks.NewRegistry(logger)
	if cfg.Banks.Revolut.Enabled {
		if err := registry.Register(revolut.NewConnector(cfg.Banks.Revolut, logger)); err != nil {
			store.Close()
			return nil, err
		}
	}
	if cfg.Banks.Mercury.Enabled {
		if err := registry.Register(mercury.NewConnector(cfg.Banks.Mercury, logger)); err != nil {
			store.Close()
			return nil, err
		}
	}
	if cfg.Banks.Wise.Enabled {
		if err := registry.Register(wise.NewConnector(cfg.Banks.Wise, logger)); err != nil {
			store.Close()
			return nil, err
		}
	}

	ledger := sheetproxy.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.APIToken, logger)

	var sink notify.Sink
	if cfg.Notifications.Enabled {
		sink, err = notify.NewAMQPSink(cfg.Notifications.AMQPURL, cfg.Notifications.Queue, logger)
		if err != nil {
			// The broker being down must not stop reconciliation
			logger.Error("failed to connect notification sink, falling back to log",
				slog.String("error", err.Error()))
			sink = notify.NewLogSink(logger)
		}
	} else {
		sink = notify.NewLogSink(logger)
	}

	pol := policy.FromConfig(cfg.Policy)
	tracker := delta.NewTracker(store, logger)
	m := matcher.New(pol, logger)

	orchestrator := reconcile.New(registry, ledger, store, tracker, m, sink,
		pol.TransactionFeedLimit, logger)

	counterparties := map[string]map[string]string{
		"revolut": cfg.Banks.Revolut.Counterparties,
		"mercury": cfg.Banks.Mercury.Counterparties,
	}
	pl := planner.New(registry, store, pol, counterparties,
		orchestrator.ReconcileAccount, logger)
	consolidator := consolidate.New(pl, store, logger)

	return &Engine{
		Cfg:          cfg,
		Storage:      store,
		Registry:     registry,
		Sink:         sink,
		Orchestrator: orchestrator,
		Consolidator: consolidator,
	}, nil
}

// Close releases the engine's resources
func (e *Engine) Close() {
	if e.Sink != nil {
		_ = e.Sink.Close()
	}
	if e.Storage != nil {
		_ = e.Storage.Close()
	}
}
