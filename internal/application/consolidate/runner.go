// Package consolidate wires the consolidation planner to storage and run
// bookkeeping.
package consolidate

import (
	"context"
	"log/slog"

	"github.com/torxlabs/treasury-engine/internal/domain/planner"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/storage"
)

// Options control a consolidation run
type Options struct {
	DryRun bool
	Force  bool
}

// Runner executes consolidation runs and records them
type Runner struct {
	planner *planner.Planner
	repo    storage.RunRepository
	logger  *slog.Logger
}

// New creates a consolidation runner
func New(p *planner.Planner, repo storage.RunRepository, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		planner: p,
		repo:    repo,
		logger:  logger.With(slog.String("system", "consolidate")),
	}
}

// Run executes one consolidation cycle and persists an engine run row
func (r *Runner) Run(ctx context.Context, opts Options) (*planner.Plan, error) {
	runID, err := r.repo.StartRun("consolidate", opts.DryRun)
	if err != nil {
		r.logger.Error("failed to record run start", slog.String("error", err.Error()))
	}

	plan, err := r.planner.Run(ctx, planner.Options{DryRun: opts.DryRun, Force: opts.Force})
	if err != nil {
		r.completeRun(runID, 0, 0, 1, 0, "failed")
		return nil, err
	}

	moved := len(plan.Sweeps) + len(plan.Topups)
	r.completeRun(runID, moved, moved, len(plan.Errors), plan.TotalMoved, plan.Status)

	return plan, nil
}

func (r *Runner) completeRun(runID int64, detected, reconciled, errs int, totalMoved float64, status string) {
	if runID == 0 {
		return
	}
	if err := r.repo.CompleteRun(runID, detected, reconciled, errs, totalMoved, status); err != nil {
		r.logger.Error("failed to record run completion", slog.String("error", err.Error()))
	}
}
