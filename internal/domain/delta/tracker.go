// Package delta isolates new deposits from balances already seen.
//
// The tracker persists the last-known balance per sub-account and reports
// only the positive increase since the previous observation. Committing the
// observed balance after every reconciliation attempt, matched or not, is
// the sole defense against double-reconciling the same money on the next
// run.
package delta

import (
	"log/slog"

	"github.com/torxlabs/treasury-engine/internal/infrastructure/storage"
)

// Tracker computes new-deposit deltas against persisted balances
type Tracker struct {
	repo   storage.DeltaRepository
	logger *slog.Logger
}

// NewTracker creates a new delta tracker
func NewTracker(repo storage.DeltaRepository, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		repo:   repo,
		logger: logger.With(slog.String("system", "delta")),
	}
}

// Observe returns the new-deposit amount for an account: the current balance
// minus the last-known one, clamped to zero. An untracked account is treated
// as last-known zero, so its first positive balance is fully new.
func (t *Tracker) Observe(bank, accountID string, currentBalance float64) float64 {
	record, err := t.repo.GetDelta(bank, accountID)
	if err != nil {
		// Treat a read failure as "no new deposit" rather than risking a
		// double reconciliation against an unknown baseline.
		t.logger.Error("failed to read tracked balance",
			slog.String("bank", bank),
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
		return 0
	}

	var lastKnown float64
	if record != nil {
		lastKnown = record.LastKnownBalance
	}

	deposit := currentBalance - lastKnown
	if deposit < 0 {
		deposit = 0
	}

	return deposit
}

// Commit persists the current balance as the new last-known value. A zero
// balance deletes the entry so the next positive balance counts as fully
// new. Failures are logged and swallowed; at-most-once reconciliation is
// preferred over crash-looping on a storage error.
func (t *Tracker) Commit(bank, accountID string, currentBalance float64) {
	if currentBalance == 0 {
		if err := t.repo.DeleteDelta(bank, accountID); err != nil {
			t.logger.Error("failed to delete tracked balance",
				slog.String("bank", bank),
				slog.String("account_id", accountID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	err := t.repo.UpsertDelta(&storage.DeltaRecord{
		Bank:             bank,
		AccountID:        accountID,
		LastKnownBalance: currentBalance,
	})
	if err != nil {
		t.logger.Error("failed to persist tracked balance",
			slog.String("bank", bank),
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}
}
