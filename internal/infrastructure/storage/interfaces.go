package storage

import "time"

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	DeltaRepository
	PendingTransferRepository
	ProcessedTransactionRepository
	RunRepository
	Close() error
}

// DeltaRepository persists the last-known balance per sub-account.
// Deltas against these rows are the only supported signal for "new deposit";
// an account with no row is treated as last-known zero.
type DeltaRepository interface {
	// GetDelta returns the tracked record for an account, or nil if untracked
	GetDelta(bank, accountID string) (*DeltaRecord, error)

	// UpsertDelta creates or updates the tracked balance for an account
	UpsertDelta(record *DeltaRecord) error

	// DeleteDelta removes the tracked record for an account
	DeleteDelta(bank, accountID string) error

	// ListDeltas returns all tracked records
	ListDeltas() ([]DeltaRecord, error)
}

// PendingTransferRepository persists in-flight async consolidation transfers.
// A non-empty ledger gates new consolidation runs.
type PendingTransferRepository interface {
	// AddPendingTransfer records an accepted-but-unsettled transfer
	AddPendingTransfer(transfer *PendingTransfer) error

	// ListPendingTransfers returns all outstanding transfers
	ListPendingTransfers() ([]PendingTransfer, error)

	// DeletePendingTransfer removes a settled transfer by id
	DeletePendingTransfer(id int64) error

	// ExpirePendingTransfers removes transfers created before the cutoff
	// and returns how many were removed
	ExpirePendingTransfers(olderThan time.Time) (int, error)
}

// ProcessedTransactionRepository tracks bank transaction ids that have
// already been reconciled through the recent-transactions pass.
type ProcessedTransactionRepository interface {
	// IsTransactionProcessed checks whether a transaction id was already handled
	IsTransactionProcessed(bank, transactionID string) bool

	// MarkTransactionProcessed records a handled transaction id
	MarkTransactionProcessed(bank, transactionID string) error
}

// RunRepository tracks engine runs (reconciliation and consolidation)
type RunRepository interface {
	// StartRun records the start of a run and returns the run ID
	StartRun(kind string, dryRun bool) (int64, error)

	// CompleteRun records the completion of a run
	CompleteRun(runID int64, detected, reconciled, errors int, totalMoved float64, status string) error

	// ListRuns returns recent runs, newest first
	ListRuns(limit int) ([]EngineRun, error)

	// GetRun retrieves a run by ID
	GetRun(runID int64) (*EngineRun, error)
}
