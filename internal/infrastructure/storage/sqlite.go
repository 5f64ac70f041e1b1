package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for engine-owned state.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// ================================================================
// DeltaRepository
// ================================================================

// GetDelta returns the tracked record for an account, or nil if untracked
func (s *Storage) GetDelta(bank, accountID string) (*DeltaRecord, error) {
	query := `
	SELECT id, bank, account_id, last_known_balance, updated_at
	FROM delta_records WHERE bank = ? AND account_id = ?
	`

	record := &DeltaRecord{}
	err := s.db.QueryRow(query, bank, accountID).Scan(
		&record.ID,
		&record.Bank,
		&record.AccountID,
		&record.LastKnownBalance,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// UpsertDelta creates or updates the tracked balance for an account
func (s *Storage) UpsertDelta(record *DeltaRecord) error {
	query := `
	INSERT INTO delta_records (bank, account_id, last_known_balance, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(bank, account_id)
	DO UPDATE SET last_known_balance = excluded.last_known_balance,
	              updated_at = excluded.updated_at
	`

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(query, record.Bank, record.AccountID, record.LastKnownBalance, updatedAt)
	return err
}

// DeleteDelta removes the tracked record for an account
func (s *Storage) DeleteDelta(bank, accountID string) error {
	_, err := s.db.Exec(`DELETE FROM delta_records WHERE bank = ? AND account_id = ?`, bank, accountID)
	return err
}

// ListDeltas returns all tracked records
func (s *Storage) ListDeltas() ([]DeltaRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, bank, account_id, last_known_balance, updated_at
		FROM delta_records ORDER BY bank, account_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []DeltaRecord
	for rows.Next() {
		var r DeltaRecord
		if err := rows.Scan(&r.ID, &r.Bank, &r.AccountID, &r.LastKnownBalance, &r.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// ================================================================
// PendingTransferRepository
// ================================================================

// AddPendingTransfer records an accepted-but-unsettled transfer
func (s *Storage) AddPendingTransfer(transfer *PendingTransfer) error {
	createdAt := transfer.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := s.db.Exec(`
		INSERT INTO pending_transfers (bank, account_id, amount, currency, transaction_id, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, transfer.Bank, transfer.AccountID, transfer.Amount, transfer.Currency,
		transfer.TransactionID, transfer.Reference, createdAt)
	if err != nil {
		return err
	}

	transfer.ID, _ = result.LastInsertId()
	transfer.CreatedAt = createdAt
	return nil
}

// ListPendingTransfers returns all outstanding transfers
func (s *Storage) ListPendingTransfers() ([]PendingTransfer, error) {
	rows, err := s.db.Query(`
		SELECT id, bank, account_id, amount, currency, transaction_id, reference, created_at
		FROM pending_transfers ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var transfers []PendingTransfer
	for rows.Next() {
		var t PendingTransfer
		var txID, reference sql.NullString
		if err := rows.Scan(&t.ID, &t.Bank, &t.AccountID, &t.Amount, &t.Currency, &txID, &reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.TransactionID = txID.String
		t.Reference = reference.String
		transfers = append(transfers, t)
	}

	return transfers, rows.Err()
}

// DeletePendingTransfer removes a settled transfer by id
func (s *Storage) DeletePendingTransfer(id int64) error {
	_, err := s.db.Exec(`DELETE FROM pending_transfers WHERE id = ?`, id)
	return err
}

// ExpirePendingTransfers removes transfers created before the cutoff
func (s *Storage) ExpirePendingTransfers(olderThan time.Time) (int, error) {
	result, err := s.db.Exec(`DELETE FROM pending_transfers WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	return int(n), err
}

// ================================================================
// ProcessedTransactionRepository
// ================================================================

// IsTransactionProcessed checks whether a transaction id was already handled
func (s *Storage) IsTransactionProcessed(bank, transactionID string) bool {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM processed_transactions WHERE bank = ? AND transaction_id = ?
	`, bank, transactionID).Scan(&one)
	return err == nil
}

// MarkTransactionProcessed records a handled transaction id
func (s *Storage) MarkTransactionProcessed(bank, transactionID string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO processed_transactions (bank, transaction_id) VALUES (?, ?)
	`, bank, transactionID)
	return err
}

// ================================================================
// RunRepository
// ================================================================

// StartRun records the start of a run and returns the run ID
func (s *Storage) StartRun(kind string, dryRun bool) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO engine_runs (kind, dry_run, status) VALUES (?, ?, 'running')
	`, kind, dryRun)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// CompleteRun records the completion of a run
func (s *Storage) CompleteRun(runID int64, detected, reconciled, errors int, totalMoved float64, status string) error {
	_, err := s.db.Exec(`
		UPDATE engine_runs
		SET completed_at = CURRENT_TIMESTAMP,
		    detected = ?,
		    reconciled = ?,
		    error_count = ?,
		    total_moved = ?,
		    status = ?
		WHERE id = ?
	`, detected, reconciled, errors, totalMoved, status, runID)
	return err
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]EngineRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, kind, started_at, COALESCE(completed_at, ''), dry_run,
		       detected, reconciled, error_count, total_moved, status
		FROM engine_runs ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []EngineRun
	for rows.Next() {
		var r EngineRun
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt, &r.CompletedAt, &r.DryRun,
			&r.Detected, &r.Reconciled, &r.ErrorCount, &r.TotalMoved, &r.Status); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(runID int64) (*EngineRun, error) {
	r := &EngineRun{}
	err := s.db.QueryRow(`
		SELECT id, kind, started_at, COALESCE(completed_at, ''), dry_run,
		       detected, reconciled, error_count, total_moved, status
		FROM engine_runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.Kind, &r.StartedAt, &r.CompletedAt, &r.DryRun,
		&r.Detected, &r.Reconciled, &r.ErrorCount, &r.TotalMoved, &r.Status)
	if err != nil {
		return nil, err
	}

	return r, nil
}
