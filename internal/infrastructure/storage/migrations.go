package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_engine_runs_table",
		Up:      migration002AddEngineRunsTable,
	},
	{
		Version: 3,
		Name:    "add_pending_transfer_reference",
		Up:      migration003AddPendingTransferReference,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	// Ensure migrations table exists
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Run pending migrations
	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		// Run migration in transaction
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		// Execute migration
		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		// Record migration
		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		// Commit
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001InitialSchema creates the engine-owned state tables:
// delta_records, pending_transfers and processed_transactions
func migration001InitialSchema(db *sql.Tx) error {
	queries := []string{
		// Last-known balance per sub-account
		`CREATE TABLE IF NOT EXISTS delta_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bank TEXT NOT NULL,
			account_id TEXT NOT NULL,
			last_known_balance REAL NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(bank, account_id)
		)`,

		// In-flight async consolidation transfers
		`CREATE TABLE IF NOT EXISTS pending_transfers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bank TEXT NOT NULL,
			account_id TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			transaction_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Bank transaction ids already reconciled via the transaction feed
		`CREATE TABLE IF NOT EXISTS processed_transactions (
			bank TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (bank, transaction_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_delta_records_bank
		 ON delta_records(bank)`,

		`CREATE INDEX IF NOT EXISTS idx_pending_transfers_created
		 ON pending_transfers(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddEngineRunsTable creates the engine_runs table
func migration002AddEngineRunsTable(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE engine_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP,
			dry_run BOOLEAN DEFAULT 0,
			detected INTEGER DEFAULT 0,
			reconciled INTEGER DEFAULT 0,
			error_count INTEGER DEFAULT 0,
			total_moved REAL DEFAULT 0,
			status TEXT DEFAULT 'running'
		)`,

		`CREATE INDEX IF NOT EXISTS idx_engine_runs_kind
		 ON engine_runs(kind)`,

		`CREATE INDEX IF NOT EXISTS idx_engine_runs_started
		 ON engine_runs(started_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// migration003AddPendingTransferReference adds the transfer reference column.
// References carry the idempotency key sent to the bank, which makes manual
// settlement confirmation against bank statements possible.
func migration003AddPendingTransferReference(db *sql.Tx) error {
	query := `ALTER TABLE pending_transfers ADD COLUMN reference TEXT DEFAULT ''`

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to add reference column: %w", err)
	}

	return nil
}
