package storage

import "time"

// DeltaRecord is the persisted last-known balance for one sub-account
type DeltaRecord struct {
	ID               int64     `json:"id"`
	Bank             string    `json:"bank"`
	AccountID        string    `json:"account_id"`
	LastKnownBalance float64   `json:"last_known_balance"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PendingTransfer is a consolidation transfer accepted by a bank but not yet
// settled. Rows older than the policy TTL are swept by auto-expiry.
type PendingTransfer struct {
	ID            int64     `json:"id"`
	Bank          string    `json:"bank"`
	AccountID     string    `json:"account_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transaction_id"`
	Reference     string    `json:"reference"`
	CreatedAt     time.Time `json:"created_at"`
}

// EngineRun is one recorded reconciliation or consolidation run
type EngineRun struct {
	ID          int64   `json:"id"`
	Kind        string  `json:"kind"` // "reconciliation" or "consolidation"
	StartedAt   string  `json:"started_at"`
	CompletedAt string  `json:"completed_at,omitempty"`
	DryRun      bool    `json:"dry_run"`
	Detected    int     `json:"detected"`
	Reconciled  int     `json:"reconciled"`
	ErrorCount  int     `json:"error_count"`
	TotalMoved  float64 `json:"total_moved"`
	Status      string  `json:"status"`
}
