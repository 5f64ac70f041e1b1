// Package records defines the external payout record store contract.
//
// Payout records are owned by the ledger (a spreadsheet behind a JSON proxy
// in production); this engine only reads pending records and flips the
// received flag on a successful match. A received record is terminal and
// never touched again.
package records

import "context"

// PayoutRecord is an expected-incoming-funds entry awaiting confirmation
type PayoutRecord struct {
	ID         int64   `json:"id"`
	UserID     string  `json:"user_id"`
	Platform   string  `json:"platform"`
	BaseAmount float64 `json:"base_amount"`
	Received   bool    `json:"received"`
	Note       string  `json:"note,omitempty"`
}

// Store is the external payout ledger contract
type Store interface {
	// ListPendingPayoutRecords returns records not yet marked received
	ListPendingPayoutRecords(ctx context.Context) ([]PayoutRecord, error)

	// MarkReceived flips a record's received flag and attaches a note.
	// Marking is write-once; the ledger rejects updates to received records.
	MarkReceived(ctx context.Context, recordID int64, note string) error

	// GetUserForAccount resolves a bank sub-account identifier to the user
	// it is allocated to. Returns "" when the account cannot be attributed.
	GetUserForAccount(ctx context.Context, accountIdentifier string) (string, error)
}
