package banks

import (
	"context"
	"strings"
	"time"
)

// Account is a read-only balance snapshot of one bank account
type Account struct {
	Bank     string
	ID       string
	Name     string
	Currency string
	Balance  float64
	Main     bool // the designated aggregation account for this bank
}

// Transaction is one entry from a bank's recent-transaction feed
type Transaction struct {
	ID          string
	AccountID   string
	Amount      float64
	Currency    string
	Description string
	CreatedAt   time.Time
}

// TransferStatus describes the outcome of a transfer attempt
type TransferStatus string

const (
	// TransferCompleted means the money moved synchronously
	TransferCompleted TransferStatus = "success"

	// TransferPending means the bank accepted the transfer but settlement is
	// asynchronous; callers must track it until confirmed
	TransferPending TransferStatus = "async-pending"

	// TransferManual means this bank cannot perform the transfer
	// programmatically; a human has to execute it
	TransferManual TransferStatus = "manual-required"

	// TransferFailed means the bank rejected the transfer
	TransferFailed TransferStatus = "failed"
)

// TransferRequest describes a transfer between two accounts
type TransferRequest struct {
	FromID    string
	ToID      string
	Amount    float64
	Currency  string
	Reference string
}

// TransferResult is the outcome of a transfer attempt
type TransferResult struct {
	Status        TransferStatus
	TransactionID string
}

// FetchOptions configures how recent transactions are fetched
type FetchOptions struct {
	Limit int
}

// Connector is the interface that all bank integrations must implement
type Connector interface {
	// Connector identification
	Name() string        // "revolut", "mercury", etc.
	DisplayName() string // "Revolut", "Mercury", etc.

	// Currency returns the settlement currency this connector operates in
	Currency() string

	// Account operations
	ListAccounts(ctx context.Context) ([]Account, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	ListRecentTransactions(ctx context.Context, opts FetchOptions) ([]Transaction, error)

	// Health check
	HealthCheck(ctx context.Context) error
}

// MainAccountPredicate decides whether an account is the bank's main
// aggregation account. The default heuristic is string containment on the
// account name; bank-specific quirks stay inside each connector.
type MainAccountPredicate func(name string) bool

// MarkerPredicate returns a predicate matching names containing the marker,
// case-insensitively. An empty marker never matches.
func MarkerPredicate(marker string) MainAccountPredicate {
	marker = strings.ToLower(strings.TrimSpace(marker))
	return func(name string) bool {
		if marker == "" {
			return false
		}
		return strings.Contains(strings.ToLower(name), marker)
	}
}
