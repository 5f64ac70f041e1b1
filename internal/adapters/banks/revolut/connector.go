// Package revolut implements the bank connector for the Revolut Business
// API. Transfers between own accounts usually complete synchronously; a
// pending state is reported as async so the caller can track settlement.
package revolut

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/torxlabs/treasury-engine/internal/adapters/banks"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
)

const requestTimeout = 20 * time.Second

// Connector implements the banks.Connector interface for Revolut
type Connector struct {
	baseURL    string
	token      string
	currency   string
	isMain     banks.MainAccountPredicate
	http       *http.Client
	healthHTTP *http.Client
	logger     *slog.Logger
}

// Compile-time check that Connector implements banks.Connector
var _ banks.Connector = (*Connector)(nil)

// NewConnector creates a new Revolut connector
func NewConnector(cfg config.RevolutConfig, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		baseURL:    cfg.BaseURL,
		token:      cfg.APIToken,
		currency:   cfg.Currency,
		isMain:     banks.MarkerPredicate(cfg.MainAccountMarker),
		http:       banks.NewHTTPClient(requestTimeout),
		healthHTTP: banks.NewHealthHTTPClient(requestTimeout),
		logger:     logger.With(slog.String("bank", "revolut")),
	}
}

// Name returns the connector identifier
func (c *Connector) Name() string {
	return "revolut"
}

// DisplayName returns the human-readable name
func (c *Connector) DisplayName() string {
	return "Revolut"
}

// Currency returns the settlement currency
func (c *Connector) Currency() string {
	return c.currency
}

type apiAccount struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
	State    string  `json:"state"`
	Public   bool    `json:"public"`
}

// ListAccounts fetches all active accounts
func (c *Connector) ListAccounts(ctx context.Context) ([]banks.Account, error) {
	var accounts []apiAccount
	if err := c.get(ctx, c.http, "/api/1.0/accounts", &accounts); err != nil {
		return nil, fmt.Errorf("failed to list revolut accounts: %w", err)
	}

	out := make([]banks.Account, 0, len(accounts))
	for _, acct := range accounts {
		if acct.State != "active" {
			continue
		}
		out = append(out, banks.Account{
			Bank:     c.Name(),
			ID:       acct.ID,
			Name:     acct.Name,
			Currency: acct.Currency,
			Balance:  acct.Balance,
			Main:     c.isMain(acct.Name),
		})
	}

	c.logger.Debug("listed accounts", slog.Int("count", len(out)))

	return out, nil
}

type transferRequest struct {
	RequestID       string  `json:"request_id"`
	SourceAccountID string  `json:"source_account_id"`
	TargetAccountID string  `json:"target_account_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Reference       string  `json:"reference,omitempty"`
}

type transferResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// Transfer moves money between two Revolut accounts
func (c *Connector) Transfer(ctx context.Context, req banks.TransferRequest) (*banks.TransferResult, error) {
	body := transferRequest{
		RequestID:       uuid.NewString(),
		SourceAccountID: req.FromID,
		TargetAccountID: req.ToID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Reference:       req.Reference,
	}

	var resp transferResponse
	if err := c.post(ctx, "/api/1.0/transfer", body, &resp); err != nil {
		return nil, fmt.Errorf("revolut transfer failed: %w", err)
	}

	result := &banks.TransferResult{TransactionID: resp.ID}
	switch resp.State {
	case "completed":
		result.Status = banks.TransferCompleted
	case "pending", "created":
		result.Status = banks.TransferPending
	default:
		result.Status = banks.TransferFailed
	}

	c.logger.Info("transfer submitted",
		slog.String("from", req.FromID),
		slog.String("to", req.ToID),
		slog.Float64("amount", req.Amount),
		slog.String("state", resp.State),
	)

	return result, nil
}

type apiTransaction struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Reference string    `json:"reference"`
	Legs      []struct {
		AccountID string  `json:"account_id"`
		Amount    float64 `json:"amount"`
		Currency  string  `json:"currency"`
	} `json:"legs"`
}

// ListRecentTransactions fetches the most recent completed transactions
func (c *Connector) ListRecentTransactions(ctx context.Context, opts banks.FetchOptions) ([]banks.Transaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var transactions []apiTransaction
	path := fmt.Sprintf("/api/1.0/transactions?count=%d", limit)
	if err := c.get(ctx, c.http, path, &transactions); err != nil {
		return nil, fmt.Errorf("failed to list revolut transactions: %w", err)
	}

	out := make([]banks.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.State != "completed" || len(tx.Legs) == 0 {
			continue
		}
		leg := tx.Legs[0]
		out = append(out, banks.Transaction{
			ID:          tx.ID,
			AccountID:   leg.AccountID,
			Amount:      leg.Amount,
			Currency:    leg.Currency,
			Description: tx.Reference,
			CreatedAt:   tx.CreatedAt,
		})
	}

	return out, nil
}

// HealthCheck verifies the API is reachable and the token works
func (c *Connector) HealthCheck(ctx context.Context) error {
	var accounts []apiAccount
	if err := c.get(ctx, c.healthHTTP, "/api/1.0/accounts", &accounts); err != nil {
		return fmt.Errorf("revolut health check failed: %w", err)
	}
	return nil
}

// get performs an authenticated GET and decodes the JSON response
func (c *Connector) get(ctx context.Context, client *http.Client, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(client, req, out)
}

// post performs an authenticated POST with a JSON body
func (c *Connector) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(c.http, req, out)
}

func (c *Connector) do(client *http.Client, req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("revolut api returned %d: %s", resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
