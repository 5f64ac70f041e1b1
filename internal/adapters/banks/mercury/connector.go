// Package mercury implements the bank connector for the Mercury API.
// Mercury settles internal transfers asynchronously, so every accepted
// transfer is reported as async-pending and tracked until it clears.
package mercury

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

// Connector implements the banks.Connector interface for Mercury
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

// NewConnector creates a new Mercury connector
func NewConnector(cfg config.MercuryConfig, logger *slog.Logger) *Connector {
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
		logger:     logger.With(slog.String("bank", "mercury")),
	}
}

// Name returns the connector identifier
func (c *Connector) Name() string {
	return "mercury"
}

// DisplayName returns the human-readable name
func (c *Connector) DisplayName() string {
	return "Mercury"
}

// Currency returns the settlement currency
func (c *Connector) Currency() string {
	return c.currency
}

type apiAccount struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Nickname       string  `json:"nickname"`
	CurrentBalance float64 `json:"currentBalance"`
	Status         string  `json:"status"`
	Kind           string  `json:"kind"`
}

type accountsResponse struct {
	Accounts []apiAccount `json:"accounts"`
}

// ListAccounts fetches all active accounts.
// Mercury operators label accounts via nicknames, so the main-account
// heuristic checks the nickname before the legal name.
func (c *Connector) ListAccounts(ctx context.Context) ([]banks.Account, error) {
	var resp accountsResponse
	if err := c.get(ctx, c.http, "/api/v1/accounts", &resp); err != nil {
		return nil, fmt.Errorf("failed to list mercury accounts: %w", err)
	}

	out := make([]banks.Account, 0, len(resp.Accounts))
	for _, acct := range resp.Accounts {
		if acct.Status != "active" {
			continue
		}
		name := acct.Nickname
		if name == "" {
			name = acct.Name
		}
		out = append(out, banks.Account{
			Bank:     c.Name(),
			ID:       acct.ID,
			Name:     name,
			Currency: c.currency, // Mercury accounts are USD only
			Balance:  acct.CurrentBalance,
			Main:     c.isMain(acct.Nickname) || c.isMain(acct.Name),
		})
	}

	c.logger.Debug("listed accounts", slog.Int("count", len(out)))

	return out, nil
}

type transferRequest struct {
	RecipientID    string  `json:"recipientId"`
	Amount         float64 `json:"amount"`
	PaymentMethod  string  `json:"paymentMethod"`
	Note           string  `json:"note,omitempty"`
	IdempotencyKey string  `json:"idempotencyKey"`
}

type transferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Transfer submits an internal transfer. Mercury queues transfers for
// settlement, so a rejected request errors and everything else is pending.
func (c *Connector) Transfer(ctx context.Context, req banks.TransferRequest) (*banks.TransferResult, error) {
	body := transferRequest{
		RecipientID:    req.ToID,
		Amount:         req.Amount,
		PaymentMethod:  "internal",
		Note:           req.Reference,
		IdempotencyKey: uuid.NewString(),
	}

	var resp transferResponse
	path := fmt.Sprintf("/api/v1/account/%s/transactions", req.FromID)
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, fmt.Errorf("mercury transfer failed: %w", err)
	}

	if resp.Status == "failed" || resp.Status == "cancelled" {
		return &banks.TransferResult{Status: banks.TransferFailed, TransactionID: resp.ID}, nil
	}

	c.logger.Info("transfer queued",
		slog.String("from", req.FromID),
		slog.String("to", req.ToID),
		slog.Float64("amount", req.Amount),
		slog.String("transaction_id", resp.ID),
	)

	return &banks.TransferResult{Status: banks.TransferPending, TransactionID: resp.ID}, nil
}

type apiTransaction struct {
	ID           string    `json:"id"`
	Amount       float64   `json:"amount"`
	CreatedAt    time.Time `json:"createdAt"`
	Status       string    `json:"status"`
	ExternalMemo string    `json:"externalMemo"`
}

type transactionsResponse struct {
	Transactions []apiTransaction `json:"transactions"`
}

// ListRecentTransactions fetches recent settled transactions across all
// accounts. Mercury's feed is per account, so each account is queried.
func (c *Connector) ListRecentTransactions(ctx context.Context, opts banks.FetchOptions) ([]banks.Transaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	accounts, err := c.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	var out []banks.Transaction
	for _, acct := range accounts {
		var resp transactionsResponse
		path := fmt.Sprintf("/api/v1/account/%s/transactions?limit=%d&order=desc", acct.ID, limit)
		if err := c.get(ctx, c.http, path, &resp); err != nil {
			return nil, fmt.Errorf("failed to list mercury transactions for %s: %w", acct.ID, err)
		}

		for _, tx := range resp.Transactions {
			if tx.Status != "sent" && tx.Status != "posted" {
				continue
			}
			out = append(out, banks.Transaction{
				ID:          tx.ID,
				AccountID:   acct.ID,
				Amount:      tx.Amount,
				Currency:    c.currency,
				Description: tx.ExternalMemo,
				CreatedAt:   tx.CreatedAt,
			})
		}
	}

	return out, nil
}

// HealthCheck verifies the API is reachable and the token works
func (c *Connector) HealthCheck(ctx context.Context) error {
	var resp accountsResponse
	if err := c.get(ctx, c.healthHTTP, "/api/v1/accounts", &resp); err != nil {
		return fmt.Errorf("mercury health check failed: %w", err)
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
		return fmt.Errorf("mercury api returned %d: %s", resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
