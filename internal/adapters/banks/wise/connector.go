// Package wise implements the bank connector for the Wise API.
//
// Wise participates in balance visibility and top-up accounting only: its
// API does not allow the unattended transfers this engine performs, so every
// transfer attempt is reported as manual-required.
package wise

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/torxlabs/treasury-engine/internal/adapters/banks"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
)

const requestTimeout = 20 * time.Second

// Connector implements the banks.Connector interface for Wise
type Connector struct {
	baseURL    string
	token      string
	profileID  string
	currency   string
	http       *http.Client
	healthHTTP *http.Client
	logger     *slog.Logger
}

// Compile-time check that Connector implements banks.Connector
var _ banks.Connector = (*Connector)(nil)

// NewConnector creates a new Wise connector
func NewConnector(cfg config.WiseConfig, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		baseURL:    cfg.BaseURL,
		token:      cfg.APIToken,
		profileID:  cfg.ProfileID,
		currency:   cfg.Currency,
		http:       banks.NewHTTPClient(requestTimeout),
		healthHTTP: banks.NewHealthHTTPClient(requestTimeout),
		logger:     logger.With(slog.String("bank", "wise")),
	}
}

// Name returns the connector identifier
func (c *Connector) Name() string {
	return "wise"
}

// DisplayName returns the human-readable name
func (c *Connector) DisplayName() string {
	return "Wise"
}

// Currency returns the settlement currency
func (c *Connector) Currency() string {
	return c.currency
}

type apiBalance struct {
	ID       int64  `json:"id"`
	Currency string `json:"currency"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Amount   struct {
		Value    float64 `json:"value"`
		Currency string  `json:"currency"`
	} `json:"amount"`
}

// ListAccounts fetches the profile's balances. Wise holds one balance per
// currency; the settlement-currency balance is treated as the main account
// since there are no sub-accounts to sweep.
func (c *Connector) ListAccounts(ctx context.Context) ([]banks.Account, error) {
	var balances []apiBalance
	path := fmt.Sprintf("/v4/profiles/%s/balances?types=STANDARD", c.profileID)
	if err := c.get(ctx, c.http, path, &balances); err != nil {
		return nil, fmt.Errorf("failed to list wise balances: %w", err)
	}

	out := make([]banks.Account, 0, len(balances))
	for _, bal := range balances {
		name := bal.Name
		if name == "" {
			name = bal.Currency + " balance"
		}
		out = append(out, banks.Account{
			Bank:     c.Name(),
			ID:       fmt.Sprintf("%d", bal.ID),
			Name:     name,
			Currency: bal.Currency,
			Balance:  bal.Amount.Value,
			Main:     bal.Currency == c.currency,
		})
	}

	c.logger.Debug("listed balances", slog.Int("count", len(out)))

	return out, nil
}

// Transfer always requires a human: the Wise API cannot execute the
// unattended account-to-account movements this engine performs.
func (c *Connector) Transfer(ctx context.Context, req banks.TransferRequest) (*banks.TransferResult, error) {
	c.logger.Warn("transfer requires manual execution",
		slog.String("from", req.FromID),
		slog.String("to", req.ToID),
		slog.Float64("amount", req.Amount),
		slog.String("reference", req.Reference),
	)

	return &banks.TransferResult{Status: banks.TransferManual}, nil
}

// ListRecentTransactions returns an empty feed; Wise deposits are detected
// through balance deltas only.
func (c *Connector) ListRecentTransactions(ctx context.Context, opts banks.FetchOptions) ([]banks.Transaction, error) {
	return nil, nil
}

// HealthCheck verifies the API is reachable and the token works
func (c *Connector) HealthCheck(ctx context.Context) error {
	var balances []apiBalance
	path := fmt.Sprintf("/v4/profiles/%s/balances?types=STANDARD", c.profileID)
	if err := c.get(ctx, c.healthHTTP, path, &balances); err != nil {
		return fmt.Errorf("wise health check failed: %w", err)
	}
	return nil
}

// get performs an authenticated GET and decodes the JSON response
func (c *Connector) get(ctx context.Context, client *http.Client, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("wise api returned %d: %s", resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
