// Package sheetproxy implements the payout record store against the ledger
// proxy, a small JSON API fronting the operations spreadsheet.
package sheetproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/torxlabs/treasury-engine/internal/adapters/records"
)

// Client talks to the ledger proxy API
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// Compile-time check that Client implements records.Store
var _ records.Store = (*Client)(nil)

// NewClient creates a new ledger proxy client
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    rc.StandardClient(),
		logger:  logger.With(slog.String("system", "ledger-proxy")),
	}
}

type payoutRow struct {
	Row      int64   `json:"row"`
	UserID   string  `json:"user_id"`
	Platform string  `json:"platform"`
	Amount   float64 `json:"amount"`
	Received bool    `json:"received"`
	Note     string  `json:"note"`
}

// ListPendingPayoutRecords returns records not yet marked received
func (c *Client) ListPendingPayoutRecords(ctx context.Context) ([]records.PayoutRecord, error) {
	var rows []payoutRow
	if err := c.get(ctx, "/payouts/pending", &rows); err != nil {
		return nil, fmt.Errorf("failed to list pending payouts: %w", err)
	}

	out := make([]records.PayoutRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, records.PayoutRecord{
			ID:         row.Row,
			UserID:     row.UserID,
			Platform:   row.Platform,
			BaseAmount: row.Amount,
			Received:   row.Received,
			Note:       row.Note,
		})
	}

	return out, nil
}

// MarkReceived flips a record's received flag and attaches a note
func (c *Client) MarkReceived(ctx context.Context, recordID int64, note string) error {
	body := map[string]interface{}{
		"row":      recordID,
		"received": true,
		"note":     note,
	}

	if err := c.post(ctx, "/payouts/mark-received", body, nil); err != nil {
		return fmt.Errorf("failed to mark record %d received: %w", recordID, err)
	}

	c.logger.Info("marked payout record received",
		slog.Int64("record_id", recordID),
		slog.String("note", note),
	)

	return nil
}

// GetUserForAccount resolves a sub-account identifier to a user id
func (c *Client) GetUserForAccount(ctx context.Context, accountIdentifier string) (string, error) {
	var resp struct {
		UserID string `json:"user_id"`
	}

	path := "/accounts/user?account=" + url.QueryEscape(accountIdentifier)
	if err := c.get(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("failed to resolve account %q: %w", accountIdentifier, err)
	}

	return resp.UserID, nil
}

// get performs an authenticated GET and decodes the JSON response
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

// post performs an authenticated POST with a JSON body
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger proxy returned %d: %s", resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
