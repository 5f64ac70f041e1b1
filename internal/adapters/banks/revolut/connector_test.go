package revolut

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torxlabs/treasury-engine/internal/adapters/banks"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
)

func newTestConnector(serverURL string) *Connector {
	return NewConnector(config.RevolutConfig{
		BaseURL:           serverURL,
		APIToken:          "test-token",
		Currency:          "USD",
		MainAccountMarker: "Main",
	}, nil)
}

func TestListAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1.0/accounts", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`[
			{"id":"a1","name":"Main Account","balance":5000,"currency":"USD","state":"active"},
			{"id":"a2","name":"User One","balance":750,"currency":"USD","state":"active"},
			{"id":"a3","name":"Closed","balance":0,"currency":"USD","state":"inactive"}
		]`))
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)

	// Inactive accounts are dropped
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].Main)
	assert.False(t, accounts[1].Main)
	assert.Equal(t, "revolut", accounts[0].Bank)
	assert.Equal(t, 750.0, accounts[1].Balance)
}

func TestTransferCompleted(t *testing.T) {
	var body transferRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1.0/transfer", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":"tx-9","state":"completed"}`))
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	result, err := c.Transfer(context.Background(), banks.TransferRequest{
		FromID:    "a2",
		ToID:      "a1",
		Amount:    750,
		Currency:  "USD",
		Reference: "consolidation abc",
	})
	require.NoError(t, err)

	assert.Equal(t, banks.TransferCompleted, result.Status)
	assert.Equal(t, "tx-9", result.TransactionID)

	// Every transfer carries a fresh idempotency key
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, "a2", body.SourceAccountID)
	assert.Equal(t, "consolidation abc", body.Reference)
}

func TestTransferPendingState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"tx-9","state":"pending"}`))
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	result, err := c.Transfer(context.Background(), banks.TransferRequest{
		FromID: "a2", ToID: "a1", Amount: 750, Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, banks.TransferPending, result.Status)
}

func TestTransferAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"insufficient funds"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	_, err := c.Transfer(context.Background(), banks.TransferRequest{
		FromID: "a2", ToID: "a1", Amount: 750, Currency: "USD",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestListRecentTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1.0/transactions", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("count"))

		_, _ = w.Write([]byte(`[
			{"id":"t1","state":"completed","reference":"wire in",
			 "legs":[{"account_id":"a2","amount":8995,"currency":"USD"}]},
			{"id":"t2","state":"pending","legs":[{"account_id":"a2","amount":100,"currency":"USD"}]}
		]`))
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	transactions, err := c.ListRecentTransactions(context.Background(), banks.FetchOptions{Limit: 25})
	require.NoError(t, err)

	// Only completed transactions are returned
	require.Len(t, transactions, 1)
	assert.Equal(t, "t1", transactions[0].ID)
	assert.Equal(t, 8995.0, transactions[0].Amount)
	assert.Equal(t, "a2", transactions[0].AccountID)
}
