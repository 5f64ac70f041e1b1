package mercury

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
	return NewConnector(config.MercuryConfig{
		BaseURL:           serverURL,
		APIToken:          "test-token",
		Currency:          "USD",
		MainAccountMarker: "Checking",
	}, nil)
}

func TestListAccountsNicknameFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/accounts", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"accounts":[
			{"id":"m1","name":"Torx Labs LLC","nickname":"Checking","currentBalance":8000,"status":"active","kind":"checking"},
			{"id":"m2","name":"Torx Labs LLC","nickname":"User Two","currentBalance":1200,"status":"active","kind":"checking"},
			{"id":"m3","name":"Old Savings","nickname":"","currentBalance":0,"status":"archived","kind":"savings"}
		]}`))
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)

	// Archived accounts are dropped
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].Main)
	assert.Equal(t, "Checking", accounts[0].Name)
	assert.Equal(t, "mercury", accounts[0].Bank)
	assert.Equal(t, "User Two", accounts[1].Name)
	assert.Equal(t, 1200.0, accounts[1].Balance)
}

func TestTransferAlwaysPending(t *testing.T) {
	var body transferRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/account/m2/transactions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id":"tx-44","status":"pending"}`))
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	result, err := c.Transfer(context.Background(), banks.TransferRequest{
		FromID:    "m2",
		ToID:      "m1",
		Amount:    1200,
		Currency:  "USD",
		Reference: "consolidation abc",
	})
	require.NoError(t, err)

	// Settlement is asynchronous, accepted transfers are never completed
	assert.Equal(t, banks.TransferPending, result.Status)
	assert.Equal(t, "tx-44", result.TransactionID)

	assert.Equal(t, "internal", body.PaymentMethod)
	assert.Equal(t, "consolidation abc", body.Note)
	assert.NotEmpty(t, body.IdempotencyKey)
}

func TestTransferFailedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"tx-45","status":"failed"}`))
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	result, err := c.Transfer(context.Background(), banks.TransferRequest{
		FromID: "m2", ToID: "m1", Amount: 1200, Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, banks.TransferFailed, result.Status)
}

func TestListRecentTransactionsPerAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/accounts" {
			_, _ = w.Write([]byte(`{"accounts":[
				{"id":"m2","name":"User Two","nickname":"","currentBalance":1200,"status":"active"}
			]}`))
			return
		}

		assert.Equal(t, "/api/v1/account/m2/transactions", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"transactions":[
			{"id":"t1","amount":4500,"status":"sent","externalMemo":"wire in"},
			{"id":"t2","amount":100,"status":"pending"}
		]}`))
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	transactions, err := c.ListRecentTransactions(context.Background(), banks.FetchOptions{Limit: 25})
	require.NoError(t, err)

	// Unsettled transactions are excluded
	require.Len(t, transactions, 1)
	assert.Equal(t, "t1", transactions[0].ID)
	assert.Equal(t, "m2", transactions[0].AccountID)
	assert.Equal(t, 4500.0, transactions[0].Amount)
}

func TestErrorIncludesBodySnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":{"message":"invalid token"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestConnector(server.URL)

	_, err := c.ListAccounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid token")
}
