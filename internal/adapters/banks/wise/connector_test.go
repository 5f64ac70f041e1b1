package wise

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torxlabs/treasury-engine/internal/adapters/banks"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
)

func TestListAccountsFromBalances(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/profiles/777/balances", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`[
			{"id":101,"currency":"USD","type":"STANDARD","amount":{"value":2500,"currency":"USD"}},
			{"id":102,"currency":"EUR","type":"STANDARD","amount":{"value":90,"currency":"EUR"}}
		]`))
	}))
	defer server.Close()

	c := NewConnector(config.WiseConfig{
		BaseURL:   server.URL,
		APIToken:  "test-token",
		ProfileID: "777",
		Currency:  "USD",
	}, nil)

	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)

	require.Len(t, accounts, 2)
	// The settlement-currency balance is the main account
	assert.True(t, accounts[0].Main)
	assert.Equal(t, 2500.0, accounts[0].Balance)
	assert.False(t, accounts[1].Main)
}

func TestTransferAlwaysManual(t *testing.T) {
	c := NewConnector(config.WiseConfig{Currency: "USD"}, nil)

	// No HTTP call happens; the connector reports the transfer as manual
	result, err := c.Transfer(context.Background(), banks.TransferRequest{
		FromID: "101", ToID: "x", Amount: 500, Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, banks.TransferManual, result.Status)
	assert.Empty(t, result.TransactionID)
}

func TestNoTransactionFeed(t *testing.T) {
	c := NewConnector(config.WiseConfig{Currency: "USD"}, nil)

	transactions, err := c.ListRecentTransactions(context.Background(), banks.FetchOptions{Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, transactions)
}
