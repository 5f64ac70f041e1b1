package sheetproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPendingPayoutRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payouts/pending", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]payoutRow{
			{Row: 12, UserID: "u1", Platform: "apex", Amount: 10000},
			{Row: 15, UserID: "u2", Platform: "bulenox", Amount: 5000},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", nil)

	records, err := client.ListPendingPayoutRecords(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, int64(12), records[0].ID)
	assert.Equal(t, "apex", records[0].Platform)
	assert.Equal(t, 10000.0, records[0].BaseAmount)
}

func TestMarkReceived(t *testing.T) {
	var received map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payouts/mark-received", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", nil)

	err := client.MarkReceived(context.Background(), 12, "adjustment -1005.00")
	require.NoError(t, err)

	assert.Equal(t, float64(12), received["row"])
	assert.Equal(t, true, received["received"])
	assert.Equal(t, "adjustment -1005.00", received["note"])
}

func TestGetUserForAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/user", r.URL.Path)
		assert.Equal(t, "User One", r.URL.Query().Get("account"))
		_, _ = w.Write([]byte(`{"user_id":"u1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", nil)

	userID, err := client.GetUserForAccount(context.Background(), "User One")
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestErrorIncludesBodySnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sheet is locked for editing", http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", nil)

	_, err := client.ListPendingPayoutRecords(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "sheet is locked")
}
