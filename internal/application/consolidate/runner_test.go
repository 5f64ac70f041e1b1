package consolidate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torxlabs/treasury-engine/internal/adapters/banks"
	"github.com/torxlabs/treasury-engine/internal/domain/planner"
	"github.com/torxlabs/treasury-engine/internal/domain/policy"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/storage"
)

type stubConnector struct {
	accounts  []banks.Account
	transfers int
}

func (s *stubConnector) Name() string        { return "revolut" }
func (s *stubConnector) DisplayName() string { return "Revolut" }
func (s *stubConnector) Currency() string    { return "USD" }
func (s *stubConnector) ListAccounts(ctx context.Context) ([]banks.Account, error) {
	return s.accounts, nil
}
func (s *stubConnector) Transfer(ctx context.Context, req banks.TransferRequest) (*banks.TransferResult, error) {
	s.transfers++
	return &banks.TransferResult{Status: banks.TransferCompleted, TransactionID: "tx-1"}, nil
}
func (s *stubConnector) ListRecentTransactions(ctx context.Context, opts banks.FetchOptions) ([]banks.Transaction, error) {
	return nil, nil
}
func (s *stubConnector) HealthCheck(ctx context.Context) error { return nil }

func TestRunRecordsEngineRun(t *testing.T) {
	repo := storage.NewMockRepository()
	conn := &stubConnector{
		accounts: []banks.Account{
			{Bank: "revolut", ID: "main", Name: "Main", Currency: "USD", Balance: 5000, Main: true},
			{Bank: "revolut", ID: "sub-1", Name: "User One", Currency: "USD", Balance: 250},
		},
	}

	registry := banks.NewRegistry(nil)
	require.NoError(t, registry.Register(conn))

	p := planner.New(registry, repo, policy.Default(), nil, nil, nil)
	runner := New(p, repo, nil)

	plan, err := runner.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, planner.StatusCompleted, plan.Status)
	assert.Equal(t, 1, conn.transfers)
	assert.Equal(t, 250.0, plan.TotalMoved)

	assert.True(t, repo.StartRunCalled)
	runs, err := repo.ListRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "consolidate", runs[0].Kind)
	assert.Equal(t, planner.StatusCompleted, runs[0].Status)
	assert.Equal(t, 250.0, runs[0].TotalMoved)
}

func TestDryRunPassedThrough(t *testing.T) {
	repo := storage.NewMockRepository()
	conn := &stubConnector{
		accounts: []banks.Account{
			{Bank: "revolut", ID: "main", Name: "Main", Currency: "USD", Balance: 5000, Main: true},
			{Bank: "revolut", ID: "sub-1", Name: "User One", Currency: "USD", Balance: 250},
		},
	}

	registry := banks.NewRegistry(nil)
	require.NoError(t, registry.Register(conn))

	p := planner.New(registry, repo, policy.Default(), nil, nil, nil)
	runner := New(p, repo, nil)

	plan, err := runner.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, planner.StatusDryRun, plan.Status)
	assert.Zero(t, conn.transfers)
}
