package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDeltaRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	// Untracked account reads as nil, not an error
	record, err := s.GetDelta("revolut", "acc-1")
	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, s.UpsertDelta(&DeltaRecord{
		Bank: "revolut", AccountID: "acc-1", LastKnownBalance: 500,
	}))

	record, err = s.GetDelta("revolut", "acc-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 500.0, record.LastKnownBalance)
	assert.False(t, record.UpdatedAt.IsZero())

	// Upsert overwrites
	require.NoError(t, s.UpsertDelta(&DeltaRecord{
		Bank: "revolut", AccountID: "acc-1", LastKnownBalance: 750,
	}))

	record, err = s.GetDelta("revolut", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 750.0, record.LastKnownBalance)

	require.NoError(t, s.DeleteDelta("revolut", "acc-1"))

	record, err = s.GetDelta("revolut", "acc-1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestDeltaKeyedPerBank(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.UpsertDelta(&DeltaRecord{Bank: "revolut", AccountID: "acc-1", LastKnownBalance: 100}))
	require.NoError(t, s.UpsertDelta(&DeltaRecord{Bank: "mercury", AccountID: "acc-1", LastKnownBalance: 200}))

	records, err := s.ListDeltas()
	require.NoError(t, err)
	assert.Len(t, records, 2)

	record, err := s.GetDelta("mercury", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 200.0, record.LastKnownBalance)
}

func TestPendingTransferLifecycle(t *testing.T) {
	s := newTestStorage(t)

	transfer := &PendingTransfer{
		Bank:          "mercury",
		AccountID:     "acc-1",
		Amount:        600,
		Currency:      "USD",
		TransactionID: "tx-1",
		Reference:     "consolidation abc",
	}
	require.NoError(t, s.AddPendingTransfer(transfer))
	assert.NotZero(t, transfer.ID)

	transfers, err := s.ListPendingTransfers()
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "tx-1", transfers[0].TransactionID)
	assert.Equal(t, "consolidation abc", transfers[0].Reference)

	require.NoError(t, s.DeletePendingTransfer(transfer.ID))

	transfers, err = s.ListPendingTransfers()
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestExpirePendingTransfers(t *testing.T) {
	s := newTestStorage(t)

	stale := &PendingTransfer{
		Bank: "mercury", AccountID: "acc-1", Amount: 100, Currency: "USD",
		CreatedAt: time.Now().UTC().Add(-6 * 24 * time.Hour),
	}
	fresh := &PendingTransfer{
		Bank: "mercury", AccountID: "acc-2", Amount: 200, Currency: "USD",
	}
	require.NoError(t, s.AddPendingTransfer(stale))
	require.NoError(t, s.AddPendingTransfer(fresh))

	removed, err := s.ExpirePendingTransfers(time.Now().UTC().Add(-5 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	transfers, err := s.ListPendingTransfers()
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "acc-2", transfers[0].AccountID)
}

func TestProcessedTransactions(t *testing.T) {
	s := newTestStorage(t)

	assert.False(t, s.IsTransactionProcessed("revolut", "t1"))

	require.NoError(t, s.MarkTransactionProcessed("revolut", "t1"))
	assert.True(t, s.IsTransactionProcessed("revolut", "t1"))

	// Same id at another bank is a different transaction
	assert.False(t, s.IsTransactionProcessed("mercury", "t1"))

	// Marking twice is a no-op
	require.NoError(t, s.MarkTransactionProcessed("revolut", "t1"))
}

func TestEngineRuns(t *testing.T) {
	s := newTestStorage(t)

	id, err := s.StartRun("reconcile", false)
	require.NoError(t, err)
	require.NotZero(t, id)

	run, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "running", run.Status)
	assert.Empty(t, run.CompletedAt)

	require.NoError(t, s.CompleteRun(id, 3, 2, 1, 1500.50, "completed-with-errors"))

	run, err = s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Detected)
	assert.Equal(t, 2, run.Reconciled)
	assert.Equal(t, 1, run.ErrorCount)
	assert.Equal(t, 1500.50, run.TotalMoved)
	assert.Equal(t, "completed-with-errors", run.Status)
	assert.NotEmpty(t, run.CompletedAt)

	_, err = s.StartRun("consolidate", true)
	require.NoError(t, err)

	runs, err := s.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Newest first
	assert.Equal(t, "consolidate", runs[0].Kind)
	assert.True(t, runs[0].DryRun)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertDelta(&DeltaRecord{Bank: "revolut", AccountID: "acc-1", LastKnownBalance: 100}))
	require.NoError(t, s.Close())

	// Reopening must not rerun applied migrations or lose data
	s, err = NewStorage(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	record, err := s.GetDelta("revolut", "acc-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 100.0, record.LastKnownBalance)
}
