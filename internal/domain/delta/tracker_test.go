package delta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/torxlabs/treasury-engine/internal/infrastructure/storage"
)

func TestObserveUntrackedAccount(t *testing.T) {
	repo := storage.NewMockRepository()
	tracker := NewTracker(repo, nil)

	// No prior row: the entire balance is a new deposit
	assert.Equal(t, 500.0, tracker.Observe("revolut", "acc-1", 500))
}

func TestObserveCommitSequence(t *testing.T) {
	repo := storage.NewMockRepository()
	tracker := NewTracker(repo, nil)

	// balance 0 -> nothing new
	assert.Equal(t, 0.0, tracker.Observe("revolut", "acc-1", 0))
	tracker.Commit("revolut", "acc-1", 0)

	// deposit arrives
	assert.Equal(t, 500.0, tracker.Observe("revolut", "acc-1", 500))
	tracker.Commit("revolut", "acc-1", 500)

	// same balance observed again -> no new deposit
	assert.Equal(t, 0.0, tracker.Observe("revolut", "acc-1", 500))
	tracker.Commit("revolut", "acc-1", 500)

	// sweep empties the account; the row is deleted
	tracker.Commit("revolut", "acc-1", 0)
	assert.True(t, repo.DeleteDeltaCalled)

	// the next deposit counts as fully new again
	assert.Equal(t, 300.0, tracker.Observe("revolut", "acc-1", 300))
}

func TestObserveClampsNegativeDelta(t *testing.T) {
	repo := storage.NewMockRepository()
	tracker := NewTracker(repo, nil)

	tracker.Commit("revolut", "acc-1", 1000)

	// Balance dropped (outgoing payment); never reported as a deposit
	assert.Equal(t, 0.0, tracker.Observe("revolut", "acc-1", 400))
}

func TestObserveReadFailureReportsZero(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.GetDeltaErr = errors.New("db locked")
	tracker := NewTracker(repo, nil)

	// A read failure must not risk double reconciliation
	assert.Equal(t, 0.0, tracker.Observe("revolut", "acc-1", 500))
}

func TestCommitFailureSwallowed(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.UpsertDeltaErr = errors.New("disk full")
	tracker := NewTracker(repo, nil)

	// Must not panic or propagate
	tracker.Commit("revolut", "acc-1", 500)
	assert.True(t, repo.UpsertDeltaCalled)
}

func TestCommitPersistsBalance(t *testing.T) {
	repo := storage.NewMockRepository()
	tracker := NewTracker(repo, nil)

	tracker.Commit("mercury", "acc-9", 1234.56)

	record, err := repo.GetDelta("mercury", "acc-9")
	assert.NoError(t, err)
	assert.NotNil(t, record)
	assert.Equal(t, 1234.56, record.LastKnownBalance)
}
