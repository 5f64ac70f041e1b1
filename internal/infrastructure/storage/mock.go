package storage

import "time"

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	deltas    map[string]*DeltaRecord // keyed by bank + "/" + accountID
	pending   []PendingTransfer
	processed map[string]bool // keyed by bank + "/" + transactionID
	runs      map[int64]*EngineRun
	nextRunID int64
	nextPTID  int64

	// Hooks for test assertions
	UpsertDeltaCalled bool
	LastUpsertedDelta *DeltaRecord
	DeleteDeltaCalled bool
	AddPendingCalled  bool
	LastAddedPending  *PendingTransfer
	StartRunCalled    bool

	// Error injection for testing error paths
	GetDeltaErr      error
	UpsertDeltaErr   error
	DeleteDeltaErr   error
	AddPendingErr    error
	ListPendingErr   error
	MarkProcessedErr error
	StartRunErr      error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		deltas:    make(map[string]*DeltaRecord),
		processed: make(map[string]bool),
		runs:      make(map[int64]*EngineRun),
		nextRunID: 1,
		nextPTID:  1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

func deltaKey(bank, accountID string) string {
	return bank + "/" + accountID
}

// GetDelta returns the tracked record, or nil if untracked
func (m *MockRepository) GetDelta(bank, accountID string) (*DeltaRecord, error) {
	if m.GetDeltaErr != nil {
		return nil, m.GetDeltaErr
	}
	record, ok := m.deltas[deltaKey(bank, accountID)]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

// UpsertDelta creates or updates the tracked balance
func (m *MockRepository) UpsertDelta(record *DeltaRecord) error {
	m.UpsertDeltaCalled = true
	m.LastUpsertedDelta = record
	if m.UpsertDeltaErr != nil {
		return m.UpsertDeltaErr
	}
	copied := *record
	if copied.UpdatedAt.IsZero() {
		copied.UpdatedAt = time.Now().UTC()
	}
	m.deltas[deltaKey(record.Bank, record.AccountID)] = &copied
	return nil
}

// DeleteDelta removes the tracked record
func (m *MockRepository) DeleteDelta(bank, accountID string) error {
	m.DeleteDeltaCalled = true
	if m.DeleteDeltaErr != nil {
		return m.DeleteDeltaErr
	}
	delete(m.deltas, deltaKey(bank, accountID))
	return nil
}

// ListDeltas returns all tracked records
func (m *MockRepository) ListDeltas() ([]DeltaRecord, error) {
	records := make([]DeltaRecord, 0, len(m.deltas))
	for _, r := range m.deltas {
		records = append(records, *r)
	}
	return records, nil
}

// AddPendingTransfer records a transfer in memory
func (m *MockRepository) AddPendingTransfer(transfer *PendingTransfer) error {
	m.AddPendingCalled = true
	m.LastAddedPending = transfer
	if m.AddPendingErr != nil {
		return m.AddPendingErr
	}
	transfer.ID = m.nextPTID
	m.nextPTID++
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now().UTC()
	}
	m.pending = append(m.pending, *transfer)
	return nil
}

// ListPendingTransfers returns all outstanding transfers
func (m *MockRepository) ListPendingTransfers() ([]PendingTransfer, error) {
	if m.ListPendingErr != nil {
		return nil, m.ListPendingErr
	}
	out := make([]PendingTransfer, len(m.pending))
	copy(out, m.pending)
	return out, nil
}

// DeletePendingTransfer removes a transfer by id
func (m *MockRepository) DeletePendingTransfer(id int64) error {
	kept := m.pending[:0]
	for _, t := range m.pending {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	m.pending = kept
	return nil
}

// ExpirePendingTransfers removes transfers created before the cutoff
func (m *MockRepository) ExpirePendingTransfers(olderThan time.Time) (int, error) {
	var removed int
	kept := m.pending[:0]
	for _, t := range m.pending {
		if t.CreatedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	m.pending = kept
	return removed, nil
}

// IsTransactionProcessed checks the in-memory processed set
func (m *MockRepository) IsTransactionProcessed(bank, transactionID string) bool {
	return m.processed[deltaKey(bank, transactionID)]
}

// MarkTransactionProcessed records a handled transaction id
func (m *MockRepository) MarkTransactionProcessed(bank, transactionID string) error {
	if m.MarkProcessedErr != nil {
		return m.MarkProcessedErr
	}
	m.processed[deltaKey(bank, transactionID)] = true
	return nil
}

// StartRun records the start of a run
func (m *MockRepository) StartRun(kind string, dryRun bool) (int64, error) {
	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return 0, m.StartRunErr
	}
	id := m.nextRunID
	m.nextRunID++
	m.runs[id] = &EngineRun{
		ID:        id,
		Kind:      kind,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Status:    "running",
	}
	return id, nil
}

// CompleteRun records the completion of a run
func (m *MockRepository) CompleteRun(runID int64, detected, reconciled, errors int, totalMoved float64, status string) error {
	run, ok := m.runs[runID]
	if !ok {
		return nil
	}
	run.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	run.Detected = detected
	run.Reconciled = reconciled
	run.ErrorCount = errors
	run.TotalMoved = totalMoved
	run.Status = status
	return nil
}

// ListRuns returns recorded runs, newest first
func (m *MockRepository) ListRuns(limit int) ([]EngineRun, error) {
	runs := make([]EngineRun, 0, len(m.runs))
	for id := m.nextRunID - 1; id > 0; id-- {
		if run, ok := m.runs[id]; ok {
			runs = append(runs, *run)
		}
		if limit > 0 && len(runs) >= limit {
			break
		}
	}
	return runs, nil
}

// GetRun retrieves a run by ID
func (m *MockRepository) GetRun(runID int64) (*EngineRun, error) {
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}
