// Package reconcile orchestrates a full reconciliation run: detect new
// deposits on every bank sub-account via balance deltas, match them against
// pending payout records, and mark the matched records received.
//
// Failures are isolated per bank and per account; one bank being down never
// blocks reconciliation at the others.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/torxlabs/treasury-engine/internal/adapters/banks"
	"github.com/torxlabs/treasury-engine/internal/adapters/notify"
	"github.com/torxlabs/treasury-engine/internal/adapters/records"
	"github.com/torxlabs/treasury-engine/internal/domain/delta"
	"github.com/torxlabs/treasury-engine/internal/domain/matcher"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/storage"
)

// Error kinds
const (
	ErrKindTransient = "transient"
	ErrKindPolicy    = "policy"
)

// RunError is a failure collected during a run without aborting it
type RunError struct {
	Bank    string `json:"bank"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Options control a reconciliation run
type Options struct {
	// DryRun detects and matches but writes nothing: no record updates,
	// no balance commits, no processed-transaction marks
	DryRun bool
}

// Result summarizes one reconciliation run
type Result struct {
	RunID      int64      `json:"run_id"`
	DryRun     bool       `json:"dry_run"`
	Detected   int        `json:"detected"`
	Reconciled int        `json:"reconciled"`
	Errors     []RunError `json:"errors"`
}

func (r *Result) addError(bank, stage, kind string, err error) {
	r.Errors = append(r.Errors, RunError{
		Bank:    bank,
		Stage:   stage,
		Kind:    kind,
		Message: err.Error(),
	})
}

// Orchestrator coordinates connectors, the delta tracker, the matcher and
// the payout record store for reconciliation runs
type Orchestrator struct {
	registry  *banks.Registry
	store     records.Store
	repo      storage.Repository
	tracker   *delta.Tracker
	matcher   *matcher.Matcher
	sink      notify.Sink
	feedLimit int
	logger    *slog.Logger
}

// New creates a reconciliation orchestrator. sink may be nil.
func New(
	registry *banks.Registry,
	store records.Store,
	repo storage.Repository,
	tracker *delta.Tracker,
	m *matcher.Matcher,
	sink notify.Sink,
	feedLimit int,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if feedLimit <= 0 {
		feedLimit = 50
	}
	return &Orchestrator{
		registry:  registry,
		store:     store,
		repo:      repo,
		tracker:   tracker,
		matcher:   m,
		sink:      sink,
		feedLimit: feedLimit,
		logger:    logger.With(slog.String("system", "reconcile")),
	}
}

// Run executes one reconciliation cycle across all registered banks
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{DryRun: opts.DryRun}

	runID, err := o.repo.StartRun("reconcile", opts.DryRun)
	if err != nil {
		// Run bookkeeping must never block reconciliation
		o.logger.Error("failed to record run start", slog.String("error", err.Error()))
	}
	result.RunID = runID

	candidates, err := o.store.ListPendingPayoutRecords(ctx)
	if err != nil {
		// Without the candidate list nothing can be matched. Balances are
		// deliberately not committed so today's deposits are still
		// detectable once the record store is back.
		o.completeRun(result, "failed")
		return result, fmt.Errorf("failed to list pending payout records: %w", err)
	}

	o.logger.Info("reconciliation run started",
		slog.Int64("run_id", runID),
		slog.Bool("dry_run", opts.DryRun),
		slog.Int("pending_records", len(candidates)),
	)

	for _, connector := range o.registry.GetAll() {
		o.reconcileBank(ctx, opts, connector, candidates, result)
	}

	status := "completed"
	if len(result.Errors) > 0 {
		status = "completed-with-errors"
	}
	o.completeRun(result, status)

	o.logger.Info("reconciliation run finished",
		slog.Int64("run_id", runID),
		slog.Int("detected", result.Detected),
		slog.Int("reconciled", result.Reconciled),
		slog.Int("errors", len(result.Errors)),
	)

	return result, nil
}

// reconcileBank runs the delta pass over every account of one bank, then the
// secondary recent-transactions pass
func (o *Orchestrator) reconcileBank(
	ctx context.Context,
	opts Options,
	connector banks.Connector,
	candidates []records.PayoutRecord,
	result *Result,
) {
	bank := connector.Name()

	accounts, err := connector.ListAccounts(ctx)
	if err != nil {
		result.addError(bank, "accounts", ErrKindTransient, err)
		return
	}

	for _, acct := range accounts {
		// Main balances grow from sweeps and top-ups, not payouts; matching
		// them would re-reconcile money that was already claimed on a
		// sub-account before it moved.
		if acct.Main || acct.Currency != connector.Currency() {
			continue
		}
		o.reconcileAccount(ctx, opts, acct, candidates, result)
	}

	o.transactionPass(ctx, opts, connector, accounts, candidates, result)
}

// reconcileAccount handles one account: compute the deposit delta, match it,
// and commit the observed balance regardless of the match outcome
func (o *Orchestrator) reconcileAccount(
	ctx context.Context,
	opts Options,
	acct banks.Account,
	candidates []records.PayoutRecord,
	result *Result,
) {
	deposit := o.tracker.Observe(acct.Bank, acct.ID, acct.Balance)
	if deposit > 0 {
		result.Detected++

		userID, err := o.store.GetUserForAccount(ctx, acct.Name)
		if err != nil {
			result.addError(acct.Bank, "attribution", ErrKindTransient, err)
			userID = ""
		}

		match := o.matcher.Reconcile(deposit, candidates, userID)
		if match.Matched {
			if err := o.applyMatch(ctx, opts, acct, deposit, match, candidates); err != nil {
				result.addError(acct.Bank, "mark-received", ErrKindTransient, err)
			} else {
				result.Reconciled++
			}
		} else {
			o.logger.Warn("unmatched deposit",
				slog.String("bank", acct.Bank),
				slog.String("account", acct.Name),
				slog.Float64("amount", deposit),
				slog.Float64("best_score", match.BestScore),
			)
		}
	}

	// The observed balance is committed even when nothing matched; the
	// unmatched deposit was logged and must not re-trigger next run.
	if !opts.DryRun {
		o.tracker.Commit(acct.Bank, acct.ID, acct.Balance)
	}
}

// applyMatch marks every matched record received with its share of the
// deposit, then emits notification events
func (o *Orchestrator) applyMatch(
	ctx context.Context,
	opts Options,
	acct banks.Account,
	deposit float64,
	match *matcher.Result,
	candidates []records.PayoutRecord,
) error {
	o.logger.Info("deposit matched",
		slog.String("bank", acct.Bank),
		slog.String("account", acct.Name),
		slog.Float64("amount", deposit),
		slog.Int("records", len(match.RecordIDs)),
		slog.Float64("score", match.Score),
	)

	if opts.DryRun {
		markMatched(candidates, match.RecordIDs)
		return nil
	}

	var events []notify.Event
	for _, split := range match.Splits {
		if err := o.store.MarkReceived(ctx, split.RecordID, match.Note); err != nil {
			return fmt.Errorf("failed to mark record %d received: %w", split.RecordID, err)
		}
		rec := findRecord(candidates, split.RecordID)
		ev := notify.Event{
			Bank:           acct.Bank,
			AccountID:      acct.ID,
			RecordID:       split.RecordID,
			ReceivedAmount: split.Amount,
			Note:           match.Note,
		}
		if rec != nil {
			ev.UserID = rec.UserID
			ev.BaseAmount = rec.BaseAmount
		}
		events = append(events, ev)
	}

	markMatched(candidates, match.RecordIDs)

	if o.sink != nil && len(events) > 0 {
		if err := o.sink.Notify(ctx, events); err != nil {
			// Notifications are best-effort
			o.logger.Error("failed to publish payout events", slog.String("error", err.Error()))
		}
	}

	return nil
}

// transactionPass reconciles recent incoming transactions that the delta
// pass cannot see, e.g. a deposit already swept off the sub-account. The
// processed-id set keeps this pass idempotent across runs.
func (o *Orchestrator) transactionPass(
	ctx context.Context,
	opts Options,
	connector banks.Connector,
	accounts []banks.Account,
	candidates []records.PayoutRecord,
	result *Result,
) {
	bank := connector.Name()

	transactions, err := connector.ListRecentTransactions(ctx, banks.FetchOptions{Limit: o.feedLimit})
	if err != nil {
		result.addError(bank, "transactions", ErrKindTransient, err)
		return
	}

	mainIDs := make(map[string]bool)
	for _, acct := range accounts {
		if acct.Main {
			mainIDs[acct.ID] = true
		}
	}

	for _, tx := range transactions {
		// Main-account credits are sweeps and top-ups, never payouts
		if tx.Amount <= 0 || mainIDs[tx.AccountID] {
			continue
		}
		if tx.Currency != connector.Currency() {
			continue
		}
		if o.repo.IsTransactionProcessed(bank, tx.ID) {
			continue
		}

		match := o.matcher.Reconcile(tx.Amount, candidates, "")
		if !match.Matched {
			continue
		}

		acct := banks.Account{Bank: bank, ID: tx.AccountID, Name: tx.Description}
		if err := o.applyMatch(ctx, opts, acct, tx.Amount, match, candidates); err != nil {
			result.addError(bank, "mark-received", ErrKindTransient, err)
			continue
		}
		result.Detected++
		result.Reconciled++

		if !opts.DryRun {
			if err := o.repo.MarkTransactionProcessed(bank, tx.ID); err != nil {
				result.addError(bank, "transactions", ErrKindTransient, err)
			}
		}
	}
}

// ReconcileAccount reconciles a single live account immediately. Used as the
// pre-sweep hook during consolidation so a deposit is matched while still
// attributable to its sub-account.
func (o *Orchestrator) ReconcileAccount(ctx context.Context, acct banks.Account) error {
	deposit := o.tracker.Observe(acct.Bank, acct.ID, acct.Balance)
	if deposit <= 0 {
		return nil
	}

	candidates, err := o.store.ListPendingPayoutRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending payout records: %w", err)
	}

	userID, err := o.store.GetUserForAccount(ctx, acct.Name)
	if err != nil {
		userID = ""
	}

	match := o.matcher.Reconcile(deposit, candidates, userID)
	if match.Matched {
		if err := o.applyMatch(ctx, Options{}, acct, deposit, match, candidates); err != nil {
			return err
		}
	} else {
		o.logger.Warn("unmatched deposit before sweep",
			slog.String("bank", acct.Bank),
			slog.String("account", acct.Name),
			slog.Float64("amount", deposit),
		)
	}

	// The sub-account is about to be emptied by the sweep; dropping the
	// tracked balance keeps the next observation consistent.
	o.tracker.Commit(acct.Bank, acct.ID, acct.Balance)
	return nil
}

func (o *Orchestrator) completeRun(result *Result, status string) {
	if result.RunID == 0 {
		return
	}
	err := o.repo.CompleteRun(result.RunID, result.Detected, result.Reconciled, len(result.Errors), 0, status)
	if err != nil {
		o.logger.Error("failed to record run completion", slog.String("error", err.Error()))
	}
}

// markMatched flags matched records so the same run cannot match them twice
func markMatched(candidates []records.PayoutRecord, ids []int64) {
	for _, id := range ids {
		for i := range candidates {
			if candidates[i].ID == id {
				candidates[i].Received = true
			}
		}
	}
}

// findRecord returns the candidate with the given id, or nil
func findRecord(candidates []records.PayoutRecord, id int64) *records.PayoutRecord {
	for i := range candidates {
		if candidates[i].ID == id {
			return &candidates[i]
		}
	}
	return nil
}
