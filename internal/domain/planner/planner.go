// Package planner drives the two-phase fund consolidation: intra-bank sweeps
// of sub-account balances into each bank's main account, followed by
// cross-bank top-ups of main accounts that fall under the minimum balance.
//
// A run with outstanding pending transfers is skipped entirely (unless
// forced): an unsettled sweep means balances are in flight and any plan
// computed over them would double-move money.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/torxlabs/treasury-engine/internal/adapters/banks"
	"github.com/torxlabs/treasury-engine/internal/domain/policy"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/storage"
)

// DepositFunc is invoked for each sub-account before its balance is swept,
// giving the caller a chance to reconcile fresh deposits while they are
// still attributable to the sub-account.
type DepositFunc func(ctx context.Context, account banks.Account) error

// Options control a consolidation run
type Options struct {
	// DryRun computes the full plan without calling Transfer
	DryRun bool

	// Force runs even when pending transfers are outstanding
	Force bool
}

// Planner computes and executes consolidation plans
type Planner struct {
	registry *banks.Registry
	repo     storage.PendingTransferRepository
	policy   policy.Policy

	// counterparties maps source bank -> destination bank -> the recipient
	// account id registered at the source bank
	counterparties map[string]map[string]string

	onDeposit DepositFunc
	logger    *slog.Logger
}

// New creates a consolidation planner. onDeposit may be nil.
func New(
	registry *banks.Registry,
	repo storage.PendingTransferRepository,
	p policy.Policy,
	counterparties map[string]map[string]string,
	onDeposit DepositFunc,
	logger *slog.Logger,
) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		registry:       registry,
		repo:           repo,
		policy:         p,
		counterparties: counterparties,
		onDeposit:      onDeposit,
		logger:         logger.With(slog.String("system", "planner")),
	}
}

// Run executes one consolidation cycle: guard check, intra-bank sweeps,
// then cross-bank top-ups. Per-bank failures are collected on the plan.
func (p *Planner) Run(ctx context.Context, opts Options) (*Plan, error) {
	plan := &Plan{Status: StatusCompleted}
	if opts.DryRun {
		plan.Status = StatusDryRun
	}

	proceed, err := p.guardCheck(opts.Force)
	if err != nil {
		return nil, err
	}
	if !proceed {
		plan.Status = StatusSkipped
		return plan, nil
	}

	mains := p.sweepAll(ctx, opts, plan)
	p.topupAll(ctx, opts, plan, mains)

	if len(plan.Errors) > 0 && plan.Status == StatusCompleted {
		plan.Status = StatusPartial
	}

	p.logger.Info("consolidation run finished",
		slog.String("status", plan.Status),
		slog.Int("sweeps", len(plan.Sweeps)),
		slog.Int("topups", len(plan.Topups)),
		slog.Float64("total_moved", plan.TotalMoved),
		slog.Int("errors", len(plan.Errors)),
	)

	return plan, nil
}

// guardCheck expires stale pending transfers, then reports whether the run
// may proceed. Outstanding transfers block the run unless forced.
func (p *Planner) guardCheck(force bool) (bool, error) {
	cutoff := time.Now().Add(-p.policy.PendingTransferTTL)
	expired, err := p.repo.ExpirePendingTransfers(cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to expire pending transfers: %w", err)
	}
	if expired > 0 {
		p.logger.Warn("expired stale pending transfers",
			slog.Int("count", expired),
			slog.Duration("ttl", p.policy.PendingTransferTTL),
		)
	}

	pending, err := p.repo.ListPendingTransfers()
	if err != nil {
		return false, fmt.Errorf("failed to list pending transfers: %w", err)
	}
	if len(pending) == 0 {
		return true, nil
	}

	if force {
		p.logger.Warn("pending transfers outstanding, proceeding anyway",
			slog.Int("count", len(pending)),
		)
		return true, nil
	}

	p.logger.Info("skipping run: pending transfers outstanding",
		slog.Int("count", len(pending)),
	)
	return false, nil
}

// mainBalance tracks a bank's main account and its post-sweep balance
type mainBalance struct {
	connector banks.Connector
	account   banks.Account
	balance   float64
}

// sweepAll runs the intra-bank sweep for every registered bank and returns
// the main accounts with their expected post-sweep balances, keyed by bank.
func (p *Planner) sweepAll(ctx context.Context, opts Options, plan *Plan) map[string]*mainBalance {
	mains := make(map[string]*mainBalance)

	for _, connector := range p.registry.GetAll() {
		bank := connector.Name()

		accounts, err := connector.ListAccounts(ctx)
		if err != nil {
			plan.addError(bank, "sweep", ErrKindTransient, err)
			continue
		}

		main := findMain(accounts)
		if main == nil {
			plan.addError(bank, "sweep", ErrKindPolicy,
				fmt.Errorf("no main account found among %d accounts", len(accounts)))
			continue
		}
		mains[bank] = &mainBalance{connector: connector, account: *main, balance: main.Balance}

		for _, acct := range accounts {
			if acct.Main || acct.ID == main.ID {
				continue
			}
			if acct.Currency != connector.Currency() || acct.Balance <= 0 {
				continue
			}
			p.sweepAccount(ctx, opts, plan, connector, acct, *main, mains[bank])
		}
	}

	return mains
}

// sweepAccount reconciles then sweeps one sub-account into the main account
func (p *Planner) sweepAccount(
	ctx context.Context,
	opts Options,
	plan *Plan,
	connector banks.Connector,
	acct banks.Account,
	main banks.Account,
	mb *mainBalance,
) {
	bank := connector.Name()

	// Reconcile the deposit while it is still attributable to this
	// sub-account; once swept, the origin is lost.
	if p.onDeposit != nil && !opts.DryRun {
		if err := p.onDeposit(ctx, acct); err != nil {
			p.logger.Error("deposit hook failed, sweeping anyway",
				slog.String("bank", bank),
				slog.String("account_id", acct.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	sweep := Sweep{
		Bank:      bank,
		FromID:    acct.ID,
		FromName:  acct.Name,
		ToID:      main.ID,
		Amount:    acct.Balance,
		Currency:  acct.Currency,
		Reference: newReference(),
	}

	if opts.DryRun {
		sweep.Status = banks.TransferCompleted
		plan.Sweeps = append(plan.Sweeps, sweep)
		plan.TotalMoved += sweep.Amount
		mb.balance += sweep.Amount
		p.logger.Info("dry-run: would sweep",
			slog.String("bank", bank),
			slog.String("from", acct.Name),
			slog.Float64("amount", acct.Balance),
		)
		return
	}

	result, err := connector.Transfer(ctx, banks.TransferRequest{
		FromID:    acct.ID,
		ToID:      main.ID,
		Amount:    acct.Balance,
		Currency:  acct.Currency,
		Reference: sweep.Reference,
	})
	if err != nil {
		plan.addError(bank, "sweep", ErrKindTransient, err)
		return
	}

	sweep.Status = result.Status
	sweep.TransactionID = result.TransactionID

	switch result.Status {
	case banks.TransferCompleted:
		plan.TotalMoved += sweep.Amount
		mb.balance += sweep.Amount
	case banks.TransferPending:
		plan.TotalMoved += sweep.Amount
		p.recordPending(plan, bank, sweep)
	case banks.TransferManual:
		// Nothing moved; an operator has to make this transfer by hand
		plan.addError(bank, "sweep", ErrKindManual,
			fmt.Errorf("sweep of %.2f from %s needs a manual transfer", acct.Balance, acct.Name))
		p.logger.Warn("sweep requires manual transfer",
			slog.String("bank", bank),
			slog.String("from", acct.Name),
			slog.Float64("amount", acct.Balance),
		)
	default:
		plan.addError(bank, "sweep", ErrKindTransient,
			fmt.Errorf("transfer from %s reported %s", acct.ID, result.Status))
	}

	plan.Sweeps = append(plan.Sweeps, sweep)
}

// recordPending persists an accepted-but-unsettled transfer so future runs
// are gated until it clears
func (p *Planner) recordPending(plan *Plan, bank string, sweep Sweep) {
	err := p.repo.AddPendingTransfer(&storage.PendingTransfer{
		Bank:          bank,
		AccountID:     sweep.FromID,
		Amount:        sweep.Amount,
		Currency:      sweep.Currency,
		TransactionID: sweep.TransactionID,
		Reference:     sweep.Reference,
	})
	if err != nil {
		plan.addError(bank, "sweep", ErrKindTransient,
			fmt.Errorf("failed to record pending transfer: %w", err))
	}
}

// topupAll replenishes underfunded main accounts from banks holding a
// surplus, walking donors in the configured priority order
func (p *Planner) topupAll(ctx context.Context, opts Options, plan *Plan, mains map[string]*mainBalance) {
	threshold := p.policy.MinBalanceUSD
	amount := p.policy.TopupAmountUSD

	for _, bank := range p.registry.List() {
		target, ok := mains[bank]
		if !ok || target.balance >= threshold {
			continue
		}

		donor := p.findDonor(mains, bank, threshold, amount)
		if donor == nil {
			plan.addError(bank, "topup", ErrKindPolicy,
				fmt.Errorf("main balance %.2f under %.2f and no bank can fund a %.2f top-up",
					target.balance, threshold, amount))
			continue
		}

		p.executeTopup(ctx, opts, plan, donor, target, bank, amount)
	}
}

// findDonor picks the first bank in priority order whose main account can
// give the top-up amount and still stay above the threshold itself
func (p *Planner) findDonor(mains map[string]*mainBalance, needy string, threshold, amount float64) *mainBalance {
	for _, bank := range p.policy.SourcePriority {
		if bank == needy {
			continue
		}
		donor, ok := mains[bank]
		if !ok {
			continue
		}
		if donor.balance >= threshold+amount {
			return donor
		}
	}
	return nil
}

// executeTopup performs one cross-bank transfer from donor to the needy bank
func (p *Planner) executeTopup(
	ctx context.Context,
	opts Options,
	plan *Plan,
	donor *mainBalance,
	target *mainBalance,
	targetBank string,
	amount float64,
) {
	donorBank := donor.connector.Name()

	counterparty := p.counterparties[donorBank][targetBank]
	if counterparty == "" {
		plan.addError(targetBank, "topup", ErrKindPolicy,
			fmt.Errorf("no counterparty configured at %s for %s", donorBank, targetBank))
		return
	}

	topup := Topup{
		FromBank:  donorBank,
		ToBank:    targetBank,
		Amount:    amount,
		Reference: newReference(),
	}

	if opts.DryRun {
		topup.Status = banks.TransferCompleted
		plan.Topups = append(plan.Topups, topup)
		plan.TotalMoved += amount
		donor.balance -= amount
		target.balance += amount
		p.logger.Info("dry-run: would top up",
			slog.String("from_bank", donorBank),
			slog.String("to_bank", targetBank),
			slog.Float64("amount", amount),
		)
		return
	}

	result, err := donor.connector.Transfer(ctx, banks.TransferRequest{
		FromID:    donor.account.ID,
		ToID:      counterparty,
		Amount:    amount,
		Currency:  donor.connector.Currency(),
		Reference: topup.Reference,
	})
	if err != nil {
		plan.addError(targetBank, "topup", ErrKindTransient, err)
		return
	}

	topup.Status = result.Status
	topup.TransactionID = result.TransactionID

	switch result.Status {
	case banks.TransferCompleted, banks.TransferPending:
		plan.TotalMoved += amount
		donor.balance -= amount
		target.balance += amount
		if result.Status == banks.TransferPending {
			p.recordPending(plan, donorBank, Sweep{
				FromID:        donor.account.ID,
				Amount:        amount,
				Currency:      donor.connector.Currency(),
				TransactionID: result.TransactionID,
				Reference:     topup.Reference,
			})
		}
	case banks.TransferManual:
		plan.addError(targetBank, "topup", ErrKindManual,
			fmt.Errorf("top-up of %.2f from %s needs a manual transfer", amount, donorBank))
		p.logger.Warn("top-up requires manual transfer",
			slog.String("from_bank", donorBank),
			slog.String("to_bank", targetBank),
			slog.Float64("amount", amount),
		)
	default:
		plan.addError(targetBank, "topup", ErrKindTransient,
			fmt.Errorf("transfer from %s reported %s", donorBank, result.Status))
	}

	plan.Topups = append(plan.Topups, topup)
}

// findMain returns the first account flagged as main, or nil
func findMain(accounts []banks.Account) *banks.Account {
	for i := range accounts {
		if accounts[i].Main {
			return &accounts[i]
		}
	}
	return nil
}

// newReference builds a transfer reference unique per attempt so bank-side
// idempotency never collides across runs
func newReference() string {
	return "consolidation " + uuid.NewString()
}
