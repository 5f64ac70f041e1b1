package planner

import "github.com/torxlabs/treasury-engine/internal/adapters/banks"

// Plan status values
const (
	StatusCompleted = "completed"
	StatusPartial   = "completed-with-errors"
	StatusSkipped   = "skipped"
	StatusDryRun    = "dry-run"
)

// Error kinds, used to distinguish failures that clear on retry from ones
// needing an operator.
const (
	ErrKindTransient = "transient"
	ErrKindPolicy    = "policy"
	ErrKindManual    = "manual-action"
)

// Error is a per-bank failure collected during a run. Failures never abort
// the run; other banks continue.
type Error struct {
	Bank    string `json:"bank"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Sweep is one intra-bank move from a sub-account to the bank's main account
type Sweep struct {
	Bank          string               `json:"bank"`
	FromID        string               `json:"from_id"`
	FromName      string               `json:"from_name"`
	ToID          string               `json:"to_id"`
	Amount        float64              `json:"amount"`
	Currency      string               `json:"currency"`
	Reference     string               `json:"reference"`
	Status        banks.TransferStatus `json:"status"`
	TransactionID string               `json:"transaction_id,omitempty"`
}

// Topup is one cross-bank move replenishing an underfunded main account
type Topup struct {
	FromBank      string               `json:"from_bank"`
	ToBank        string               `json:"to_bank"`
	Amount        float64              `json:"amount"`
	Reference     string               `json:"reference"`
	Status        banks.TransferStatus `json:"status"`
	TransactionID string               `json:"transaction_id,omitempty"`
}

// Plan is the outcome of one consolidation run
type Plan struct {
	Status     string  `json:"status"`
	Sweeps     []Sweep `json:"sweeps"`
	Topups     []Topup `json:"topups"`
	TotalMoved float64 `json:"total_moved"`
	Errors     []Error `json:"errors"`
}

func (p *Plan) addError(bank, stage, kind string, err error) {
	p.Errors = append(p.Errors, Error{
		Bank:    bank,
		Stage:   stage,
		Kind:    kind,
		Message: err.Error(),
	})
}
