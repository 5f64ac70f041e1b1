// Package matcher provides tolerance-based reconciliation of received
// payouts against pending payout records.
//
// Matching is two-stage:
//   - Single match: the eligible record whose fee band contains the received
//     amount with the highest score wins, if the score clears the threshold.
//   - Combination fallback: payout platforms sometimes batch several payouts
//     into one wire, so 2-record and then 3-record combinations sharing the
//     same user and platform are searched when no single record matches.
//
// Example usage:
//
//	m := matcher.New(policy.Default(), logger)
//	result := m.Reconcile(8995.00, pendingRecords, "user-7")
//	if result.Matched {
//		// Mark result.RecordIDs received
//	}
package matcher

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/torxlabs/treasury-engine/internal/adapters/records"
	"github.com/torxlabs/treasury-engine/internal/domain/policy"
)

// Matcher reconciles received amounts against pending payout records
type Matcher struct {
	policy policy.Policy
	logger *slog.Logger
}

// New creates a new matcher with the given policy
func New(p policy.Policy, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		policy: p,
		logger: logger.With(slog.String("system", "matcher")),
	}
}

// Reconcile attempts to match a received amount against the candidate
// records. When userID is non-empty only that user's records are considered;
// an unattributed deposit is matched across all users.
//
// A call matches either one single record or one combination, never both.
func (m *Matcher) Reconcile(received float64, candidates []records.PayoutRecord, userID string) *Result {
	eligible := m.eligibleRecords(candidates, userID)
	if len(eligible) == 0 {
		return &Result{Matched: false}
	}

	single := m.singleMatch(received, eligible)
	if single.Matched {
		return single
	}

	if combo := m.combinationMatch(received, eligible); combo != nil {
		combo.BestScore = math.Max(combo.BestScore, single.BestScore)
		return combo
	}

	return single
}

// eligibleRecords filters to records that can still receive funds
func (m *Matcher) eligibleRecords(candidates []records.PayoutRecord, userID string) []records.PayoutRecord {
	eligible := make([]records.PayoutRecord, 0, len(candidates))
	for _, rec := range candidates {
		if rec.Received {
			continue
		}
		if rec.BaseAmount <= 0 {
			continue
		}
		if userID != "" && rec.UserID != userID {
			continue
		}
		eligible = append(eligible, rec)
	}
	return eligible
}

// singleMatch selects the eligible record whose band contains the received
// amount with the highest score. Acceptance requires score > threshold.
func (m *Matcher) singleMatch(received float64, eligible []records.PayoutRecord) *Result {
	var best *records.PayoutRecord
	var bestScore float64
	var observedBest float64

	for i := range eligible {
		rec := eligible[i]
		band := m.policy.ExpectedAmount(rec.Platform, rec.BaseAmount)
		if band.Expected <= 0 {
			continue
		}

		score := 1 - math.Abs(received-band.Expected)/band.Expected
		if score > observedBest {
			observedBest = score
		}

		if !band.Contains(received) {
			continue
		}

		if score > bestScore {
			best = &eligible[i]
			bestScore = score
		}
	}

	if best == nil || bestScore <= m.policy.ScoreThreshold {
		return &Result{Matched: false, BestScore: observedBest}
	}

	adjustment := roundToCents(received - best.BaseAmount)

	var note string
	if math.Abs(received-best.BaseAmount) > m.policy.AdjustmentNoteCutoff {
		note = fmt.Sprintf("received %.2f against base %.2f (adjustment %.2f)",
			received, best.BaseAmount, adjustment)
	}

	m.logger.Debug("single match accepted",
		slog.Int64("record_id", best.ID),
		slog.Float64("received", received),
		slog.Float64("base", best.BaseAmount),
		slog.Float64("score", bestScore),
	)

	return &Result{
		Matched:    true,
		RecordIDs:  []int64{best.ID},
		Splits:     []Split{{RecordID: best.ID, Amount: received}},
		Score:      bestScore,
		Adjustment: adjustment,
		Note:       note,
		BestScore:  observedBest,
	}
}

// roundToCents rounds a float to 2 decimal places.
func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
