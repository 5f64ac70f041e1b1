package matcher

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/torxlabs/treasury-engine/internal/adapters/records"
	"github.com/torxlabs/treasury-engine/internal/domain/allocator"
)

// comboCandidate is one combination under consideration
type comboCandidate struct {
	records     []records.PayoutRecord
	sumExpected float64
	diff        float64
}

// combinationMatch searches 2-record and then 3-record combinations sharing
// the same user and platform whose summed expected amounts fall within the
// combination tolerance of the received amount. Returns nil when nothing
// qualifies.
func (m *Matcher) combinationMatch(received float64, eligible []records.PayoutRecord) *Result {
	groups := groupByUserPlatform(eligible)

	for _, size := range []int{2, 3} {
		var best *comboCandidate
		for _, group := range groups {
			if len(group) < size {
				continue
			}
			for _, candidate := range m.combinationsOfSize(received, group, size) {
				if best == nil || betterCombination(candidate, *best) {
					c := candidate
					best = &c
				}
			}
		}
		if best != nil {
			return m.acceptCombination(received, *best)
		}
	}

	return nil
}

// combinationsOfSize enumerates qualifying combinations of the given size
// within one user+platform group
func (m *Matcher) combinationsOfSize(received float64, group []records.PayoutRecord, size int) []comboCandidate {
	var out []comboCandidate

	expected := make([]float64, len(group))
	for i, rec := range group {
		expected[i] = m.policy.ExpectedAmount(rec.Platform, rec.BaseAmount).Expected
	}

	tolerance := m.policy.ComboTolerance * received

	switch size {
	case 2:
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				sum := expected[i] + expected[j]
				if diff := math.Abs(received - sum); diff <= tolerance {
					out = append(out, comboCandidate{
						records:     []records.PayoutRecord{group[i], group[j]},
						sumExpected: sum,
						diff:        diff,
					})
				}
			}
		}
	case 3:
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				for k := j + 1; k < len(group); k++ {
					sum := expected[i] + expected[j] + expected[k]
					if diff := math.Abs(received - sum); diff <= tolerance {
						out = append(out, comboCandidate{
							records:     []records.PayoutRecord{group[i], group[j], group[k]},
							sumExpected: sum,
							diff:        diff,
						})
					}
				}
			}
		}
	}

	return out
}

// betterCombination reports whether a beats b: smaller absolute difference
// wins, exact ties go to the combination containing the older record.
// Record row order is creation order, so the lower minimum id is older.
func betterCombination(a, b comboCandidate) bool {
	if a.diff != b.diff {
		return a.diff < b.diff
	}
	return minRecordID(a.records) < minRecordID(b.records)
}

// groupByUserPlatform buckets records so combinations never mix users or
// platforms. Within each bucket record order is preserved.
func groupByUserPlatform(recs []records.PayoutRecord) map[string][]records.PayoutRecord {
	groups := make(map[string][]records.PayoutRecord)
	for _, rec := range recs {
		key := rec.UserID + "|" + rec.Platform
		groups[key] = append(groups[key], rec)
	}
	return groups
}

func minRecordID(recs []records.PayoutRecord) int64 {
	min := recs[0].ID
	for _, rec := range recs[1:] {
		if rec.ID < min {
			min = rec.ID
		}
	}
	return min
}

// acceptCombination builds the result for a winning combination, splitting
// the received amount across records proportionally to their base amounts
func (m *Matcher) acceptCombination(received float64, combo comboCandidate) *Result {
	entries := make([]allocator.Entry, len(combo.records))
	ids := make([]int64, len(combo.records))
	var sumBase float64
	for i, rec := range combo.records {
		entries[i] = allocator.Entry{RecordID: rec.ID, Base: rec.BaseAmount}
		ids[i] = rec.ID
		sumBase += rec.BaseAmount
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	allocation, err := allocator.Allocate(entries, received)
	if err != nil {
		// Unreachable in practice: combination records have positive bases
		m.logger.Error("allocation failed for combination", slog.String("error", err.Error()))
		return nil
	}

	splits := make([]Split, len(allocation.Shares))
	for i, share := range allocation.Shares {
		splits[i] = Split{RecordID: share.RecordID, Amount: share.Allocated}
	}

	score := 1 - combo.diff/combo.sumExpected

	m.logger.Debug("combination match accepted",
		slog.Int("records", len(combo.records)),
		slog.Float64("received", received),
		slog.Float64("sum_expected", combo.sumExpected),
		slog.Float64("score", score),
	)

	return &Result{
		Matched:    true,
		RecordIDs:  ids,
		Splits:     splits,
		Score:      score,
		Adjustment: roundToCents(received - sumBase),
		Note: fmt.Sprintf("combined wire: %d payouts, received %.2f against base %.2f",
			len(combo.records), received, sumBase),
		BestScore: score,
	}
}
