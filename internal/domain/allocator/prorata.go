// Package allocator provides pro-rata splitting of a received wire across
// the payout records it settles.
//
// When one deposit covers several payout records, the received amount is
// distributed proportionally to each record's base amount. Fees and rounding
// are absorbed in one simple ratio:
//
//	multiplier = received / sum(record_base_amounts)
//	record_share = record_base * multiplier
package allocator

import (
	"errors"
	"math"
)

// Entry represents one payout record to allocate a share to.
type Entry struct {
	RecordID int64
	Base     float64
}

// Share is the allocated portion of the received amount for one record.
type Share struct {
	RecordID  int64
	Base      float64
	Allocated float64
}

// Result contains the allocation results.
type Result struct {
	Multiplier     float64
	Shares         []Share
	TotalAllocated float64
}

// Allocate distributes received across entries proportionally to their base
// amounts. Returns an error if entries is empty or received is negative.
func Allocate(entries []Entry, received float64) (*Result, error) {
	if len(entries) == 0 {
		return nil, errors.New("no records to allocate")
	}
	if received < 0 {
		return nil, errors.New("received amount cannot be negative")
	}

	// Step 1: Sum base amounts
	var totalBase float64
	for _, entry := range entries {
		if entry.Base < 0 {
			return nil, errors.New("record base amount cannot be negative")
		}
		totalBase += entry.Base
	}

	if totalBase == 0 {
		return nil, errors.New("total base amount is zero")
	}

	// Step 2: Calculate multiplier
	multiplier := received / totalBase

	// Step 3: Allocate to each record
	shares := make([]Share, len(entries))
	var totalAllocated float64

	for i, entry := range entries {
		allocated := roundToCents(entry.Base * multiplier)
		shares[i] = Share{
			RecordID:  entry.RecordID,
			Base:      entry.Base,
			Allocated: allocated,
		}
		totalAllocated += allocated
	}

	// Step 4: Fix rounding - adjust largest share if total is off
	diff := roundToCents(received - totalAllocated)
	if diff != 0 && math.Abs(diff) < 0.10 {
		maxIdx := 0
		for i, s := range shares {
			if s.Allocated > shares[maxIdx].Allocated {
				maxIdx = i
			}
		}
		shares[maxIdx].Allocated = roundToCents(shares[maxIdx].Allocated + diff)
		totalAllocated = roundToCents(totalAllocated + diff)
	}

	return &Result{
		Multiplier:     multiplier,
		Shares:         shares,
		TotalAllocated: totalAllocated,
	}, nil
}

// roundToCents rounds a float to 2 decimal places.
func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
