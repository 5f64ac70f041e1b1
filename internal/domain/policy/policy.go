// Package policy holds the injected business policy for matching and
// consolidation: per-platform fee bands, acceptance thresholds and
// balance-management amounts.
//
// All values are operational constants observed in production. They are kept
// on an explicit, injected object so the matcher and planner stay pure
// functions of (state, policy, inputs).
package policy

import (
	"strings"
	"time"

	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
)

// PlatformFee describes how one payout platform discounts base amounts
type PlatformFee struct {
	Share         float64 // expected = base * Share
	BandLowOffset float64 // band minimum = expected - BandLowOffset
	BandToBase    bool    // band maximum = base (true) or expected (false)
}

// Band is the expected-amount model for one (platform, base) pair
type Band struct {
	Expected float64
	Min      float64
	Max      float64
}

// Contains reports whether amount falls inside the band (inclusive)
func (b Band) Contains(amount float64) bool {
	return amount >= b.Min && amount <= b.Max
}

// Policy is the full matching and consolidation policy
type Policy struct {
	Fees       map[string]PlatformFee
	DefaultFee PlatformFee

	// Matching thresholds
	ScoreThreshold       float64 // single-match acceptance, e.g. 0.80
	ComboTolerance       float64 // combination sum tolerance, e.g. 0.05
	AdjustmentNoteCutoff float64 // note when |received-base| exceeds this

	// Consolidation thresholds
	MinBalanceUSD  float64
	TopupAmountUSD float64
	SourcePriority []string

	PendingTransferTTL   time.Duration
	TransactionFeedLimit int
}

// Default returns the production policy defaults
func Default() Policy {
	return FromConfig(config.PolicyConfig{})
}

// FromConfig builds a Policy from configuration, applying defaults for
// anything unset
func FromConfig(cfg config.PolicyConfig) Policy {
	p := Policy{
		Fees:                 make(map[string]PlatformFee, len(cfg.Platforms)),
		DefaultFee:           PlatformFee{Share: 0.90, BandLowOffset: 20, BandToBase: true},
		ScoreThreshold:       cfg.ScoreThreshold,
		ComboTolerance:       cfg.ComboTolerance,
		AdjustmentNoteCutoff: cfg.AdjustmentNoteCutoff,
		MinBalanceUSD:        cfg.MinBalanceUSD,
		TopupAmountUSD:       cfg.TopupAmountUSD,
		SourcePriority:       cfg.SourcePriority,
		PendingTransferTTL:   time.Duration(cfg.PendingTransferDays) * 24 * time.Hour,
		TransactionFeedLimit: cfg.TransactionFeedLimit,
	}

	for name, fee := range cfg.Platforms {
		p.Fees[strings.ToLower(name)] = PlatformFee{
			Share:         fee.Share,
			BandLowOffset: fee.BandLowOffset,
			BandToBase:    fee.BandToBase,
		}
	}

	if p.ScoreThreshold == 0 {
		p.ScoreThreshold = 0.80
	}
	if p.ComboTolerance == 0 {
		p.ComboTolerance = 0.05
	}
	if p.AdjustmentNoteCutoff == 0 {
		p.AdjustmentNoteCutoff = 10
	}
	if p.MinBalanceUSD == 0 {
		p.MinBalanceUSD = 1000
	}
	if p.TopupAmountUSD == 0 {
		p.TopupAmountUSD = 3000
	}
	if p.PendingTransferTTL == 0 {
		p.PendingTransferTTL = 5 * 24 * time.Hour
	}
	if p.TransactionFeedLimit == 0 {
		p.TransactionFeedLimit = 50
	}
	if len(p.SourcePriority) == 0 {
		p.SourcePriority = []string{"revolut", "mercury"}
	}
	if len(p.Fees) == 0 {
		p.Fees = map[string]PlatformFee{
			"apex":     {Share: 0.90, BandLowOffset: 20, BandToBase: true},
			"topstep":  {Share: 0.90, BandLowOffset: 20, BandToBase: true},
			"bulenox":  {Share: 0.80, BandLowOffset: 20, BandToBase: false},
			"fundingx": {Share: 0.80, BandLowOffset: 20, BandToBase: false},
		}
	}

	return p
}

// FeeFor returns the fee model for a platform, falling back to the default
// model for platforms missing from the table
func (p Policy) FeeFor(platform string) PlatformFee {
	if fee, ok := p.Fees[strings.ToLower(platform)]; ok {
		return fee
	}
	return p.DefaultFee
}

// ExpectedAmount computes the expected payout and acceptance band for a
// platform and base amount. The band minimum never exceeds the expected
// amount and never drops below zero.
func (p Policy) ExpectedAmount(platform string, base float64) Band {
	fee := p.FeeFor(platform)

	expected := base * fee.Share

	min := expected - fee.BandLowOffset
	if min < 0 {
		min = 0
	}

	max := expected
	if fee.BandToBase {
		max = base
	}
	if max < expected {
		max = expected
	}

	return Band{Expected: expected, Min: min, Max: max}
}
