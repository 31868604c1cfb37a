// Package arbitrage implements C12: the arbitrage monitor that scans
// active bonds for cross-exchange mispricing and individual contracts
// for intra-exchange Yes/No mispricing, publishing a priority hint back
// to C11 so a live opportunity's legs get refreshed first.
package arbitrage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bondarb/core/pkg/contract"
)

// Kind discriminates where an opportunity's two legs live.
type Kind string

const (
	KindCrossExchange Kind = "cross_exchange"
	KindIntraExchange Kind = "intra_exchange"
)

// Direction labels a cross-exchange opportunity's trade, per SPEC_FULL.md's
// Open-Question-3 resolution: {BuyASellB, BuyBSellA}.
const (
	DirectionBuyASellB = "BuyASellB"
	DirectionBuyBSellA = "BuyBSellA"
)

// Opportunity is a transient, continuously re-evaluated arbitrage
// signal. It is never persisted to the sqlite store (spec §4.11: "the
// arbitrage monitor's output is a live view, not a ledger") — only
// held in the monitor's in-memory map between cycles.
type Opportunity struct {
	ID string

	Kind      Kind
	Direction string

	ContractAKey string
	ContractBKey string // empty for KindIntraExchange

	// EdgeBps is a dimensionless rate (basis points of the $1 payout),
	// kept as float64 since it feeds a Prometheus histogram directly.
	// ProfitUSD and RecommendedSize are actual dollar amounts and use
	// decimal.Decimal to avoid float rounding on money, matching the
	// teacher's pkg/trader/policy convention.
	EdgeBps         float64
	ProfitUSD       decimal.Decimal
	RecommendedSize decimal.Decimal

	FirstSeen time.Time
	LastSeen  time.Time
}

func outcomeByLabel(o contract.OutcomeSchema, label string) (contract.Outcome, bool) {
	for _, leg := range o.Outcomes {
		if equalFoldASCII(leg.Label, label) {
			return leg, true
		}
	}
	return contract.Outcome{}, false
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// askCost returns the cost to buy one share of the named outcome,
// falling back to mid when no ask is quoted.
func askCost(o contract.OutcomeSchema, label string) (float64, bool) {
	leg, ok := outcomeByLabel(o, label)
	if !ok {
		return 0, false
	}
	if leg.HasAsk {
		return leg.Ask, true
	}
	if leg.HasMid {
		return leg.Mid, true
	}
	return 0, false
}

// bidCost returns the proceeds from selling one share of the named
// outcome, falling back to mid when no bid is quoted.
func bidCost(o contract.OutcomeSchema, label string) (float64, bool) {
	leg, ok := outcomeByLabel(o, label)
	if !ok {
		return 0, false
	}
	if leg.HasBid {
		return leg.Bid, true
	}
	if leg.HasMid {
		return leg.Mid, true
	}
	return 0, false
}
