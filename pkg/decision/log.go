// Package decision implements spec §9's decision-record observability
// substrate: every candidate pair the scorer touches, accepted or
// rejected, is emitted as one structured log event rather than routed
// through an error channel. Grounded on internal/logging's zerolog
// wiring; correlation ids use google/uuid the same way the arbitrage
// monitor tags each tracked opportunity.
package decision

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/match"
)

// Recorder emits one structured record per scored candidate pair.
type Recorder struct {
	log zerolog.Logger
}

// NewRecorder wraps a component logger as a decision recorder.
func NewRecorder(log zerolog.Logger) *Recorder {
	return &Recorder{log: log}
}

// RecordScore logs a single C7 scoring decision: the pair's identity,
// tier outcome, aggregate scores, per-feature breakdown and any veto
// rules that fired. This is a record of what happened, not an error —
// a Tier3 rejection is an ordinary, expected outcome and logs at Debug,
// while Tier1/Tier2 decisions log at Info.
func (r *Recorder) RecordScore(a, b *contract.Contract, result match.Result, tier contract.Tier) {
	id := uuid.NewString()
	pairID := contract.PairID(a.Key(), b.Key())

	event := r.log.Info()
	if tier == contract.Tier3 {
		event = r.log.Debug()
	}

	event.
		Str("decision_id", id).
		Str("pair_id", pairID).
		Str("contract_a", a.Key()).
		Str("contract_b", b.Key()).
		Int("tier", int(tier)).
		Float64("similarity_score", result.SimilarityScore).
		Float64("p_match", result.PMatch).
		Bool("hard_constraints_violated", result.HardConstraintsViolated).
		Strs("violations", result.Violations).
		Float64("f_text", result.Features.Text.Score).
		Float64("f_entity", result.Features.Entity.Final).
		Float64("f_time", result.Features.Time.Final).
		Float64("f_outcome", result.Features.Outcome.Score).
		Float64("f_resolution", result.Features.Resolution.Score).
		Msg("candidate pair scored")
}

// RecordBondTransition logs a bond's lifecycle transition (created,
// paused, retired).
func (r *Recorder) RecordBondTransition(bond contract.Bond, from, to contract.BondStatus, reason string) {
	r.log.Info().
		Str("pair_id", bond.PairID).
		Str("from_status", string(from)).
		Str("to_status", string(to)).
		Str("reason", reason).
		Int("tier", int(bond.Tier)).
		Msg("bond status transition")
}

// RecordArbitrageOpportunity logs a detected arbitrage opportunity.
func (r *Recorder) RecordArbitrageOpportunity(correlationID, kind, direction string, edgeBps, profitUSD float64) {
	r.log.Info().
		Str("correlation_id", correlationID).
		Str("kind", kind).
		Str("direction", direction).
		Float64("edge_bps", edgeBps).
		Float64("profit_usd", profitUSD).
		Msg("arbitrage opportunity detected")
}
