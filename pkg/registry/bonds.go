// Package registry implements C9 (the bond registry's upsert semantics)
// and C10 (the bond-builder worker that drives C6/C7/C8 over the
// contract pool and feeds C9). bonds.go holds the pure decision
// logic; builder.go holds the concurrent driver.
package registry

import (
	"context"
	"time"

	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/decision"
	"github.com/bondarb/core/pkg/match"
	"github.com/bondarb/core/pkg/metrics"
	"github.com/bondarb/core/pkg/store"
)

// Registry applies C9's upsert rule to a single scored candidate pair:
// a Tier1/Tier2 result creates an active bond, or replaces the existing
// one when that bond is not active or the new tier is strictly better
// (a same-or-worse rescore of an active bond writes nothing); a Tier3
// result retires any existing bond for that pair
// but is never itself persisted, per spec §4.8's "Tier3 is discarded,
// not stored".
type Registry struct {
	store    *store.Store
	recorder *decision.Recorder
	metrics  *metrics.BondMetrics
}

// New builds a bond registry over the given store.
func New(st *store.Store, rec *decision.Recorder, m *metrics.BondMetrics) *Registry {
	return &Registry{store: st, recorder: rec, metrics: m}
}

// ApplyWithTier processes one already-tiered scored pair, upserting or
// retiring the bond as appropriate. Tier must have been computed by
// match.AssignTier against the live configuration; it is passed in
// rather than recomputed here so C10 only evaluates tier thresholds
// once per candidate.
func (r *Registry) ApplyWithTier(ctx context.Context, a, b *contract.Contract, result match.Result, tier contract.Tier) error {
	r.recorder.RecordScore(a, b, result, tier)
	r.metrics.RecordScore(tierLabel(tier), result.Violations, 0)

	pairID := contract.PairID(a.Key(), b.Key())

	if tier == contract.Tier3 {
		existing, err := r.store.GetBond(ctx, pairID)
		if err != nil {
			if err == contract.ErrNotFound {
				return nil
			}
			return err
		}
		if existing.Status == contract.BondRetired {
			return nil
		}
		retired := *existing
		retired.Status = contract.BondRetired
		if err := r.store.UpsertBond(ctx, &retired); err != nil {
			return err
		}
		r.recorder.RecordBondTransition(retired, existing.Status, contract.BondRetired, "tier_downgrade_to_tier3")
		r.metrics.RecordBondRetired("tier_downgrade")
		return nil
	}

	now := time.Now().UTC()
	existing, err := r.store.GetBond(ctx, pairID)
	createdAt := now
	fromStatus := contract.BondActive
	isNew := true
	if err == nil {
		// Spec §4.9 upsert semantics: only replace an existing bond when
		// the new tier is strictly better (lower tier number). A
		// same-or-worse rescore leaves the persisted bond untouched so an
		// active tier-1 pair is never downgraded in place to tier 2.
		if existing.Status == contract.BondActive && tier >= existing.Tier {
			return nil
		}
		createdAt = existing.CreatedAt
		fromStatus = existing.Status
		isNew = false
	} else if err != contract.ErrNotFound {
		return err
	}

	bond := &contract.Bond{
		PairID:          pairID,
		ContractAKey:    a.Key(),
		ContractBKey:    b.Key(),
		Tier:            tier,
		PMatch:          result.PMatch,
		SimilarityScore: result.SimilarityScore,
		OutcomeMapping:  outcomeMapping(a, b),
		Features:        match.ToFeatureBreakdown(result.Features),
		Status:          contract.BondActive,
		CreatedAt:       createdAt,
		LastValidated:   now,
	}

	if err := r.store.UpsertBond(ctx, bond); err != nil {
		return err
	}

	if isNew {
		r.recorder.RecordBondTransition(*bond, "", contract.BondActive, "created")
		r.metrics.RecordBondCreated(tierLabel(tier))
	} else if fromStatus != contract.BondActive {
		r.recorder.RecordBondTransition(*bond, fromStatus, contract.BondActive, "reactivated")
	}

	return nil
}

// outcomeMapping pairs each of a's outcome labels with the
// corresponding label on b by position; both sides are expected to
// carry outcomes in the same declared order once C7's outcome-schema
// compatibility check has passed.
func outcomeMapping(a, b *contract.Contract) map[string]string {
	mapping := make(map[string]string, len(a.Outcome.Outcomes))
	for i, oa := range a.Outcome.Outcomes {
		if i >= len(b.Outcome.Outcomes) {
			break
		}
		mapping[oa.Label] = b.Outcome.Outcomes[i].Label
	}
	return mapping
}

func tierLabel(t contract.Tier) string {
	switch t {
	case contract.Tier1:
		return "1"
	case contract.Tier2:
		return "2"
	default:
		return "3"
	}
}
