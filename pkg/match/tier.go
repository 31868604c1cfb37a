package match

import (
	"github.com/bondarb/core/internal/config"
	"github.com/bondarb/core/pkg/contract"
)

// AssignTier implements C8 per spec §4.8: a candidate reaches Tier1 or
// Tier2 only when BOTH its aggregate similarity and p_match clear the
// tier's thresholds AND every one of the five features clears that
// tier's per-feature floor (all five, including entity — spec.md's text
// is explicit here even though the floor-omission in the reference
// tier-assignment source this was distilled from would let an
// entity-less match through; see the Open Question record in
// DESIGN.md). Anything not reaching Tier2 is Tier3 and is never
// persisted as a bond.
func AssignTier(r Result, cfg *config.Config) contract.Tier {
	if r.HardConstraintsViolated {
		return contract.Tier3
	}

	if r.SimilarityScore >= cfg.Tier1MinSimilarity &&
		r.PMatch >= cfg.Tier1PMatchThreshold &&
		clearsFloors(r.Features, cfg.Tier1Floors) {
		return contract.Tier1
	}

	if r.SimilarityScore >= cfg.Tier2MinSimilarity &&
		r.PMatch >= cfg.Tier2PMatchThreshold &&
		clearsFloors(r.Features, cfg.Tier2Floors) {
		return contract.Tier2
	}

	return contract.Tier3
}

func clearsFloors(f Features, floors config.FeatureFloors) bool {
	return f.Text.Score >= floors.Text &&
		f.Entity.Final >= floors.Entity &&
		f.Time.Final >= floors.Time &&
		f.Outcome.Score >= floors.Outcome &&
		f.Resolution.Score >= floors.Resolution
}

// ToFeatureBreakdown projects the scorer's internal feature set into the
// persisted breakdown shape (spec §4.9).
func ToFeatureBreakdown(f Features) contract.FeatureBreakdown {
	return contract.FeatureBreakdown{
		Text:       f.Text.Score,
		Entity:     f.Entity.Final,
		Time:       f.Time.Final,
		Outcome:    f.Outcome.Score,
		Resolution: f.Resolution.Score,
		DeltaDays:  f.Time.DeltaDays,
	}
}
