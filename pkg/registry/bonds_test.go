package registry

import (
	"context"
	"testing"
	"time"

	"github.com/bondarb/core/internal/logging"
	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/decision"
	"github.com/bondarb/core/pkg/match"
	"github.com/bondarb/core/pkg/metrics"
	"github.com/bondarb/core/pkg/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	db, err := store.Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db)
	rec := decision.NewRecorder(logging.New("error"))
	return New(st, rec, metrics.Default()), st
}

func yesNoContract(platform contract.Platform, id string) *contract.Contract {
	return &contract.Contract{
		Platform: platform,
		ID:       id,
		Outcome: contract.OutcomeSchema{
			Kind: contract.OutcomeYesNo,
			Outcomes: []contract.Outcome{
				{Label: "Yes"},
				{Label: "No"},
			},
		},
		Status: contract.StatusActive,
	}
}

func baseResult(similarity, pMatch float64) match.Result {
	return match.Result{
		SimilarityScore: similarity,
		PMatch:          pMatch,
	}
}

// TestApplyWithTier_UpsertMonotonicity covers spec §4.9's upsert rule and
// §8's "a bond's tier never increases in number over its lifetime while
// it is active" property: a tier-1 bond rescored at tier-2 must stay at
// tier 1.
func TestApplyWithTier_UpsertMonotonicity(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()

	a := yesNoContract(contract.PlatformExA, "a1")
	b := yesNoContract(contract.PlatformExB, "b1")

	if err := reg.ApplyWithTier(ctx, a, b, baseResult(0.9, 0.97), contract.Tier1); err != nil {
		t.Fatalf("apply tier1: %v", err)
	}

	pairID := contract.PairID(a.Key(), b.Key())
	bond, err := st.GetBond(ctx, pairID)
	if err != nil {
		t.Fatalf("get bond: %v", err)
	}
	if bond.Tier != contract.Tier1 {
		t.Fatalf("expected tier1 after first apply, got %d", bond.Tier)
	}

	if err := reg.ApplyWithTier(ctx, a, b, baseResult(0.75, 0.92), contract.Tier2); err != nil {
		t.Fatalf("apply tier2: %v", err)
	}

	bond, err = st.GetBond(ctx, pairID)
	if err != nil {
		t.Fatalf("get bond after rescore: %v", err)
	}
	if bond.Tier != contract.Tier1 {
		t.Fatalf("bond tier regressed: expected tier1 to survive a tier2 rescore, got %d", bond.Tier)
	}
}

// TestApplyWithTier_Tier3RetiresExistingBond covers spec §4.9: a
// previously-bonded pair that rescoring drops to tier 3 is retired, not
// deleted and not left active.
func TestApplyWithTier_Tier3RetiresExistingBond(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()

	a := yesNoContract(contract.PlatformExA, "a2")
	b := yesNoContract(contract.PlatformExB, "b2")

	if err := reg.ApplyWithTier(ctx, a, b, baseResult(0.9, 0.97), contract.Tier1); err != nil {
		t.Fatalf("apply tier1: %v", err)
	}

	if err := reg.ApplyWithTier(ctx, a, b, baseResult(0.1, 0.05), contract.Tier3); err != nil {
		t.Fatalf("apply tier3: %v", err)
	}

	pairID := contract.PairID(a.Key(), b.Key())
	bond, err := st.GetBond(ctx, pairID)
	if err != nil {
		t.Fatalf("get bond: %v", err)
	}
	if bond.Status != contract.BondRetired {
		t.Fatalf("expected retired status after tier3 rescore, got %s", bond.Status)
	}
}

// TestApplyWithTier_IdenticalRescoreIsNoop covers spec §8's idempotence
// law: "bond upsert with identical features produces no state change".
func TestApplyWithTier_IdenticalRescoreIsNoop(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()

	a := yesNoContract(contract.PlatformExA, "a3")
	b := yesNoContract(contract.PlatformExB, "b3")
	result := baseResult(0.9, 0.97)

	if err := reg.ApplyWithTier(ctx, a, b, result, contract.Tier1); err != nil {
		t.Fatalf("apply tier1: %v", err)
	}
	pairID := contract.PairID(a.Key(), b.Key())
	first, err := st.GetBond(ctx, pairID)
	if err != nil {
		t.Fatalf("get bond: %v", err)
	}
	firstValidated := first.LastValidated

	time.Sleep(2 * time.Millisecond)
	if err := reg.ApplyWithTier(ctx, a, b, result, contract.Tier1); err != nil {
		t.Fatalf("apply tier1 again: %v", err)
	}
	second, err := st.GetBond(ctx, pairID)
	if err != nil {
		t.Fatalf("get bond second time: %v", err)
	}
	if !second.LastValidated.Equal(firstValidated) {
		t.Fatalf("expected no state change on identical rescore at the same tier, last_validated moved from %v to %v", firstValidated, second.LastValidated)
	}
}

// TestApplyWithTier_NeverPersistsTier3 covers the invariant "Tier 3 is
// never persisted" for a pair with no prior bond.
func TestApplyWithTier_NeverPersistsTier3(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()

	a := yesNoContract(contract.PlatformExA, "a4")
	b := yesNoContract(contract.PlatformExB, "b4")

	if err := reg.ApplyWithTier(ctx, a, b, baseResult(0.1, 0.05), contract.Tier3); err != nil {
		t.Fatalf("apply tier3: %v", err)
	}

	pairID := contract.PairID(a.Key(), b.Key())
	if _, err := st.GetBond(ctx, pairID); err != contract.ErrNotFound {
		t.Fatalf("expected no bond persisted for a fresh tier3 result, got err=%v", err)
	}
}
