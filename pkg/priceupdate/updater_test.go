package priceupdate

import (
	"context"
	"testing"
	"time"

	"github.com/bondarb/core/internal/config"
	"github.com/bondarb/core/internal/logging"
	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/exchange"
	"github.com/bondarb/core/pkg/metrics"
	"github.com/bondarb/core/pkg/normalize"
	"github.com/bondarb/core/pkg/store"
)

// fakeClient is a minimal exchange.Client stub that serves a fixed set
// of raw contracts by id, recording the order GetContractsByIDs was
// called with so tests can assert on priority ordering.
type fakeClient struct {
	contracts  map[string]exchange.RawContract
	orderBooks map[string]*exchange.OrderBook
	lastIDs    []string
}

func (f *fakeClient) ListActiveContracts(ctx context.Context, cursor exchange.Cursor) ([]exchange.RawContract, exchange.Cursor, error) {
	return nil, "", nil
}

func (f *fakeClient) GetContractsByIDs(ctx context.Context, ids []string) ([]exchange.RawContract, error) {
	f.lastIDs = append([]string(nil), ids...)
	var out []exchange.RawContract
	for _, id := range ids {
		if rc, ok := f.contracts[id]; ok {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (f *fakeClient) GetContract(ctx context.Context, id string) (*exchange.RawContract, error) {
	f.lastIDs = append(f.lastIDs, id)
	if rc, ok := f.contracts[id]; ok {
		cp := rc
		return &cp, nil
	}
	return nil, contract.ErrNotFound
}

func (f *fakeClient) GetOrderBook(ctx context.Context, tokenID string) (*exchange.OrderBook, error) {
	if book, ok := f.orderBooks[tokenID]; ok {
		return book, nil
	}
	return &exchange.OrderBook{TokenID: tokenID}, nil
}

func newTestUpdater(t *testing.T, exA, exB *fakeClient) (*Updater, *store.Store, *PriorityQueue) {
	t.Helper()
	db, err := store.Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db)
	pq := NewPriorityQueue()
	cfg := config.Default()
	u := NewUpdater(st, exA, exB, normalize.NewPipeline(16), pq, cfg, metrics.Default(), logging.New("error"))
	return u, st, pq
}

func sampleRaw(platform, id string, mid float64) exchange.RawContract {
	return exchange.RawContract{
		Platform:       platform,
		ID:             id,
		Title:          "will it happen",
		Active:         true,
		ResolutionTime: time.Now().UTC().Add(24 * time.Hour),
		Outcomes: []exchange.RawOutcome{
			{Label: "Yes", HasMid: true, Mid: mid},
			{Label: "No", HasMid: true, Mid: 1 - mid},
		},
	}
}

func seedBondedContract(t *testing.T, st *store.Store, pipeline *normalize.Pipeline, raw exchange.RawContract) *contract.Contract {
	t.Helper()
	c, err := pipeline.Normalize(raw, nil)
	if err != nil {
		t.Fatalf("normalize seed contract: %v", err)
	}
	if err := st.UpsertContract(context.Background(), c); err != nil {
		t.Fatalf("upsert seed contract: %v", err)
	}
	return c
}

func seedBond(t *testing.T, st *store.Store, a, b *contract.Contract) {
	t.Helper()
	bond := &contract.Bond{
		PairID:       contract.PairID(a.Key(), b.Key()),
		ContractAKey: a.Key(),
		ContractBKey: b.Key(),
		Tier:         contract.Tier1,
		Status:       contract.BondActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.UpsertBond(context.Background(), bond); err != nil {
		t.Fatalf("seed bond: %v", err)
	}
}

// TestUpdater_RunCycle_RefreshesBondedContracts covers spec §4.10 steps
// 1-3: the bonded set is resolved from active bonds and refreshed
// in-place.
func TestUpdater_RunCycle_RefreshesBondedContracts(t *testing.T) {
	exA := &fakeClient{contracts: map[string]exchange.RawContract{
		"a1": sampleRaw("EX-A", "a1", 0.62),
	}}
	exB := &fakeClient{contracts: map[string]exchange.RawContract{
		"b1": sampleRaw("EX-B", "b1", 0.58),
	}}

	u, st, _ := newTestUpdater(t, exA, exB)
	pipeline := normalize.NewPipeline(16)

	a := seedBondedContract(t, st, pipeline, sampleRaw("EX-A", "a1", 0.50))
	b := seedBondedContract(t, st, pipeline, sampleRaw("EX-B", "b1", 0.50))
	seedBond(t, st, a, b)

	if err := u.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	refreshedA, err := st.GetContract(context.Background(), contract.PlatformExA, "a1")
	if err != nil {
		t.Fatalf("get refreshed EX-A contract: %v", err)
	}
	if refreshedA.Outcome.Outcomes[0].Mid != 0.62 {
		t.Errorf("expected EX-A mid refreshed to 0.62, got %f", refreshedA.Outcome.Outcomes[0].Mid)
	}

	refreshedB, err := st.GetContract(context.Background(), contract.PlatformExB, "b1")
	if err != nil {
		t.Fatalf("get refreshed EX-B contract: %v", err)
	}
	if refreshedB.Outcome.Outcomes[0].Mid != 0.58 {
		t.Errorf("expected EX-B mid refreshed to 0.58, got %f", refreshedB.Outcome.Outcomes[0].Mid)
	}
}

// TestUpdater_PriorityOrdering covers spec §4.10 step 2: ids flagged by
// C12's priority list are refreshed first within their exchange.
func TestUpdater_PriorityOrdering(t *testing.T) {
	exA := &fakeClient{contracts: map[string]exchange.RawContract{
		"a1": sampleRaw("EX-A", "a1", 0.1),
		"a2": sampleRaw("EX-A", "a2", 0.2),
	}}
	exB := &fakeClient{contracts: map[string]exchange.RawContract{}}

	u, st, pq := newTestUpdater(t, exA, exB)
	pipeline := normalize.NewPipeline(16)

	a1 := seedBondedContract(t, st, pipeline, sampleRaw("EX-A", "a1", 0.5))
	a2 := seedBondedContract(t, st, pipeline, sampleRaw("EX-A", "a2", 0.5))
	b1 := seedBondedContract(t, st, pipeline, sampleRaw("EX-B", "b1", 0.5))
	seedBond(t, st, a1, b1)
	seedBond(t, st, a2, b1)

	pq.Publish([]string{"EX-A:a2"})

	if err := u.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if len(exA.lastIDs) != 2 {
		t.Fatalf("expected both EX-A ids fetched, got %v", exA.lastIDs)
	}
	if exA.lastIDs[0] != "a2" {
		t.Errorf("expected priority id a2 fetched first, got order %v", exA.lastIDs)
	}
}

// TestUpdater_RunCycle_IdempotentWhenPricesUnchanged covers spec §8's
// "price updater is idempotent across cycles when upstream prices are
// unchanged" round-trip law.
func TestUpdater_RunCycle_IdempotentWhenPricesUnchanged(t *testing.T) {
	exA := &fakeClient{contracts: map[string]exchange.RawContract{
		"a1": sampleRaw("EX-A", "a1", 0.62),
	}}
	exB := &fakeClient{contracts: map[string]exchange.RawContract{
		"b1": sampleRaw("EX-B", "b1", 0.58),
	}}

	u, st, _ := newTestUpdater(t, exA, exB)
	pipeline := normalize.NewPipeline(16)

	a := seedBondedContract(t, st, pipeline, sampleRaw("EX-A", "a1", 0.62))
	b := seedBondedContract(t, st, pipeline, sampleRaw("EX-B", "b1", 0.58))
	seedBond(t, st, a, b)

	if err := u.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	first, err := st.GetContract(context.Background(), contract.PlatformExA, "a1")
	if err != nil {
		t.Fatalf("get contract: %v", err)
	}

	if err := u.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	second, err := st.GetContract(context.Background(), contract.PlatformExA, "a1")
	if err != nil {
		t.Fatalf("get contract second time: %v", err)
	}

	if first.Outcome.Outcomes[0].Mid != second.Outcome.Outcomes[0].Mid {
		t.Errorf("price drifted across idempotent cycles: %f -> %f", first.Outcome.Outcomes[0].Mid, second.Outcome.Outcomes[0].Mid)
	}
}

func sampleRawWithTokens(platform, id, yesToken, noToken string, mid float64) exchange.RawContract {
	return exchange.RawContract{
		Platform:       platform,
		ID:             id,
		Title:          "will it happen",
		Active:         true,
		ResolutionTime: time.Now().UTC().Add(24 * time.Hour),
		Outcomes: []exchange.RawOutcome{
			{Label: "Yes", TokenID: yesToken, HasMid: true, Mid: mid},
			{Label: "No", TokenID: noToken, HasMid: true, Mid: 1 - mid},
		},
	}
}

// TestUpdater_RunCycle_PrefersOrderBookOverSimplifiedQuery covers spec
// §4.10 step 4: when a bonded EX-B contract's outcomes carry token ids,
// the updater fetches each leg's order book instead of falling back to
// GetContract.
func TestUpdater_RunCycle_PrefersOrderBookOverSimplifiedQuery(t *testing.T) {
	exA := &fakeClient{contracts: map[string]exchange.RawContract{
		"a1": sampleRaw("EX-A", "a1", 0.50),
	}}
	exB := &fakeClient{
		contracts: map[string]exchange.RawContract{
			"b1": sampleRaw("EX-B", "b1", 0.50),
		},
		orderBooks: map[string]*exchange.OrderBook{
			"yes-tok": {Bids: []exchange.PriceLevel{{Price: 0.57, Size: 100}}, Asks: []exchange.PriceLevel{{Price: 0.59, Size: 100}}},
			"no-tok":  {Bids: []exchange.PriceLevel{{Price: 0.40, Size: 100}}, Asks: []exchange.PriceLevel{{Price: 0.42, Size: 100}}},
		},
	}

	u, st, _ := newTestUpdater(t, exA, exB)
	pipeline := normalize.NewPipeline(16)

	a := seedBondedContract(t, st, pipeline, sampleRaw("EX-A", "a1", 0.50))
	b := seedBondedContract(t, st, pipeline, sampleRawWithTokens("EX-B", "b1", "yes-tok", "no-tok", 0.50))
	seedBond(t, st, a, b)

	if err := u.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if len(exB.lastIDs) != 0 {
		t.Errorf("expected GetContract not called when order book is available, got calls %v", exB.lastIDs)
	}

	refreshed, err := st.GetContract(context.Background(), contract.PlatformExB, "b1")
	if err != nil {
		t.Fatalf("get refreshed contract: %v", err)
	}
	yesLeg := refreshed.Outcome.Outcomes[0]
	if yesLeg.Bid != 0.57 || yesLeg.Ask != 0.59 {
		t.Errorf("expected Yes leg bid/ask 0.57/0.59 from order book, got bid=%f ask=%f", yesLeg.Bid, yesLeg.Ask)
	}
}
