package discovery

import (
	"context"
	"testing"

	"github.com/bondarb/core/internal/logging"
	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/exchange"
	"github.com/bondarb/core/pkg/metrics"
	"github.com/bondarb/core/pkg/normalize"
	"github.com/bondarb/core/pkg/store"
)

// pagedClient is a minimal exchange.Client stub whose ListActiveContracts
// serves fixed pages keyed by the incoming cursor, so tests can assert
// pagination is followed to completion.
type pagedClient struct {
	pages map[exchange.Cursor]pagedResult
	calls []exchange.Cursor
}

type pagedResult struct {
	batch []exchange.RawContract
	next  exchange.Cursor
}

func (p *pagedClient) ListActiveContracts(ctx context.Context, cursor exchange.Cursor) ([]exchange.RawContract, exchange.Cursor, error) {
	p.calls = append(p.calls, cursor)
	res := p.pages[cursor]
	return res.batch, res.next, nil
}

func (p *pagedClient) GetContractsByIDs(ctx context.Context, ids []string) ([]exchange.RawContract, error) {
	return nil, nil
}

func (p *pagedClient) GetContract(ctx context.Context, id string) (*exchange.RawContract, error) {
	return nil, contract.ErrNotFound
}

func (p *pagedClient) GetOrderBook(ctx context.Context, tokenID string) (*exchange.OrderBook, error) {
	return &exchange.OrderBook{TokenID: tokenID}, nil
}

func rawAt(id string, mid float64) exchange.RawContract {
	return exchange.RawContract{
		ID:     id,
		Title:  "will it happen " + id,
		Active: true,
		Outcomes: []exchange.RawOutcome{
			{Label: "Yes", HasMid: true, Mid: mid},
			{Label: "No", HasMid: true, Mid: 1 - mid},
		},
	}
}

func newTestDiscoverer(t *testing.T, client exchange.Client) (*Discoverer, *store.Store) {
	t.Helper()
	db, err := store.Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db)
	pipeline := normalize.NewPipeline(16)
	d := New(contract.PlatformExA, client, st, pipeline, 0, metrics.Default(), logging.New("error"))
	return d, st
}

// TestDiscoverer_RunCycle_FollowsPagination covers spec §4.1/§2's data
// flow: a multi-page listing is fully paged and every record upserted.
func TestDiscoverer_RunCycle_FollowsPagination(t *testing.T) {
	client := &pagedClient{pages: map[exchange.Cursor]pagedResult{
		"": {batch: []exchange.RawContract{rawAt("a1", 0.4), rawAt("a2", 0.5)}, next: "page2"},
		"page2": {batch: []exchange.RawContract{rawAt("a3", 0.6)}, next: ""},
	}}
	d, st := newTestDiscoverer(t, client)

	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if len(client.calls) != 2 {
		t.Fatalf("expected 2 pages fetched, got %d (%v)", len(client.calls), client.calls)
	}

	for _, id := range []string{"a1", "a2", "a3"} {
		if _, err := st.GetContract(context.Background(), contract.PlatformExA, id); err != nil {
			t.Errorf("expected contract %s to be stored, got err %v", id, err)
		}
	}
}

// TestDiscoverer_RunCycle_SkipsBadRecordButContinues covers spec §7's
// partial-progress semantics: a single NormalizationError doesn't abort
// the rest of the page.
func TestDiscoverer_RunCycle_SkipsBadRecordButContinues(t *testing.T) {
	bad := rawAt("bad", 0.5)
	bad.Title = ""

	client := &pagedClient{pages: map[exchange.Cursor]pagedResult{
		"": {batch: []exchange.RawContract{bad, rawAt("good", 0.5)}, next: ""},
	}}
	d, st := newTestDiscoverer(t, client)

	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	if _, err := st.GetContract(context.Background(), contract.PlatformExA, "good"); err != nil {
		t.Errorf("expected good record stored despite a bad sibling, got err %v", err)
	}
	if _, err := st.GetContract(context.Background(), contract.PlatformExA, "bad"); err == nil {
		t.Errorf("expected bad record to be skipped, not stored")
	}
}

// TestDiscoverer_RunCycle_EmptyFirstPageIsNoop covers the boundary where
// an exchange currently has nothing active.
func TestDiscoverer_RunCycle_EmptyFirstPageIsNoop(t *testing.T) {
	client := &pagedClient{pages: map[exchange.Cursor]pagedResult{
		"": {batch: nil, next: ""},
	}}
	d, _ := newTestDiscoverer(t, client)

	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if len(client.calls) != 1 {
		t.Errorf("expected exactly one page fetch attempt, got %d", len(client.calls))
	}
}
