// Package priceupdate implements C11: the price-update loop that keeps
// bonded contracts' prices fresh, prioritizing whatever C12 flagged as
// part of a live arbitrage opportunity. Grounded on the teacher
// orchestrator's ticker-driven control loop (pkg/trader/orchestrator),
// generalized to read from the exchange.Client contract instead of the
// gamma/clob clients directly.
package priceupdate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bondarb/core/internal/config"
	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/exchange"
	"github.com/bondarb/core/pkg/metrics"
	"github.com/bondarb/core/pkg/normalize"
	"github.com/bondarb/core/pkg/store"
)

// Updater is C11.
type Updater struct {
	store    *store.Store
	exA      exchange.Client
	exB      exchange.Client
	pipeline *normalize.Pipeline
	priority *PriorityQueue
	cfg      *config.Config
	metrics  *metrics.BondMetrics
	log      zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewUpdater builds a price updater.
func NewUpdater(st *store.Store, exA, exB exchange.Client, pipeline *normalize.Pipeline, priority *PriorityQueue, cfg *config.Config, m *metrics.BondMetrics, log zerolog.Logger) *Updater {
	return &Updater{store: st, exA: exA, exB: exB, pipeline: pipeline, priority: priority, cfg: cfg, metrics: m, log: log}
}

// Run executes cycles on cfg.PriceUpdateInterval until ctx is canceled.
func (u *Updater) Run(ctx context.Context) {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return
	}
	u.running = true
	u.stopCh = make(chan struct{})
	u.mu.Unlock()

	ticker := time.NewTicker(u.cfg.PriceUpdateInterval)
	defer ticker.Stop()

	if err := u.RunCycle(ctx); err != nil {
		u.log.Error().Err(err).Msg("price-update cycle failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-u.stopCh:
			return
		case <-ticker.C:
			if err := u.RunCycle(ctx); err != nil {
				u.log.Error().Err(err).Msg("price-update cycle failed")
			}
		}
	}
}

// Stop ends the run loop.
func (u *Updater) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.running {
		close(u.stopCh)
		u.running = false
	}
}

// RunCycle refreshes every contract participating in an active bond,
// reordered so whatever C12 last flagged as priority is fetched first.
func (u *Updater) RunCycle(ctx context.Context) error {
	start := time.Now()

	bonded, err := u.store.BondedContractKeys(ctx)
	if err != nil {
		return err
	}

	keysA, keysB := u.orderedKeysByPlatform(bonded)

	if err := u.refreshPlatform(ctx, contract.PlatformExA, u.exA, keysA); err != nil {
		u.log.Error().Err(err).Msg("EX-A refresh failed")
	}
	if err := u.refreshPlatform(ctx, contract.PlatformExB, u.exB, keysB); err != nil {
		u.log.Error().Err(err).Msg("EX-B refresh failed")
	}

	u.markStale(ctx, contract.PlatformExA)
	u.markStale(ctx, contract.PlatformExB)

	u.metrics.RecordPriceUpdateCycle("all", time.Since(start).Seconds())
	return nil
}

// orderedKeysByPlatform splits the bonded-set union by platform and
// moves whatever C12 published into the priority queue to the front of
// each platform's id list.
func (u *Updater) orderedKeysByPlatform(bonded map[string]struct{}) (idsA, idsB []string) {
	priority := u.priority.Take()
	prioritySet := make(map[string]bool, len(priority))
	for _, k := range priority {
		prioritySet[k] = true
	}

	var restA, restB []string
	var priA, priB []string

	assign := func(key string) {
		platform, id := splitKey(key)
		if platform == "" {
			return
		}
		switch platform {
		case contract.PlatformExA:
			if prioritySet[key] {
				priA = append(priA, id)
			} else {
				restA = append(restA, id)
			}
		case contract.PlatformExB:
			if prioritySet[key] {
				priB = append(priB, id)
			} else {
				restB = append(restB, id)
			}
		}
	}

	for _, k := range priority {
		assign(k)
	}
	for k := range bonded {
		if !prioritySet[k] {
			assign(k)
		}
	}

	return append(priA, restA...), append(priB, restB...)
}

func splitKey(key string) (contract.Platform, string) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return contract.Platform(parts[0]), parts[1]
}

// refreshPlatform fetches the given ids from client (batched for
// EX-A's efficient bulk endpoint; for EX-B, spec §4.10 step 4's
// preferred per-token order-book fetch, falling back to the
// simplified-markets GetContract query when a book is unavailable) and
// commits each through the normalization pipeline.
func (u *Updater) refreshPlatform(ctx context.Context, platform contract.Platform, client exchange.Client, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var raws []exchange.RawContract
	var err error
	if platform == contract.PlatformExA {
		raws, err = client.GetContractsByIDs(ctx, ids)
		if err != nil {
			u.metrics.RecordUpstreamError(string(platform), "batch_fetch")
			return err
		}
	} else {
		for _, id := range ids {
			var existing *contract.Contract
			if prior, gerr := u.store.GetContract(ctx, platform, id); gerr == nil {
				existing = prior
			}
			if existing != nil {
				if raw, ok := u.refreshViaOrderBook(ctx, client, platform, existing); ok {
					raws = append(raws, raw)
					continue
				}
			}
			rc, gerr := client.GetContract(ctx, id)
			if gerr != nil {
				u.metrics.RecordUpstreamError(string(platform), "single_fetch")
				continue
			}
			raws = append(raws, *rc)
		}
	}

	refreshed := 0
	for i := range raws {
		existing, gerr := u.store.GetContract(ctx, platform, raws[i].ID)
		var existingPtr *contract.Contract
		if gerr == nil {
			existingPtr = existing
		}

		normalized, nerr := u.pipeline.Normalize(raws[i], existingPtr)
		if nerr != nil {
			continue
		}
		if cerr := u.store.UpsertContract(ctx, normalized); cerr != nil {
			continue
		}
		refreshed++
	}

	u.metrics.RecordContractsRefreshed(string(platform), refreshed)
	return nil
}

// refreshViaOrderBook derives bid/ask/mid for every outcome leg of an
// already-stored contract from its per-token order book, per spec
// §4.10 step 4's preferred EX-B path (bid=best-bid, ask=best-ask,
// mid=(bid+ask)/2). It reuses the contract's existing raw title and
// description so normalize.Pipeline's unchanged-text short-circuit
// applies and only prices are refreshed. Returns ok=false if any leg
// lacks a token id or its book can't be fetched, signaling the caller
// to fall back to GetContract.
func (u *Updater) refreshViaOrderBook(ctx context.Context, client exchange.Client, platform contract.Platform, existing *contract.Contract) (exchange.RawContract, bool) {
	if len(existing.Outcome.Outcomes) == 0 {
		return exchange.RawContract{}, false
	}

	outcomes := make([]exchange.RawOutcome, len(existing.Outcome.Outcomes))
	for i, leg := range existing.Outcome.Outcomes {
		if leg.TokenID == "" {
			return exchange.RawContract{}, false
		}
		book, err := client.GetOrderBook(ctx, leg.TokenID)
		if err != nil {
			u.metrics.RecordUpstreamError(string(platform), "order_book")
			return exchange.RawContract{}, false
		}
		out := exchange.RawOutcome{Label: leg.Label, TokenID: leg.TokenID}
		if bid, ok := book.BestBid(); ok {
			out.HasBid, out.Bid = true, bid
		}
		if ask, ok := book.BestAsk(); ok {
			out.HasAsk, out.Ask = true, ask
		}
		if out.HasBid && out.HasAsk {
			out.HasMid, out.Mid = true, (out.Bid+out.Ask)/2
		}
		outcomes[i] = out
	}

	raw := exchange.RawContract{
		Platform:       string(platform),
		ID:             existing.ID,
		ConditionID:    existing.ConditionID,
		Title:          existing.RawTitle,
		Description:    existing.RawDescription,
		Category:       existing.Category,
		Active:         existing.Status == contract.StatusActive,
		Closed:         existing.Status == contract.StatusClosed,
		ResolutionTime: existing.Time.Resolution,
		HasWindow:      existing.Time.HasWindow,
		WindowStart:    existing.Time.WindowStart,
		WindowEnd:      existing.Time.WindowEnd,
		Volume:         existing.Metadata.Volume,
		Liquidity:      existing.Metadata.Liquidity,
		HasFee:         existing.Metadata.HasFeeHint,
		Fee:            existing.Metadata.FeeHint,
		Outcomes:       outcomes,
	}
	return raw, true
}

func (u *Updater) markStale(ctx context.Context, platform contract.Platform) {
	active, err := u.store.ListActiveCandidates(ctx, platform)
	if err != nil {
		return
	}
	stale := 0
	now := time.Now().UTC()
	for _, c := range active {
		if now.Sub(c.UpdatedAt) > u.cfg.StalenessThreshold {
			stale++
		}
	}
	u.metrics.UpdateStaleContracts(string(platform), stale)
}
