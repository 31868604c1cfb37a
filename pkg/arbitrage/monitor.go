package arbitrage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bondarb/core/internal/config"
	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/decision"
	"github.com/bondarb/core/pkg/metrics"
	"github.com/bondarb/core/pkg/priceupdate"
	"github.com/bondarb/core/pkg/store"
)

// Monitor is C12. Grounded on the teacher orchestrator's ticker-driven
// control loop; its state (the live opportunity set) is held the same
// way the orchestrator holds activeMarkets/forecasts, behind a mutex,
// merged each cycle (with TTL eviction) and kept in memory rather than
// persisted.
type Monitor struct {
	store    *store.Store
	priority *priceupdate.PriorityQueue
	cfg      *config.Config
	metrics  *metrics.BondMetrics
	recorder *decision.Recorder
	log      zerolog.Logger

	mu            sync.Mutex
	opportunities map[string]*Opportunity
	running       bool
	stopCh        chan struct{}
}

// NewMonitor builds an arbitrage monitor.
func NewMonitor(st *store.Store, priority *priceupdate.PriorityQueue, cfg *config.Config, m *metrics.BondMetrics, rec *decision.Recorder, log zerolog.Logger) *Monitor {
	return &Monitor{
		store:         st,
		priority:      priority,
		cfg:           cfg,
		metrics:       m,
		recorder:      rec,
		log:           log,
		opportunities: make(map[string]*Opportunity),
	}
}

// Run executes scan cycles on cfg.PriceUpdateInterval until ctx is
// canceled (the monitor shares C11's cadence since it consumes prices
// C11 just refreshed).
func (mon *Monitor) Run(ctx context.Context) {
	mon.mu.Lock()
	if mon.running {
		mon.mu.Unlock()
		return
	}
	mon.running = true
	mon.stopCh = make(chan struct{})
	mon.mu.Unlock()

	ticker := time.NewTicker(mon.cfg.PriceUpdateInterval)
	defer ticker.Stop()

	mon.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-mon.stopCh:
			return
		case <-ticker.C:
			mon.scan(ctx)
		}
	}
}

// Stop ends the run loop.
func (mon *Monitor) Stop() {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	if mon.running {
		close(mon.stopCh)
		mon.running = false
	}
}

func (mon *Monitor) scan(ctx context.Context) {
	start := time.Now()

	found := mon.scanCrossExchange(ctx)
	found = append(found, mon.scanIntraExchange(ctx, contract.PlatformExA)...)
	found = append(found, mon.scanIntraExchange(ctx, contract.PlatformExB)...)

	mon.merge(found)
	mon.evictStale()
	mon.capToLimit()
	mon.publishPriority()

	mon.metrics.RecordMonitorCycle(time.Since(start).Seconds())
}

// scanCrossExchange evaluates every active bond's cross-exchange spread
// per spec §4.11/§8 scenario 4: direction 1 buys A's Yes ask and sells
// it against B's Yes bid; direction 2 is the reverse. The larger
// positive edge, net of both exchanges' taker fee and a flat gas hint,
// is kept.
func (mon *Monitor) scanCrossExchange(ctx context.Context) []*Opportunity {
	bonds, err := mon.store.ListActiveBonds(ctx)
	if err != nil {
		return nil
	}

	var out []*Opportunity
	for _, bond := range bonds {
		if bond.Tier == contract.Tier3 {
			continue
		}
		a := mon.loadFresh(ctx, bond.ContractAKey)
		b := mon.loadFresh(ctx, bond.ContractBKey)
		if a == nil || b == nil {
			continue
		}
		if a.Outcome.Kind != contract.OutcomeYesNo || b.Outcome.Kind != contract.OutcomeYesNo {
			continue
		}

		if op := mon.crossLeg(a, b); op != nil {
			out = append(out, op)
		}
	}
	return out
}

// crossLeg implements spec §4.11 step 2's two-direction edge formula:
//
//	edge1 = bid_B - ask_A - fee_A*ask_A - fee_B*bid_B - gas_hint  (buy A, sell B)
//	edge2 = bid_A - ask_B - fee_B*ask_B - fee_A*bid_A - gas_hint  (buy B, sell A)
//
// The larger edge wins; no opportunity is returned unless it clears
// min_profit.
func (mon *Monitor) crossLeg(a, b *contract.Contract) *Opportunity {
	askA, ok1 := askCost(a.Outcome, "Yes")
	bidA, ok2 := bidCost(a.Outcome, "Yes")
	askB, ok3 := askCost(b.Outcome, "Yes")
	bidB, ok4 := bidCost(b.Outcome, "Yes")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil
	}

	feeA := mon.feeRate(a.Platform)
	feeB := mon.feeRate(b.Platform)
	gas := mon.cfg.GasHintPerTrade

	edge1 := bidB - askA - feeA*askA - feeB*bidB - gas
	edge2 := bidA - askB - feeB*askB - feeA*bidA - gas

	direction := DirectionBuyASellB
	edge := edge1
	if edge2 > edge1 {
		direction = DirectionBuyBSellA
		edge = edge2
	}
	if edge < mon.cfg.MonitorMinProfit {
		return nil
	}

	size := mon.tradeSizeUSD(a, b)
	profitUSD := decimal.NewFromFloat(edge).Mul(size)

	id := fmt.Sprintf("%s:%s:%s", KindCrossExchange, direction, contract.PairID(a.Key(), b.Key()))
	return &Opportunity{
		ID:              id,
		Kind:            KindCrossExchange,
		Direction:       direction,
		ContractAKey:    a.Key(),
		ContractBKey:    b.Key(),
		EdgeBps:         edge * 10000,
		ProfitUSD:       profitUSD,
		RecommendedSize: size,
	}
}

// scanIntraExchange looks for a single contract's own Yes+No asks
// summing under $1, which a well-functioning market maker should have
// already arbitraged away but transient mispricing can still produce.
// Per spec §4.11 step 3/§8's intra-exchange invariant, this is
// unconditional on yes+no<1 with both legs quoted > 0 — no fee, gas, or
// min_profit gate applies here (those only bound the cross-exchange
// path, which actually pays two taker fees and a cross-chain transfer).
func (mon *Monitor) scanIntraExchange(ctx context.Context, platform contract.Platform) []*Opportunity {
	active, err := mon.store.ListActiveCandidates(ctx, platform)
	if err != nil {
		return nil
	}

	var out []*Opportunity
	for _, c := range active {
		if c.Outcome.Kind != contract.OutcomeYesNo {
			continue
		}
		yesCost, ok1 := askCost(c.Outcome, "Yes")
		noCost, ok2 := askCost(c.Outcome, "No")
		if !ok1 || !ok2 || yesCost <= 0 || noCost <= 0 {
			continue
		}

		sum := yesCost + noCost
		if sum >= 1 {
			continue
		}
		gap := 1 - sum
		profitPerUnit := gap / sum

		size := mon.tradeSizeUSD(c, c)
		id := fmt.Sprintf("%s:%s", KindIntraExchange, c.Key())
		out = append(out, &Opportunity{
			ID:              id,
			Kind:            KindIntraExchange,
			Direction:       "buy_yes_no_same_market",
			ContractAKey:    c.Key(),
			EdgeBps:         profitPerUnit * 10000,
			ProfitUSD:       decimal.NewFromFloat(gap).Mul(size),
			RecommendedSize: size,
		})
	}
	return out
}

func (mon *Monitor) feeRate(platform contract.Platform) float64 {
	if platform == contract.PlatformExA {
		return mon.cfg.FeeRateA
	}
	return mon.cfg.FeeRateB
}

// tradeSizeUSD caps the notional trade size at both the configured
// position cap and the lesser of the two legs' reported liquidity, so
// profitUSD never overstates what could actually be executed. Returned
// as decimal.Decimal since this is an actual USD notional, not a rate.
func (mon *Monitor) tradeSizeUSD(a, b *contract.Contract) decimal.Decimal {
	if a.Metadata.Liquidity < mon.cfg.MinLiquidityUSD || b.Metadata.Liquidity < mon.cfg.MinLiquidityUSD {
		return decimal.Zero
	}

	size := mon.cfg.MaxPositionCapUSD
	if a.Metadata.Liquidity > 0 && a.Metadata.Liquidity < size {
		size = a.Metadata.Liquidity
	}
	if b.Metadata.Liquidity > 0 && b.Metadata.Liquidity < size {
		size = b.Metadata.Liquidity
	}
	return decimal.NewFromFloat(size)
}

func (mon *Monitor) loadFresh(ctx context.Context, key string) *contract.Contract {
	platform, id := splitKey(key)
	if platform == "" {
		return nil
	}
	c, err := mon.store.GetContract(ctx, platform, id)
	if err != nil {
		return nil
	}
	if time.Since(c.UpdatedAt) > mon.cfg.StalenessThreshold {
		return nil
	}
	return c
}

func splitKey(key string) (contract.Platform, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return contract.Platform(key[:i]), key[i+1:]
		}
	}
	return "", ""
}

func (mon *Monitor) merge(found []*Opportunity) {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	now := time.Now().UTC()
	for _, op := range found {
		if existing, ok := mon.opportunities[op.ID]; ok {
			existing.EdgeBps = op.EdgeBps
			existing.ProfitUSD = op.ProfitUSD
			existing.LastSeen = now
			continue
		}
		op.FirstSeen = now
		op.LastSeen = now
		mon.opportunities[op.ID] = op

		correlationID := uuid.NewString()
		mon.recorder.RecordArbitrageOpportunity(correlationID, string(op.Kind), op.Direction, op.EdgeBps, op.ProfitUSD.InexactFloat64())
		mon.metrics.RecordOpportunity(string(op.Kind), op.Direction, op.EdgeBps)
	}
}

func (mon *Monitor) evictStale() {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	now := time.Now().UTC()
	for id, op := range mon.opportunities {
		if now.Sub(op.LastSeen) > mon.cfg.MonitorStaleTTL {
			delete(mon.opportunities, id)
		}
	}
}

func (mon *Monitor) capToLimit() {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	if len(mon.opportunities) <= mon.cfg.MonitorMaxOpportunities {
		return
	}

	all := make([]*Opportunity, 0, len(mon.opportunities))
	for _, op := range mon.opportunities {
		all = append(all, op)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EdgeBps > all[j].EdgeBps })

	mon.opportunities = make(map[string]*Opportunity, mon.cfg.MonitorMaxOpportunities)
	for _, op := range all[:mon.cfg.MonitorMaxOpportunities] {
		mon.opportunities[op.ID] = op
	}
}

// publishPriority hands C11 the contract keys behind every currently
// tracked opportunity, so their prices get refreshed before the rest
// of the bonded set on the next C11 cycle.
func (mon *Monitor) publishPriority() {
	mon.mu.Lock()
	keys := make([]string, 0, len(mon.opportunities)*2)
	kindCounts := map[string]int{}
	for _, op := range mon.opportunities {
		keys = append(keys, op.ContractAKey)
		if op.ContractBKey != "" {
			keys = append(keys, op.ContractBKey)
		}
		kindCounts[string(op.Kind)]++
	}
	mon.mu.Unlock()

	mon.priority.Publish(keys)
	for kind, n := range kindCounts {
		mon.metrics.UpdateOpportunitiesTracked(kind, n)
	}
}

// Opportunities returns a snapshot of currently tracked opportunities,
// sorted by descending edge.
func (mon *Monitor) Opportunities() []*Opportunity {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	out := make([]*Opportunity, 0, len(mon.opportunities))
	for _, op := range mon.opportunities {
		cp := *op
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EdgeBps > out[j].EdgeBps })
	return out
}
