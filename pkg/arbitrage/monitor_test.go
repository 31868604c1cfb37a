package arbitrage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bondarb/core/internal/config"
	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/store"
)

func yesNo(platform contract.Platform, id string, yesBid, yesAsk, noBid, noAsk, liquidity float64) *contract.Contract {
	return &contract.Contract{
		Platform: platform,
		ID:       id,
		Outcome: contract.OutcomeSchema{
			Kind: contract.OutcomeYesNo,
			Outcomes: []contract.Outcome{
				{Label: "Yes", HasBid: true, Bid: yesBid, HasAsk: true, Ask: yesAsk},
				{Label: "No", HasBid: true, Bid: noBid, HasAsk: true, Ask: noAsk},
			},
		},
		Metadata: contract.Metadata{Liquidity: liquidity},
	}
}

func testMonitor(cfg *config.Config) *Monitor {
	return &Monitor{cfg: cfg, opportunities: make(map[string]*Opportunity)}
}

// TestCrossLeg_FindsProfitableSpread reproduces spec §8 scenario 4's
// second case: EX-A bid=0.60 ask=0.61, EX-B bid=0.75 ask=0.76, fees
// 2%/2%, gas 0.10 -> edge1 ~= 0.0128 > min_profit (0.01), direction
// BuyASellB.
func TestCrossLeg_FindsProfitableSpread(t *testing.T) {
	cfg := config.Default()
	cfg.FeeRateA, cfg.FeeRateB, cfg.GasHintPerTrade, cfg.MonitorMinProfit = 0.02, 0.02, 0.10, 0.01
	mon := testMonitor(cfg)

	a := yesNo(contract.PlatformExA, "a", 0.60, 0.61, 0.39, 0.40, 5000)
	b := yesNo(contract.PlatformExB, "b", 0.75, 0.76, 0.24, 0.25, 5000)

	op := mon.crossLeg(a, b)
	if op == nil {
		t.Fatal("expected a profitable opportunity per spec scenario 4")
	}
	if op.Direction != DirectionBuyASellB {
		t.Errorf("expected direction %s, got %s", DirectionBuyASellB, op.Direction)
	}
	wantEdge := 0.75 - 0.61 - 0.02*0.61 - 0.02*0.75 - 0.10
	wantBps := wantEdge * 10000
	if diff := op.EdgeBps - wantBps; diff > 1 || diff < -1 {
		t.Errorf("expected edge ~%f bps, got %f", wantBps, op.EdgeBps)
	}
}

// TestCrossLeg_NoOpportunityWhenCostNearPar reproduces spec §8 scenario
// 4's first case: EX-A bid=0.60 ask=0.61, EX-B bid=0.65 ask=0.66 ->
// both directions negative, no opportunity.
func TestCrossLeg_NoOpportunityWhenCostNearPar(t *testing.T) {
	cfg := config.Default()
	cfg.FeeRateA, cfg.FeeRateB, cfg.GasHintPerTrade, cfg.MonitorMinProfit = 0.02, 0.02, 0.10, 0.01
	mon := testMonitor(cfg)

	a := yesNo(contract.PlatformExA, "a", 0.60, 0.61, 0.39, 0.40, 5000)
	b := yesNo(contract.PlatformExB, "b", 0.65, 0.66, 0.34, 0.35, 5000)

	if op := mon.crossLeg(a, b); op != nil {
		t.Errorf("expected no opportunity once fees and gas eat the spread, got %+v", op)
	}
}

func TestTradeSizeUSD_CapsAtConfiguredMax(t *testing.T) {
	cfg := config.Default()
	cfg.MaxPositionCapUSD = 1000
	cfg.MinLiquidityUSD = 100
	mon := testMonitor(cfg)

	a := yesNo(contract.PlatformExA, "a", 0.4, 0.4, 0.4, 0.4, 50000)
	b := yesNo(contract.PlatformExB, "b", 0.4, 0.4, 0.4, 0.4, 50000)

	if size := mon.tradeSizeUSD(a, b); !size.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected size capped at 1000, got %s", size)
	}
}

func TestTradeSizeUSD_ZeroBelowMinLiquidity(t *testing.T) {
	cfg := config.Default()
	cfg.MinLiquidityUSD = 1000
	mon := testMonitor(cfg)

	a := yesNo(contract.PlatformExA, "a", 0.4, 0.4, 0.4, 0.4, 500)
	b := yesNo(contract.PlatformExB, "b", 0.4, 0.4, 0.4, 0.4, 50000)

	if size := mon.tradeSizeUSD(a, b); !size.IsZero() {
		t.Errorf("expected zero size when a leg is below min liquidity, got %s", size)
	}
}

// TestScanIntraExchange_EmitsScenario5Opportunity reproduces spec §8
// scenario 5: a single EX-A contract with yes=0.45, no=0.52 ->
// sum=0.97, gap=0.03, profit_per_unit ~= 0.0309, emitted unconditional
// of fee/gas/min_profit (those only bound the cross-exchange path).
func TestScanIntraExchange_EmitsScenario5Opportunity(t *testing.T) {
	db, err := store.Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	st := store.New(db)

	c := &contract.Contract{
		Platform: contract.PlatformExA,
		ID:       "c1",
		Status:   contract.StatusActive,
		Outcome: contract.OutcomeSchema{
			Kind: contract.OutcomeYesNo,
			Outcomes: []contract.Outcome{
				{Label: "Yes", HasAsk: true, Ask: 0.45},
				{Label: "No", HasAsk: true, Ask: 0.52},
			},
		},
		Metadata: contract.Metadata{Liquidity: 10000},
	}
	if err := st.UpsertContract(context.Background(), c); err != nil {
		t.Fatalf("seed contract: %v", err)
	}

	cfg := config.Default()
	cfg.FeeRateA, cfg.GasHintPerTrade, cfg.MonitorMinProfit = 0.02, 0.10, 0.01
	mon := &Monitor{store: st, cfg: cfg, opportunities: make(map[string]*Opportunity)}

	out := mon.scanIntraExchange(context.Background(), contract.PlatformExA)
	if len(out) != 1 {
		t.Fatalf("expected exactly one intra-exchange opportunity, got %d", len(out))
	}
	wantBps := (0.03 / 0.97) * 10000
	if diff := out[0].EdgeBps - wantBps; diff > 1 || diff < -1 {
		t.Errorf("expected profit-per-unit ~%f bps, got %f", wantBps, out[0].EdgeBps)
	}
}

func TestSplitKey(t *testing.T) {
	platform, id := splitKey("EX-A:1234")
	if platform != contract.PlatformExA || id != "1234" {
		t.Errorf("splitKey mismatch: platform=%v id=%s", platform, id)
	}

	platform, id = splitKey("malformed")
	if platform != "" || id != "" {
		t.Errorf("expected empty result for malformed key, got platform=%v id=%s", platform, id)
	}
}
