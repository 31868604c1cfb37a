// Package config loads and validates the bond-matching core's runtime
// configuration. All tunables named in spec.md §6 live here; the struct
// is built once at startup and never mutated afterward (spec §9:
// "configuration is immutable after startup").
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/bondarb/core/pkg/contract"
)

// Weights are the five similarity-feature weights, required to sum to 1
// within the tolerance checked by Validate.
type Weights struct {
	Text       float64
	Entity     float64
	Time       float64
	Outcome    float64
	Resolution float64
}

// FeatureFloors are the per-tier minimum scores for each feature used by
// the tier assigner (C8).
type FeatureFloors struct {
	Text       float64
	Entity     float64
	Outcome    float64
	Time       float64
	Resolution float64
}

// Config is the complete set of recognized options from spec.md §6.
type Config struct {
	ExAName string
	ExBName string

	ExABaseURL string
	ExBBaseURL string

	Weights Weights
	Beta    [6]float64 // intercept, text, entity, time, outcome, resolution

	Tier1MinSimilarity   float64
	Tier2MinSimilarity   float64
	Tier1PMatchThreshold float64
	Tier2PMatchThreshold float64
	Tier1Floors          FeatureFloors
	Tier2Floors          FeatureFloors

	HardConstraintMinTextScore    float64
	HardConstraintMinEntityScore  float64
	HardConstraintMaxTimeDeltaDays float64

	CandidateLimit int

	PriceUpdateInterval  time.Duration
	StalenessThreshold   time.Duration

	FeeRateA        float64
	FeeRateB        float64
	GasHintPerTrade float64

	MinLiquidityUSD    float64
	MaxPositionCapUSD  float64

	MonitorMaxOpportunities int
	MonitorStaleTTL         time.Duration
	MonitorMinProfit        float64

	PollIntervalA time.Duration
	PollIntervalB time.Duration

	EmbeddingDimension int

	StorePath string

	LogLevel string
}

// Load reads a .env file if present (godotenv, same as aristath-sentinel),
// then overlays environment variables on top of the tightened-regime
// defaults from spec.md §6 (see SPEC_FULL.md's Open Question #1).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	overrideString(&cfg.ExABaseURL, "EXA_BASE_URL")
	overrideString(&cfg.ExBBaseURL, "EXB_BASE_URL")
	overrideFloat(&cfg.Weights.Text, "WEIGHT_TEXT")
	overrideFloat(&cfg.Weights.Entity, "WEIGHT_ENTITY")
	overrideFloat(&cfg.Weights.Time, "WEIGHT_TIME")
	overrideFloat(&cfg.Weights.Outcome, "WEIGHT_OUTCOME")
	overrideFloat(&cfg.Weights.Resolution, "WEIGHT_RESOLUTION")
	overrideFloat(&cfg.Tier1MinSimilarity, "TIER1_MIN_SIMILARITY")
	overrideFloat(&cfg.Tier2MinSimilarity, "TIER2_MIN_SIMILARITY")
	overrideFloat(&cfg.Tier1PMatchThreshold, "TIER1_P_MATCH_THRESHOLD")
	overrideFloat(&cfg.Tier2PMatchThreshold, "TIER2_P_MATCH_THRESHOLD")
	overrideFloat(&cfg.HardConstraintMinTextScore, "HARD_CONSTRAINT_MIN_TEXT_SCORE")
	overrideFloat(&cfg.HardConstraintMinEntityScore, "HARD_CONSTRAINT_MIN_ENTITY_SCORE")
	overrideFloat(&cfg.HardConstraintMaxTimeDeltaDays, "HARD_CONSTRAINT_MAX_TIME_DELTA_DAYS")
	overrideInt(&cfg.CandidateLimit, "CANDIDATE_LIMIT")
	overrideDurationSec(&cfg.PriceUpdateInterval, "PRICE_UPDATE_INTERVAL_SEC")
	overrideDurationSec(&cfg.StalenessThreshold, "STALENESS_THRESHOLD_SEC")
	overrideFloat(&cfg.FeeRateA, "FEE_RATE_A")
	overrideFloat(&cfg.FeeRateB, "FEE_RATE_B")
	overrideFloat(&cfg.GasHintPerTrade, "GAS_HINT_PER_TRADE")
	overrideFloat(&cfg.MinLiquidityUSD, "MIN_LIQUIDITY_USD")
	overrideFloat(&cfg.MaxPositionCapUSD, "MAX_POSITION_CAP_USD")
	overrideInt(&cfg.MonitorMaxOpportunities, "MONITOR_MAX_OPPORTUNITIES")
	overrideDurationMin(&cfg.MonitorStaleTTL, "MONITOR_STALE_TTL_MIN")
	overrideDurationSec(&cfg.PollIntervalA, "POLL_INTERVAL_A_SEC")
	overrideDurationSec(&cfg.PollIntervalB, "POLL_INTERVAL_B_SEC")
	overrideString(&cfg.StorePath, "STORE_PATH")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrConfigurationInvalid, err)
	}
	return cfg, nil
}

// Default returns the tightened-regime defaults from spec.md §6, which
// SPEC_FULL.md's Open Question decisions fix as canonical.
func Default() *Config {
	return &Config{
		ExAName:    "EX-A",
		ExBName:    "EX-B",
		ExABaseURL: "https://trading-api.example-exa.com/trade-api/v2",
		ExBBaseURL: "https://gamma-api.polymarket.com",

		Weights: Weights{Text: 0.35, Entity: 0.25, Time: 0.15, Outcome: 0.20, Resolution: 0.05},
		Beta:    [6]float64{-5.0, 4.2, 3.1, 2.5, 3.8, 1.2},

		Tier1MinSimilarity:   0.80,
		Tier2MinSimilarity:   0.70,
		Tier1PMatchThreshold: 0.95,
		Tier2PMatchThreshold: 0.90,
		Tier1Floors:          FeatureFloors{Text: 0.90, Entity: 0.70, Outcome: 0.98, Time: 0.50, Resolution: 0.20},
		Tier2Floors:          FeatureFloors{Text: 0.80, Entity: 0.50, Outcome: 0.90, Time: 0.30},

		HardConstraintMinTextScore:     0.70,
		HardConstraintMinEntityScore:   0.0,
		HardConstraintMaxTimeDeltaDays: 90,

		CandidateLimit: 50,

		PriceUpdateInterval: 10 * time.Second,
		StalenessThreshold:  300 * time.Second,

		FeeRateA:        0.02,
		FeeRateB:        0.02,
		GasHintPerTrade: 0.10,

		MinLiquidityUSD:   1000,
		MaxPositionCapUSD: 10000,

		MonitorMaxOpportunities: 100,
		MonitorStaleTTL:         10 * time.Minute,
		MonitorMinProfit:        0.01,

		PollIntervalA: 60 * time.Second,
		PollIntervalB: 60 * time.Second,

		EmbeddingDimension: 256,

		StorePath: "./data/bonds.db",

		LogLevel: "info",
	}
}

// Validate enforces spec §7's ConfigurationInvalid checks: weights
// non-negative and summing to 1±1e-3, beta the right length (enforced by
// the array type), thresholds in [0,1].
func (c *Config) Validate() error {
	sum := c.Weights.Text + c.Weights.Entity + c.Weights.Time + c.Weights.Outcome + c.Weights.Resolution
	if math.Abs(sum-1.0) > 1e-3 {
		return fmt.Errorf("weights must sum to 1.0 +/- 1e-3, got %f", sum)
	}
	for name, w := range map[string]float64{
		"text": c.Weights.Text, "entity": c.Weights.Entity, "time": c.Weights.Time,
		"outcome": c.Weights.Outcome, "resolution": c.Weights.Resolution,
	} {
		if w < 0 {
			return fmt.Errorf("weight %s must be non-negative, got %f", name, w)
		}
	}
	for name, v := range map[string]float64{
		"tier1_min_similarity": c.Tier1MinSimilarity, "tier2_min_similarity": c.Tier2MinSimilarity,
		"tier1_p_match_threshold": c.Tier1PMatchThreshold, "tier2_p_match_threshold": c.Tier2PMatchThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", name, v)
		}
	}
	if c.CandidateLimit <= 0 {
		return fmt.Errorf("candidate_limit must be positive, got %d", c.CandidateLimit)
	}
	if c.PriceUpdateInterval <= 0 {
		return fmt.Errorf("price_update_interval_sec must be positive")
	}
	return nil
}

func overrideString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok && strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func overrideFloat(dst *float64, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func overrideInt(dst *int, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideDurationSec(dst *time.Duration, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func overrideDurationMin(dst *time.Duration, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Minute
		}
	}
}
