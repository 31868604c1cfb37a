// Package contract defines the canonical data model shared by every stage
// of the bond-matching pipeline: raw exchange records are normalized into
// Contract values, accepted equivalences become Bonds, and the arbitrage
// monitor produces transient ArbitrageOpportunity values from both.
package contract

import "time"

// Platform identifies which of the two exchanges a contract originates
// from. The pipeline never assumes more than two platforms exist.
type Platform string

const (
	PlatformExA Platform = "EX-A"
	PlatformExB Platform = "EX-B"
)

// Status tracks the lifecycle of a contract. Transitions are monotonic
// toward Resolved: Active -> Closed -> Resolved.
type Status string

const (
	StatusActive   Status = "active"
	StatusClosed   Status = "closed"
	StatusResolved Status = "resolved"
)

// Granularity buckets the resolution horizon of a contract, used to pick
// the time-decay constant in the time-alignment feature.
type Granularity string

const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// Polarity captures whether a YesNo contract's title is phrased
// affirmatively or negatively.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// OutcomeKind discriminates the outcome schema tagged union.
type OutcomeKind string

const (
	OutcomeYesNo           OutcomeKind = "yes_no"
	OutcomeDiscreteBracket OutcomeKind = "discrete_brackets"
	OutcomeScalarRange     OutcomeKind = "scalar_range"
)

// Outcome is one leg of a contract's outcome schema: a label (e.g. "Yes",
// "45-50") plus whatever pricing the exchange currently reports for it.
type Outcome struct {
	Label   string
	TokenID string // EX-B only; empty on EX-A

	HasMid bool
	Mid    float64
	HasBid bool
	Bid    float64
	HasAsk bool
	Ask    float64
}

// Bracket is a half-open numeric range [Min, Max); a nil bound means
// unbounded on that side, matching the original source's None-as-infinity
// convention.
type Bracket struct {
	Min *float64
	Max *float64
}

// OutcomeSchema is the tagged union described in spec §3. Exactly one of
// the three shapes is populated, selected by Kind.
type OutcomeSchema struct {
	Kind OutcomeKind

	// Kind == OutcomeYesNo
	Polarity Polarity

	// Kind == OutcomeDiscreteBracket
	Unit     string
	Brackets []Bracket

	// Kind == OutcomeScalarRange
	ScalarUnit string
	ScalarMin  *float64
	ScalarMax  *float64

	Outcomes []Outcome
}

// EntitySet is the five normalized entity collections produced by C3.
// Each field holds normalized (lowercased, trimmed), deduplicated strings.
type EntitySet struct {
	Tickers       []string
	People        []string
	Organizations []string
	Countries     []string
	Misc          []string
}

// TimeWindow carries the resolution timestamp required for time alignment
// plus an optional observation window used to refine the time score.
type TimeWindow struct {
	Resolution  time.Time
	HasWindow   bool
	WindowStart time.Time
	WindowEnd   time.Time
	Granularity Granularity
}

// Metadata holds fields that inform sizing and fee computation but never
// participate in similarity scoring.
type Metadata struct {
	Volume      float64
	Liquidity   float64
	HasFeeHint  bool
	FeeHint     float64
	TokenIDs    []string // EX-B: one per outcome, mirrors Outcomes order
}

// Contract is the canonical normalized record stored in C13 and the unit
// operated on by every downstream component.
type Contract struct {
	Platform    Platform
	ID          string
	ConditionID string // EX-B secondary identity; empty on EX-A

	RawTitle       string
	RawDescription string

	CleanTitle       string
	CleanDescription string
	Category         string
	EventType        string
	GeoScope         string
	ResolutionSource string
	SportType        string // optional; "" if undetected
	IsParlay         bool

	Entities EntitySet
	Outcome  OutcomeSchema
	Time     TimeWindow

	HasEmbedding bool
	Embedding    []float32

	Metadata Metadata

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the (platform, id) identity tuple used for store lookups.
func (c *Contract) Key() string {
	return string(c.Platform) + ":" + c.ID
}

// Tier is the confidence class assigned to a candidate bond. Tier3 is
// never persisted; it exists only as a return value and log record.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// BondStatus tracks a persisted bond's lifecycle.
type BondStatus string

const (
	BondActive  BondStatus = "active"
	BondPaused  BondStatus = "paused"
	BondRetired BondStatus = "retired"
)

// FeatureBreakdown is the five individual scores plus the raw time delta,
// persisted alongside a bond so tier decisions can be audited later.
type FeatureBreakdown struct {
	Text         float64
	Entity       float64
	Time         float64
	Outcome      float64
	Resolution   float64
	DeltaDays    float64
}

// Bond is an accepted semantic equivalence between one EX-A contract and
// one EX-B contract.
type Bond struct {
	PairID string

	ContractAKey string
	ContractBKey string

	Tier             Tier
	PMatch           float64
	SimilarityScore  float64
	OutcomeMapping   map[string]string
	Features         FeatureBreakdown
	Status           BondStatus

	CreatedAt      time.Time
	LastValidated  time.Time
}

// PairID derives the deterministic bond identity from two contract keys,
// independent of argument order.
func PairID(aKey, bKey string) string {
	if aKey < bKey {
		return aKey + "|" + bKey
	}
	return bKey + "|" + aKey
}
