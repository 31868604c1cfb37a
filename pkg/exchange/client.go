// Package exchange defines the narrow read-only contract the bond-matching
// core consumes from each upstream exchange (C1). Translation from these
// raw record shapes into the canonical contract.Contract model is the
// normalizer's job (C5), not the client's.
package exchange

import (
	"context"
	"time"
)

// PriceLevel is one level of a resting order book, price ascending for
// asks and descending for bids.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook is the top-of-book snapshot for a single outcome token.
type OrderBook struct {
	TokenID   string
	Bids      []PriceLevel // descending by price
	Asks      []PriceLevel // ascending by price
	Timestamp time.Time
}

// BestBid returns the highest bid price, or false if the book is empty.
func (b *OrderBook) BestBid() (float64, bool) {
	if len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the lowest ask price, or false if the book is empty.
func (b *OrderBook) BestAsk() (float64, bool) {
	if len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// DepthAt returns the total size resting at or better than price on the
// given side.
func (b *OrderBook) DepthAt(side string, price float64) float64 {
	var total float64
	switch side {
	case "bid":
		for _, lvl := range b.Bids {
			if lvl.Price >= price {
				total += lvl.Size
			}
		}
	case "ask":
		for _, lvl := range b.Asks {
			if lvl.Price <= price {
				total += lvl.Size
			}
		}
	}
	return total
}

// RawOutcome is one leg of a raw contract's pricing as reported by an
// upstream exchange, before normalization to [0,1] floats.
type RawOutcome struct {
	Label   string
	TokenID string // EX-B only

	HasMid bool
	Mid    float64
	HasBid bool
	Bid    float64
	HasAsk bool
	Ask    float64
}

// RawContract is the upstream shape a Client returns. Fields not provided
// by a given exchange are left at their zero value; the normalizer treats
// absence as "infer" rather than "error" wherever spec.md allows it.
type RawContract struct {
	Platform    string
	ID          string
	ConditionID string

	Title       string
	Description string
	Category    string

	Active bool
	Closed bool

	ResolutionTime time.Time
	HasWindow      bool
	WindowStart    time.Time
	WindowEnd      time.Time

	Volume    float64
	Liquidity float64
	HasFee    bool
	Fee       float64

	Outcomes []RawOutcome

	UpdatedAt time.Time
}

// Cursor opaquely continues a paginated listing.
type Cursor string

// Client is the read-only contract every exchange adapter implements.
// Every method may fail with contract.ErrUpstreamUnavailable or
// contract.ErrRateLimited; callers retry transient failures with bounded
// backoff and treat persistent failure as partial progress for the cycle.
type Client interface {
	// ListActiveContracts returns one page of currently active raw
	// contracts starting at cursor (empty cursor starts from the top).
	ListActiveContracts(ctx context.Context, cursor Cursor) (batch []RawContract, next Cursor, err error)

	// GetContractsByIDs batch-fetches contracts by platform-local id.
	// EX-B may not support this efficiently; callers should prefer
	// GetOrderBook/GetContract per-token fetches on that exchange.
	GetContractsByIDs(ctx context.Context, ids []string) ([]RawContract, error)

	// GetContract fetches a single contract by platform-local id.
	GetContract(ctx context.Context, id string) (*RawContract, error)

	// GetOrderBook fetches the current order book for a single outcome
	// token. Only meaningful on exchanges that expose token-level books.
	GetOrderBook(ctx context.Context, tokenID string) (*OrderBook, error)
}
