// Package exa adapts a Kalshi-style REST API (EX-A: integer-cent prices
// in [0,100], ticker identity, efficient bulk id lookup) to the
// exchange.Client contract. Mirrors exb's client shape so both adapters
// share the same rate-limiting and error-wrapping idioms; retries are
// applied by callers through exchange.WithRetry.
package exa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/exchange"
)

const (
	DefaultBaseURL   = "https://trading-api.example-exa.com/trade-api/v2"
	defaultRateLimit = 10.0
	defaultBurst     = 5
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiMarket mirrors Kalshi's market representation: cents-denominated
// bid/ask/last, subtitle, close/expiration timestamps.
type apiMarket struct {
	Ticker         string `json:"ticker"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	Category       string `json:"category"`
	Status         string `json:"status"`
	CloseTime      string `json:"close_time"`
	ExpirationTime string `json:"expiration_time"`
	YesBid         int    `json:"yes_bid"`
	YesAsk         int    `json:"yes_ask"`
	LastPrice      int    `json:"last_price"`
	Volume         float64 `json:"volume"`
	Liquidity      float64 `json:"liquidity"`
}

type marketsResponse struct {
	Markets []apiMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

func toRaw(m *apiMarket) exchange.RawContract {
	resTime, _ := time.Parse(time.RFC3339, m.CloseTime)
	if resTime.IsZero() {
		resTime, _ = time.Parse(time.RFC3339, m.ExpirationTime)
	}

	yes := exchange.RawOutcome{Label: "Yes"}
	no := exchange.RawOutcome{Label: "No"}

	if m.YesBid > 0 || m.YesAsk > 0 {
		yes.HasBid, yes.Bid = true, float64(m.YesBid)/100.0
		yes.HasAsk, yes.Ask = true, float64(m.YesAsk)/100.0
		yes.HasMid, yes.Mid = true, (yes.Bid+yes.Ask)/2.0
		no.HasBid, no.Bid = true, 1.0-yes.Ask
		no.HasAsk, no.Ask = true, 1.0-yes.Bid
		no.HasMid, no.Mid = true, 1.0-yes.Mid
	} else if m.LastPrice > 0 {
		yes.HasMid, yes.Mid = true, float64(m.LastPrice)/100.0
		no.HasMid, no.Mid = true, 1.0-yes.Mid
	}

	return exchange.RawContract{
		Platform:       "EX-A",
		ID:             m.Ticker,
		Title:          m.Title,
		Description:    m.Subtitle,
		Category:       m.Category,
		Active:         m.Status == "active",
		Closed:         m.Status == "closed" || m.Status == "finalized",
		ResolutionTime: resTime,
		Volume:         m.Volume,
		Liquidity:      m.Liquidity,
		Outcomes:       []exchange.RawOutcome{yes, no},
		UpdatedAt:      time.Now().UTC(),
	}
}

func (c *Client) ListActiveContracts(ctx context.Context, cursor exchange.Cursor) ([]exchange.RawContract, exchange.Cursor, error) {
	params := url.Values{}
	params.Set("status", "open")
	params.Set("limit", "200")
	if cursor != "" {
		params.Set("cursor", string(cursor))
	}

	var resp marketsResponse
	if err := c.get(ctx, "/markets", params, &resp); err != nil {
		return nil, "", err
	}

	batch := make([]exchange.RawContract, 0, len(resp.Markets))
	for i := range resp.Markets {
		batch = append(batch, toRaw(&resp.Markets[i]))
	}
	return batch, exchange.Cursor(resp.Cursor), nil
}

// GetContractsByIDs batches up to 100 tickers per request, matching
// spec §4.10 step 3's batch-size ceiling for EX-A.
func (c *Client) GetContractsByIDs(ctx context.Context, ids []string) ([]exchange.RawContract, error) {
	const maxBatch = 100
	var out []exchange.RawContract

	for start := 0; start < len(ids); start += maxBatch {
		end := start + maxBatch
		if end > len(ids) {
			end = len(ids)
		}
		batchIDs := ids[start:end]

		params := url.Values{}
		params.Set("tickers", strings.Join(batchIDs, ","))

		var resp marketsResponse
		if err := c.get(ctx, "/markets", params, &resp); err != nil {
			return out, err
		}
		for i := range resp.Markets {
			out = append(out, toRaw(&resp.Markets[i]))
		}
	}
	return out, nil
}

func (c *Client) GetContract(ctx context.Context, id string) (*exchange.RawContract, error) {
	var wrapper struct {
		Market apiMarket `json:"market"`
	}
	if err := c.get(ctx, "/markets/"+id, nil, &wrapper); err != nil {
		return nil, err
	}
	rc := toRaw(&wrapper.Market)
	return &rc, nil
}

// GetOrderBook is not called on EX-A by this system (C11 uses the
// batched yes_bid/yes_ask fields instead) but is implemented for
// completeness of the exchange.Client contract.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*exchange.OrderBook, error) {
	params := url.Values{}
	params.Set("depth", "10")

	var raw struct {
		Orderbook struct {
			Yes [][2]int `json:"yes"`
			No  [][2]int `json:"no"`
		} `json:"orderbook"`
	}
	if err := c.get(ctx, "/markets/"+tokenID+"/orderbook", params, &raw); err != nil {
		return nil, err
	}

	book := &exchange.OrderBook{TokenID: tokenID, Timestamp: time.Now().UTC()}
	for _, lvl := range raw.Orderbook.Yes {
		book.Bids = append(book.Bids, exchange.PriceLevel{Price: float64(lvl[0]) / 100.0, Size: float64(lvl[1])})
	}
	for _, lvl := range raw.Orderbook.No {
		book.Asks = append(book.Asks, exchange.PriceLevel{Price: 1.0 - float64(lvl[0])/100.0, Size: float64(lvl[1])})
	}
	return book, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: exa", contract.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: exa api error %d: %s", contract.ErrUpstreamUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
