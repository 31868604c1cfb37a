// Package exb adapts a Gamma-style REST API (EX-B: decimal prices in
// [0,1], condition ids, CLOB token ids) to the exchange.Client contract.
// The HTTP plumbing — functional options, rate-limited GET helper,
// pagination — is carried over from the upstream Gamma client this
// system already talks to.
package exb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/exchange"
)

const (
	DefaultBaseURL   = "https://gamma-api.polymarket.com"
	defaultRateLimit = 10.0
	defaultBurst     = 5
)

// Client talks to a Gamma-shaped markets API and satisfies exchange.Client.
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

// market mirrors the subset of Gamma's market fields the normalizer needs.
type market struct {
	ID               string    `json:"id"`
	Question         string    `json:"question"`
	ConditionID      string    `json:"conditionId"`
	Description      string    `json:"description"`
	EndDate          time.Time `json:"endDate"`
	Active           bool      `json:"active"`
	Closed           bool      `json:"closed"`
	ClobTokenIDsRaw  string    `json:"clobTokenIds"`
	OutcomesRaw      string    `json:"outcomes"`
	OutcomePricesRaw string    `json:"outcomePrices"`
	Liquidity        jsonFloat `json:"liquidity"`
	Volume           jsonFloat `json:"volume"`
	ResolutionSource string    `json:"resolutionSource"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Tags             []struct {
		Label string `json:"label"`
	} `json:"tags"`
}

type jsonFloat float64

func (j *jsonFloat) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*j = jsonFloat(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*j = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*j = jsonFloat(f)
	return nil
}

func (m *market) tokenIDs() []string {
	var ids []string
	if m.ClobTokenIDsRaw != "" {
		json.Unmarshal([]byte(m.ClobTokenIDsRaw), &ids)
	}
	return ids
}

func (m *market) outcomeLabels() []string {
	var labels []string
	if m.OutcomesRaw != "" {
		json.Unmarshal([]byte(m.OutcomesRaw), &labels)
	}
	return labels
}

func (m *market) outcomePrices() []string {
	var prices []string
	if m.OutcomePricesRaw != "" {
		json.Unmarshal([]byte(m.OutcomePricesRaw), &prices)
	}
	return prices
}

func toRaw(m *market) exchange.RawContract {
	labels := m.outcomeLabels()
	prices := m.outcomePrices()
	ids := m.tokenIDs()

	outcomes := make([]exchange.RawOutcome, 0, len(labels))
	for i, label := range labels {
		o := exchange.RawOutcome{Label: label}
		if i < len(ids) {
			o.TokenID = ids[i]
		}
		if i < len(prices) {
			if p, err := strconv.ParseFloat(prices[i], 64); err == nil {
				o.HasMid = true
				o.Mid = p
			}
		}
		outcomes = append(outcomes, o)
	}

	category := ""
	if len(m.Tags) > 0 {
		category = m.Tags[0].Label
	}

	return exchange.RawContract{
		Platform:       "EX-B",
		ID:             m.ID,
		ConditionID:    m.ConditionID,
		Title:          m.Question,
		Description:    m.Description,
		Category:       category,
		Active:         m.Active,
		Closed:         m.Closed,
		ResolutionTime: m.EndDate,
		Volume:         float64(m.Volume),
		Liquidity:      float64(m.Liquidity),
		Outcomes:       outcomes,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (c *Client) ListActiveContracts(ctx context.Context, cursor exchange.Cursor) ([]exchange.RawContract, exchange.Cursor, error) {
	offset := 0
	if cursor != "" {
		if n, err := strconv.Atoi(string(cursor)); err == nil {
			offset = n
		}
	}
	const limit = 100

	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var markets []market
	if err := c.get(ctx, "/markets", params, &markets); err != nil {
		return nil, "", err
	}

	batch := make([]exchange.RawContract, 0, len(markets))
	for i := range markets {
		batch = append(batch, toRaw(&markets[i]))
	}

	var next exchange.Cursor
	if len(markets) == limit {
		next = exchange.Cursor(strconv.Itoa(offset + limit))
	}
	return batch, next, nil
}

// GetContractsByIDs is a best-effort fallback: EX-B's markets endpoint is
// not efficient for bulk id lookups, so callers on this exchange should
// prefer GetOrderBook per token where possible (spec §4.10 step 4).
func (c *Client) GetContractsByIDs(ctx context.Context, ids []string) ([]exchange.RawContract, error) {
	out := make([]exchange.RawContract, 0, len(ids))
	for _, id := range ids {
		rc, err := c.GetContract(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *rc)
	}
	return out, nil
}

func (c *Client) GetContract(ctx context.Context, id string) (*exchange.RawContract, error) {
	var m market
	if err := c.get(ctx, "/markets/"+id, nil, &m); err != nil {
		return nil, err
	}
	rc := toRaw(&m)
	return &rc, nil
}

// clobBook mirrors the CLOB order book response shape.
type clobBook struct {
	Bids []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"asks"`
}

func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*exchange.OrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var raw clobBook
	if err := c.get(ctx, "/book", params, &raw); err != nil {
		return nil, err
	}

	book := &exchange.OrderBook{TokenID: tokenID, Timestamp: time.Now().UTC()}
	for _, b := range raw.Bids {
		p, _ := strconv.ParseFloat(b.Price, 64)
		s, _ := strconv.ParseFloat(b.Size, 64)
		book.Bids = append(book.Bids, exchange.PriceLevel{Price: p, Size: s})
	}
	for _, a := range raw.Asks {
		p, _ := strconv.ParseFloat(a.Price, 64)
		s, _ := strconv.ParseFloat(a.Size, 64)
		book.Asks = append(book.Asks, exchange.PriceLevel{Price: p, Size: s})
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
		return fmt.Errorf("%w: gamma", contract.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: gamma api error %d: %s", contract.ErrUpstreamUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
