// Package marketdata fetches token prices and market stats from public
// DEX aggregator APIs with a short-lived in-memory cache.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"solana-copy-trader/internal/domain"
)

const (
	defaultDexScreenerURL = "https://api.dexscreener.com/latest/dex/tokens"
	defaultJupiterURL     = "https://api.jup.ag/price/v2"
	defaultCacheTTL       = 30 * time.Second
	defaultTimeout        = 15 * time.Second
)

// TokenInfo carries the market data used for trade valuation and reporting.
type TokenInfo struct {
	Mint           string
	Symbol         string
	Name           string
	Decimals       int
	PriceUSD       float64
	PriceSOL       float64
	PriceChange24h float64
	LiquidityUSD   float64
	MarketCap      float64
	Volume24h      float64
	FetchedAt      time.Time
}

// knownTokens avoids metadata lookups for the base-asset set.
var knownTokens = map[string]TokenInfo{
	domain.WSOLMint: {Mint: domain.WSOLMint, Symbol: "SOL", Name: "Solana", Decimals: 9},
	domain.USDCMint: {Mint: domain.USDCMint, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	domain.USDTMint: {Mint: domain.USDTMint, Symbol: "USDT", Name: "Tether USD", Decimals: 6},
}

// ClientOption customizes the market data client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithDexScreenerURL overrides the DexScreener endpoint.
func WithDexScreenerURL(u string) ClientOption {
	return func(c *Client) { c.dexScreenerURL = u }
}

// WithJupiterURL overrides the Jupiter price endpoint.
func WithJupiterURL(u string) ClientOption {
	return func(c *Client) { c.jupiterURL = u }
}

// WithCacheTTL sets how long fetched token info stays fresh.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) { c.cacheTTL = ttl }
}

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// Client fetches token market data from DexScreener and Jupiter.
// DexScreener's highest-liquidity pair is preferred; Jupiter fills in the
// price when DexScreener has no pair for the token.
type Client struct {
	httpClient     *http.Client
	dexScreenerURL string
	jupiterURL     string
	cacheTTL       time.Duration
	logger         *log.Logger

	mu    sync.Mutex
	cache map[string]TokenInfo

	now func() time.Time
}

// NewClient creates a market data client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: defaultTimeout},
		dexScreenerURL: defaultDexScreenerURL,
		jupiterURL:     defaultJupiterURL,
		cacheTTL:       defaultCacheTTL,
		logger:         log.New(io.Discard, "", 0),
		cache:          make(map[string]TokenInfo),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetTokenInfo returns market data for a mint, served from cache while
// fresh. Both upstream sources failing yields an error; a token that
// neither source knows yields zero prices, not an error.
func (c *Client) GetTokenInfo(ctx context.Context, mint string) (*TokenInfo, error) {
	c.mu.Lock()
	if cached, ok := c.cache[mint]; ok && c.now().Sub(cached.FetchedAt) < c.cacheTTL {
		c.mu.Unlock()
		info := cached
		return &info, nil
	}
	c.mu.Unlock()

	info := TokenInfo{Mint: mint}
	if known, ok := knownTokens[mint]; ok {
		info = known
	}

	dexErr := c.fillFromDexScreener(ctx, &info)
	var jupErr error
	if info.PriceUSD == 0 {
		jupErr = c.fillFromJupiter(ctx, &info)
	}
	if dexErr != nil && jupErr != nil {
		return nil, fmt.Errorf("fetch token info for %s: dexscreener: %v; jupiter: %w", mint, dexErr, jupErr)
	}
	if dexErr != nil {
		c.logger.Printf("dexscreener fetch failed for %s: %v", mint, dexErr)
	}

	info.FetchedAt = c.now()

	c.mu.Lock()
	c.cache[mint] = info
	c.mu.Unlock()

	result := info
	return &result, nil
}

// GetPrice returns the USD price for a mint, 0 when unknown.
func (c *Client) GetPrice(ctx context.Context, mint string) (float64, error) {
	info, err := c.GetTokenInfo(ctx, mint)
	if err != nil {
		return 0, err
	}
	return info.PriceUSD, nil
}

// SOLPrice returns the current SOL price in USD.
func (c *Client) SOLPrice(ctx context.Context) (float64, error) {
	return c.GetPrice(ctx, domain.WSOLMint)
}

// dexScreenerResponse mirrors the /latest/dex/tokens payload.
type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

type dexScreenerPair struct {
	BaseToken struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"baseToken"`
	PriceUSD    string `json:"priceUsd"`
	PriceNative string `json:"priceNative"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	MarketCap float64 `json:"marketCap"`
}

func (c *Client) fillFromDexScreener(ctx context.Context, info *TokenInfo) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.dexScreenerURL+"/"+info.Mint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload dexScreenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Pairs) == 0 {
		return nil
	}

	// Highest-liquidity pair wins.
	sort.Slice(payload.Pairs, func(i, j int) bool {
		return payload.Pairs[i].Liquidity.USD > payload.Pairs[j].Liquidity.USD
	})
	pair := payload.Pairs[0]

	if info.Symbol == "" {
		info.Symbol = pair.BaseToken.Symbol
	}
	if info.Name == "" {
		info.Name = pair.BaseToken.Name
	}
	info.PriceUSD = parseFloat(pair.PriceUSD)
	info.PriceSOL = parseFloat(pair.PriceNative)
	info.PriceChange24h = pair.PriceChange.H24
	info.LiquidityUSD = pair.Liquidity.USD
	info.Volume24h = pair.Volume.H24
	info.MarketCap = pair.MarketCap

	return nil
}

// jupiterPriceResponse mirrors the price/v2 payload.
type jupiterPriceResponse struct {
	Data map[string]struct {
		Price string `json:"price"`
	} `json:"data"`
}

func (c *Client) fillFromJupiter(ctx context.Context, info *TokenInfo) error {
	u := c.jupiterURL + "?ids=" + url.QueryEscape(info.Mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload jupiterPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if entry, ok := payload.Data[info.Mint]; ok {
		info.PriceUSD = parseFloat(entry.Price)
	}
	return nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
