package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

const (
	defaultJupiterUltraURL = "https://api.jup.ag/ultra/v1"
	defaultTokenMetaURL    = "https://tokens.jup.ag/token"

	// maxRetryAfter bounds the wait honored from a 429 Retry-After header.
	maxRetryAfter = 10 * time.Second
)

// JupiterOption customizes the Jupiter backend.
type JupiterOption func(*JupiterBackend)

// WithJupiterBaseURL overrides the Ultra API endpoint.
func WithJupiterBaseURL(u string) JupiterOption {
	return func(b *JupiterBackend) { b.baseURL = u }
}

// WithJupiterTokenMetaURL overrides the token metadata endpoint.
func WithJupiterTokenMetaURL(u string) JupiterOption {
	return func(b *JupiterBackend) { b.tokenMetaURL = u }
}

// WithJupiterHTTPClient sets a custom HTTP client.
func WithJupiterHTTPClient(hc *http.Client) JupiterOption {
	return func(b *JupiterBackend) { b.httpClient = hc }
}

// WithJupiterLogger sets a custom logger.
func WithJupiterLogger(logger *log.Logger) JupiterOption {
	return func(b *JupiterBackend) { b.logger = logger }
}

// JupiterBackend executes swaps through the Jupiter Ultra API:
// order (unsigned transaction) -> sign -> execute -> on-chain status.
type JupiterBackend struct {
	baseURL      string
	tokenMetaURL string
	httpClient   *http.Client
	wallet       *solana.Wallet
	rpc          solana.RPCClient
	logger       *log.Logger

	mu       sync.Mutex
	decimals map[string]int
}

// NewJupiterBackend creates a Jupiter Ultra backend.
func NewJupiterBackend(wallet *solana.Wallet, rpc solana.RPCClient, opts ...JupiterOption) *JupiterBackend {
	b := &JupiterBackend{
		baseURL:      defaultJupiterUltraURL,
		tokenMetaURL: defaultTokenMetaURL,
		httpClient:   &http.Client{Timeout: 20 * time.Second},
		wallet:       wallet,
		rpc:          rpc,
		logger:       log.New(io.Discard, "", 0),
		decimals: map[string]int{
			domain.WSOLMint: 9,
			domain.USDCMint: 6,
			domain.USDTMint: 6,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Compile-time interface check.
var _ Backend = (*JupiterBackend)(nil)

// Name implements Backend.
func (b *JupiterBackend) Name() string { return "jupiter" }

// Supports implements Backend. Jupiter routes across every indexed venue,
// so it accepts any intent.
func (b *JupiterBackend) Supports(_ domain.TradeIntent) bool { return true }

// jupiterOrderResponse mirrors the Ultra /order payload fields used here.
type jupiterOrderResponse struct {
	RequestID   string `json:"requestId"`
	Transaction string `json:"transaction"`
	InAmount    string `json:"inAmount"`
	OutAmount   string `json:"outAmount"`
	ErrorMsg    string `json:"errorMessage"`
}

// Quote implements Backend.
func (b *JupiterBackend) Quote(ctx context.Context, intent domain.TradeIntent) (*Quote, error) {
	inDecimals, err := b.mintDecimals(ctx, intent.InputMint)
	if err != nil {
		return nil, fmt.Errorf("input mint decimals: %w", err)
	}
	rawAmount := uint64(math.Round(intent.Amount * math.Pow10(inDecimals)))
	if rawAmount == 0 {
		return nil, fmt.Errorf("amount %f rounds to zero at %d decimals", intent.Amount, inDecimals)
	}

	q := url.Values{}
	q.Set("inputMint", intent.InputMint)
	q.Set("outputMint", intent.OutputMint)
	q.Set("amount", strconv.FormatUint(rawAmount, 10))
	q.Set("taker", b.wallet.Address())
	q.Set("slippageBps", strconv.Itoa(intent.SlippageBps))

	orderURL := b.baseURL + "/order?" + q.Encode()
	resp, err := b.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, orderURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("order request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("order returned status %d: %s", resp.StatusCode, body)
	}

	var order jupiterOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	if order.ErrorMsg != "" {
		return nil, fmt.Errorf("order rejected: %s", order.ErrorMsg)
	}
	if order.Transaction == "" {
		return nil, fmt.Errorf("order response carries no transaction")
	}

	tx, err := base64.StdEncoding.DecodeString(order.Transaction)
	if err != nil {
		return nil, fmt.Errorf("decode order transaction: %w", err)
	}

	outDecimals, err := b.mintDecimals(ctx, intent.OutputMint)
	expectedOut := 0.0
	if err == nil {
		if rawOut, perr := strconv.ParseUint(order.OutAmount, 10, 64); perr == nil {
			expectedOut = float64(rawOut) / math.Pow10(outDecimals)
		}
	}

	return &Quote{
		Backend:        b.Name(),
		InputAmount:    intent.Amount,
		ExpectedOutput: expectedOut,
		Transaction:    tx,
		RequestID:      order.RequestID,
	}, nil
}

// jupiterExecuteResponse mirrors the Ultra /execute payload fields used here.
type jupiterExecuteResponse struct {
	Signature string `json:"signature"`
	Status    string `json:"status"`
	ErrorMsg  string `json:"error"`
}

// SignAndSubmit implements Backend.
func (b *JupiterBackend) SignAndSubmit(ctx context.Context, quote *Quote) (string, error) {
	signed, err := b.wallet.SignTransaction(quote.Transaction)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"signedTransaction": base64.StdEncoding.EncodeToString(signed),
		"requestId":         quote.RequestID,
	})
	if err != nil {
		return "", fmt.Errorf("encode execute request: %w", err)
	}

	resp, err := b.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/execute", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("execute returned status %d: %s", resp.StatusCode, body)
	}

	var result jupiterExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode execute response: %w", err)
	}
	if result.Signature == "" {
		if result.ErrorMsg != "" {
			return "", fmt.Errorf("execute rejected: %s", result.ErrorMsg)
		}
		return "", fmt.Errorf("execute response carries no signature")
	}

	b.logger.Printf("submitted %s (status %s)", result.Signature, result.Status)
	return result.Signature, nil
}

// PollStatus implements Backend with a single on-chain lookup.
func (b *JupiterBackend) PollStatus(ctx context.Context, signature string) (TxStatus, error) {
	tx, err := b.rpc.GetTransaction(ctx, signature)
	if err != nil {
		return TxPending, err
	}
	if tx == nil {
		return TxPending, nil
	}
	if tx.Meta != nil && tx.Meta.Err != nil {
		return TxFailed, nil
	}
	return TxConfirmed, nil
}

// doWithRetry issues the request, honoring a 429 Retry-After header
// with a single bounded retry. The builder runs once per attempt so
// request bodies are fresh.
func (b *JupiterBackend) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	req, err := build()
	if err != nil {
		return nil, err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		return resp, nil
	}

	wait := retryAfter(resp.Header.Get("Retry-After"))
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	b.logger.Printf("rate limited, retrying in %v", wait)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(wait):
	}

	req, err = build()
	if err != nil {
		return nil, err
	}
	return b.httpClient.Do(req)
}

// retryAfter parses a Retry-After header value in seconds, bounded so a
// hostile header cannot stall execution.
func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return time.Second
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		return maxRetryAfter
	}
	return d
}

// jupiterTokenMeta mirrors the token metadata payload fields used here.
type jupiterTokenMeta struct {
	Decimals int `json:"decimals"`
}

// mintDecimals resolves a mint's decimal count, cached forever since
// decimals never change.
func (b *JupiterBackend) mintDecimals(ctx context.Context, mint string) (int, error) {
	b.mu.Lock()
	if d, ok := b.decimals[mint]; ok {
		b.mu.Unlock()
		return d, nil
	}
	b.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.tokenMetaURL+"/"+mint, nil)
	if err != nil {
		return 0, fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("metadata returned status %d", resp.StatusCode)
	}

	var meta jupiterTokenMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return 0, fmt.Errorf("decode metadata: %w", err)
	}

	b.mu.Lock()
	b.decimals[mint] = meta.Decimals
	b.mu.Unlock()

	return meta.Decimals, nil
}
