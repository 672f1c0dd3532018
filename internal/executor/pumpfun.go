package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

const defaultPumpPortalURL = "https://pumpportal.fun/api/trade-local"

// PumpPortalOption customizes the PumpPortal backend.
type PumpPortalOption func(*PumpPortalBackend)

// WithPumpPortalURL overrides the trade-local endpoint.
func WithPumpPortalURL(u string) PumpPortalOption {
	return func(b *PumpPortalBackend) { b.baseURL = u }
}

// WithPumpPortalHTTPClient sets a custom HTTP client.
func WithPumpPortalHTTPClient(hc *http.Client) PumpPortalOption {
	return func(b *PumpPortalBackend) { b.httpClient = hc }
}

// WithPumpPortalPriorityFee sets the priority fee in SOL attached to trades.
func WithPumpPortalPriorityFee(fee float64) PumpPortalOption {
	return func(b *PumpPortalBackend) { b.priorityFee = fee }
}

// WithPumpPortalLogger sets a custom logger.
func WithPumpPortalLogger(logger *log.Logger) PumpPortalOption {
	return func(b *PumpPortalBackend) { b.logger = logger }
}

// PumpPortalBackend executes bonding-curve swaps through the PumpPortal
// trade-local API: build unsigned transaction -> sign -> RPC send.
type PumpPortalBackend struct {
	baseURL     string
	httpClient  *http.Client
	wallet      *solana.Wallet
	rpc         solana.RPCClient
	prices      PriceFeed
	priorityFee float64
	logger      *log.Logger
}

// NewPumpPortalBackend creates a PumpPortal backend.
func NewPumpPortalBackend(wallet *solana.Wallet, rpc solana.RPCClient, prices PriceFeed, opts ...PumpPortalOption) *PumpPortalBackend {
	b := &PumpPortalBackend{
		baseURL:     defaultPumpPortalURL,
		httpClient:  &http.Client{Timeout: 20 * time.Second},
		wallet:      wallet,
		rpc:         rpc,
		prices:      prices,
		priorityFee: 0.0001,
		logger:      log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Compile-time interface check.
var _ Backend = (*PumpPortalBackend)(nil)

// Name implements Backend.
func (b *PumpPortalBackend) Name() string { return "pumpportal" }

// Supports implements Backend. PumpPortal only serves bonding-curve
// tokens, recognizable by the vanity mint suffix, and only against SOL.
func (b *PumpPortalBackend) Supports(intent domain.TradeIntent) bool {
	if intent.IsBuy() {
		return strings.HasSuffix(intent.OutputMint, "pump")
	}
	return strings.HasSuffix(intent.InputMint, "pump") && intent.OutputMint == domain.WSOLMint
}

// Quote implements Backend. PumpPortal builds the unsigned transaction in
// one call; the output estimate comes from the price feed since the API
// returns no quote.
func (b *PumpPortalBackend) Quote(ctx context.Context, intent domain.TradeIntent) (*Quote, error) {
	action := "sell"
	denominatedInSol := "false"
	if intent.IsBuy() {
		action = "buy"
		denominatedInSol = "true"
	}

	payload, err := json.Marshal(map[string]interface{}{
		"publicKey":        b.wallet.Address(),
		"action":           action,
		"mint":             b.tradedMint(intent),
		"amount":           intent.Amount,
		"denominatedInSol": denominatedInSol,
		"slippage":         float64(intent.SlippageBps) / 100,
		"priorityFee":      b.priorityFee,
		"pool":             "pump",
	})
	if err != nil {
		return nil, fmt.Errorf("encode trade request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build trade request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trade request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("trade-local returned status %d: %s", resp.StatusCode, body)
	}

	// The response body is the serialized unsigned transaction.
	tx, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	if len(tx) == 0 {
		return nil, fmt.Errorf("trade-local returned empty transaction")
	}

	return &Quote{
		Backend:        b.Name(),
		InputAmount:    intent.Amount,
		ExpectedOutput: b.estimateOutput(ctx, intent),
		Transaction:    tx,
	}, nil
}

// SignAndSubmit implements Backend.
func (b *PumpPortalBackend) SignAndSubmit(ctx context.Context, quote *Quote) (string, error) {
	signed, err := b.wallet.SignTransaction(quote.Transaction)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	signature, err := b.rpc.SendTransaction(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	b.logger.Printf("submitted %s", signature)
	return signature, nil
}

// PollStatus implements Backend with a single on-chain lookup.
func (b *PumpPortalBackend) PollStatus(ctx context.Context, signature string) (TxStatus, error) {
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

// tradedMint returns the bonding-curve token side of the intent.
func (b *PumpPortalBackend) tradedMint(intent domain.TradeIntent) string {
	if intent.IsBuy() {
		return intent.OutputMint
	}
	return intent.InputMint
}

func (b *PumpPortalBackend) estimateOutput(ctx context.Context, intent domain.TradeIntent) float64 {
	if b.prices == nil {
		return 0
	}
	inPrice, errIn := b.prices.GetPrice(ctx, intent.InputMint)
	outPrice, errOut := b.prices.GetPrice(ctx, intent.OutputMint)
	if errIn != nil || errOut != nil || outPrice <= 0 {
		return 0
	}
	return intent.Amount * inPrice / outPrice
}
