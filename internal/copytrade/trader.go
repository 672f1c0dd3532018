// Package copytrade decides which tracked-wallet swaps to mirror and
// forwards the accepted ones to the execution engine.
package copytrade

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
)

// SizingMode selects how copy trade size is derived from the original.
type SizingMode string

const (
	// SizingFixed copies with a fixed SOL amount per trade.
	SizingFixed SizingMode = "fixed"
	// SizingPercentage copies a percentage of the original SOL value.
	SizingPercentage SizingMode = "percentage"
	// SizingProportional is reserved for balance-ratio sizing; it
	// currently behaves like fixed.
	SizingProportional SizingMode = "proportional"
)

// Filters restrict which swaps are eligible for copying.
type Filters struct {
	BuysOnly  bool
	SellsOnly bool

	// TokenWhitelist, when non-empty, requires either swap side to match.
	TokenWhitelist []string
	// TokenBlacklist rejects a swap when either side matches.
	TokenBlacklist []string

	MinTradeSOL float64
	MaxTradeSOL float64
}

// Config holds copy trading settings.
type Config struct {
	Filters        Filters
	SizingMode     SizingMode
	FixedSizeSOL   float64
	CopyPercentage float64 // percent of the original SOL value
	CopyDelay      time.Duration

	// MaxOpenPositions caps concurrent positions; 0 disables the check.
	MaxOpenPositions int
	// ReserveSOL is kept untouched in the trading wallet for fees.
	ReserveSOL float64
}

// Decision is the outcome of evaluating one swap.
type Decision struct {
	Copy   bool
	Reason string
	// Amount is the copy size in UI units of the swap's input mint.
	Amount float64
}

func reject(reason string) Decision { return Decision{Reason: reason} }

// Executor runs trade intents to a terminal outcome.
type Executor interface {
	Execute(ctx context.Context, intent domain.TradeIntent) *domain.ExecutionOutcome
}

// PriceFeed supplies the SOL/USD price for stable-leg valuation.
type PriceFeed interface {
	SOLPrice(ctx context.Context) (float64, error)
}

// Options contains configuration for creating a Trader.
type Options struct {
	Config        Config
	Executor      Executor
	Prices        PriceFeed
	WalletStore   storage.TrackedWalletStore
	PositionStore storage.PositionStore
	RPC           solana.RPCClient
	OwnAddress    string
	Logger        *log.Logger

	// OnExecuted receives the outcome of every forwarded copy trade.
	OnExecuted func(event *domain.SwapEvent, outcome *domain.ExecutionOutcome)
}

// Trader evaluates swaps from tracked wallets and mirrors the accepted
// ones through the execution engine.
type Trader struct {
	config        Config
	executor      Executor
	prices        PriceFeed
	walletStore   storage.TrackedWalletStore
	positionStore storage.PositionStore
	rpc           solana.RPCClient
	ownAddress    string
	logger        *log.Logger
	onExecuted    func(*domain.SwapEvent, *domain.ExecutionOutcome)

	detected atomic.Int64
	copied   atomic.Int64
	skipped  atomic.Int64

	sleep func(context.Context, time.Duration)
}

// NewTrader creates a copy trader.
func NewTrader(opts Options) *Trader {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Trader{
		config:        opts.Config,
		executor:      opts.Executor,
		prices:        opts.Prices,
		walletStore:   opts.WalletStore,
		positionStore: opts.PositionStore,
		rpc:           opts.RPC,
		ownAddress:    opts.OwnAddress,
		logger:        logger,
		onExecuted:    opts.OnExecuted,
		sleep:         sleepCtx,
	}
}

// Stats returns the running decision counters.
func (t *Trader) Stats() (detected, copied, skipped int64) {
	return t.detected.Load(), t.copied.Load(), t.skipped.Load()
}

// HandleSwap is the monitor subscriber entry point. It evaluates the
// swap, waits out the copy delay, and executes the mirrored trade.
func (t *Trader) HandleSwap(ctx context.Context, event *domain.SwapEvent) {
	t.detected.Add(1)

	decision := t.Decide(ctx, event)
	if !decision.Copy {
		t.skipped.Add(1)
		observability.RecordCopyDecision("skipped")
		t.logger.Printf("skip %s from %s: %s", event.TxSignature, event.Wallet, decision.Reason)
		return
	}
	observability.RecordCopyDecision("copied")

	if t.config.CopyDelay > 0 {
		t.sleep(ctx, t.config.CopyDelay)
	}

	if event.Direction == domain.DirectionBuy {
		if reason := t.buyPreflight(ctx, decision.Amount); reason != "" {
			t.skipped.Add(1)
			observability.RecordCopyDecision("skipped")
			t.logger.Printf("skip %s from %s: %s", event.TxSignature, event.Wallet, reason)
			return
		}
	}

	intent := domain.TradeIntent{
		InputMint:       event.InputMint,
		OutputMint:      event.OutputMint,
		Amount:          decision.Amount,
		SlippageBps:     domain.DefaultSlippageBps,
		Source:          domain.SourceCopyTrade,
		SourceWallet:    event.Wallet,
		SourceSignature: event.TxSignature,
	}

	t.logger.Printf("copying %s: %f %s -> %s", event.TxSignature, intent.Amount, intent.InputMint, intent.OutputMint)
	outcome := t.executor.Execute(ctx, intent)
	t.copied.Add(1)
	observability.RecordCopyExecuted()

	if outcome.Confirmed() {
		t.logger.Printf("copy confirmed: %s", outcome.Signature)
	} else {
		t.logger.Printf("copy %s: %s", outcome.Status, outcome.Error)
	}

	if t.onExecuted != nil {
		t.onExecuted(event, outcome)
	}
}

// Decide evaluates a swap against the configured filters and sizing.
// Checks run in a fixed order; the first failing check rejects.
func (t *Trader) Decide(ctx context.Context, event *domain.SwapEvent) Decision {
	filters := t.config.Filters

	if filters.BuysOnly && event.Direction != domain.DirectionBuy {
		return reject("sells not allowed (buys_only)")
	}
	if filters.SellsOnly && event.Direction != domain.DirectionSell {
		return reject("buys not allowed (sells_only)")
	}

	if len(filters.TokenWhitelist) > 0 &&
		!containsEither(filters.TokenWhitelist, event.InputMint, event.OutputMint) {
		return reject("token not in whitelist")
	}
	if containsEither(filters.TokenBlacklist, event.InputMint, event.OutputMint) {
		return reject("token in blacklist")
	}

	valueSOL := t.estimateSOLValue(ctx, event)

	if filters.MinTradeSOL > 0 && valueSOL < filters.MinTradeSOL {
		return reject(fmt.Sprintf("trade too small (%.4f SOL < %.4f SOL)", valueSOL, filters.MinTradeSOL))
	}
	if filters.MaxTradeSOL > 0 && valueSOL > filters.MaxTradeSOL {
		return reject(fmt.Sprintf("trade too large (%.4f SOL > %.4f SOL)", valueSOL, filters.MaxTradeSOL))
	}

	sizeSOL := t.copySizeSOL(ctx, event, valueSOL)
	if sizeSOL <= 0 || valueSOL <= 0 {
		return reject("calculated copy amount is zero")
	}

	// Scale the observed input so the copy is worth sizeSOL.
	amount := event.InputAmount * sizeSOL / valueSOL
	if amount <= 0 {
		return reject("calculated copy amount is zero")
	}

	return Decision{Copy: true, Reason: "passed all filters", Amount: amount}
}

// estimateSOLValue prices the swap in SOL: the base-asset side when one
// exists, raw input amount otherwise. Stable legs are converted at the
// live SOL price.
func (t *Trader) estimateSOLValue(ctx context.Context, event *domain.SwapEvent) float64 {
	if event.InputMint == domain.WSOLMint {
		return event.InputAmount
	}
	if event.OutputMint == domain.WSOLMint {
		return event.OutputAmount
	}
	if domain.IsBaseMint(event.InputMint) {
		return t.stableToSOL(ctx, event.InputAmount)
	}
	if domain.IsBaseMint(event.OutputMint) {
		return t.stableToSOL(ctx, event.OutputAmount)
	}
	return event.InputAmount
}

func (t *Trader) stableToSOL(ctx context.Context, usdAmount float64) float64 {
	solPrice, err := t.prices.SOLPrice(ctx)
	if err != nil || solPrice <= 0 {
		t.logger.Printf("SOL price unavailable for stable valuation: %v", err)
		return 0
	}
	return usdAmount / solPrice
}

// copySizeSOL derives the copy size in SOL from the sizing mode, with
// the per-wallet percentage override applied last.
func (t *Trader) copySizeSOL(ctx context.Context, event *domain.SwapEvent, valueSOL float64) float64 {
	var sizeSOL float64
	switch t.config.SizingMode {
	case SizingPercentage:
		sizeSOL = valueSOL * t.config.CopyPercentage / 100
	case SizingProportional:
		sizeSOL = t.config.FixedSizeSOL
	default:
		sizeSOL = t.config.FixedSizeSOL
	}

	if wallet, err := t.walletStore.GetByAddress(ctx, event.Wallet); err == nil && wallet.CopyPercentage > 0 {
		sizeSOL = valueSOL * wallet.CopyPercentage / 100
	}

	return sizeSOL
}

// buyPreflight runs the checks that only apply before spending SOL:
// the concurrent-position cap and the wallet balance.
func (t *Trader) buyPreflight(ctx context.Context, amountSOL float64) string {
	if t.config.MaxOpenPositions > 0 && t.positionStore != nil {
		open, err := t.positionStore.GetOpen(ctx)
		if err != nil {
			return fmt.Sprintf("open position lookup failed: %v", err)
		}
		if len(open) >= t.config.MaxOpenPositions {
			return fmt.Sprintf("max open positions reached (%d)", t.config.MaxOpenPositions)
		}
	}

	if t.rpc != nil && t.ownAddress != "" {
		balance, err := t.rpc.GetBalance(ctx, t.ownAddress)
		if err != nil {
			return fmt.Sprintf("balance check failed: %v", err)
		}
		if balance < amountSOL+t.config.ReserveSOL {
			return fmt.Sprintf("insufficient balance (%.4f SOL < %.4f SOL needed)", balance, amountSOL+t.config.ReserveSOL)
		}
	}

	return ""
}

func containsEither(list []string, a, b string) bool {
	for _, v := range list {
		if v == a || v == b {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
