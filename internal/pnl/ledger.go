// Package pnl keeps per-wallet cost basis for parsed swaps and derives
// realized and unrealized profit figures from it.
package pnl

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// PriceFeed supplies the SOL/USD price for stable-leg valuation.
type PriceFeed interface {
	SOLPrice(ctx context.Context) (float64, error)
}

// WalletSummary is one wallet's aggregate PnL with its per-token
// breakdown.
type WalletSummary struct {
	domain.WalletPnL

	Buys  int
	Sells int

	// Tokens is sorted by mint for stable output.
	Tokens []domain.TokenPosition
}

// Options contains configuration for creating a Ledger.
type Options struct {
	// Audit receives every parsed swap, including UNKNOWN-direction ones
	// that never reach cost basis. Optional.
	Audit  storage.SwapAuditStore
	Prices PriceFeed
	Logger *log.Logger
}

// Ledger tracks cost basis in memory and mirrors every swap to the
// audit store. Average-cost accounting: realized PnL on a sell is the
// proceeds minus the average buy price of the tokens sold.
type Ledger struct {
	audit  storage.SwapAuditStore
	prices PriceFeed
	logger *log.Logger

	mu sync.RWMutex
	// wallet -> mint -> running position
	books map[string]map[string]*domain.TokenPosition
	buys  map[string]int
	sells map[string]int
}

// NewLedger creates a PnL ledger.
func NewLedger(opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Ledger{
		audit:  opts.Audit,
		prices: opts.Prices,
		logger: logger,
		books:  make(map[string]map[string]*domain.TokenPosition),
		buys:   make(map[string]int),
		sells:  make(map[string]int),
	}
}

// RecordSwap folds a parsed swap into the wallet's cost basis and
// appends it to the audit trail. UNKNOWN-direction swaps are audited
// but never touch cost basis.
func (l *Ledger) RecordSwap(ctx context.Context, event *domain.SwapEvent) {
	if l.audit != nil {
		if err := l.audit.Insert(ctx, event); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			l.logger.Printf("audit insert for %s failed: %v", event.TxSignature, err)
		}
	}

	switch event.Direction {
	case domain.DirectionBuy:
		l.recordBuy(ctx, event)
	case domain.DirectionSell:
		l.recordSell(ctx, event)
	default:
		// Token-for-token swaps have no SOL leg to price the basis with.
	}
}

func (l *Ledger) recordBuy(ctx context.Context, event *domain.SwapEvent) {
	costSOL := l.solValue(ctx, event.InputMint, event.InputAmount)

	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.position(event.Wallet, event.OutputMint)
	pos.TotalBought += event.OutputAmount
	pos.TotalCostSOL += costSOL
	l.touch(pos, event)
	l.buys[event.Wallet]++
}

func (l *Ledger) recordSell(ctx context.Context, event *domain.SwapEvent) {
	proceedsSOL := l.solValue(ctx, event.OutputMint, event.OutputAmount)

	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.position(event.Wallet, event.InputMint)

	// Sells beyond recorded holdings still book proceeds, but the sold
	// amount is clamped so holdings never go negative.
	sold := event.InputAmount
	if remaining := pos.TotalBought - pos.TotalSold; sold > remaining {
		sold = clampZero(remaining)
	}

	pos.TotalSold += sold
	pos.TotalProceeds += proceedsSOL
	l.touch(pos, event)
	l.sells[event.Wallet]++
}

// touch updates the derived fields shared by both trade sides.
// Callers must hold l.mu.
func (l *Ledger) touch(pos *domain.TokenPosition, event *domain.SwapEvent) {
	pos.Holdings = clampZero(pos.TotalBought - pos.TotalSold)
	pos.TradeCount++
	if pos.FirstTradeTime == 0 || event.BlockTime < pos.FirstTradeTime {
		pos.FirstTradeTime = event.BlockTime
	}
	if event.BlockTime > pos.LastTradeTime {
		pos.LastTradeTime = event.BlockTime
	}
}

// position returns the live record; callers must hold l.mu.
func (l *Ledger) position(wallet, mint string) *domain.TokenPosition {
	book, ok := l.books[wallet]
	if !ok {
		book = make(map[string]*domain.TokenPosition)
		l.books[wallet] = book
	}
	pos, ok := book[mint]
	if !ok {
		pos = &domain.TokenPosition{Wallet: wallet, Mint: mint}
		book[mint] = pos
	}
	return pos
}

// solValue prices one swap leg in SOL. WSOL is face value, stables go
// through the live SOL price, anything else contributes zero basis.
func (l *Ledger) solValue(ctx context.Context, mint string, amount float64) float64 {
	if mint == domain.WSOLMint {
		return amount
	}
	if domain.IsBaseMint(mint) {
		solPrice, err := l.prices.SOLPrice(ctx)
		if err != nil || solPrice <= 0 {
			l.logger.Printf("SOL price unavailable for stable valuation: %v", err)
			return 0
		}
		return amount / solPrice
	}
	return 0
}

// closed reports whether the token position has been fully exited.
func closed(pos *domain.TokenPosition) bool {
	return pos.TotalBought > 0 && pos.Holdings <= 0
}

// Summary builds one wallet's aggregate PnL. currentPricesSOL maps mint
// to the current price in SOL per token; holdings of mints missing from
// the map contribute no unrealized PnL.
func (l *Ledger) Summary(wallet string, currentPricesSOL map[string]float64) WalletSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.summaryLocked(wallet, currentPricesSOL)
}

func (l *Ledger) summaryLocked(wallet string, currentPricesSOL map[string]float64) WalletSummary {
	summary := WalletSummary{
		WalletPnL: domain.WalletPnL{Wallet: wallet},
		Buys:      l.buys[wallet],
		Sells:     l.sells[wallet],
	}
	summary.TradeCount = int64(summary.Buys + summary.Sells)

	for _, pos := range l.books[wallet] {
		summary.RealizedSOL += pos.RealizedPnL()
		if price, ok := currentPricesSOL[pos.Mint]; ok {
			summary.UnrealizedSOL += pos.UnrealizedPnL(price)
		}
		if closed(pos) {
			if pos.RealizedPnL() > 0 {
				summary.Wins++
			} else {
				summary.Losses++
			}
		}
		summary.Tokens = append(summary.Tokens, *pos)
	}
	summary.TokenCount = len(summary.Tokens)
	summary.TotalSOL = summary.RealizedSOL + summary.UnrealizedSOL

	sort.Slice(summary.Tokens, func(i, j int) bool {
		return summary.Tokens[i].Mint < summary.Tokens[j].Mint
	})
	return summary
}

// Leaderboard returns every recorded wallet's summary sorted by total
// PnL, best first.
func (l *Ledger) Leaderboard(currentPricesSOL map[string]float64) []WalletSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	wallets := make(map[string]struct{}, len(l.books))
	for w := range l.books {
		wallets[w] = struct{}{}
	}
	for w := range l.buys {
		wallets[w] = struct{}{}
	}
	for w := range l.sells {
		wallets[w] = struct{}{}
	}

	result := make([]WalletSummary, 0, len(wallets))
	for w := range wallets {
		result = append(result, l.summaryLocked(w, currentPricesSOL))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalSOL != result[j].TotalSOL {
			return result[i].TotalSOL > result[j].TotalSOL
		}
		return result[i].Wallet < result[j].Wallet
	})
	return result
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
