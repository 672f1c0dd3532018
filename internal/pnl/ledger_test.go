package pnl

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage/memory"
)

const (
	walletA  = "WalletA111111111111111111111111111111111111"
	walletB  = "WalletB111111111111111111111111111111111111"
	memeMint = "MemeMint111111111111111111111111111111111111"
)

type fakeSOLPrice struct {
	price float64
	err   error
}

func (f *fakeSOLPrice) SOLPrice(context.Context) (float64, error) {
	return f.price, f.err
}

func newTestLedger(audit *memory.SwapAuditStore) *Ledger {
	opts := Options{
		Prices: &fakeSOLPrice{price: 150},
		Logger: log.New(io.Discard, "", 0),
	}
	if audit != nil {
		opts.Audit = audit
	}
	return NewLedger(opts)
}

func buyEvent(wallet, sig string, spendSOL, tokens float64) *domain.SwapEvent {
	return &domain.SwapEvent{
		Wallet:       wallet,
		TxSignature:  sig,
		InputMint:    domain.WSOLMint,
		InputAmount:  spendSOL,
		OutputMint:   memeMint,
		OutputAmount: tokens,
		Direction:    domain.DirectionBuy,
		Success:      true,
	}
}

func sellEvent(wallet, sig string, tokens, receiveSOL float64) *domain.SwapEvent {
	return &domain.SwapEvent{
		Wallet:       wallet,
		TxSignature:  sig,
		InputMint:    memeMint,
		InputAmount:  tokens,
		OutputMint:   domain.WSOLMint,
		OutputAmount: receiveSOL,
		Direction:    domain.DirectionSell,
		Success:      true,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func tokenPosition(t *testing.T, l *Ledger, wallet, mint string) domain.TokenPosition {
	t.Helper()
	summary := l.Summary(wallet, nil)
	for _, pos := range summary.Tokens {
		if pos.Mint == mint {
			return pos
		}
	}
	t.Fatalf("no position for %s in wallet %s", mint, wallet)
	return domain.TokenPosition{}
}

func TestRecordBuy(t *testing.T) {
	l := newTestLedger(nil)
	l.RecordSwap(context.Background(), buyEvent(walletA, "sig1", 1.0, 500))

	pos := tokenPosition(t, l, walletA, memeMint)
	if pos.TotalBought != 500 {
		t.Errorf("expected 500 bought, got %f", pos.TotalBought)
	}
	if pos.TotalCostSOL != 1.0 {
		t.Errorf("expected 1.0 SOL cost, got %f", pos.TotalCostSOL)
	}
	if !approx(pos.AvgBuyPrice(), 0.002) {
		t.Errorf("expected avg buy 0.002, got %f", pos.AvgBuyPrice())
	}
	if pos.Holdings != 500 {
		t.Errorf("expected 500 holdings, got %f", pos.Holdings)
	}
}

func TestRealizedOnSell(t *testing.T) {
	l := newTestLedger(nil)
	l.RecordSwap(context.Background(), buyEvent(walletA, "sig1", 1.0, 500))
	l.RecordSwap(context.Background(), sellEvent(walletA, "sig2", 250, 0.75))

	pos := tokenPosition(t, l, walletA, memeMint)
	// Proceeds 0.75 minus avg cost 0.002 * 250 sold.
	if !approx(pos.RealizedPnL(), 0.25) {
		t.Errorf("expected realized 0.25 SOL, got %f", pos.RealizedPnL())
	}
	if pos.Holdings != 250 {
		t.Errorf("expected 250 holdings left, got %f", pos.Holdings)
	}
}

func TestSellClampedAtHoldings(t *testing.T) {
	l := newTestLedger(nil)
	l.RecordSwap(context.Background(), buyEvent(walletA, "sig1", 1.0, 500))
	l.RecordSwap(context.Background(), sellEvent(walletA, "sig2", 800, 2.0))

	pos := tokenPosition(t, l, walletA, memeMint)
	if pos.Holdings != 0 {
		t.Errorf("expected holdings clamped to 0, got %f", pos.Holdings)
	}
	if pos.TotalSold != 500 {
		t.Errorf("expected sold clamped to 500, got %f", pos.TotalSold)
	}
	// Full proceeds still count, cost basis only covers the 500 held.
	if !approx(pos.RealizedPnL(), 2.0-0.002*500) {
		t.Errorf("expected realized %f, got %f", 2.0-0.002*500, pos.RealizedPnL())
	}
}

func TestStableLegValuedThroughPriceFeed(t *testing.T) {
	l := newTestLedger(nil)
	// 150 USDC at $150/SOL is a 1.0 SOL cost basis.
	l.RecordSwap(context.Background(), &domain.SwapEvent{
		Wallet:       walletA,
		TxSignature:  "sig1",
		InputMint:    domain.USDCMint,
		InputAmount:  150,
		OutputMint:   memeMint,
		OutputAmount: 500,
		Direction:    domain.DirectionBuy,
		Success:      true,
	})

	pos := tokenPosition(t, l, walletA, memeMint)
	if !approx(pos.TotalCostSOL, 1.0) {
		t.Errorf("expected 1.0 SOL cost from stable leg, got %f", pos.TotalCostSOL)
	}
}

func TestStableFeedDownContributesZeroBasis(t *testing.T) {
	l := NewLedger(Options{
		Prices: &fakeSOLPrice{err: errors.New("feed down")},
		Logger: log.New(io.Discard, "", 0),
	})
	l.RecordSwap(context.Background(), &domain.SwapEvent{
		Wallet:       walletA,
		TxSignature:  "sig1",
		InputMint:    domain.USDCMint,
		InputAmount:  150,
		OutputMint:   memeMint,
		OutputAmount: 500,
		Direction:    domain.DirectionBuy,
		Success:      true,
	})

	pos := tokenPosition(t, l, walletA, memeMint)
	if pos.TotalCostSOL != 0 {
		t.Errorf("expected zero basis when the feed is down, got %f", pos.TotalCostSOL)
	}
	if pos.TotalBought != 500 {
		t.Errorf("token amount must still be recorded, got %f", pos.TotalBought)
	}
}

func TestUnknownDirectionAuditedOnly(t *testing.T) {
	audit := memory.NewSwapAuditStore()
	l := newTestLedger(audit)

	l.RecordSwap(context.Background(), &domain.SwapEvent{
		Wallet:       walletA,
		TxSignature:  "sig1",
		InputMint:    memeMint,
		InputAmount:  100,
		OutputMint:   "OtherMint11111111111111111111111111111111111",
		OutputAmount: 200,
		Direction:    domain.DirectionUnknown,
		Success:      true,
	})

	n, err := audit.CountByWallet(context.Background(), walletA)
	if err != nil {
		t.Fatalf("CountByWallet: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 audited swap, got %d", n)
	}

	summary := l.Summary(walletA, nil)
	if summary.TradeCount != 0 || len(summary.Tokens) != 0 {
		t.Errorf("unknown direction must not touch cost basis: %+v", summary)
	}
}

func TestDuplicateAuditTolerated(t *testing.T) {
	audit := memory.NewSwapAuditStore()
	l := newTestLedger(audit)

	l.RecordSwap(context.Background(), buyEvent(walletA, "sig1", 1.0, 500))
	l.RecordSwap(context.Background(), buyEvent(walletA, "sig1", 1.0, 500))

	n, _ := audit.CountByWallet(context.Background(), walletA)
	if n != 1 {
		t.Errorf("expected 1 audit row for duplicate signature, got %d", n)
	}
}

func TestSummaryUnrealized(t *testing.T) {
	l := newTestLedger(nil)
	l.RecordSwap(context.Background(), buyEvent(walletA, "sig1", 1.0, 500))
	l.RecordSwap(context.Background(), sellEvent(walletA, "sig2", 250, 0.75))

	// 250 held at 0.003 SOL against a 0.002 average.
	summary := l.Summary(walletA, map[string]float64{memeMint: 0.003})
	if !approx(summary.UnrealizedSOL, 0.25) {
		t.Errorf("expected unrealized 0.25 SOL, got %f", summary.UnrealizedSOL)
	}
	if !approx(summary.TotalSOL, 0.50) {
		t.Errorf("expected total 0.50 SOL, got %f", summary.TotalSOL)
	}
	if summary.Buys != 1 || summary.Sells != 1 || summary.TradeCount != 2 {
		t.Errorf("unexpected trade counts: %+v", summary)
	}
}

func TestWinRateOverClosedPositions(t *testing.T) {
	l := newTestLedger(nil)
	ctx := context.Background()

	// Winner: bought for 1.0, sold all for 2.0.
	l.RecordSwap(ctx, buyEvent(walletA, "sig1", 1.0, 500))
	l.RecordSwap(ctx, sellEvent(walletA, "sig2", 500, 2.0))

	// Loser: bought for 1.0, sold all for 0.4.
	other := "OtherMint11111111111111111111111111111111111"
	l.RecordSwap(ctx, &domain.SwapEvent{
		Wallet: walletA, TxSignature: "sig3",
		InputMint: domain.WSOLMint, InputAmount: 1.0,
		OutputMint: other, OutputAmount: 1000,
		Direction: domain.DirectionBuy, Success: true,
	})
	l.RecordSwap(ctx, &domain.SwapEvent{
		Wallet: walletA, TxSignature: "sig4",
		InputMint: other, InputAmount: 1000,
		OutputMint: domain.WSOLMint, OutputAmount: 0.4,
		Direction: domain.DirectionSell, Success: true,
	})

	summary := l.Summary(walletA, nil)
	if summary.Wins != 1 || summary.Losses != 1 {
		t.Errorf("expected 1 win and 1 loss, got %d/%d", summary.Wins, summary.Losses)
	}
	if summary.WinRate() != 0.5 {
		t.Errorf("expected 0.5 win rate, got %f", summary.WinRate())
	}
}

func TestLeaderboardSortedByTotal(t *testing.T) {
	l := newTestLedger(nil)
	ctx := context.Background()

	l.RecordSwap(ctx, buyEvent(walletA, "sig1", 1.0, 500))
	l.RecordSwap(ctx, sellEvent(walletA, "sig2", 500, 1.5))

	l.RecordSwap(ctx, buyEvent(walletB, "sig3", 1.0, 500))
	l.RecordSwap(ctx, sellEvent(walletB, "sig4", 500, 3.0))

	board := l.Leaderboard(nil)
	if len(board) != 2 {
		t.Fatalf("expected 2 wallets, got %d", len(board))
	}
	if board[0].Wallet != walletB {
		t.Errorf("expected %s first, got %s", walletB, board[0].Wallet)
	}
	if !approx(board[0].RealizedSOL, 2.0) {
		t.Errorf("expected 2.0 SOL realized for leader, got %f", board[0].RealizedSOL)
	}
}
