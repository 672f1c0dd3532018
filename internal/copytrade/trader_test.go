package copytrade

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana/stub"
	"solana-copy-trader/internal/storage/memory"
)

const (
	whaleWallet = "WhaleWa11et111111111111111111111111111111111"
	ownWallet   = "OwnWa11et11111111111111111111111111111111111"
	memeMint    = "MemeMint111111111111111111111111111111111111"
	otherMint   = "OtherMint11111111111111111111111111111111111"
)

type fakeExecutor struct {
	intents []domain.TradeIntent
	outcome *domain.ExecutionOutcome
}

func (f *fakeExecutor) Execute(_ context.Context, intent domain.TradeIntent) *domain.ExecutionOutcome {
	f.intents = append(f.intents, intent)
	if f.outcome != nil {
		out := *f.outcome
		out.Intent = intent
		return &out
	}
	return &domain.ExecutionOutcome{
		Intent:       intent,
		Status:       domain.StatusConfirmed,
		Signature:    "copy-sig",
		InputAmount:  intent.Amount,
		OutputAmount: intent.Amount * 1000,
	}
}

type fakeSOLPrice struct {
	price float64
	err   error
}

func (f *fakeSOLPrice) SOLPrice(_ context.Context) (float64, error) {
	return f.price, f.err
}

func buyEvent() *domain.SwapEvent {
	return &domain.SwapEvent{
		Wallet:       whaleWallet,
		TxSignature:  "whale-sig",
		InputMint:    domain.WSOLMint,
		InputAmount:  2.0,
		OutputMint:   memeMint,
		OutputAmount: 40000,
		Direction:    domain.DirectionBuy,
		Venue:        "Jupiter v6",
		Success:      true,
	}
}

func sellEvent() *domain.SwapEvent {
	return &domain.SwapEvent{
		Wallet:       whaleWallet,
		TxSignature:  "whale-sig-2",
		InputMint:    memeMint,
		InputAmount:  40000,
		OutputMint:   domain.WSOLMint,
		OutputAmount: 2.5,
		Direction:    domain.DirectionSell,
		Venue:        "Jupiter v6",
		Success:      true,
	}
}

func newTestTrader(t *testing.T, config Config) (*Trader, *fakeExecutor) {
	t.Helper()
	exec := &fakeExecutor{}
	trader := NewTrader(Options{
		Config:      config,
		Executor:    exec,
		Prices:      &fakeSOLPrice{price: 150},
		WalletStore: memory.NewTrackedWalletStore(),
		Logger:      log.New(io.Discard, "", 0),
	})
	trader.sleep = func(context.Context, time.Duration) {}
	return trader, exec
}

func TestDecide_BuysOnlyRejectsSell(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		Filters:      Filters{BuysOnly: true},
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0.1,
	})

	d := trader.Decide(context.Background(), sellEvent())
	if d.Copy {
		t.Fatalf("expected rejection, got copy (%s)", d.Reason)
	}
}

func TestDecide_SellsOnlyRejectsBuy(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		Filters:      Filters{SellsOnly: true},
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0.1,
	})

	d := trader.Decide(context.Background(), buyEvent())
	if d.Copy {
		t.Fatalf("expected rejection, got copy (%s)", d.Reason)
	}
}

func TestDecide_Whitelist(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		Filters:      Filters{TokenWhitelist: []string{memeMint}},
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0.1,
	})
	ctx := context.Background()

	if d := trader.Decide(ctx, buyEvent()); !d.Copy {
		t.Errorf("whitelisted output mint should pass, got: %s", d.Reason)
	}

	event := buyEvent()
	event.OutputMint = otherMint
	if d := trader.Decide(ctx, event); d.Copy {
		t.Error("non-whitelisted token should be rejected")
	}
}

func TestDecide_Blacklist(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		Filters:      Filters{TokenBlacklist: []string{memeMint}},
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0.1,
	})

	if d := trader.Decide(context.Background(), buyEvent()); d.Copy {
		t.Error("blacklisted token should be rejected")
	}
}

func TestDecide_SizeBounds(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		Filters:      Filters{MinTradeSOL: 0.5, MaxTradeSOL: 10},
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0.1,
	})
	ctx := context.Background()

	small := buyEvent()
	small.InputAmount = 0.1
	if d := trader.Decide(ctx, small); d.Copy {
		t.Error("trade below min should be rejected")
	}

	large := buyEvent()
	large.InputAmount = 50
	if d := trader.Decide(ctx, large); d.Copy {
		t.Error("trade above max should be rejected")
	}

	if d := trader.Decide(ctx, buyEvent()); !d.Copy {
		t.Errorf("in-bounds trade should pass, got: %s", d.Reason)
	}
}

func TestDecide_FixedSizing(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0.1,
	})

	d := trader.Decide(context.Background(), buyEvent())
	if !d.Copy {
		t.Fatalf("expected copy, got: %s", d.Reason)
	}
	// Original spent 2.0 SOL; fixed size 0.1 SOL.
	if d.Amount != 0.1 {
		t.Errorf("expected amount 0.1 SOL, got %f", d.Amount)
	}
}

func TestDecide_PercentageSizing(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		SizingMode:     SizingPercentage,
		CopyPercentage: 25,
	})

	d := trader.Decide(context.Background(), buyEvent())
	if !d.Copy {
		t.Fatalf("expected copy, got: %s", d.Reason)
	}
	// 25% of the 2.0 SOL original.
	if d.Amount != 0.5 {
		t.Errorf("expected amount 0.5 SOL, got %f", d.Amount)
	}
}

func TestDecide_ProportionalFallsBackToFixed(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		SizingMode:   SizingProportional,
		FixedSizeSOL: 0.2,
	})

	d := trader.Decide(context.Background(), buyEvent())
	if !d.Copy {
		t.Fatalf("expected copy, got: %s", d.Reason)
	}
	if d.Amount != 0.2 {
		t.Errorf("expected amount 0.2 SOL, got %f", d.Amount)
	}
}

func TestDecide_PerWalletOverride(t *testing.T) {
	store := memory.NewTrackedWalletStore()
	ctx := context.Background()
	if err := store.Upsert(ctx, &domain.TrackedWallet{
		Address:        whaleWallet,
		CopyPercentage: 50,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	trader := NewTrader(Options{
		Config:      Config{SizingMode: SizingFixed, FixedSizeSOL: 0.1},
		Executor:    &fakeExecutor{},
		Prices:      &fakeSOLPrice{price: 150},
		WalletStore: store,
		Logger:      log.New(io.Discard, "", 0),
	})

	d := trader.Decide(ctx, buyEvent())
	if !d.Copy {
		t.Fatalf("expected copy, got: %s", d.Reason)
	}
	// Override: 50% of the 2.0 SOL original, not the 0.1 fixed size.
	if d.Amount != 1.0 {
		t.Errorf("expected amount 1.0 SOL from override, got %f", d.Amount)
	}
}

func TestDecide_ZeroSizeRejected(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0,
	})

	if d := trader.Decide(context.Background(), buyEvent()); d.Copy {
		t.Error("zero copy size should be rejected")
	}
}

func TestDecide_StableInputValuedThroughPriceFeed(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		Filters:      Filters{MinTradeSOL: 1.0},
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0.1,
	})

	// 300 USDC at $150/SOL is 2 SOL, above the 1 SOL minimum.
	event := &domain.SwapEvent{
		Wallet:       whaleWallet,
		InputMint:    domain.USDCMint,
		InputAmount:  300,
		OutputMint:   memeMint,
		OutputAmount: 40000,
		Direction:    domain.DirectionBuy,
	}

	d := trader.Decide(context.Background(), event)
	if !d.Copy {
		t.Fatalf("expected copy, got: %s", d.Reason)
	}
	// 0.1 SOL of a 2 SOL trade scales the 300 USDC input to 15 USDC.
	if d.Amount != 15 {
		t.Errorf("expected amount 15 USDC, got %f", d.Amount)
	}
}

func TestDecide_SellSizedInTokenUnits(t *testing.T) {
	trader, _ := newTestTrader(t, Config{
		SizingMode:     SizingPercentage,
		CopyPercentage: 10,
	})

	d := trader.Decide(context.Background(), sellEvent())
	if !d.Copy {
		t.Fatalf("expected copy, got: %s", d.Reason)
	}
	// 10% of the 2.5 SOL proceeds scales the 40000 token input to 4000.
	if d.Amount != 4000 {
		t.Errorf("expected amount 4000 tokens, got %f", d.Amount)
	}
}

func TestHandleSwap_ExecutesAndCounts(t *testing.T) {
	trader, exec := newTestTrader(t, Config{
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0.1,
	})

	var executed *domain.ExecutionOutcome
	trader.onExecuted = func(_ *domain.SwapEvent, outcome *domain.ExecutionOutcome) {
		executed = outcome
	}

	trader.HandleSwap(context.Background(), buyEvent())

	if len(exec.intents) != 1 {
		t.Fatalf("expected 1 executed intent, got %d", len(exec.intents))
	}
	intent := exec.intents[0]
	if intent.Source != domain.SourceCopyTrade {
		t.Errorf("expected COPY_TRADE source, got %s", intent.Source)
	}
	if intent.SourceWallet != whaleWallet || intent.SourceSignature != "whale-sig" {
		t.Errorf("provenance missing: %+v", intent)
	}
	if executed == nil {
		t.Fatal("onExecuted callback not invoked")
	}

	detected, copied, skipped := trader.Stats()
	if detected != 1 || copied != 1 || skipped != 0 {
		t.Errorf("expected counters 1/1/0, got %d/%d/%d", detected, copied, skipped)
	}
}

func TestHandleSwap_SkipCounts(t *testing.T) {
	trader, exec := newTestTrader(t, Config{
		Filters:      Filters{BuysOnly: true},
		SizingMode:   SizingFixed,
		FixedSizeSOL: 0.1,
	})

	trader.HandleSwap(context.Background(), sellEvent())

	if len(exec.intents) != 0 {
		t.Fatalf("rejected swap must not execute, got %d intents", len(exec.intents))
	}
	detected, copied, skipped := trader.Stats()
	if detected != 1 || copied != 0 || skipped != 1 {
		t.Errorf("expected counters 1/0/1, got %d/%d/%d", detected, copied, skipped)
	}
}

func TestHandleSwap_MaxOpenPositions(t *testing.T) {
	positions := memory.NewPositionStore()
	ctx := context.Background()
	for i, id := range []string{"p1", "p2"} {
		if err := positions.Upsert(ctx, &domain.Position{
			ID:        id,
			Mint:      otherMint,
			Status:    domain.PositionOpen,
			EntryTime: int64(1700000000 + i),
		}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	exec := &fakeExecutor{}
	trader := NewTrader(Options{
		Config: Config{
			SizingMode:       SizingFixed,
			FixedSizeSOL:     0.1,
			MaxOpenPositions: 2,
		},
		Executor:      exec,
		Prices:        &fakeSOLPrice{price: 150},
		WalletStore:   memory.NewTrackedWalletStore(),
		PositionStore: positions,
		Logger:        log.New(io.Discard, "", 0),
	})

	trader.HandleSwap(ctx, buyEvent())

	if len(exec.intents) != 0 {
		t.Error("buy must be blocked at the position cap")
	}
}

func TestHandleSwap_InsufficientBalance(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Balances[ownWallet] = 0.05

	exec := &fakeExecutor{}
	trader := NewTrader(Options{
		Config: Config{
			SizingMode:   SizingFixed,
			FixedSizeSOL: 0.1,
			ReserveSOL:   0.01,
		},
		Executor:    exec,
		Prices:      &fakeSOLPrice{price: 150},
		WalletStore: memory.NewTrackedWalletStore(),
		RPC:         rpc,
		OwnAddress:  ownWallet,
		Logger:      log.New(io.Discard, "", 0),
	})

	trader.HandleSwap(context.Background(), buyEvent())

	if len(exec.intents) != 0 {
		t.Error("buy must be blocked on insufficient balance")
	}
}

func TestDecide_StablePriceUnavailable(t *testing.T) {
	exec := &fakeExecutor{}
	trader := NewTrader(Options{
		Config:      Config{SizingMode: SizingFixed, FixedSizeSOL: 0.1},
		Executor:    exec,
		Prices:      &fakeSOLPrice{err: errors.New("feed down")},
		WalletStore: memory.NewTrackedWalletStore(),
		Logger:      log.New(io.Discard, "", 0),
	})

	event := buyEvent()
	event.InputMint = domain.USDCMint
	event.InputAmount = 300

	if d := trader.Decide(context.Background(), event); d.Copy {
		t.Error("unpriceable stable leg should reject, not copy blind")
	}
}
