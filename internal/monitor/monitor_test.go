package monitor

import (
	"bytes"
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/parser"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/solana/stub"
	"solana-copy-trader/internal/storage/memory"
)

const memeMint = "MemeMint111111111111111111111111111111111111"

// walletA decodes to exactly 32 bytes so AddWallet validation accepts it.
var walletA = base58.Encode(bytes.Repeat([]byte{0x11}, 32))

func swapTx(signature string, slot int64) *solana.Transaction {
	return &solana.Transaction{
		Signature: signature,
		Slot:      slot,
		BlockTime: 1700000000 + slot,
		Meta: &solana.TransactionMeta{
			FeeLamports:  5000,
			PreBalances:  []uint64{2_000_000_000, 0},
			PostBalances: []uint64{2_000_000_000 - 5000, 0},
			PreTokenBalances: []solana.TokenBalance{
				{AccountIndex: 2, Mint: domain.WSOLMint, Owner: walletA, UIAmount: 5.0, Decimals: 9},
				{AccountIndex: 3, Mint: memeMint, Owner: walletA, UIAmount: 0, Decimals: 6},
			},
			PostTokenBalances: []solana.TokenBalance{
				{AccountIndex: 2, Mint: domain.WSOLMint, Owner: walletA, UIAmount: 4.0, Decimals: 9},
				{AccountIndex: 3, Mint: memeMint, Owner: walletA, UIAmount: 500.0, Decimals: 6},
			},
		},
		Message: &solana.TransactionMessage{
			AccountKeys:  []string{walletA, parser.JupiterV6},
			Instructions: []solana.Instruction{{ProgramID: parser.JupiterV6}},
		},
	}
}

func newTestMonitor(t *testing.T, rpc *stub.RPCClient) *Monitor {
	t.Helper()
	return NewMonitor(Options{
		RPC:         rpc,
		Parser:      parser.NewSwapParser(),
		WalletStore: memory.NewTrackedWalletStore(),
		Logger:      log.New(io.Discard, "", 0),
	})
}

func TestPollDetectsSwap(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(swapTx("sig1", 100))
	rpc.AddSignatures(walletA, []solana.SignatureInfo{{Signature: "sig1", Slot: 100}})

	m := newTestMonitor(t, rpc)
	ctx := context.Background()
	if err := m.AddWallet(ctx, walletA, "whale", 0); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	var swaps []*domain.SwapEvent
	m.OnSwap(func(e *domain.SwapEvent) { swaps = append(swaps, e) })

	m.pollAll(ctx)

	if len(swaps) != 1 {
		t.Fatalf("expected 1 swap, got %d", len(swaps))
	}
	if swaps[0].Direction != domain.DirectionBuy {
		t.Errorf("expected BUY, got %s", swaps[0].Direction)
	}

	wallets := m.Wallets()
	if len(wallets) != 1 {
		t.Fatalf("expected 1 wallet, got %d", len(wallets))
	}
	if wallets[0].SwapsDetected != 1 || wallets[0].Buys != 1 {
		t.Errorf("expected counters swaps=1 buys=1, got swaps=%d buys=%d",
			wallets[0].SwapsDetected, wallets[0].Buys)
	}
}

func TestPollIsIdempotent(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(swapTx("sig1", 100))
	rpc.AddSignatures(walletA, []solana.SignatureInfo{{Signature: "sig1", Slot: 100}})

	m := newTestMonitor(t, rpc)
	ctx := context.Background()
	if err := m.AddWallet(ctx, walletA, "", 0); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	var swaps int
	m.OnSwap(func(*domain.SwapEvent) { swaps++ })

	m.pollAll(ctx)
	m.pollAll(ctx)
	m.pollAll(ctx)

	if swaps != 1 {
		t.Errorf("expected exactly 1 delivery across repeated polls, got %d", swaps)
	}
}

func TestPollProcessesOldestFirst(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(swapTx("sig-new", 200))
	rpc.AddTransaction(swapTx("sig-old", 100))
	// getSignaturesForAddress returns newest first.
	rpc.AddSignatures(walletA, []solana.SignatureInfo{
		{Signature: "sig-new", Slot: 200},
		{Signature: "sig-old", Slot: 100},
	})

	m := newTestMonitor(t, rpc)
	ctx := context.Background()
	if err := m.AddWallet(ctx, walletA, "", 0); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	var order []string
	m.OnSwap(func(e *domain.SwapEvent) { order = append(order, e.TxSignature) })

	m.pollAll(ctx)

	if len(order) != 2 {
		t.Fatalf("expected 2 swaps, got %d", len(order))
	}
	if order[0] != "sig-old" || order[1] != "sig-new" {
		t.Errorf("expected oldest first, got %v", order)
	}
}

func TestPollSkipsErroredSignatures(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddSignatures(walletA, []solana.SignatureInfo{
		{Signature: "sig-bad", Slot: 100, Err: map[string]interface{}{"InstructionError": nil}},
	})

	m := newTestMonitor(t, rpc)
	ctx := context.Background()
	if err := m.AddWallet(ctx, walletA, "", 0); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	var activity int
	m.OnActivity(func(*domain.ActivityEvent) { activity++ })

	m.pollAll(ctx)

	if activity != 0 {
		t.Errorf("errored signature must not produce activity, got %d events", activity)
	}
	if !m.alreadyProcessed("sig-bad") {
		t.Error("errored signature must still be marked processed")
	}
}

func TestActivityRingBounded(t *testing.T) {
	rpc := stub.NewRPCClient()
	m := NewMonitor(Options{
		RPC:         rpc,
		Parser:      parser.NewSwapParser(),
		WalletStore: memory.NewTrackedWalletStore(),
		ActivityCap: 3,
		Logger:      log.New(io.Discard, "", 0),
	})

	for i := 0; i < 5; i++ {
		tx := swapTx("sig", int64(100+i))
		tx.Signature = tx.Signature + string(rune('a'+i))
		m.handleTransaction(walletA, tx)
	}

	recent := m.RecentActivity()
	if len(recent) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(recent))
	}
	// Newest first.
	if recent[0].TxSignature != "sige" {
		t.Errorf("expected newest entry first, got %s", recent[0].TxSignature)
	}
}

func TestDedupSetEvictsAtCap(t *testing.T) {
	m := NewMonitor(Options{
		RPC:         stub.NewRPCClient(),
		Parser:      parser.NewSwapParser(),
		WalletStore: memory.NewTrackedWalletStore(),
		DedupCap:    5,
		Logger:      log.New(io.Discard, "", 0),
	})

	for i := 0; i < 20; i++ {
		m.markProcessed(string(rune('a' + i)))
	}

	m.mu.RLock()
	size := len(m.processed)
	m.mu.RUnlock()

	if size > 5 {
		t.Errorf("dedup set exceeded cap: %d", size)
	}
}

func TestAddWalletValidatesAddress(t *testing.T) {
	m := newTestMonitor(t, stub.NewRPCClient())

	if err := m.AddWallet(context.Background(), "not-a-valid-address", "", 0); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestRemoveWallet(t *testing.T) {
	store := memory.NewTrackedWalletStore()
	m := NewMonitor(Options{
		RPC:         stub.NewRPCClient(),
		Parser:      parser.NewSwapParser(),
		WalletStore: store,
		Logger:      log.New(io.Discard, "", 0),
	})
	ctx := context.Background()

	if err := m.AddWallet(ctx, walletA, "", 0); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}
	if err := m.RemoveWallet(ctx, walletA); err != nil {
		t.Fatalf("RemoveWallet: %v", err)
	}

	if len(m.Wallets()) != 0 {
		t.Error("wallet still tracked after removal")
	}
	if all, _ := store.GetAll(ctx); len(all) != 0 {
		t.Error("wallet still persisted after removal")
	}
}

// fakeWS implements solana.WSClient with a caller-fed channel.
type fakeWS struct {
	ch       chan solana.LogNotification
	mentions chan []string
}

func newFakeWS() *fakeWS {
	return &fakeWS{
		ch:       make(chan solana.LogNotification, 1),
		mentions: make(chan []string, 1),
	}
}

func (f *fakeWS) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	f.mentions <- filter.Mentions
	return f.ch, nil
}

func (f *fakeWS) Close() error { return nil }

func TestPushNotificationTriggersEarlyPoll(t *testing.T) {
	rpc := stub.NewRPCClient()
	ws := newFakeWS()
	m := NewMonitor(Options{
		RPC:          rpc,
		WS:           ws,
		Parser:       parser.NewSwapParser(),
		WalletStore:  memory.NewTrackedWalletStore(),
		PollInterval: time.Hour,
		Logger:       log.New(io.Discard, "", 0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.AddWallet(ctx, walletA, "", 0); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	swaps := make(chan *domain.SwapEvent, 1)
	m.OnSwap(func(e *domain.SwapEvent) { swaps <- e })

	go m.Run(ctx)

	select {
	case mentions := <-ws.mentions:
		if len(mentions) != 1 || mentions[0] != walletA {
			t.Fatalf("expected subscription mentioning %s, got %v", walletA, mentions)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no log subscription opened")
	}

	// The swap lands after Run starts; with an hour-long poll interval
	// only the push notification can surface it.
	rpc.AddTransaction(swapTx("sig-push", 100))
	rpc.AddSignatures(walletA, []solana.SignatureInfo{{Signature: "sig-push", Slot: 100}})
	ws.ch <- solana.LogNotification{Signature: "sig-push", Slot: 100}

	select {
	case e := <-swaps:
		if e.TxSignature != "sig-push" {
			t.Errorf("expected sig-push, got %s", e.TxSignature)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("push notification did not trigger a poll")
	}
}

func TestSubscriberPanicIsolated(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(swapTx("sig1", 100))
	rpc.AddSignatures(walletA, []solana.SignatureInfo{{Signature: "sig1", Slot: 100}})

	m := newTestMonitor(t, rpc)
	ctx := context.Background()
	if err := m.AddWallet(ctx, walletA, "", 0); err != nil {
		t.Fatalf("AddWallet: %v", err)
	}

	var delivered bool
	m.OnSwap(func(*domain.SwapEvent) { panic("boom") })
	m.OnSwap(func(*domain.SwapEvent) { delivered = true })

	m.pollAll(ctx)

	if !delivered {
		t.Error("panic in one subscriber must not block the next")
	}
}
