// Package reporting builds markdown and CSV performance reports from
// the stored audit trail.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/pnl"
	"solana-copy-trader/internal/storage"
)

// Generator produces reports from stored data. Cost basis is rebuilt
// from the swap audit trail, so the generator works offline against
// the same stores the trader writes to.
type Generator struct {
	walletStore   storage.TrackedWalletStore
	auditStore    storage.SwapAuditStore
	positionStore storage.PositionStore
	orderStore    storage.LimitOrderStore
	prices        pnl.PriceFeed

	now func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(
	walletStore storage.TrackedWalletStore,
	auditStore storage.SwapAuditStore,
	positionStore storage.PositionStore,
	orderStore storage.LimitOrderStore,
	prices pnl.PriceFeed,
) *Generator {
	return &Generator{
		walletStore:   walletStore,
		auditStore:    auditStore,
		positionStore: positionStore,
		orderStore:    orderStore,
		prices:        prices,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	wallets, err := g.walletStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}

	leaderboard, recordedSwaps, err := g.buildLeaderboard(ctx, wallets)
	if err != nil {
		return nil, err
	}

	positions, summary, err := g.buildPositions(ctx)
	if err != nil {
		return nil, err
	}

	summary.TrackedWallets = len(wallets)
	summary.RecordedSwaps = recordedSwaps

	if err := g.fillOrderCounts(ctx, &summary); err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt: g.now(),
		Summary:     summary,
		Leaderboard: leaderboard,
		Positions:   positions,
	}, nil
}

// buildLeaderboard replays each wallet's audited swaps through a fresh
// ledger and ranks the resulting summaries.
func (g *Generator) buildLeaderboard(ctx context.Context, wallets []*domain.TrackedWallet) ([]WalletRow, int, error) {
	ledger := pnl.NewLedger(pnl.Options{Prices: g.prices})
	labels := make(map[string]string, len(wallets))

	var recorded int
	for _, w := range wallets {
		labels[w.Address] = w.Label

		swaps, err := g.auditStore.GetByWallet(ctx, w.Address)
		if err != nil {
			return nil, 0, fmt.Errorf("load swaps for %s: %w", w.Address, err)
		}
		for _, swap := range swaps {
			ledger.RecordSwap(ctx, swap)
		}
		recorded += len(swaps)
	}

	summaries := ledger.Leaderboard(nil)
	rows := make([]WalletRow, len(summaries))
	for i, s := range summaries {
		s.Label = labels[s.Wallet]
		rows[i] = WalletRow{
			Rank:          i + 1,
			WalletSummary: s,
		}
	}
	return rows, recorded, nil
}

func (g *Generator) buildPositions(ctx context.Context) ([]PositionRow, Summary, error) {
	var summary Summary

	all, err := g.positionStore.GetAll(ctx)
	if err != nil {
		return nil, summary, fmt.Errorf("load positions: %w", err)
	}

	var wins int
	rows := make([]PositionRow, len(all))
	for i, p := range all {
		exitOrCurrent := p.ExitPrice
		if !p.Closed() {
			exitOrCurrent = p.CurrentPrice
			summary.OpenPositions++
		} else {
			summary.ClosedPositions++
			if p.Status == domain.PositionTPHit {
				wins++
			}
		}

		rows[i] = PositionRow{
			ID:         p.ID,
			Mint:       p.Mint,
			Symbol:     p.Symbol,
			Status:     string(p.Status),
			EntryPrice: p.EntryPrice,
			ExitPrice:  p.ExitPrice,
			PnLPct:     p.PnLPct(exitOrCurrent),
			EntryTime:  p.EntryTime,
			ExitTime:   p.ExitTime,
		}
	}

	if summary.ClosedPositions > 0 {
		summary.PositionWinRate = float64(wins) / float64(summary.ClosedPositions) * 100
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EntryTime != rows[j].EntryTime {
			return rows[i].EntryTime > rows[j].EntryTime
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, summary, nil
}

func (g *Generator) fillOrderCounts(ctx context.Context, summary *Summary) error {
	orders, err := g.orderStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	for _, o := range orders {
		switch o.Status {
		case domain.OrderPending:
			summary.PendingOrders++
		case domain.OrderFilled:
			summary.FilledOrders++
		}
	}
	return nil
}
