package reporting

import (
	"time"

	"solana-copy-trader/internal/pnl"
)

// Report is the trading performance report structure.
type Report struct {
	GeneratedAt time.Time

	Summary Summary

	// Leaderboard is sorted by total PnL, best wallet first.
	Leaderboard []WalletRow

	// Positions lists every recorded position, newest first.
	Positions []PositionRow
}

// Summary contains top-line counts.
type Summary struct {
	TrackedWallets  int
	RecordedSwaps   int
	OpenPositions   int
	ClosedPositions int
	PositionWinRate float64 // take-profit closes over all closes, percent
	PendingOrders   int
	FilledOrders    int
}

// WalletRow is one leaderboard entry with its per-token breakdown.
type WalletRow struct {
	Rank int
	pnl.WalletSummary
}

// PositionRow is one row in the positions table.
type PositionRow struct {
	ID         string
	Mint       string
	Symbol     string
	Status     string
	EntryPrice float64
	ExitPrice  float64
	PnLPct     float64
	EntryTime  int64 // unix seconds
	ExitTime   int64 // unix seconds, 0 while open
}
