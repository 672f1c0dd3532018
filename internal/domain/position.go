package domain

// PositionStatus is the lifecycle state of an auto-exit position.
type PositionStatus string

const (
	PositionOpen        PositionStatus = "OPEN"
	PositionTPHit       PositionStatus = "TP_HIT"
	PositionSLHit       PositionStatus = "SL_HIT"
	PositionManualClose PositionStatus = "MANUAL_CLOSE"
	// PositionFailed marks a position whose exit trade failed; bookkeeping
	// is closed but the tokens may still be held.
	PositionFailed PositionStatus = "FAILED"
)

// Default exit thresholds in percent.
const (
	DefaultTakeProfitPct = 50.0
	DefaultStopLossPct   = 25.0
)

// Position tracks an open token position and its exit targets.
// Mutated only by the position manager; terminal once status leaves OPEN.
type Position struct {
	ID     string
	Mint   string
	Symbol string

	EntryPrice       float64 // USD per token at entry
	EntrySpendSOL    float64 // SOL spent to open
	EntryTokenAmount float64 // tokens received
	EntryTime        int64   // unix seconds
	EntrySignature   string

	TakeProfitPct float64
	StopLossPct   float64

	CurrentPrice float64
	Status       PositionStatus

	ExitPrice     float64
	ExitTime      int64
	ExitSignature string
	ExitError     string
}

// Closed reports whether the position has left the OPEN state.
func (p *Position) Closed() bool {
	return p.Status != PositionOpen
}

// PnLPct returns the percentage change from entry at the given price.
func (p *Position) PnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}
