package domain

// TradeSource tags the component that originated a trade intent.
type TradeSource string

const (
	SourceManual       TradeSource = "MANUAL"
	SourceCopyTrade    TradeSource = "COPY_TRADE"
	SourceLimitOrder   TradeSource = "LIMIT_ORDER"
	SourcePositionExit TradeSource = "POSITION_EXIT"
)

// Default slippage settings in basis points.
const (
	DefaultSlippageBps = 100
	MaxSlippageBps     = 500
)

// TradeIntent is a requested exact-in swap not yet executed.
// Immutable; created by the copy trader, limit order engine,
// position manager, or a manual caller.
type TradeIntent struct {
	InputMint   string
	OutputMint  string
	Amount      float64 // exact-in, UI units of the input mint
	SlippageBps int
	Source      TradeSource

	// Provenance, set for copy trades.
	SourceWallet    string
	SourceSignature string
}

// IsBuy reports whether the intent spends the native base asset.
func (i TradeIntent) IsBuy() bool {
	return i.InputMint == WSOLMint
}
