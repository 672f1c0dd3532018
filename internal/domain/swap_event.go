package domain

// Direction classifies a swap relative to the configured base-asset set.
type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionUnknown Direction = "UNKNOWN"
)

// SwapEvent is a parsed swap executed by a tracked wallet.
// Immutable once constructed; created only by the parser.
type SwapEvent struct {
	Wallet      string    // subject address the deltas were computed for
	TxSignature string    // transaction signature
	Slot        int64     // slot the transaction landed in
	BlockTime   int64     // unix seconds, 0 if unknown
	InputMint   string    // mint with the most negative balance delta
	InputAmount float64   // UI amount spent (positive)
	OutputMint  string    // mint with the most positive balance delta
	OutputAmount float64  // UI amount received (positive)
	Direction   Direction // relative to the base-asset set
	Venue       string    // DEX label from the program allow-list
	FeeSOL      float64   // transaction fee in SOL
	Success     bool      // always true for emitted events; errored txs are rejected
}
