package domain

// Well-known mints used as the base-asset set.
const (
	WSOLMint = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// IsBaseMint reports whether the mint belongs to the base-asset set
// (native SOL wrapper plus stable tokens).
func IsBaseMint(mint string) bool {
	switch mint {
	case WSOLMint, USDCMint, USDTMint:
		return true
	}
	return false
}

// TrackedWallet is an address under observation by the wallet monitor.
type TrackedWallet struct {
	Address string
	Label   string
	AddedAt int64 // unix seconds

	// Per-wallet copy sizing override; 0 means use the global setting.
	CopyPercentage float64

	// Running counters maintained by the monitor.
	SwapsDetected int64
	Buys          int64
	Sells         int64
	LastActivity  int64 // unix seconds of last detected swap
}

// ActivityEvent is emitted for every transaction observed for a tracked
// wallet, whether or not it parsed into a swap.
type ActivityEvent struct {
	Wallet      string
	TxSignature string
	Slot        int64
	BlockTime   int64
	Swap        *SwapEvent // nil for non-swap activity
}
