package parser

// Known DEX program IDs.
const (
	// JupiterV6 is the Jupiter aggregator v6 program ID.
	JupiterV6 = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	// JupiterV4 is the Jupiter aggregator v4 program ID.
	JupiterV4 = "JUP4Fb2cqiRUcaTHdrPC8h2gNsA2ETXiPDD33WcGuJB"
	// RaydiumAMMV4 is the Raydium AMM v4 program ID.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	// RaydiumCLMM is the Raydium concentrated liquidity program ID.
	RaydiumCLMM = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"
	// RaydiumCPMM is the Raydium constant product program ID.
	RaydiumCPMM = "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"
	// OrcaWhirlpool is the Orca Whirlpool program ID.
	OrcaWhirlpool = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	// OrcaV2 is the Orca token swap v2 program ID.
	OrcaV2 = "9W959DqEETiGZocYWCQPaJ6sBmUzgfxXfqGeTEdp3aQP"
	// MeteoraDLMM is the Meteora dynamic liquidity market maker program ID.
	MeteoraDLMM = "LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo"
	// MeteoraPools is the Meteora dynamic pools program ID.
	MeteoraPools = "Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB"
	// PumpFun is the pump.fun program ID.
	PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
)

// venueLabels maps allow-listed program IDs to human-readable venue names.
var venueLabels = map[string]string{
	JupiterV6:     "Jupiter v6",
	JupiterV4:     "Jupiter v4",
	RaydiumAMMV4:  "Raydium AMM",
	RaydiumCLMM:   "Raydium CLMM",
	RaydiumCPMM:   "Raydium CPMM",
	OrcaWhirlpool: "Orca Whirlpool",
	OrcaV2:        "Orca",
	MeteoraDLMM:   "Meteora DLMM",
	MeteoraPools:  "Meteora",
	PumpFun:       "Pump.fun",
}

// VenueLabel returns the venue name for an allow-listed program ID, or ""
// if the program is not a known DEX.
func VenueLabel(programID string) string {
	return venueLabels[programID]
}
