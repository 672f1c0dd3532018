package domain

// TradeStatus is the terminal status of an execution attempt.
type TradeStatus string

const (
	StatusConfirmed TradeStatus = "CONFIRMED"
	StatusFailed    TradeStatus = "FAILED"
	// StatusExpired means a transaction was submitted but never confirmed
	// within the polling window. On-chain state is ambiguous, so the
	// engine never retries past this point.
	StatusExpired TradeStatus = "EXPIRED"
)

// ExecutionOutcome is the terminal result of executing a TradeIntent.
// Created once per intent by the execution engine; never mutated after return.
type ExecutionOutcome struct {
	Intent       TradeIntent
	Status       TradeStatus
	Signature    string  // empty if nothing was submitted
	Backend      string  // backend that produced the result
	InputAmount  float64 // realized input, UI units
	OutputAmount float64 // realized output, UI units
	Error        string  // failure detail, empty on success
	DryRun       bool
}

// Confirmed reports whether the trade landed on chain.
func (o *ExecutionOutcome) Confirmed() bool {
	return o.Status == StatusConfirmed
}
