package executor

import (
	"context"

	"solana-copy-trader/internal/domain"
)

// TxStatus is the result of a single backend status poll.
type TxStatus int

const (
	// TxPending means the transaction has not landed yet.
	TxPending TxStatus = iota
	// TxConfirmed means the transaction landed successfully.
	TxConfirmed
	// TxFailed means the transaction landed with an on-chain error.
	TxFailed
)

// Quote is a backend's priced, ready-to-sign response to a trade intent.
type Quote struct {
	Backend        string
	InputAmount    float64 // UI units of the input mint
	ExpectedOutput float64 // UI units of the output mint, best-effort estimate

	// Transaction is the unsigned serialized transaction produced by the
	// backend, ready for the wallet signature.
	Transaction []byte

	// RequestID ties the quote to the backend's execution session when the
	// backend requires one.
	RequestID string
}

// Backend builds and submits swap transactions through one execution venue.
// Quote and SignAndSubmit failures are retryable on another backend;
// anything after submission is not.
type Backend interface {
	// Name identifies the backend in outcomes, logs and metrics.
	Name() string

	// Supports reports whether this backend can execute the intent.
	Supports(intent domain.TradeIntent) bool

	// Quote prices the intent and builds the unsigned transaction.
	Quote(ctx context.Context, intent domain.TradeIntent) (*Quote, error)

	// SignAndSubmit signs the quoted transaction and submits it,
	// returning the transaction signature.
	SignAndSubmit(ctx context.Context, quote *Quote) (string, error)

	// PollStatus performs a single status check for a submitted signature.
	PollStatus(ctx context.Context, signature string) (TxStatus, error)
}
