package solana

import (
	"context"
	"time"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// RPCClient defines the Solana RPC HTTP interface used by the monitor
// and the execution engine.
type RPCClient interface {
	// GetBalance retrieves the SOL balance of an address.
	GetBalance(ctx context.Context, address string) (float64, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetTransaction retrieves a transaction by signature.
	// Returns (nil, nil) if the transaction is not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// SendTransaction submits a serialized signed transaction.
	// Returns the transaction signature.
	SendTransaction(ctx context.Context, signedTx []byte) (string, error)

	// ConfirmTransaction polls the signature status until it is confirmed,
	// fails on chain, or the timeout elapses.
	ConfirmTransaction(ctx context.Context, signature string, timeout time.Duration) (bool, error)
}

// Transaction represents a Solana transaction with the metadata needed
// for swap parsing.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // unix seconds, 0 if unknown
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	FeeLamports       uint64
	LogMessages       []string
	PreBalances       []uint64 // lamports, indexed by account key
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
	// Instructions carries the program id of each top-level instruction,
	// resolved from programIdIndex.
	Instructions []Instruction
}

// Instruction is a top-level instruction reduced to its program id.
type Instruction struct {
	ProgramID string
}

// TokenBalance is a pre/post token balance snapshot entry.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	UIAmount     float64
	Decimals     int
}
