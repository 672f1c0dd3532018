// Package stub provides in-memory fakes of the solana clients for testing.
package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"solana-copy-trader/internal/solana"
)

// ErrNotFound is returned when a record is not in the stub store.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu           sync.Mutex
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo
	Balances     map[string]float64

	// Confirmations maps signature -> whether ConfirmTransaction succeeds.
	Confirmations map[string]bool

	// SendErr, when set, makes SendTransaction fail.
	SendErr error

	// Sent collects every payload passed to SendTransaction.
	Sent [][]byte

	sendCount int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Transactions:  make(map[string]*solana.Transaction),
		Signatures:    make(map[string][]solana.SignatureInfo),
		Balances:      make(map[string]float64),
		Confirmations: make(map[string]bool),
	}
}

// Compile-time interface check.
var _ solana.RPCClient = (*RPCClient)(nil)

// GetBalance retrieves a balance from the stub store.
func (c *RPCClient) GetBalance(_ context.Context, address string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[address], nil
}

// GetTransaction retrieves a transaction from the stub store.
// Returns (nil, nil) for unknown signatures, mirroring the HTTP client.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Transactions[signature], nil
}

// GetSignaturesForAddress retrieves signatures from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sigs := c.Signatures[address]
	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}
	return sigs, nil
}

// SendTransaction records the payload and returns a synthetic signature.
func (c *RPCClient) SendTransaction(_ context.Context, signedTx []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SendErr != nil {
		return "", c.SendErr
	}
	c.sendCount++
	c.Sent = append(c.Sent, signedTx)
	return fmt.Sprintf("stub-sig-%d", c.sendCount), nil
}

// ConfirmTransaction resolves from the Confirmations map; unknown
// signatures report unconfirmed.
func (c *RPCClient) ConfirmTransaction(_ context.Context, signature string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Confirmations[signature], nil
}

// AddTransaction adds a transaction to the stub store.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}
