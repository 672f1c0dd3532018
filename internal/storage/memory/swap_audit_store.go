package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

type swapKey struct {
	wallet    string
	signature string
}

// SwapAuditStore is an in-memory implementation of storage.SwapAuditStore.
type SwapAuditStore struct {
	mu   sync.RWMutex
	data map[swapKey]*domain.SwapEvent
}

// NewSwapAuditStore creates a new in-memory swap audit store.
func NewSwapAuditStore() *SwapAuditStore {
	return &SwapAuditStore{
		data: make(map[swapKey]*domain.SwapEvent),
	}
}

// Insert appends a swap row. Returns ErrDuplicateKey if already recorded.
func (s *SwapAuditStore) Insert(_ context.Context, e *domain.SwapEvent) error {
	if e == nil || e.Wallet == "" || e.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := swapKey{wallet: e.Wallet, signature: e.TxSignature}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[key] = &copy
	return nil
}

// GetByWallet retrieves all recorded swaps for a wallet, ordered by block time ASC.
func (s *SwapAuditStore) GetByWallet(_ context.Context, wallet string) ([]*domain.SwapEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapEvent
	for key, e := range s.data {
		if key.wallet == wallet {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockTime != result[j].BlockTime {
			return result[i].BlockTime < result[j].BlockTime
		}
		return result[i].TxSignature < result[j].TxSignature
	})

	return result, nil
}

// CountByWallet returns the number of recorded swaps for a wallet.
func (s *SwapAuditStore) CountByWallet(_ context.Context, wallet string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for key := range s.data {
		if key.wallet == wallet {
			n++
		}
	}
	return n, nil
}

var _ storage.SwapAuditStore = (*SwapAuditStore)(nil)
