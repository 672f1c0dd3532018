package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TrackedWalletStore is an in-memory implementation of storage.TrackedWalletStore.
type TrackedWalletStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrackedWallet // keyed by address
}

// NewTrackedWalletStore creates a new in-memory tracked wallet store.
func NewTrackedWalletStore() *TrackedWalletStore {
	return &TrackedWalletStore{
		data: make(map[string]*domain.TrackedWallet),
	}
}

// Upsert inserts or replaces a wallet keyed by address.
func (s *TrackedWalletStore) Upsert(_ context.Context, w *domain.TrackedWallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *w
	s.data[w.Address] = &copy
	return nil
}

// Delete removes a wallet. Returns ErrNotFound if it does not exist.
func (s *TrackedWalletStore) Delete(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[address]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, address)
	return nil
}

// GetByAddress retrieves one wallet. Returns ErrNotFound if not exists.
func (s *TrackedWalletStore) GetByAddress(_ context.Context, address string) (*domain.TrackedWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *w
	return &copy, nil
}

// GetAll retrieves every tracked wallet, ordered by address ASC.
func (s *TrackedWalletStore) GetAll(_ context.Context) ([]*domain.TrackedWallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TrackedWallet, 0, len(s.data))
	for _, w := range s.data {
		copy := *w
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

var _ storage.TrackedWalletStore = (*TrackedWalletStore)(nil)
