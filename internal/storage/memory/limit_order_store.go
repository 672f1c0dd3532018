package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// LimitOrderStore is an in-memory implementation of storage.LimitOrderStore.
type LimitOrderStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LimitOrder // keyed by order id
}

// NewLimitOrderStore creates a new in-memory limit order store.
func NewLimitOrderStore() *LimitOrderStore {
	return &LimitOrderStore{
		data: make(map[string]*domain.LimitOrder),
	}
}

// Upsert inserts or replaces an order keyed by id.
func (s *LimitOrderStore) Upsert(_ context.Context, o *domain.LimitOrder) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *o
	s.data[o.ID] = &copy
	return nil
}

// GetByID retrieves an order. Returns ErrNotFound if not exists.
func (s *LimitOrderStore) GetByID(_ context.Context, id string) (*domain.LimitOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *o
	return &copy, nil
}

// GetPending retrieves orders in the PENDING state, ordered by creation time ASC.
func (s *LimitOrderStore) GetPending(_ context.Context) ([]*domain.LimitOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LimitOrder
	for _, o := range s.data {
		if o.Status == domain.OrderPending {
			copy := *o
			result = append(result, &copy)
		}
	}

	sortOrders(result)
	return result, nil
}

// GetAll retrieves every order, ordered by creation time ASC.
func (s *LimitOrderStore) GetAll(_ context.Context) ([]*domain.LimitOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LimitOrder, 0, len(s.data))
	for _, o := range s.data {
		copy := *o
		result = append(result, &copy)
	}

	sortOrders(result)
	return result, nil
}

func sortOrders(orders []*domain.LimitOrder) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt < orders[j].CreatedAt
		}
		return orders[i].ID < orders[j].ID
	})
}

var _ storage.LimitOrderStore = (*LimitOrderStore)(nil)
