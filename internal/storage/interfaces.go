package storage

import (
	"context"

	"solana-copy-trader/internal/domain"
)

// TrackedWalletStore provides access to the tracked-wallet list.
// The wallet monitor is the only writer.
type TrackedWalletStore interface {
	// Upsert inserts or replaces a wallet keyed by address.
	Upsert(ctx context.Context, w *domain.TrackedWallet) error

	// Delete removes a wallet. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, address string) error

	// GetByAddress retrieves one wallet. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.TrackedWallet, error)

	// GetAll retrieves every tracked wallet, ordered by address ASC.
	GetAll(ctx context.Context) ([]*domain.TrackedWallet, error)
}

// PositionStore provides access to position records.
// The position manager is the only writer.
type PositionStore interface {
	// Upsert inserts or replaces a position keyed by id.
	Upsert(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Position, error)

	// GetOpen retrieves all positions still in the OPEN state,
	// ordered by entry time ASC.
	GetOpen(ctx context.Context) ([]*domain.Position, error)

	// GetAll retrieves every position, ordered by entry time ASC.
	GetAll(ctx context.Context) ([]*domain.Position, error)
}

// LimitOrderStore provides access to limit order records.
// The limit order engine is the only writer.
type LimitOrderStore interface {
	// Upsert inserts or replaces an order keyed by id.
	Upsert(ctx context.Context, o *domain.LimitOrder) error

	// GetByID retrieves an order. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.LimitOrder, error)

	// GetPending retrieves orders in the PENDING state, ordered by
	// creation time ASC.
	GetPending(ctx context.Context) ([]*domain.LimitOrder, error)

	// GetAll retrieves every order, ordered by creation time ASC.
	GetAll(ctx context.Context) ([]*domain.LimitOrder, error)
}

// SwapAuditStore is the append-only audit trail of every parsed swap,
// including UNKNOWN-direction swaps excluded from cost basis.
type SwapAuditStore interface {
	// Insert appends a swap row. Returns ErrDuplicateKey if the
	// (wallet, signature) pair was already recorded.
	Insert(ctx context.Context, e *domain.SwapEvent) error

	// GetByWallet retrieves all recorded swaps for a wallet, ordered by
	// block time ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.SwapEvent, error)

	// CountByWallet returns the number of recorded swaps for a wallet.
	CountByWallet(ctx context.Context, wallet string) (int64, error)
}
