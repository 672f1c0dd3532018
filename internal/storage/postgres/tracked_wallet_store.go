package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TrackedWalletStore implements storage.TrackedWalletStore using PostgreSQL.
type TrackedWalletStore struct {
	pool *Pool
}

// NewTrackedWalletStore creates a new TrackedWalletStore.
func NewTrackedWalletStore(pool *Pool) *TrackedWalletStore {
	return &TrackedWalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrackedWalletStore = (*TrackedWalletStore)(nil)

// Upsert inserts or replaces a wallet keyed by address.
func (s *TrackedWalletStore) Upsert(ctx context.Context, w *domain.TrackedWallet) error {
	if w == nil || w.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tracked_wallets (
			address, label, added_at, copy_percentage,
			swaps_detected, buys, sells, last_activity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO UPDATE SET
			label = EXCLUDED.label,
			copy_percentage = EXCLUDED.copy_percentage,
			swaps_detected = EXCLUDED.swaps_detected,
			buys = EXCLUDED.buys,
			sells = EXCLUDED.sells,
			last_activity = EXCLUDED.last_activity
	`

	_, err := s.pool.Exec(ctx, query,
		w.Address, w.Label, w.AddedAt, w.CopyPercentage,
		w.SwapsDetected, w.Buys, w.Sells, w.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("upsert tracked wallet: %w", err)
	}
	return nil
}

// Delete removes a wallet. Returns ErrNotFound if it does not exist.
func (s *TrackedWalletStore) Delete(ctx context.Context, address string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tracked_wallets WHERE address = $1`, address)
	if err != nil {
		return fmt.Errorf("delete tracked wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByAddress retrieves one wallet. Returns ErrNotFound if not exists.
func (s *TrackedWalletStore) GetByAddress(ctx context.Context, address string) (*domain.TrackedWallet, error) {
	query := `
		SELECT address, label, added_at, copy_percentage,
			swaps_detected, buys, sells, last_activity
		FROM tracked_wallets
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	w, err := scanTrackedWallet(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get tracked wallet: %w", err)
	}
	return w, nil
}

// GetAll retrieves every tracked wallet, ordered by address ASC.
func (s *TrackedWalletStore) GetAll(ctx context.Context) ([]*domain.TrackedWallet, error) {
	query := `
		SELECT address, label, added_at, copy_percentage,
			swaps_detected, buys, sells, last_activity
		FROM tracked_wallets
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all tracked wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*domain.TrackedWallet
	for rows.Next() {
		w, err := scanTrackedWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracked wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked wallet rows: %w", err)
	}

	return wallets, nil
}

func scanTrackedWallet(row pgx.Row) (*domain.TrackedWallet, error) {
	var w domain.TrackedWallet
	err := row.Scan(
		&w.Address, &w.Label, &w.AddedAt, &w.CopyPercentage,
		&w.SwapsDetected, &w.Buys, &w.Sells, &w.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
