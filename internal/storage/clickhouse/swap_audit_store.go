package clickhouse

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// SwapAuditStore implements storage.SwapAuditStore using ClickHouse.
// Every parsed swap is appended here, including UNKNOWN-direction swaps
// that the PnL ledger excludes from cost basis.
type SwapAuditStore struct {
	conn *Conn
}

// NewSwapAuditStore creates a new SwapAuditStore.
func NewSwapAuditStore(conn *Conn) *SwapAuditStore {
	return &SwapAuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SwapAuditStore = (*SwapAuditStore)(nil)

// Insert appends a swap row. Returns ErrDuplicateKey if the
// (wallet, signature) pair was already recorded.
func (s *SwapAuditStore) Insert(ctx context.Context, e *domain.SwapEvent) error {
	if e == nil || e.Wallet == "" || e.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	// MergeTree does not enforce uniqueness, so check explicitly.
	exists, err := s.exists(ctx, e.Wallet, e.TxSignature)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO swap_audit (
			wallet, tx_signature, slot, block_time,
			input_mint, input_amount, output_mint, output_amount,
			direction, venue, fee_sol, success
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		e.Wallet, e.TxSignature, e.Slot, e.BlockTime,
		e.InputMint, e.InputAmount, e.OutputMint, e.OutputAmount,
		string(e.Direction), e.Venue, e.FeeSOL, e.Success,
	)
	if err != nil {
		return fmt.Errorf("insert swap audit row: %w", err)
	}
	return nil
}

// GetByWallet retrieves all recorded swaps for a wallet, ordered by block time ASC.
func (s *SwapAuditStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.SwapEvent, error) {
	query := `
		SELECT wallet, tx_signature, slot, block_time,
			input_mint, input_amount, output_mint, output_amount,
			direction, venue, fee_sol, success
		FROM swap_audit
		WHERE wallet = ?
		ORDER BY block_time ASC, tx_signature ASC
	`

	rows, err := s.conn.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get swaps by wallet: %w", err)
	}
	defer rows.Close()

	var events []*domain.SwapEvent
	for rows.Next() {
		var e domain.SwapEvent
		var direction string
		err := rows.Scan(
			&e.Wallet, &e.TxSignature, &e.Slot, &e.BlockTime,
			&e.InputMint, &e.InputAmount, &e.OutputMint, &e.OutputAmount,
			&direction, &e.Venue, &e.FeeSOL, &e.Success,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap audit row: %w", err)
		}
		e.Direction = domain.Direction(direction)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap audit rows: %w", err)
	}

	return events, nil
}

// CountByWallet returns the number of recorded swaps for a wallet.
func (s *SwapAuditStore) CountByWallet(ctx context.Context, wallet string) (int64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM swap_audit WHERE wallet = ?`, wallet,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count swaps by wallet: %w", err)
	}
	return int64(count), nil
}

func (s *SwapAuditStore) exists(ctx context.Context, wallet, signature string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM swap_audit WHERE wallet = ? AND tx_signature = ?`,
		wallet, signature,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
