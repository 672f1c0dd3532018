package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, mint, symbol,
	entry_price, entry_spend_sol, entry_token_amount, entry_time, entry_signature,
	take_profit_pct, stop_loss_pct, current_price, status,
	exit_price, exit_time, exit_signature, exit_error
`

// Upsert inserts or replaces a position keyed by id.
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (position_id) DO UPDATE SET
			current_price = EXCLUDED.current_price,
			status = EXCLUDED.status,
			take_profit_pct = EXCLUDED.take_profit_pct,
			stop_loss_pct = EXCLUDED.stop_loss_pct,
			exit_price = EXCLUDED.exit_price,
			exit_time = EXCLUDED.exit_time,
			exit_signature = EXCLUDED.exit_signature,
			exit_error = EXCLUDED.exit_error
	`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Mint, p.Symbol,
		p.EntryPrice, p.EntrySpendSOL, p.EntryTokenAmount, p.EntryTime, p.EntrySignature,
		p.TakeProfitPct, p.StopLossPct, p.CurrentPrice, string(p.Status),
		p.ExitPrice, p.ExitTime, p.ExitSignature, p.ExitError,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// GetByID retrieves a position. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, id string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE position_id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetOpen retrieves all positions still in the OPEN state, ordered by entry time ASC.
func (s *PositionStore) GetOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = $1
		ORDER BY entry_time ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(domain.PositionOpen))
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetAll retrieves every position, ordered by entry time ASC.
func (s *PositionStore) GetAll(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		ORDER BY entry_time ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	var status string
	err := row.Scan(
		&p.ID, &p.Mint, &p.Symbol,
		&p.EntryPrice, &p.EntrySpendSOL, &p.EntryTokenAmount, &p.EntryTime, &p.EntrySignature,
		&p.TakeProfitPct, &p.StopLossPct, &p.CurrentPrice, &status,
		&p.ExitPrice, &p.ExitTime, &p.ExitSignature, &p.ExitError,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PositionStatus(status)
	return &p, nil
}

func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}
	return positions, nil
}
