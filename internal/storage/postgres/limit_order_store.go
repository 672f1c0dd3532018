package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// LimitOrderStore implements storage.LimitOrderStore using PostgreSQL.
type LimitOrderStore struct {
	pool *Pool
}

// NewLimitOrderStore creates a new LimitOrderStore.
func NewLimitOrderStore(pool *Pool) *LimitOrderStore {
	return &LimitOrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LimitOrderStore = (*LimitOrderStore)(nil)

const orderColumns = `
	order_id, order_type, mint, symbol, target_price, amount, status,
	created_at, expires_at,
	fill_price, fill_amount, fill_signature, fill_time, error
`

// Upsert inserts or replaces an order keyed by id.
func (s *LimitOrderStore) Upsert(ctx context.Context, o *domain.LimitOrder) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO limit_orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			fill_price = EXCLUDED.fill_price,
			fill_amount = EXCLUDED.fill_amount,
			fill_signature = EXCLUDED.fill_signature,
			fill_time = EXCLUDED.fill_time,
			error = EXCLUDED.error
	`

	_, err := s.pool.Exec(ctx, query,
		o.ID, string(o.Type), o.Mint, o.Symbol, o.TargetPrice, o.Amount, string(o.Status),
		o.CreatedAt, o.ExpiresAt,
		o.FillPrice, o.FillAmount, o.FillSignature, o.FillTime, o.Error,
	)
	if err != nil {
		return fmt.Errorf("upsert limit order: %w", err)
	}
	return nil
}

// GetByID retrieves an order. Returns ErrNotFound if not exists.
func (s *LimitOrderStore) GetByID(ctx context.Context, id string) (*domain.LimitOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM limit_orders WHERE order_id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	o, err := scanLimitOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get limit order by id: %w", err)
	}
	return o, nil
}

// GetPending retrieves orders in the PENDING state, ordered by creation time ASC.
func (s *LimitOrderStore) GetPending(ctx context.Context) ([]*domain.LimitOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM limit_orders
		WHERE status = $1
		ORDER BY created_at ASC, order_id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(domain.OrderPending))
	if err != nil {
		return nil, fmt.Errorf("get pending limit orders: %w", err)
	}
	defer rows.Close()

	return scanLimitOrders(rows)
}

// GetAll retrieves every order, ordered by creation time ASC.
func (s *LimitOrderStore) GetAll(ctx context.Context) ([]*domain.LimitOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM limit_orders
		ORDER BY created_at ASC, order_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all limit orders: %w", err)
	}
	defer rows.Close()

	return scanLimitOrders(rows)
}

func scanLimitOrder(row pgx.Row) (*domain.LimitOrder, error) {
	var o domain.LimitOrder
	var orderType, status string
	err := row.Scan(
		&o.ID, &orderType, &o.Mint, &o.Symbol, &o.TargetPrice, &o.Amount, &status,
		&o.CreatedAt, &o.ExpiresAt,
		&o.FillPrice, &o.FillAmount, &o.FillSignature, &o.FillTime, &o.Error,
	)
	if err != nil {
		return nil, err
	}
	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func scanLimitOrders(rows pgx.Rows) ([]*domain.LimitOrder, error) {
	var orders []*domain.LimitOrder
	for rows.Next() {
		o, err := scanLimitOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan limit order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate limit order rows: %w", err)
	}
	return orders, nil
}
