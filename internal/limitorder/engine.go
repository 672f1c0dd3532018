// Package limitorder evaluates standing orders against the price feed
// and executes the ones whose trigger condition is met.
package limitorder

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

const defaultCheckInterval = 10 * time.Second

// PriceFeed supplies USD prices for trigger evaluation.
type PriceFeed interface {
	GetPrice(ctx context.Context, mint string) (float64, error)
}

// Executor runs order fills to a terminal outcome.
type Executor interface {
	Execute(ctx context.Context, intent domain.TradeIntent) *domain.ExecutionOutcome
}

// Options contains configuration for creating an Engine.
type Options struct {
	Store    storage.LimitOrderStore
	Executor Executor
	Prices   PriceFeed

	CheckInterval time.Duration // default 10s
	Logger        *log.Logger

	// OnFilled receives every order that reaches FILLED.
	OnFilled func(order *domain.LimitOrder)
}

// PlaceParams describes a new standing order.
type PlaceParams struct {
	Type        domain.OrderType
	Mint        string
	Symbol      string
	TargetPrice float64
	Amount      float64 // SOL for buy-side, tokens for sell-side
	ExpiresAt   int64   // unix seconds, 0 = never
}

// Engine owns the limit order lifecycle. Orders move
// pending -> triggered -> executing -> filled/failed, or leave pending
// as cancelled or expired. Every transition is persisted.
type Engine struct {
	store    storage.LimitOrderStore
	executor Executor
	prices   PriceFeed

	checkInterval time.Duration
	logger        *log.Logger
	onFilled      func(*domain.LimitOrder)

	// transitionMu serializes state changes. Transitions re-read the
	// stored order under the lock, so a cancel and a trigger can never
	// both claim the same pending order.
	transitionMu sync.Mutex

	now func() time.Time
}

// NewEngine creates a limit order engine.
func NewEngine(opts Options) *Engine {
	checkInterval := opts.CheckInterval
	if checkInterval == 0 {
		checkInterval = defaultCheckInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Engine{
		store:         opts.Store,
		executor:      opts.Executor,
		prices:        opts.Prices,
		checkInterval: checkInterval,
		logger:        logger,
		onFilled:      opts.OnFilled,
		now:           time.Now,
	}
}

// Place creates a new pending order.
func (e *Engine) Place(ctx context.Context, params PlaceParams) (*domain.LimitOrder, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", storage.ErrInvalidInput)
	}
	if params.TargetPrice <= 0 {
		return nil, fmt.Errorf("%w: non-positive target price", storage.ErrInvalidInput)
	}

	createdAt := e.now().Unix()
	order := &domain.LimitOrder{
		ID:          idhash.OrderID(string(params.Type), params.Mint, params.TargetPrice, createdAt),
		Type:        params.Type,
		Mint:        params.Mint,
		Symbol:      params.Symbol,
		TargetPrice: params.TargetPrice,
		Amount:      params.Amount,
		Status:      domain.OrderPending,
		CreatedAt:   createdAt,
		ExpiresAt:   params.ExpiresAt,
	}

	if err := e.store.Upsert(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	e.updatePendingGauge(ctx)
	e.logger.Printf("order placed: %s %s %s at $%.8f", order.ID, order.Type, order.Mint, order.TargetPrice)

	result := *order
	return &result, nil
}

// Cancel withdraws an order. Valid only while pending.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	e.transitionMu.Lock()
	defer e.transitionMu.Unlock()

	order, err := e.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load order %s: %w", id, err)
	}
	if order.Status != domain.OrderPending {
		return fmt.Errorf("order %s is %s, only pending orders can be cancelled", id, order.Status)
	}

	order.Status = domain.OrderCancelled
	if err := e.store.Upsert(ctx, order); err != nil {
		return fmt.Errorf("persist cancel of %s: %w", id, err)
	}

	observability.RecordOrderTransition(string(domain.OrderCancelled))
	e.updatePendingGauge(ctx)
	e.logger.Printf("order cancelled: %s", id)
	return nil
}

// Run starts the evaluation loop. It blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Printf("limit order engine started, check interval %v", e.checkInterval)

	ticker := time.NewTicker(e.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Println("limit order engine stopping...")
			return ctx.Err()
		case <-ticker.C:
			e.checkOrders(ctx)
		}
	}
}

// checkOrders evaluates all pending orders, grouped by token so each
// mint costs one price lookup per cycle.
func (e *Engine) checkOrders(ctx context.Context) {
	pending, err := e.store.GetPending(ctx)
	if err != nil {
		e.logger.Printf("pending order lookup failed: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	byMint := make(map[string][]*domain.LimitOrder)
	for _, order := range pending {
		byMint[order.Mint] = append(byMint[order.Mint], order)
	}

	now := e.now().Unix()
	for mint, orders := range byMint {
		price, err := e.prices.GetPrice(ctx, mint)
		if err != nil {
			e.logger.Printf("price unavailable for %s: %v", mint, err)
			price = 0
		}

		for _, order := range orders {
			// Expiry wins over the trigger when both hold.
			if order.ExpiresAt > 0 && now >= order.ExpiresAt {
				e.expire(ctx, order.ID)
				continue
			}
			if price <= 0 {
				continue
			}
			if order.ShouldTrigger(price) {
				e.execute(ctx, order.ID, price)
			}
		}
	}

	e.updatePendingGauge(ctx)
}

func (e *Engine) expire(ctx context.Context, id string) {
	e.transitionMu.Lock()
	defer e.transitionMu.Unlock()

	// The pending snapshot is stale by now; only the stored state decides.
	order, err := e.store.GetByID(ctx, id)
	if err != nil {
		e.logger.Printf("load order %s: %v", id, err)
		return
	}
	if order.Status != domain.OrderPending {
		return
	}
	order.Status = domain.OrderExpired
	if err := e.store.Upsert(ctx, order); err != nil {
		e.logger.Printf("persist expiry of %s: %v", order.ID, err)
		return
	}
	observability.RecordOrderTransition(string(domain.OrderExpired))
	e.logger.Printf("order expired: %s", order.ID)
}

// execute walks a triggered order through execution to its terminal
// status, persisting each step.
func (e *Engine) execute(ctx context.Context, id string, price float64) {
	e.transitionMu.Lock()
	// The pending snapshot is stale by now; only the stored state decides.
	order, err := e.store.GetByID(ctx, id)
	if err != nil {
		e.transitionMu.Unlock()
		e.logger.Printf("load order %s: %v", id, err)
		return
	}
	if order.Status != domain.OrderPending {
		e.transitionMu.Unlock()
		return
	}
	order.Status = domain.OrderTriggered
	if err := e.store.Upsert(ctx, order); err != nil {
		e.logger.Printf("persist trigger of %s: %v", order.ID, err)
		e.transitionMu.Unlock()
		return
	}
	e.transitionMu.Unlock()
	observability.RecordOrderTransition(string(domain.OrderTriggered))
	e.logger.Printf("order triggered: %s at $%.8f (target $%.8f)", order.ID, price, order.TargetPrice)

	order.Status = domain.OrderExecuting
	if err := e.store.Upsert(ctx, order); err != nil {
		e.logger.Printf("persist executing of %s: %v", order.ID, err)
		return
	}
	observability.RecordOrderTransition(string(domain.OrderExecuting))

	outcome := e.executor.Execute(ctx, e.intentFor(order))

	if outcome.Confirmed() {
		order.Status = domain.OrderFilled
		order.FillPrice = price
		order.FillAmount = outcome.OutputAmount
		order.FillSignature = outcome.Signature
		order.FillTime = e.now().Unix()
	} else {
		order.Status = domain.OrderFailed
		order.Error = outcome.Error
	}

	if err := e.store.Upsert(ctx, order); err != nil {
		e.logger.Printf("persist fill of %s: %v", order.ID, err)
		return
	}
	observability.RecordOrderTransition(string(order.Status))
	e.logger.Printf("order %s: %s", order.Status, order.ID)

	if order.Status == domain.OrderFilled && e.onFilled != nil {
		filled := *order
		e.onFilled(&filled)
	}
}

func (e *Engine) intentFor(order *domain.LimitOrder) domain.TradeIntent {
	if order.IsBuySide() {
		return domain.TradeIntent{
			InputMint:  domain.WSOLMint,
			OutputMint: order.Mint,
			Amount:     order.Amount,
			Source:     domain.SourceLimitOrder,
		}
	}
	return domain.TradeIntent{
		InputMint:  order.Mint,
		OutputMint: domain.WSOLMint,
		Amount:     order.Amount,
		Source:     domain.SourceLimitOrder,
	}
}

func (e *Engine) updatePendingGauge(ctx context.Context) {
	if pending, err := e.store.GetPending(ctx); err == nil {
		observability.UpdatePendingOrders(len(pending))
	}
}
