// Package position tracks open token positions and exits them when
// take-profit or stop-loss thresholds are crossed.
package position

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

// PriceFeed supplies USD prices for open position valuation.
type PriceFeed interface {
	GetPrice(ctx context.Context, mint string) (float64, error)
}

// Executor runs exit trades to a terminal outcome.
type Executor interface {
	Execute(ctx context.Context, intent domain.TradeIntent) *domain.ExecutionOutcome
}

// Options contains configuration for creating a Manager.
type Options struct {
	Store    storage.PositionStore
	Executor Executor
	Prices   PriceFeed

	CheckInterval time.Duration // default 10s
	TakeProfitPct float64       // default 50
	StopLossPct   float64       // default 25
	Logger        *log.Logger

	// OnClosed receives every position that reaches a terminal status.
	OnClosed func(position *domain.Position)
}

// OpenParams describes a new position from a confirmed buy.
type OpenParams struct {
	Mint           string
	Symbol         string
	EntryPrice     float64 // USD per token
	SpendSOL       float64
	TokenAmount    float64
	EntrySignature string

	// Optional per-position threshold overrides; 0 uses the defaults.
	TakeProfitPct float64
	StopLossPct   float64
}

// Manager owns the position lifecycle: open -> terminal, with a periodic
// price check driving take-profit and stop-loss exits. Every mutation is
// persisted before the manager moves on.
type Manager struct {
	store    storage.PositionStore
	executor Executor
	prices   PriceFeed

	checkInterval time.Duration
	takeProfitPct float64
	stopLossPct   float64
	logger        *log.Logger
	onClosed      func(*domain.Position)

	// closeMu serializes terminal transitions so a manual close and an
	// automatic exit can never both fire for the same position.
	closeMu sync.Mutex

	now func() time.Time
}

// NewManager creates a position manager.
func NewManager(opts Options) *Manager {
	checkInterval := opts.CheckInterval
	if checkInterval == 0 {
		checkInterval = defaultCheckInterval
	}
	takeProfitPct := opts.TakeProfitPct
	if takeProfitPct == 0 {
		takeProfitPct = domain.DefaultTakeProfitPct
	}
	stopLossPct := opts.StopLossPct
	if stopLossPct == 0 {
		stopLossPct = domain.DefaultStopLossPct
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Manager{
		store:         opts.Store,
		executor:      opts.Executor,
		prices:        opts.Prices,
		checkInterval: checkInterval,
		takeProfitPct: takeProfitPct,
		stopLossPct:   stopLossPct,
		logger:        logger,
		onClosed:      opts.OnClosed,
		now:           time.Now,
	}
}

// Open records a new position from a confirmed buy.
func (m *Manager) Open(ctx context.Context, params OpenParams) (*domain.Position, error) {
	if params.TokenAmount <= 0 {
		return nil, fmt.Errorf("%w: non-positive token amount", storage.ErrInvalidInput)
	}

	takeProfitPct := params.TakeProfitPct
	if takeProfitPct == 0 {
		takeProfitPct = m.takeProfitPct
	}
	stopLossPct := params.StopLossPct
	if stopLossPct == 0 {
		stopLossPct = m.stopLossPct
	}

	entryTime := m.now().Unix()
	position := &domain.Position{
		ID:               idhash.PositionID(params.Mint, params.EntrySignature, entryTime),
		Mint:             params.Mint,
		Symbol:           params.Symbol,
		EntryPrice:       params.EntryPrice,
		EntrySpendSOL:    params.SpendSOL,
		EntryTokenAmount: params.TokenAmount,
		EntryTime:        entryTime,
		EntrySignature:   params.EntrySignature,
		TakeProfitPct:    takeProfitPct,
		StopLossPct:      stopLossPct,
		CurrentPrice:     params.EntryPrice,
		Status:           domain.PositionOpen,
	}

	if err := m.store.Upsert(ctx, position); err != nil {
		return nil, fmt.Errorf("persist position: %w", err)
	}

	m.updateOpenGauge(ctx)
	m.logger.Printf("position opened: %s %f %s at $%.8f (tp +%.1f%% / sl -%.1f%%)",
		position.ID, position.EntryTokenAmount, position.Mint, position.EntryPrice,
		position.TakeProfitPct, position.StopLossPct)

	result := *position
	return &result, nil
}

// Run starts the exit-check loop. It blocks until the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Printf("position manager started, check interval %v", m.checkInterval)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Println("position manager stopping...")
			return ctx.Err()
		case <-ticker.C:
			m.checkPositions(ctx)
		}
	}
}

// checkPositions revalues every open position and exits the ones past
// their thresholds.
func (m *Manager) checkPositions(ctx context.Context) {
	open, err := m.store.GetOpen(ctx)
	if err != nil {
		m.logger.Printf("open position lookup failed: %v", err)
		return
	}

	for _, position := range open {
		price, err := m.prices.GetPrice(ctx, position.Mint)
		if err != nil || price <= 0 {
			m.logger.Printf("price unavailable for %s: %v", position.Mint, err)
			continue
		}

		position.CurrentPrice = price
		if err := m.store.Upsert(ctx, position); err != nil {
			m.logger.Printf("persist price update for %s: %v", position.ID, err)
			continue
		}

		pnl := position.PnLPct(price)
		switch {
		case pnl >= position.TakeProfitPct:
			m.logger.Printf("take profit on %s: %.2f%% >= %.2f%%", position.ID, pnl, position.TakeProfitPct)
			m.close(ctx, position.ID, domain.PositionTPHit)
		case pnl <= -position.StopLossPct:
			m.logger.Printf("stop loss on %s: %.2f%% <= -%.2f%%", position.ID, pnl, position.StopLossPct)
			m.close(ctx, position.ID, domain.PositionSLHit)
		}
	}
}

// CloseManual exits a position on request while it is still open.
func (m *Manager) CloseManual(ctx context.Context, id string) error {
	return m.close(ctx, id, domain.PositionManualClose)
}

// close runs the exit trade and moves the position to a terminal status.
// A failed exit trade still closes the bookkeeping, with status FAILED.
func (m *Manager) close(ctx context.Context, id string, status domain.PositionStatus) error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	position, err := m.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load position %s: %w", id, err)
	}
	if position.Closed() {
		return fmt.Errorf("position %s already closed (%s)", id, position.Status)
	}

	outcome := m.executor.Execute(ctx, domain.TradeIntent{
		InputMint:  position.Mint,
		OutputMint: domain.WSOLMint,
		Amount:     position.EntryTokenAmount,
		Source:     domain.SourcePositionExit,
	})

	position.ExitTime = m.now().Unix()
	position.ExitPrice = position.CurrentPrice
	if outcome.Confirmed() {
		position.Status = status
		position.ExitSignature = outcome.Signature
	} else {
		position.Status = domain.PositionFailed
		position.ExitError = outcome.Error
	}

	if err := m.store.Upsert(ctx, position); err != nil {
		return fmt.Errorf("persist close of %s: %w", id, err)
	}

	observability.RecordPositionClosed(string(position.Status))
	m.updateOpenGauge(ctx)
	m.logger.Printf("position closed: %s %s at $%.8f", position.ID, position.Status, position.ExitPrice)

	if m.onClosed != nil {
		closed := *position
		m.onClosed(&closed)
	}
	return nil
}

// WinRate returns the fraction of closed positions that hit take profit,
// in percent. No closed positions yields 0.
func (m *Manager) WinRate(ctx context.Context) (float64, error) {
	all, err := m.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	var closed, wins int
	for _, p := range all {
		if !p.Closed() {
			continue
		}
		closed++
		if p.Status == domain.PositionTPHit {
			wins++
		}
	}
	if closed == 0 {
		return 0, nil
	}
	return float64(wins) / float64(closed) * 100, nil
}

func (m *Manager) updateOpenGauge(ctx context.Context) {
	if open, err := m.store.GetOpen(ctx); err == nil {
		observability.UpdateOpenPositions(len(open))
	}
}
