// Package executor routes trade intents through an ordered list of swap
// backends with confirmation polling and a dry-run mode.
package executor

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/observability"
)

const (
	defaultConfirmPolls = 20
	defaultPollInterval = 2 * time.Second
)

// PriceFeed supplies USD prices for dry-run output simulation.
type PriceFeed interface {
	GetPrice(ctx context.Context, mint string) (float64, error)
}

// EngineOption customizes the execution engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithDryRun enables dry-run mode: no backend is touched and every
// intent resolves to a synthetic confirmed outcome.
func WithDryRun(enabled bool) EngineOption {
	return func(e *Engine) { e.dryRun = enabled }
}

// WithConfirmPolls sets the number of confirmation polls per submission.
func WithConfirmPolls(n int) EngineOption {
	return func(e *Engine) { e.confirmPolls = n }
}

// WithPollInterval sets the delay between confirmation polls.
func WithPollInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.pollInterval = d }
}

// Engine executes trade intents against ordered backends. A backend
// failure before submission falls through to the next backend; after
// submission the engine never retries, because the transaction may still
// land.
type Engine struct {
	backends []Backend
	prices   PriceFeed
	logger   *log.Logger

	dryRun       bool
	confirmPolls int
	pollInterval time.Duration

	executed  atomic.Int64
	simulated atomic.Int64

	now func() time.Time
}

// NewEngine creates an execution engine. Backends are tried in the
// order given.
func NewEngine(backends []Backend, prices PriceFeed, opts ...EngineOption) *Engine {
	e := &Engine{
		backends:     backends,
		prices:       prices,
		logger:       log.New(io.Discard, "", 0),
		confirmPolls: defaultConfirmPolls,
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutedTrades returns the number of real execution attempts.
func (e *Engine) ExecutedTrades() int64 { return e.executed.Load() }

// SimulatedTrades returns the number of dry-run executions.
func (e *Engine) SimulatedTrades() int64 { return e.simulated.Load() }

// Execute runs a trade intent to a terminal outcome. Never returns nil.
func (e *Engine) Execute(ctx context.Context, intent domain.TradeIntent) *domain.ExecutionOutcome {
	intent = normalizeSlippage(intent)

	if intent.Amount <= 0 {
		return &domain.ExecutionOutcome{
			Intent: intent,
			Status: domain.StatusFailed,
			Error:  "non-positive trade amount",
		}
	}

	if e.dryRun {
		return e.simulate(ctx, intent)
	}

	start := e.now()
	outcome := e.executeReal(ctx, intent)
	e.executed.Add(1)
	observability.RecordTradeExecuted(outcome.Backend, string(outcome.Status), e.now().Sub(start).Seconds())
	return outcome
}

func (e *Engine) executeReal(ctx context.Context, intent domain.TradeIntent) *domain.ExecutionOutcome {
	var lastErr error
	tried := 0

	for _, backend := range e.backends {
		if !backend.Supports(intent) {
			continue
		}
		tried++

		quote, err := backend.Quote(ctx, intent)
		if err != nil {
			e.logger.Printf("quote failed on %s: %v", backend.Name(), err)
			lastErr = fmt.Errorf("%s quote: %w", backend.Name(), err)
			continue
		}

		signature, err := backend.SignAndSubmit(ctx, quote)
		if err != nil {
			e.logger.Printf("submit failed on %s: %v", backend.Name(), err)
			lastErr = fmt.Errorf("%s submit: %w", backend.Name(), err)
			continue
		}

		// Submitted: the outcome is terminal whatever the polls say.
		return e.awaitConfirmation(ctx, intent, backend, quote, signature)
	}

	detail := "no backend supports this trade"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	e.logger.Printf("execution failed after %d backend(s): %s", tried, detail)

	return &domain.ExecutionOutcome{
		Intent: intent,
		Status: domain.StatusFailed,
		Error:  detail,
	}
}

// awaitConfirmation polls the backend until the transaction confirms,
// fails on chain, or the polling window closes.
func (e *Engine) awaitConfirmation(ctx context.Context, intent domain.TradeIntent, backend Backend, quote *Quote, signature string) *domain.ExecutionOutcome {
	outcome := &domain.ExecutionOutcome{
		Intent:       intent,
		Signature:    signature,
		Backend:      backend.Name(),
		InputAmount:  quote.InputAmount,
		OutputAmount: quote.ExpectedOutput,
	}

	for i := 0; i < e.confirmPolls; i++ {
		status, err := backend.PollStatus(ctx, signature)
		if err != nil {
			e.logger.Printf("status poll %d/%d for %s: %v", i+1, e.confirmPolls, signature, err)
		} else {
			switch status {
			case TxConfirmed:
				outcome.Status = domain.StatusConfirmed
				e.logger.Printf("trade confirmed on %s: %s", backend.Name(), signature)
				return outcome
			case TxFailed:
				outcome.Status = domain.StatusFailed
				outcome.Error = "transaction failed on chain"
				return outcome
			}
		}

		select {
		case <-ctx.Done():
			outcome.Status = domain.StatusExpired
			outcome.Error = ctx.Err().Error()
			return outcome
		case <-time.After(e.pollInterval):
		}
	}

	outcome.Status = domain.StatusExpired
	outcome.Error = fmt.Sprintf("no confirmation after %d polls", e.confirmPolls)
	e.logger.Printf("trade expired on %s: %s", backend.Name(), signature)
	return outcome
}

// simulate produces a synthetic confirmed outcome priced from the live
// feed, without touching any backend.
func (e *Engine) simulate(ctx context.Context, intent domain.TradeIntent) *domain.ExecutionOutcome {
	output := 0.0
	inPrice, errIn := e.prices.GetPrice(ctx, intent.InputMint)
	outPrice, errOut := e.prices.GetPrice(ctx, intent.OutputMint)
	if errIn == nil && errOut == nil && outPrice > 0 {
		output = intent.Amount * inPrice / outPrice
	}

	id := idhash.TradeID(intent.InputMint, intent.OutputMint, e.now().UnixNano())
	e.simulated.Add(1)
	observability.RecordTradeSimulated()
	e.logger.Printf("dry run: %f %s -> %f %s", intent.Amount, intent.InputMint, output, intent.OutputMint)

	return &domain.ExecutionOutcome{
		Intent:       intent,
		Status:       domain.StatusConfirmed,
		Signature:    "DRY_RUN_" + id,
		Backend:      "dry-run",
		InputAmount:  intent.Amount,
		OutputAmount: output,
		DryRun:       true,
	}
}

// normalizeSlippage applies the default and the hard cap.
func normalizeSlippage(intent domain.TradeIntent) domain.TradeIntent {
	if intent.SlippageBps <= 0 {
		intent.SlippageBps = domain.DefaultSlippageBps
	}
	if intent.SlippageBps > domain.MaxSlippageBps {
		intent.SlippageBps = domain.MaxSlippageBps
	}
	return intent
}
