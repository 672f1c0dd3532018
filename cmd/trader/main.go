// Package main runs the copy trading service: wallet monitoring, copy
// decisions, execution, position management, limit orders, and the
// metrics endpoint, wired together behind one process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-copy-trader/internal/copytrade"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/executor"
	"solana-copy-trader/internal/limitorder"
	"solana-copy-trader/internal/marketdata"
	"solana-copy-trader/internal/monitor"
	"solana-copy-trader/internal/notify"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/parser"
	"solana-copy-trader/internal/pnl"
	"solana-copy-trader/internal/position"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
	chstore "solana-copy-trader/internal/storage/clickhouse"
	"solana-copy-trader/internal/storage/memory"
	"solana-copy-trader/internal/storage/migrations"
	pgstore "solana-copy-trader/internal/storage/postgres"
)

// Server holds every running component of the trading service.
type Server struct {
	monitor   *monitor.Monitor
	trader    *copytrade.Trader
	engine    *executor.Engine
	positions *position.Manager
	orders    *limitorder.Engine
	logger    *log.Logger

	dryRun  bool
	started time.Time
}

// allStores holds the storage implementations behind their interfaces.
type allStores struct {
	wallets   storage.TrackedWalletStore
	positions storage.PositionStore
	orders    storage.LimitOrderStore
	audit     storage.SwapAuditStore
}

func main() {
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", envOr("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional, polling works without it)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	wallets := flag.String("wallets", os.Getenv("TRACKED_WALLETS"), "Comma-separated wallet addresses to track (address or address:label)")
	webhookURL := flag.String("webhook-url", os.Getenv("WEBHOOK_URL"), "Slack/Discord webhook for notifications")
	dryRun := flag.Bool("dry-run", envOr("DRY_RUN", "") == "true", "Simulate executions instead of submitting transactions")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	pollInterval := flag.Duration("poll-interval", 5*time.Second, "Wallet poll interval")
	sizingMode := flag.String("sizing-mode", envOr("SIZING_MODE", "fixed"), "Copy sizing mode: fixed, percentage, proportional")
	fixedSizeSOL := flag.Float64("fixed-size-sol", envFloat("FIXED_SIZE_SOL", 0.1), "Copy size in SOL for fixed sizing")
	copyPercentage := flag.Float64("copy-percentage", envFloat("COPY_PERCENTAGE", 10), "Percent of the original trade for percentage sizing")
	copyDelay := flag.Duration("copy-delay", 0, "Delay before mirroring a detected swap")
	buysOnly := flag.Bool("buys-only", false, "Copy buys only")
	sellsOnly := flag.Bool("sells-only", false, "Copy sells only")
	minTradeSOL := flag.Float64("min-trade-sol", 0, "Skip swaps below this SOL value")
	maxTradeSOL := flag.Float64("max-trade-sol", 0, "Skip swaps above this SOL value")
	maxOpenPositions := flag.Int("max-open-positions", envInt("MAX_OPEN_POSITIONS", 0), "Concurrent position cap, 0 disables")
	reserveSOL := flag.Float64("reserve-sol", envFloat("RESERVE_SOL", 0.05), "SOL kept untouched for fees")
	takeProfitPct := flag.Float64("take-profit", envFloat("TAKE_PROFIT_PCT", domain.DefaultTakeProfitPct), "Take profit threshold in percent")
	stopLossPct := flag.Float64("stop-loss", envFloat("STOP_LOSS_PCT", domain.DefaultStopLossPct), "Stop loss threshold in percent")

	flag.Parse()

	logger := log.New(os.Stdout, "[trader] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	privateKey := os.Getenv("WALLET_PRIVATE_KEY")
	if privateKey == "" && !*dryRun {
		logger.Fatal("WALLET_PRIVATE_KEY is required for live trading (use --dry-run without a key)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	rpc := solana.NewHTTPClient(*rpcEndpoint)

	var wallet *solana.Wallet
	if privateKey != "" {
		wallet, err = solana.NewWalletFromBase58(privateKey)
		if err != nil {
			logger.Fatalf("Failed to load wallet: %v", err)
		}
		logger.Printf("Trading wallet: %s", wallet.Address())
	}

	var ws solana.WSClient
	if *wsEndpoint != "" {
		wsClient, err := solana.NewLogsClient(ctx, *wsEndpoint,
			solana.WithWSLogger(log.New(os.Stdout, "[ws] ", log.LstdFlags)))
		if err != nil {
			logger.Printf("WebSocket connect failed, polling only: %v", err)
		} else {
			ws = wsClient
			defer wsClient.Close()
		}
	}

	md := marketdata.NewClient(marketdata.WithLogger(log.New(os.Stdout, "[marketdata] ", log.LstdFlags)))

	notifier := notify.NewNotifier(*webhookURL,
		notify.WithLogger(log.New(os.Stdout, "[notify] ", log.LstdFlags)))

	// Execution engine: Jupiter Ultra first, PumpPortal for pump.fun
	// tokens Jupiter has no route for.
	var backends []executor.Backend
	if wallet != nil {
		backends = []executor.Backend{
			executor.NewJupiterBackend(wallet, rpc),
			executor.NewPumpPortalBackend(wallet, rpc, md),
		}
	}
	engine := executor.NewEngine(backends, md,
		executor.WithDryRun(*dryRun),
		executor.WithLogger(log.New(os.Stdout, "[executor] ", log.LstdFlags)))

	ledger := pnl.NewLedger(pnl.Options{
		Audit:  stores.audit,
		Prices: md,
		Logger: log.New(os.Stdout, "[pnl] ", log.LstdFlags),
	})

	positions := position.NewManager(position.Options{
		Store:         stores.positions,
		Executor:      engine,
		Prices:        md,
		TakeProfitPct: *takeProfitPct,
		StopLossPct:   *stopLossPct,
		Logger:        log.New(os.Stdout, "[position] ", log.LstdFlags),
		OnClosed: func(p *domain.Position) {
			notifier.PositionClosed(context.Background(), p)
		},
	})

	orders := limitorder.NewEngine(limitorder.Options{
		Store:    stores.orders,
		Executor: engine,
		Prices:   md,
		Logger:   log.New(os.Stdout, "[limitorder] ", log.LstdFlags),
		OnFilled: func(o *domain.LimitOrder) {
			notifier.OrderFilled(context.Background(), o)
		},
	})

	var ownAddress string
	if wallet != nil {
		ownAddress = wallet.Address()
	}

	trader := copytrade.NewTrader(copytrade.Options{
		Config: copytrade.Config{
			Filters: copytrade.Filters{
				BuysOnly:    *buysOnly,
				SellsOnly:   *sellsOnly,
				MinTradeSOL: *minTradeSOL,
				MaxTradeSOL: *maxTradeSOL,
			},
			SizingMode:       copytrade.SizingMode(*sizingMode),
			FixedSizeSOL:     *fixedSizeSOL,
			CopyPercentage:   *copyPercentage,
			CopyDelay:        *copyDelay,
			MaxOpenPositions: *maxOpenPositions,
			ReserveSOL:       *reserveSOL,
		},
		Executor:      engine,
		Prices:        md,
		WalletStore:   stores.wallets,
		PositionStore: stores.positions,
		RPC:           rpc,
		OwnAddress:    ownAddress,
		Logger:        log.New(os.Stdout, "[copytrade] ", log.LstdFlags),
		OnExecuted: func(event *domain.SwapEvent, outcome *domain.ExecutionOutcome) {
			notifier.CopyExecuted(context.Background(), outcome)
			openPositionFromCopy(context.Background(), positions, md, event, outcome, logger)
		},
	})

	mon := monitor.NewMonitor(monitor.Options{
		RPC:          rpc,
		WS:           ws,
		Parser:       parser.NewSwapParser(),
		WalletStore:  stores.wallets,
		PollInterval: *pollInterval,
		Logger:       log.New(os.Stdout, "[monitor] ", log.LstdFlags),
	})

	if err := mon.LoadWallets(ctx); err != nil {
		logger.Fatalf("Failed to load wallets: %v", err)
	}
	if err := addConfiguredWallets(ctx, mon, *wallets, logger); err != nil {
		logger.Fatalf("Failed to add wallets: %v", err)
	}
	if len(mon.Wallets()) == 0 {
		logger.Fatal("No wallets to track. Use --wallets or seed the wallet store")
	}

	mon.OnSwap(func(event *domain.SwapEvent) {
		ledger.RecordSwap(context.Background(), event)
		notifier.WalletActivity(context.Background(), event)
		// HandleSwap sleeps out the copy delay, keep it off the poll path.
		go trader.HandleSwap(ctx, event)
	})

	server := &Server{
		monitor:   mon,
		trader:    trader,
		engine:    engine,
		positions: positions,
		orders:    orders,
		logger:    logger,
		dryRun:    *dryRun,
		started:   time.Now(),
	}

	done := make(chan error, 1)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(*metricsAddr)

	notifier.Startup(ctx, len(mon.Wallets()), *dryRun)

	err = server.Run(ctx)
	done <- err

	notifier.Shutdown(context.Background())

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// Run starts every component and blocks until the first failure or
// context cancellation.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("Starting copy trader (dry-run: %v, wallets: %d)...", s.dryRun, len(s.monitor.Wallets()))

	errCh := make(chan error, 3)

	go func() {
		if err := s.monitor.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("monitor: %w", err)
		}
	}()
	go func() {
		if err := s.positions.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("position manager: %w", err)
		}
	}()
	go func() {
		if err := s.orders.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("limit order engine: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// openPositionFromCopy opens an auto-exit position for every confirmed
// copied buy.
func openPositionFromCopy(
	ctx context.Context,
	positions *position.Manager,
	md *marketdata.Client,
	event *domain.SwapEvent,
	outcome *domain.ExecutionOutcome,
	logger *log.Logger,
) {
	if !outcome.Confirmed() || event.Direction != domain.DirectionBuy {
		return
	}

	info, err := md.GetTokenInfo(ctx, event.OutputMint)
	if err != nil {
		logger.Printf("Token info unavailable for %s, position not opened: %v", event.OutputMint, err)
		return
	}

	_, err = positions.Open(ctx, position.OpenParams{
		Mint:           event.OutputMint,
		Symbol:         info.Symbol,
		EntryPrice:     info.PriceUSD,
		SpendSOL:       outcome.InputAmount,
		TokenAmount:    outcome.OutputAmount,
		EntrySignature: outcome.Signature,
	})
	if err != nil {
		logger.Printf("Failed to open position for %s: %v", event.OutputMint, err)
	}
}

// addConfiguredWallets parses the --wallets flag (address or
// address:label, comma separated) and registers each entry.
func addConfiguredWallets(ctx context.Context, mon *monitor.Monitor, list string, logger *log.Logger) error {
	if list == "" {
		return nil
	}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		address, label := entry, ""
		if idx := strings.IndexByte(entry, ':'); idx > 0 {
			address, label = entry[:idx], entry[idx+1:]
		}
		if err := mon.AddWallet(ctx, address, label, 0); err != nil {
			return fmt.Errorf("add wallet %s: %w", address, err)
		}
		if !solana.IsOnCurve(address) {
			logger.Printf("Wallet %s is off-curve, tracking it as a program derived account", address)
		}
	}
	return nil
}

// createStores creates the storage implementations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			wallets:   memory.NewTrackedWalletStore(),
			positions: memory.NewPositionStore(),
			orders:    memory.NewLimitOrderStore(),
			audit:     memory.NewSwapAuditStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &allStores{
		wallets:   pgstore.NewTrackedWalletStore(pool),
		positions: pgstore.NewPositionStore(pool),
		orders:    pgstore.NewLimitOrderStore(pool),
		audit:     chstore.NewSwapAuditStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// startHTTPServer serves health, metrics, and status endpoints.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	DryRun          bool    `json:"dry_run"`
	TrackedWallets  int     `json:"tracked_wallets"`
	SwapsDetected   int64   `json:"swaps_detected"`
	CopiesExecuted  int64   `json:"copies_executed"`
	CopiesSkipped   int64   `json:"copies_skipped"`
	TradesExecuted  int64   `json:"trades_executed"`
	TradesSimulated int64   `json:"trades_simulated"`
	WinRate         float64 `json:"win_rate"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	detected, copied, skipped := s.trader.Stats()
	winRate, err := s.positions.WinRate(r.Context())
	if err != nil {
		s.logger.Printf("Win rate lookup failed: %v", err)
	}

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		DryRun:          s.dryRun,
		TrackedWallets:  len(s.monitor.Wallets()),
		SwapsDetected:   detected,
		CopiesExecuted:  copied,
		CopiesSkipped:   skipped,
		TradesExecuted:  s.engine.ExecutedTrades(),
		TradesSimulated: s.engine.SimulatedTrades(),
		WinRate:         winRate,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loadEnvFile loads environment variables from .env if present.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
		return fallback
	}
	return f
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
