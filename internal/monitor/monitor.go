// Package monitor watches tracked wallets for on-chain swap activity.
package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/parser"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultSignatureLimit = 10
	defaultDedupCap       = 10_000
	defaultActivityCap    = 100
)

// SwapHandler receives every parsed swap from a tracked wallet.
type SwapHandler func(event *domain.SwapEvent)

// ActivityHandler receives every observed transaction, swap or not.
type ActivityHandler func(event *domain.ActivityEvent)

// Options contains configuration for creating a Monitor.
type Options struct {
	RPC         solana.RPCClient
	WS          solana.WSClient // optional push source
	Parser      *parser.SwapParser
	WalletStore storage.TrackedWalletStore

	PollInterval   time.Duration // default 5s
	SignatureLimit int           // default 10
	DedupCap       int           // default 10000
	ActivityCap    int           // default 100
	Logger         *log.Logger
}

// Monitor polls tracked wallets for new transactions, parses them into
// swap events, and fans them out to subscribers. Wallets may be added or
// removed at any time; mutations persist through the wallet store.
type Monitor struct {
	rpc         solana.RPCClient
	ws          solana.WSClient
	parser      *parser.SwapParser
	walletStore storage.TrackedWalletStore

	pollInterval   time.Duration
	signatureLimit int
	dedupCap       int
	activityCap    int
	logger         *log.Logger

	mu        sync.RWMutex
	wallets   map[string]*domain.TrackedWallet
	processed map[string]struct{}
	activity  []*domain.ActivityEvent

	swapHandlers     []SwapHandler
	activityHandlers []ActivityHandler
}

// NewMonitor creates a wallet monitor.
func NewMonitor(opts Options) *Monitor {
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = defaultPollInterval
	}
	signatureLimit := opts.SignatureLimit
	if signatureLimit == 0 {
		signatureLimit = defaultSignatureLimit
	}
	dedupCap := opts.DedupCap
	if dedupCap == 0 {
		dedupCap = defaultDedupCap
	}
	activityCap := opts.ActivityCap
	if activityCap == 0 {
		activityCap = defaultActivityCap
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Monitor{
		rpc:            opts.RPC,
		ws:             opts.WS,
		parser:         opts.Parser,
		walletStore:    opts.WalletStore,
		pollInterval:   pollInterval,
		signatureLimit: signatureLimit,
		dedupCap:       dedupCap,
		activityCap:    activityCap,
		logger:         logger,
		wallets:        make(map[string]*domain.TrackedWallet),
		processed:      make(map[string]struct{}),
	}
}

// LoadWallets populates the in-memory wallet set from the store.
func (m *Monitor) LoadWallets(ctx context.Context) error {
	wallets, err := m.walletStore.GetAll(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for _, w := range wallets {
		copy := *w
		m.wallets[w.Address] = &copy
	}
	count := len(m.wallets)
	m.mu.Unlock()

	observability.UpdateTrackedWallets(count)
	m.logger.Printf("loaded %d tracked wallets", count)
	return nil
}

// AddWallet starts tracking an address. The wallet is persisted before it
// enters the polling set. Wallets added while the monitor is running are
// covered by the polling loop only; the log subscription opened at start
// is not reopened for them.
func (m *Monitor) AddWallet(ctx context.Context, address, label string, copyPercentage float64) error {
	if err := solana.ValidateAddress(address); err != nil {
		return err
	}

	wallet := &domain.TrackedWallet{
		Address:        address,
		Label:          label,
		AddedAt:        time.Now().Unix(),
		CopyPercentage: copyPercentage,
	}
	if err := m.walletStore.Upsert(ctx, wallet); err != nil {
		return err
	}

	m.mu.Lock()
	copy := *wallet
	m.wallets[address] = &copy
	count := len(m.wallets)
	m.mu.Unlock()

	observability.UpdateTrackedWallets(count)
	m.logger.Printf("tracking wallet %s (%s)", address, label)
	return nil
}

// RemoveWallet stops tracking an address.
func (m *Monitor) RemoveWallet(ctx context.Context, address string) error {
	if err := m.walletStore.Delete(ctx, address); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.wallets, address)
	count := len(m.wallets)
	m.mu.Unlock()

	observability.UpdateTrackedWallets(count)
	m.logger.Printf("stopped tracking wallet %s", address)
	return nil
}

// Wallets returns a snapshot of the tracked wallets.
func (m *Monitor) Wallets() []*domain.TrackedWallet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wallets := make([]*domain.TrackedWallet, 0, len(m.wallets))
	for _, w := range m.wallets {
		copy := *w
		wallets = append(wallets, &copy)
	}
	return wallets
}

// OnSwap registers a swap subscriber. Not safe to call after Run starts.
func (m *Monitor) OnSwap(h SwapHandler) {
	m.swapHandlers = append(m.swapHandlers, h)
}

// OnActivity registers an activity subscriber. Not safe to call after Run starts.
func (m *Monitor) OnActivity(h ActivityHandler) {
	m.activityHandlers = append(m.activityHandlers, h)
}

// RecentActivity returns the bounded recent-activity ring, newest first.
func (m *Monitor) RecentActivity() []*domain.ActivityEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.ActivityEvent, len(m.activity))
	for i, e := range m.activity {
		out[len(m.activity)-1-i] = e
	}
	return out
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Printf("monitor started, poll interval %v", m.pollInterval)

	pushCh := m.subscribePush(ctx)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.pollAll(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Println("monitor stopping...")
			return ctx.Err()
		case <-ticker.C:
			m.pollAll(ctx)
		case notif, ok := <-pushCh:
			if !ok {
				pushCh = nil
				continue
			}
			// A log mention means something happened on a tracked wallet;
			// poll everything early instead of waiting for the tick.
			m.logger.Printf("push notification for %s, polling early", notif.Signature)
			m.pollAll(ctx)
		}
	}
}

// subscribePush opens the optional websocket log subscription covering
// the wallets tracked at startup. Failure degrades to polling only;
// wallets added later are polled without a push source.
func (m *Monitor) subscribePush(ctx context.Context) <-chan solana.LogNotification {
	if m.ws == nil {
		return nil
	}

	m.mu.RLock()
	mentions := make([]string, 0, len(m.wallets))
	for address := range m.wallets {
		mentions = append(mentions, address)
	}
	m.mu.RUnlock()

	if len(mentions) == 0 {
		return nil
	}

	ch, err := m.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: mentions})
	if err != nil {
		m.logger.Printf("log subscription failed, polling only: %v", err)
		return nil
	}
	m.logger.Printf("subscribed to logs for %d wallets", len(mentions))
	return ch
}

// pollAll polls every tracked wallet concurrently. One wallet failing
// never aborts the cycle.
func (m *Monitor) pollAll(ctx context.Context) {
	m.mu.RLock()
	addresses := make([]string, 0, len(m.wallets))
	for address := range m.wallets {
		addresses = append(addresses, address)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, address := range addresses {
		wg.Add(1)
		go func(address string) {
			defer wg.Done()
			if err := m.pollWallet(ctx, address); err != nil {
				observability.RecordWalletPollError()
				m.logger.Printf("poll failed for %s: %v", address, err)
			}
		}(address)
	}
	wg.Wait()

	observability.DefaultMetrics.LastSuccessfulPoll.SetToCurrentTime()
}

// pollWallet fetches recent signatures for one wallet and processes the
// unseen ones oldest first.
func (m *Monitor) pollWallet(ctx context.Context, address string) error {
	sigs, err := m.rpc.GetSignaturesForAddress(ctx, address, &solana.SignaturesOpts{
		Limit: m.signatureLimit,
	})
	if err != nil {
		return err
	}

	// Signatures arrive newest first; process in chain order.
	for i := len(sigs) - 1; i >= 0; i-- {
		info := sigs[i]

		if m.alreadyProcessed(info.Signature) {
			continue
		}

		if info.Err != nil {
			// Errored transactions carry no swap; remember them so they
			// are not fetched again.
			m.markProcessed(info.Signature)
			continue
		}

		tx, err := m.rpc.GetTransaction(ctx, info.Signature)
		if err != nil {
			// Transient fetch failure: leave unprocessed for the next cycle.
			m.logger.Printf("getTransaction %s: %v", info.Signature, err)
			continue
		}
		m.markProcessed(info.Signature)
		if tx == nil {
			continue
		}

		m.handleTransaction(address, tx)
	}

	return nil
}

func (m *Monitor) handleTransaction(address string, tx *solana.Transaction) {
	swap := m.parser.Parse(tx, address)

	activity := &domain.ActivityEvent{
		Wallet:      address,
		TxSignature: tx.Signature,
		Slot:        tx.Slot,
		BlockTime:   tx.BlockTime,
		Swap:        swap,
	}

	m.mu.Lock()
	m.activity = append(m.activity, activity)
	if len(m.activity) > m.activityCap {
		m.activity = m.activity[len(m.activity)-m.activityCap:]
	}
	if swap != nil {
		if wallet, ok := m.wallets[address]; ok {
			wallet.SwapsDetected++
			switch swap.Direction {
			case domain.DirectionBuy:
				wallet.Buys++
			case domain.DirectionSell:
				wallet.Sells++
			}
			wallet.LastActivity = swap.BlockTime
		}
	}
	m.mu.Unlock()

	if swap != nil {
		observability.RecordSwapDetected(string(swap.Direction))
		m.logger.Printf("swap detected: %s %s %f %s -> %f %s on %s",
			address, swap.Direction, swap.InputAmount, swap.InputMint,
			swap.OutputAmount, swap.OutputMint, swap.Venue)
		m.dispatchSwap(swap)
	}
	m.dispatchActivity(activity)
}

func (m *Monitor) alreadyProcessed(signature string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processed[signature]
	return ok
}

// markProcessed records a signature in the bounded dedup set, evicting an
// arbitrary entry once the cap is reached.
func (m *Monitor) markProcessed(signature string) {
	m.mu.Lock()
	if len(m.processed) >= m.dedupCap {
		for k := range m.processed {
			delete(m.processed, k)
			break
		}
	}
	m.processed[signature] = struct{}{}
	size := len(m.processed)
	m.mu.Unlock()

	observability.UpdateDedupSetSize(size)
}

func (m *Monitor) dispatchSwap(event *domain.SwapEvent) {
	for _, h := range m.swapHandlers {
		m.safeDispatch(func() { h(event) })
	}
}

func (m *Monitor) dispatchActivity(event *domain.ActivityEvent) {
	for _, h := range m.activityHandlers {
		m.safeDispatch(func() { h(event) })
	}
}

// safeDispatch shields the monitor from subscriber panics.
func (m *Monitor) safeDispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Printf("subscriber panic: %v", r)
		}
	}()
	fn()
}
