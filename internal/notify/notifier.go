// Package notify posts trading events to a chat webhook. Delivery is
// best effort: failures are logged and never propagate to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"solana-copy-trader/internal/domain"
)

const defaultBotName = "solana-copy-trader"

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.httpClient = c }
}

// WithBotName overrides the sender name shown in chat.
func WithBotName(name string) Option {
	return func(n *Notifier) { n.botName = name }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// Notifier delivers one-line event messages to a Slack or Discord
// webhook. A Notifier with an empty URL is valid and drops everything.
type Notifier struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewNotifier creates a webhook notifier.
func NewNotifier(webhookURL string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: webhookURL,
		botName:    defaultBotName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

// Send posts a message to the webhook. Failures are logged only.
func (n *Notifier) Send(ctx context.Context, msg string) {
	n.logger.Printf("notify: %s", msg)
	if n.webhookURL == "" {
		return
	}

	body, err := json.Marshal(n.payload(msg))
	if err != nil {
		n.logger.Printf("notification marshal failed: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Printf("notification request failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Printf("notification delivery failed: %v", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		n.logger.Printf("notification rejected: status %d", resp.StatusCode)
	}
}

// payload shapes the message for the webhook's chat service. Discord
// wants "content", Slack-compatible hooks want "text".
func (n *Notifier) payload(msg string) map[string]string {
	tagged := fmt.Sprintf("[%s] %s", n.botName, msg)
	if strings.Contains(n.webhookURL, "discord") {
		return map[string]string{
			"content":  tagged,
			"username": n.botName,
		}
	}
	return map[string]string{
		"text":     tagged,
		"username": n.botName,
	}
}

// Startup announces the trader coming online.
func (n *Notifier) Startup(ctx context.Context, wallets int, dryRun bool) {
	mode := "live"
	if dryRun {
		mode = "dry-run"
	}
	n.Send(ctx, fmt.Sprintf("started in %s mode, tracking %d wallets", mode, wallets))
}

// Shutdown announces the trader going offline.
func (n *Notifier) Shutdown(ctx context.Context) {
	n.Send(ctx, "shutting down")
}

// WalletActivity reports a swap seen on a tracked wallet.
func (n *Notifier) WalletActivity(ctx context.Context, event *domain.SwapEvent) {
	n.Send(ctx, fmt.Sprintf("%s %s: %.4f %s -> %.4f %s on %s",
		shortAddr(event.Wallet), event.Direction,
		event.InputAmount, shortAddr(event.InputMint),
		event.OutputAmount, shortAddr(event.OutputMint),
		event.Venue))
}

// CopyExecuted reports the outcome of a mirrored trade.
func (n *Notifier) CopyExecuted(ctx context.Context, outcome *domain.ExecutionOutcome) {
	if outcome.Confirmed() {
		n.Send(ctx, fmt.Sprintf("copy confirmed: %.4f %s -> %.4f %s (%s)",
			outcome.InputAmount, shortAddr(outcome.Intent.InputMint),
			outcome.OutputAmount, shortAddr(outcome.Intent.OutputMint),
			outcome.Signature))
		return
	}
	n.Send(ctx, fmt.Sprintf("copy %s: %s", outcome.Status, outcome.Error))
}

// PositionClosed reports a position reaching a terminal status.
func (n *Notifier) PositionClosed(ctx context.Context, p *domain.Position) {
	n.Send(ctx, fmt.Sprintf("position %s %s: entry $%.8f exit $%.8f (%.2f%%)",
		shortAddr(p.Mint), p.Status, p.EntryPrice, p.ExitPrice, p.PnLPct(p.ExitPrice)))
}

// OrderFilled reports a limit order fill.
func (n *Notifier) OrderFilled(ctx context.Context, o *domain.LimitOrder) {
	n.Send(ctx, fmt.Sprintf("order filled: %s %s at $%.8f (%s)",
		o.Type, shortAddr(o.Mint), o.FillPrice, o.FillSignature))
}

// shortAddr abbreviates base58 addresses for chat messages.
func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + ".." + addr[len(addr)-4:]
}
