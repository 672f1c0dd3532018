package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Defaults for the log subscription client.
const (
	defaultWSReconnectDelay    = time.Second
	defaultWSMaxReconnectDelay = 30 * time.Second
	defaultWSPingInterval      = 30 * time.Second
	defaultWSReadTimeout       = 60 * time.Second
	defaultWSWriteTimeout      = 10 * time.Second

	// subscribeTimeout covers slow providers confirming a subscription.
	subscribeTimeout = 30 * time.Second

	// notifBuffer absorbs notification bursts; sends block rather than
	// drop events once it fills.
	notifBuffer = 1024
)

// WSOption configures LogsClient.
type WSOption func(*LogsClient)

// WithWSLogger sets a custom logger.
func WithWSLogger(logger *log.Logger) WSOption {
	return func(c *LogsClient) { c.logger = logger }
}

// WithWSReconnectDelay sets the initial reconnect delay.
func WithWSReconnectDelay(d time.Duration) WSOption {
	return func(c *LogsClient) { c.reconnectDelay = d }
}

// WithWSMaxReconnectDelay caps the reconnect backoff.
func WithWSMaxReconnectDelay(d time.Duration) WSOption {
	return func(c *LogsClient) { c.maxReconnectDelay = d }
}

// WithWSPingInterval sets the keepalive ping interval.
func WithWSPingInterval(d time.Duration) WSOption {
	return func(c *LogsClient) { c.pingInterval = d }
}

// WithWSReadTimeout sets the per-message read deadline.
func WithWSReadTimeout(d time.Duration) WSOption {
	return func(c *LogsClient) { c.readTimeout = d }
}

// WithWSWriteTimeout sets the per-message write deadline.
func WithWSWriteTimeout(d time.Duration) WSOption {
	return func(c *LogsClient) { c.writeTimeout = d }
}

// LogsClient implements WSClient over a gorilla/websocket connection.
// A dropped connection is redialed with exponential backoff and every
// active subscription is reopened on the new connection.
type LogsClient struct {
	endpoint string
	logger   *log.Logger

	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	pingInterval      time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration

	connMu sync.Mutex
	conn   *websocket.Conn

	// mu guards the subscription maps. streams and filters are keyed by
	// subscription id; awaiting is keyed by request id and carries the
	// confirmation for an in-flight logsSubscribe.
	mu       sync.Mutex
	streams  map[int64]chan LogNotification
	filters  map[int64]LogsFilter
	awaiting map[uint64]chan int64

	requestID    atomic.Uint64
	closed       atomic.Bool
	reconnecting atomic.Bool
	done         chan struct{}
	wg           sync.WaitGroup
}

// NewLogsClient dials the endpoint and starts the read and keepalive
// loops.
func NewLogsClient(ctx context.Context, endpoint string, opts ...WSOption) (*LogsClient, error) {
	c := &LogsClient{
		endpoint:          endpoint,
		logger:            log.New(io.Discard, "", 0),
		reconnectDelay:    defaultWSReconnectDelay,
		maxReconnectDelay: defaultWSMaxReconnectDelay,
		pingInterval:      defaultWSPingInterval,
		readTimeout:       defaultWSReadTimeout,
		writeTimeout:      defaultWSWriteTimeout,
		streams:           make(map[int64]chan LogNotification),
		filters:           make(map[int64]LogsFilter),
		awaiting:          make(map[uint64]chan int64),
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.dial(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Compile-time interface check.
var _ WSClient = (*LogsClient)(nil)

func (c *LogsClient) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeLogs implements WSClient.
func (c *LogsClient) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	subID, err := c.requestSubscription(ctx, filter)
	if err != nil {
		return nil, err
	}

	ch := make(chan LogNotification, notifBuffer)
	c.mu.Lock()
	c.streams[subID] = ch
	c.filters[subID] = filter
	c.mu.Unlock()

	return ch, nil
}

// requestSubscription sends a logsSubscribe request and waits for the
// server to confirm the subscription id.
func (c *LogsClient) requestSubscription(ctx context.Context, filter LogsFilter) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	criteria := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		criteria["mentions"] = filter.Mentions
	} else {
		criteria["all"] = nil
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			criteria,
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirm := make(chan int64, 1)
	c.mu.Lock()
	c.awaiting[reqID] = confirm
	c.mu.Unlock()

	discard := func() {
		c.mu.Lock()
		delete(c.awaiting, reqID)
		c.mu.Unlock()
	}

	if err := c.writeJSON(req); err != nil {
		discard()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirm:
		return subID, nil
	case <-time.After(subscribeTimeout):
		discard()
		return 0, fmt.Errorf("no subscription confirmation within %v", subscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		discard()
		return 0, ctx.Err()
	}
}

func (c *LogsClient) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(v)
}

// Close implements WSClient. Safe to call more than once.
func (c *LogsClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.mu.Lock()
	for id, ch := range c.streams {
		close(ch)
		delete(c.streams, id)
	}
	for id, ch := range c.awaiting {
		close(ch)
		delete(c.awaiting, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop consumes messages until the client closes, redialing on
// connection errors.
func (c *LogsClient) readLoop() {
	defer c.wg.Done()

	delay := c.reconnectDelay
	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(delay)
			}
			delay *= 2
			if delay > c.maxReconnectDelay {
				delay = c.maxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		delay = c.reconnectDelay
		c.handleMessage(message)
	}
}

func (c *LogsClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.dial(ctx); err != nil {
		// The next read error triggers another attempt.
		c.logger.Printf("reconnect failed: %v", err)
		return
	}

	c.logger.Printf("reconnected to %s", c.endpoint)
	c.resubscribe()
}

// resubscribe reopens every active subscription on the new connection,
// rebinding the existing stream channels to the new subscription ids.
func (c *LogsClient) resubscribe() {
	c.mu.Lock()
	active := make(map[int64]LogsFilter, len(c.filters))
	for id, f := range c.filters {
		active[id] = f
	}
	c.mu.Unlock()

	for oldID, filter := range active {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.requestSubscription(ctx, filter)
		cancel()
		if err != nil {
			c.logger.Printf("resubscribe failed: %v", err)
			continue
		}

		c.mu.Lock()
		if ch, ok := c.streams[oldID]; ok {
			delete(c.streams, oldID)
			delete(c.filters, oldID)
			c.streams[newID] = ch
			c.filters[newID] = filter
		}
		c.mu.Unlock()
	}
}

func (c *LogsClient) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.confirmSubscription(resp.ID, resp.Result)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "logsNotification" {
		c.dispatch(&notif)
		return
	}

	var errResp wsErrorResponse
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		c.logger.Printf("subscription error %d: %s", errResp.Error.Code, errResp.Error.Message)
	}
}

func (c *LogsClient) confirmSubscription(reqID uint64, subID int64) {
	c.mu.Lock()
	ch, ok := c.awaiting[reqID]
	if ok {
		delete(c.awaiting, reqID)
	}
	c.mu.Unlock()

	if ok {
		select {
		case ch <- subID:
		default:
		}
	}
}

func (c *LogsClient) dispatch(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	event := LogNotification{
		Signature: notif.Params.Result.Value.Signature,
		Logs:      notif.Params.Result.Value.Logs,
		Err:       notif.Params.Result.Value.Err,
	}
	if notif.Params.Result.Context != nil {
		event.Slot = notif.Params.Result.Context.Slot
	}

	c.mu.Lock()
	ch, ok := c.streams[notif.Params.Subscription]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- event:
	case <-c.done:
	}
}

// pingLoop keeps the connection alive between notifications.
func (c *LogsClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// The read loop notices the dead connection and redials.
					c.logger.Printf("ping failed: %v", err)
				}
			}
			c.connMu.Unlock()
		}
	}
}

// Wire types for the logsSubscribe protocol.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription id
}

type wsErrorResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
