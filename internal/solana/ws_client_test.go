package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsTestServer runs handle on each upgraded connection and returns the
// ws:// URL.
func wsTestServer(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// confirmNextSubscribe reads one logsSubscribe request and confirms it
// with the given subscription id.
func confirmNextSubscribe(conn *websocket.Conn, subID int64) (wsRequest, error) {
	var req wsRequest
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		return req, err
	}
	return req, conn.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: subID})
}

func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestLogsClientSubscribeReceivesNotification(t *testing.T) {
	url := wsTestServer(t, func(conn *websocket.Conn) {
		if _, err := confirmNextSubscribe(conn, 7); err != nil {
			return
		}
		// Give the client time to register the stream channel.
		time.Sleep(50 * time.Millisecond)
		conn.WriteJSON(wsNotification{
			JSONRPC: "2.0",
			Method:  "logsNotification",
			Params: &wsNotificationParams{
				Subscription: 7,
				Result: wsNotificationResult{
					Context: &wsContext{Slot: 100},
					Value:   wsLogsValue{Signature: "sig1", Logs: []string{"Program log: swap"}},
				},
			},
		})
		holdOpen(conn)
	})

	client, err := NewLogsClient(context.Background(), url)
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"WalletA"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "sig1" {
			t.Errorf("expected sig1, got %s", notif.Signature)
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("expected 1 log line, got %d", len(notif.Logs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestLogsClientSendsMentionsFilter(t *testing.T) {
	requests := make(chan wsRequest, 1)
	url := wsTestServer(t, func(conn *websocket.Conn) {
		req, err := confirmNextSubscribe(conn, 1)
		if err != nil {
			return
		}
		requests <- req
		holdOpen(conn)
	})

	client, err := NewLogsClient(context.Background(), url)
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"WalletA"}}); err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	req := <-requests
	if req.Method != "logsSubscribe" {
		t.Fatalf("expected logsSubscribe, got %s", req.Method)
	}
	criteria, ok := req.Params[0].(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected first param: %#v", req.Params[0])
	}
	mentions, ok := criteria["mentions"].([]interface{})
	if !ok || len(mentions) != 1 || mentions[0] != "WalletA" {
		t.Errorf("expected mentions [WalletA], got %#v", criteria["mentions"])
	}
}

func TestLogsClientCloseIsIdempotent(t *testing.T) {
	url := wsTestServer(t, holdOpen)

	client, err := NewLogsClient(context.Background(), url)
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestLogsClientSubscribeAfterClose(t *testing.T) {
	url := wsTestServer(t, holdOpen)

	client, err := NewLogsClient(context.Background(), url)
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}
	client.Close()

	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestLogsClientOptions(t *testing.T) {
	url := wsTestServer(t, holdOpen)

	client, err := NewLogsClient(context.Background(), url,
		WithWSPingInterval(5*time.Second),
		WithWSReconnectDelay(100*time.Millisecond))
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}
	defer client.Close()

	if client.pingInterval != 5*time.Second {
		t.Errorf("expected ping interval 5s, got %v", client.pingInterval)
	}
	if client.reconnectDelay != 100*time.Millisecond {
		t.Errorf("expected reconnect delay 100ms, got %v", client.reconnectDelay)
	}
}
