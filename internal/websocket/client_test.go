// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialWebSocket connects to server with an optional Origin header.
func dialWebSocket(t *testing.T, server *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	a := NewClient(hub, nil)
	b := NewClient(hub, nil)
	if a.hub != hub || a.send == nil {
		t.Fatal("client not initialized")
	}
	if cap(a.send) != 256 {
		t.Errorf("send capacity = %d, want 256", cap(a.send))
	}
	if b.ID() <= a.ID() {
		t.Errorf("IDs not increasing: %d then %d", a.ID(), b.ID())
	}
}

func TestClient_Constants(t *testing.T) {
	t.Parallel()

	if writeWait != 10*time.Second || pongWait != 60*time.Second {
		t.Errorf("writeWait/pongWait = %v/%v", writeWait, pongWait)
	}
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
}

func TestClient_QueueClosed(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	c := &Client{hub: hub, send: make(chan Message, 1)}
	if !c.Queue(Message{Type: "a"}) {
		t.Error("Queue should succeed with room in the buffer")
	}
	if c.Queue(Message{Type: "b"}) {
		t.Error("Queue should fail on a full buffer")
	}

	hub.mu.Lock()
	closeClientLocked(c)
	closeClientLocked(c)
	hub.mu.Unlock()
	if c.Queue(Message{Type: "c"}) {
		t.Error("Queue should fail on a closed buffer")
	}
}

func TestClient_QueueWhileHubUnregisters(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	c := createTestClient(hub)
	registerClient(t, hub, c, 1)

	// Drain so the buffer never fills and Queue keeps sending.
	go func() {
		for range c.send {
		}
	}()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				c.Queue(Message{Type: MessageTypePong})
			}
		}
	}()

	time.Sleep(5 * time.Millisecond)
	hub.Unregister <- c
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d after unregister", hub.ClientCount())
		}
		time.Sleep(2 * time.Millisecond)
	}
	close(stop)
	<-done

	if c.Queue(Message{Type: MessageTypePong}) {
		t.Error("Queue should fail after the hub closed the client")
	}
}

func TestHandler_WelcomeSnapshotAndBroadcast(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	handler := NewHandler(hub, nil, func() interface{} {
		return map[string]int{"users": 4}
	})
	server := httptest.NewServer(handler)
	defer server.Close()

	conn, _, err := dialWebSocket(t, server, "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	welcome := readMessage(t, conn)
	if welcome.Type != MessageTypeSnapshot {
		t.Fatalf("first message type = %q, want snapshot", welcome.Type)
	}

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	hub.BroadcastJSON("incident", map[string]string{"user_id": "user_B"})
	msg := readMessage(t, conn)
	if msg.Type != "incident" {
		t.Errorf("Type = %q, want incident", msg.Type)
	}
}

func TestHandler_PingPong(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	server := httptest.NewServer(NewHandler(hub, nil, nil))
	defer server.Close()

	conn, _, err := dialWebSocket(t, server, "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readMessage(t, conn); msg.Type != MessageTypePong {
		t.Errorf("Type = %q, want pong", msg.Type)
	}
}

func TestHandler_Origins(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)

	tests := []struct {
		name    string
		allowed []string
		origin  string
		wantOK  bool
	}{
		{"no origin header", []string{"https://soc.example.com"}, "", true},
		{"allowed origin", []string{"https://soc.example.com"}, "https://soc.example.com", true},
		{"wildcard", []string{"*"}, "https://anywhere.example.com", true},
		{"rejected origin", []string{"https://soc.example.com"}, "https://evil.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(NewHandler(hub, tt.allowed, nil))
			defer server.Close()

			conn, resp, err := dialWebSocket(t, server, tt.origin)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close()
				return
			}
			if err == nil {
				conn.Close()
				t.Fatal("expected handshake to fail")
			}
			if resp != nil && resp.StatusCode != http.StatusForbidden {
				t.Errorf("status = %d, want 403", resp.StatusCode)
			}
		})
	}
}

func TestClient_ClosedByHubShutdown(t *testing.T) {
	t.Parallel()

	hub := setupHub(t)
	server := httptest.NewServer(NewHandler(hub, nil, nil))
	defer server.Close()

	conn, _, err := dialWebSocket(t, server, "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	hub.closeAllClients()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to close")
	}
}
