package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// waitForClients polls until the hub reports n clients.
func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients, got %d", n, hub.ClientCount())
}

func startHub(t *testing.T, config HubConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub(config)
	go hub.Run()
	t.Cleanup(hub.Stop)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var received Event
	if err := json.Unmarshal(message, &received); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return received
}

func TestNewHub(t *testing.T) {
	hub := NewHub(HubConfig{})

	if hub.clients == nil {
		t.Error("Hub clients map is nil")
	}
	if hub.IsStopped() {
		t.Error("New hub should not be stopped")
	}
	if count := hub.ClientCount(); count != 0 {
		t.Errorf("Expected 0 clients, got %d", count)
	}
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub, _ := startHub(t, HubConfig{})

	if !hub.BroadcastEvent(Event{Type: "deck:created", Data: map[string]string{"deckId": "d1"}}) {
		t.Error("Expected broadcast to succeed on a running hub")
	}
}

func TestHub_MultipleClients(t *testing.T) {
	hub, url := startHub(t, HubConfig{})

	var conns []*websocket.Conn
	for range 3 {
		conns = append(conns, dial(t, url))
	}
	waitForClients(t, hub, 3)

	hub.BroadcastEvent(Event{Type: "tabletop:updated", Data: map[string]string{"tabletopId": "t1"}})

	for i, conn := range conns {
		received := readEvent(t, conn)
		if received.Type != "tabletop:updated" {
			t.Errorf("Client %d expected type tabletop:updated, got %s", i, received.Type)
		}
	}
}

func TestHub_EventsArriveAsSeparateMessages(t *testing.T) {
	hub, url := startHub(t, HubConfig{})
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	hub.BroadcastEvent(Event{Type: "first"})
	hub.BroadcastEvent(Event{Type: "second"})

	if got := readEvent(t, conn).Type; got != "first" {
		t.Errorf("Expected first, got %s", got)
	}
	if got := readEvent(t, conn).Type; got != "second" {
		t.Errorf("Expected second, got %s", got)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, url := startHub(t, HubConfig{})

	conn := dial(t, url)
	waitForClients(t, hub, 1)

	_ = conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_Stop(t *testing.T) {
	hub, url := startHub(t, HubConfig{})
	dial(t, url)
	waitForClients(t, hub, 1)

	hub.Stop()
	hub.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsStopped() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !hub.IsStopped() {
		t.Fatal("Expected hub to be stopped")
	}
	if hub.BroadcastEvent(Event{Type: "late"}) {
		t.Error("Expected broadcast on a stopped hub to fail")
	}
	if count := hub.ClientCount(); count != 0 {
		t.Errorf("Expected 0 clients after stop, got %d", count)
	}
}

func TestHub_AllowedOrigins(t *testing.T) {
	_, url := startHub(t, HubConfig{AllowedOrigins: []string{"http://allowed.test"}})

	header := http.Header{"Origin": []string{"http://evil.test"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("Expected a disallowed origin to be rejected")
	}

	header = http.Header{"Origin": []string{"http://allowed.test"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Expected allowed origin to connect: %v", err)
	}
	_ = conn.Close()
}
