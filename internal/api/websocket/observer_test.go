package websocket

import (
	"context"
	"testing"

	"github.com/ramonehamilton/cardtable/internal/events"
)

func TestWebSocketObserver_GetName(t *testing.T) {
	observer := NewWebSocketObserver(NewHub(HubConfig{}))

	if name := observer.GetName(); name != "WebSocketObserver" {
		t.Errorf("Expected 'WebSocketObserver', got '%s'", name)
	}
}

func TestWebSocketObserver_ShouldHandle(t *testing.T) {
	observer := NewWebSocketObserver(NewHub(HubConfig{}))

	for _, eventType := range []string{
		events.TypeDeckCreated,
		events.TypeTabletopUpdated,
		events.TypeStateReplaced,
		events.TypeImportCompleted,
	} {
		if !observer.ShouldHandle(eventType) {
			t.Errorf("Expected ShouldHandle(%s) to return true", eventType)
		}
	}
}

func TestWebSocketObserver_OnEvent_NilHub(t *testing.T) {
	observer := &WebSocketObserver{name: "TestObserver"}

	if err := observer.OnEvent(events.Event{Type: "test:event"}); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestWebSocketObserver_ForwardsTypedPayload(t *testing.T) {
	hub, url := startHub(t, HubConfig{})
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	observer := NewWebSocketObserver(hub)
	event := events.NewTypedEvent(context.Background(), events.TypeTabletopUpdated, events.TabletopEvent{
		TabletopID: "t1",
		Action:     "undo",
		CanRedo:    true,
	})
	if err := observer.OnEvent(event); err != nil {
		t.Fatalf("OnEvent returned error: %v", err)
	}

	received := readEvent(t, conn)
	if received.Type != events.TypeTabletopUpdated {
		t.Errorf("Expected type %s, got %s", events.TypeTabletopUpdated, received.Type)
	}
	data, ok := received.Data.(map[string]any)
	if !ok {
		t.Fatalf("Expected Data to be an object, got %T", received.Data)
	}
	if data["tabletopId"] != "t1" || data["action"] != "undo" || data["canRedo"] != true {
		t.Errorf("Unexpected payload: %v", data)
	}
}
