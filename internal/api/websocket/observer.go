package websocket

import (
	"github.com/ramonehamilton/cardtable/internal/events"
)

// WebSocketObserver forwards state events to WebSocket clients.
type WebSocketObserver struct {
	name string
	hub  *Hub
}

// NewWebSocketObserver creates a new observer that forwards events to WebSocket clients.
func NewWebSocketObserver(hub *Hub) *WebSocketObserver {
	return &WebSocketObserver{
		name: "WebSocketObserver",
		hub:  hub,
	}
}

// OnEvent broadcasts the event type and its typed payload.
func (o *WebSocketObserver) OnEvent(event events.Event) error {
	if o.hub == nil {
		return nil
	}
	o.hub.BroadcastEvent(Event{Type: event.Type, Data: event.Payload})
	return nil
}

// GetName returns the observer's name.
func (o *WebSocketObserver) GetName() string {
	return o.name
}

// ShouldHandle returns true for all events.
func (o *WebSocketObserver) ShouldHandle(string) bool {
	return true
}

var _ events.Observer = (*WebSocketObserver)(nil)
