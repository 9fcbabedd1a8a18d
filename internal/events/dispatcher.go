package events

import (
	"context"
	"log/slog"
	"sync"
)

// Event represents a domain event that can be dispatched to observers.
type Event struct {
	// Type is the event type (e.g., "tabletop:updated", "deck:created")
	Type string

	// Payload is one of the typed message structs in messages.go.
	Payload any

	// Context provides execution context for the event
	Context context.Context
}

// Observer defines the interface for objects that want to be notified of events.
// Implementations can handle events in different ways (e.g., broadcast to websocket clients, autosave, log).
type Observer interface {
	// OnEvent is called when an event is dispatched.
	// Returns an error if the observer fails to handle the event.
	OnEvent(event Event) error

	// GetName returns a human-readable name for this observer (for logging/debugging).
	GetName() string

	// ShouldHandle returns true if this observer should handle the given event type.
	ShouldHandle(eventType string) bool
}

// Dispatcher is the publishing side used by the state store.
type Dispatcher interface {
	Dispatch(event Event)
}

// EventDispatcher implements the Observer pattern for event distribution.
// Thread-safe for concurrent use.
type EventDispatcher struct {
	observers []Observer
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewEventDispatcher creates a new EventDispatcher. A nil logger uses slog.Default().
func NewEventDispatcher(logger *slog.Logger) *EventDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventDispatcher{
		observers: make([]Observer, 0),
		logger:    logger.With("component", "events"),
	}
}

// Register adds an observer to the dispatcher.
func (d *EventDispatcher) Register(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observers = append(d.observers, observer)
	d.logger.Debug("registered observer", "observer", observer.GetName())
}

// Unregister removes an observer from the dispatcher.
func (d *EventDispatcher) Unregister(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, obs := range d.observers {
		if obs == observer {
			// Keep registration order for the remaining observers.
			d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
			d.logger.Debug("unregistered observer", "observer", observer.GetName())
			return
		}
	}
}

// Dispatch sends an event to all registered observers.
// Observers are notified sequentially in the order they were registered.
// If an observer returns an error, it's logged but dispatch continues to other observers.
func (d *EventDispatcher) Dispatch(event Event) {
	for _, observer := range d.snapshot() {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		if err := observer.OnEvent(event); err != nil {
			d.logger.Warn("observer failed to handle event",
				"observer", observer.GetName(), "event", event.Type, "error", err)
		}
	}
}

// DispatchAsync sends an event to all observers asynchronously.
// Each observer is notified in a separate goroutine.
func (d *EventDispatcher) DispatchAsync(event Event) {
	for _, observer := range d.snapshot() {
		if !observer.ShouldHandle(event.Type) {
			continue
		}
		go func(obs Observer) {
			if err := obs.OnEvent(event); err != nil {
				d.logger.Warn("observer failed to handle event",
					"observer", obs.GetName(), "event", event.Type, "error", err)
			}
		}(observer)
	}
}

// ObserverCount returns the number of registered observers.
func (d *EventDispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// Clear removes all registered observers.
func (d *EventDispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = make([]Observer, 0)
}

func (d *EventDispatcher) snapshot() []Observer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	return observers
}

// NewTypedEvent creates an Event carrying a typed payload.
func NewTypedEvent[T any](ctx context.Context, eventType string, payload T) Event {
	if ctx == nil {
		ctx = context.Background()
	}
	return Event{
		Type:    eventType,
		Payload: payload,
		Context: ctx,
	}
}

// GetTypedData extracts the typed payload from an Event.
// Returns the zero value and false if the payload is not of the expected type.
func GetTypedData[T any](event Event) (T, bool) {
	var zero T
	if event.Payload == nil {
		return zero, false
	}
	typed, ok := event.Payload.(T)
	return typed, ok
}
