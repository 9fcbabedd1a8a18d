package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	name   string
	filter string
	mu     sync.Mutex
	events []Event
	err    error
}

func (o *recordingObserver) OnEvent(event Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return o.err
}

func (o *recordingObserver) GetName() string { return o.name }

func (o *recordingObserver) ShouldHandle(eventType string) bool {
	return o.filter == "" || o.filter == eventType
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

func TestNewTypedEvent(t *testing.T) {
	event := NewTypedEvent(context.Background(), TypeTabletopUpdated, TabletopEvent{
		TabletopID: "tt-1",
		Action:     "move",
		CanUndo:    true,
	})

	if event.Type != TypeTabletopUpdated {
		t.Errorf("Expected type %q, got %q", TypeTabletopUpdated, event.Type)
	}

	typed, ok := GetTypedData[TabletopEvent](event)
	if !ok {
		t.Fatal("Expected payload to be TabletopEvent")
	}
	if typed.TabletopID != "tt-1" || !typed.CanUndo {
		t.Errorf("Unexpected payload %+v", typed)
	}

	if _, ok := GetTypedData[DeckEvent](event); ok {
		t.Error("Expected GetTypedData to fail for wrong type")
	}
}

func TestNewTypedEvent_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is accepted and replaced
	event := NewTypedEvent(nil, TypeDeckCreated, DeckEvent{DeckID: "d"})
	if event.Context == nil {
		t.Error("Expected a background context")
	}
}

func TestGetTypedData_NilPayload(t *testing.T) {
	if _, ok := GetTypedData[DeckEvent](Event{Type: "test"}); ok {
		t.Error("Expected GetTypedData to fail for nil payload")
	}
}

func TestDispatch_FiltersAndOrders(t *testing.T) {
	d := NewEventDispatcher(nil)
	all := &recordingObserver{name: "all"}
	decks := &recordingObserver{name: "decks", filter: TypeDeckCreated}
	d.Register(all)
	d.Register(decks)

	d.Dispatch(Event{Type: TypeDeckCreated})
	d.Dispatch(Event{Type: TypeTabletopUpdated})

	if all.count() != 2 {
		t.Errorf("Expected 2 events for unfiltered observer, got %d", all.count())
	}
	if decks.count() != 1 {
		t.Errorf("Expected 1 event for filtered observer, got %d", decks.count())
	}
	if all.events[0].Type != TypeDeckCreated || all.events[1].Type != TypeTabletopUpdated {
		t.Error("Expected events in dispatch order")
	}
}

func TestDispatch_ContinuesAfterObserverError(t *testing.T) {
	d := NewEventDispatcher(nil)
	failing := &recordingObserver{name: "failing", err: errors.New("boom")}
	next := &recordingObserver{name: "next"}
	d.Register(failing)
	d.Register(next)

	d.Dispatch(Event{Type: "x"})

	if next.count() != 1 {
		t.Error("Expected dispatch to continue past a failing observer")
	}
}

func TestUnregister(t *testing.T) {
	d := NewEventDispatcher(nil)
	a := &recordingObserver{name: "a"}
	b := &recordingObserver{name: "b"}
	c := &recordingObserver{name: "c"}
	d.Register(a)
	d.Register(b)
	d.Register(c)

	d.Unregister(b)
	if d.ObserverCount() != 2 {
		t.Fatalf("Expected 2 observers, got %d", d.ObserverCount())
	}
	d.Dispatch(Event{Type: "x"})
	if b.count() != 0 {
		t.Error("Expected unregistered observer to be skipped")
	}

	d.Clear()
	if d.ObserverCount() != 0 {
		t.Error("Expected no observers after Clear")
	}
}

func TestDispatchAsync(t *testing.T) {
	d := NewEventDispatcher(nil)
	obs := &recordingObserver{name: "async"}
	d.Register(obs)

	d.DispatchAsync(Event{Type: "x"})

	deadline := time.Now().Add(2 * time.Second)
	for obs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if obs.count() != 1 {
		t.Error("Expected async observer to be notified")
	}
}

func TestFuncObserver_Prefixes(t *testing.T) {
	o := &FuncObserver{Name: "f", Prefixes: []string{"deck:", "card:"}, Fn: func(Event) error { return nil }}

	if !o.ShouldHandle(TypeDeckDeleted) || !o.ShouldHandle(TypeCardUpdated) {
		t.Error("Expected prefixed types to match")
	}
	if o.ShouldHandle(TypeTabletopUpdated) {
		t.Error("Expected other types to be filtered")
	}
	if !(&FuncObserver{}).ShouldHandle("anything") {
		t.Error("Expected no prefixes to match everything")
	}
}
