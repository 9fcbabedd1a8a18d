package history

import (
	"errors"
	"testing"
)

func TestDispatchUndoRedo(t *testing.T) {
	h := New(0)
	h = h.Dispatch(1, 0)

	undone, err := h.Undo()
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone.Present != 0 {
		t.Errorf("expected present 0 after undo, got %d", undone.Present)
	}

	redone, err := undone.Redo()
	if err != nil {
		t.Fatalf("redo: %v", err)
	}
	if redone.Present != 1 {
		t.Errorf("expected present 1 after redo, got %d", redone.Present)
	}
	if !redone.CanUndo() || redone.CanRedo() {
		t.Errorf("unexpected undo/redo availability: past=%v future=%v", redone.Past, redone.Future)
	}
}

func TestUndoOnEmptyHistory(t *testing.T) {
	h := New("only")

	got, err := h.Undo()
	if !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
	if got.Present != "only" {
		t.Errorf("expected history unchanged, got %q", got.Present)
	}

	if _, err := h.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Fatalf("expected ErrNothingToRedo, got %v", err)
	}
}

func TestDispatchAfterUndoClearsFuture(t *testing.T) {
	// S0 -> S1 -> S2, undo twice, dispatch M: redo must report nothing to redo.
	h := New("S0").Dispatch("S1", 0).Dispatch("S2", 0)

	var err error
	if h, err = h.Undo(); err != nil {
		t.Fatalf("first undo: %v", err)
	}
	if h, err = h.Undo(); err != nil {
		t.Fatalf("second undo: %v", err)
	}
	if h.Present != "S0" {
		t.Fatalf("expected S0, got %q", h.Present)
	}

	h = h.Dispatch("M", 0)

	if _, err := h.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Fatalf("expected ErrNothingToRedo, got %v", err)
	}
	if len(h.Past) != 1 || h.Past[0] != "S0" {
		t.Errorf("expected past [S0], got %v", h.Past)
	}
}

func TestDispatchRespectsLimit(t *testing.T) {
	h := New(0)
	for i := 1; i <= 10; i++ {
		h = h.Dispatch(i, 3)
	}

	if len(h.Past) != 3 {
		t.Fatalf("expected 3 past entries, got %d", len(h.Past))
	}
	if h.Past[0] != 7 || h.Past[2] != 9 {
		t.Errorf("expected oldest entries dropped, got %v", h.Past)
	}

	// Undo as far as possible: past+future never exceeds the limit.
	for h.CanUndo() {
		var err error
		if h, err = h.Undo(); err != nil {
			t.Fatalf("undo: %v", err)
		}
	}
	if h.Present != 7 {
		t.Errorf("expected to stop at 7, got %d", h.Present)
	}
	if len(h.Future) != 3 {
		t.Errorf("expected 3 future entries, got %d", len(h.Future))
	}
}

func TestOperationsDoNotMutateReceiver(t *testing.T) {
	base := New(0).Dispatch(1, 0).Dispatch(2, 0)
	pastBefore := append([]int(nil), base.Past...)

	undone, _ := base.Undo()
	_ = undone.Dispatch(42, 0)
	_ = base.Dispatch(99, 0)

	if base.Present != 2 {
		t.Errorf("receiver present changed to %d", base.Present)
	}
	for i := range pastBefore {
		if base.Past[i] != pastBefore[i] {
			t.Fatalf("receiver past changed: %v -> %v", pastBefore, base.Past)
		}
	}
}

func TestApplyError(t *testing.T) {
	boom := errors.New("boom")
	h := New(5)

	got, err := h.Apply(func(int) (int, error) { return 0, boom }, 0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got.Present != 5 || got.CanUndo() {
		t.Errorf("expected unchanged history, got %+v", got)
	}

	got, err = h.Apply(func(v int) (int, error) { return v * 2, nil }, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Present != 10 || !got.CanUndo() {
		t.Errorf("expected dispatched history, got %+v", got)
	}
}

func TestTrim(t *testing.T) {
	h := New(0)
	for i := 1; i <= 5; i++ {
		h = h.Dispatch(i, 0)
	}
	h = h.Trim(2)
	if len(h.Past) != 2 || h.Past[0] != 3 {
		t.Errorf("expected past [3 4], got %v", h.Past)
	}
}

func TestTrim_KeepsNearestFuture(t *testing.T) {
	h := New(0)
	for i := 1; i <= 5; i++ {
		h = h.Dispatch(i, 0)
	}
	for range 3 {
		h, _ = h.Undo()
	}
	// past [0 1], present 2, future [5 4 3]
	h = h.Trim(4)
	if len(h.Past) != 2 || len(h.Future) != 2 {
		t.Fatalf("expected 2 past and 2 future states, got %v and %v", h.Past, h.Future)
	}
	if h.Future[0] != 4 || h.Future[1] != 3 {
		t.Errorf("expected future [4 3], got %v", h.Future)
	}
	if h.Present != 2 {
		t.Errorf("present changed to %d", h.Present)
	}

	same := h.Trim(10)
	if len(same.Past) != 2 || len(same.Future) != 2 {
		t.Errorf("trim under the limit changed the history")
	}
}
