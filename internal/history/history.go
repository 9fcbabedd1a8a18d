// Package history implements undo/redo snapshots over an immutable present state.
//
// A History is a value: every operation returns a new History and leaves the
// receiver untouched, so a History held by an older snapshot of application
// state keeps describing that snapshot.
package history

import "errors"

var (
	// ErrNothingToUndo is returned by Undo when there is no past state.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned by Redo when there is no future state.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// DefaultLimit is the number of past states kept when no limit is given.
// Past and future together never exceed the limit: Undo and Redo only move
// entries between them and Dispatch clears the future.
const DefaultLimit = 100

// History holds the past, present and future of a value of type T.
// Past and Future are LIFO stacks; their last element is the nearest state.
type History[T any] struct {
	Past    []T `json:"past"`
	Present T   `json:"present"`
	Future  []T `json:"future"`
}

// New returns a history with no past or future.
func New[T any](present T) History[T] {
	return History[T]{Present: present}
}

// Dispatch makes next the present, pushes the current present onto the past
// and clears the future. When the past exceeds limit the oldest entries are
// discarded. A limit <= 0 means DefaultLimit.
func (h History[T]) Dispatch(next T, limit int) History[T] {
	return History[T]{
		Past:    push(h.Past, h.Present, limit),
		Present: next,
	}
}

// Apply runs fn against the present and dispatches its result.
// If fn fails the history is returned unchanged along with the error.
func (h History[T]) Apply(fn func(T) (T, error), limit int) (History[T], error) {
	next, err := fn(h.Present)
	if err != nil {
		return h, err
	}
	return h.Dispatch(next, limit), nil
}

// Undo restores the most recent past state.
func (h History[T]) Undo() (History[T], error) {
	if len(h.Past) == 0 {
		return h, ErrNothingToUndo
	}
	last := len(h.Past) - 1
	return History[T]{
		Past:    clone(h.Past[:last]),
		Present: h.Past[last],
		Future:  appendCopy(h.Future, h.Present),
	}, nil
}

// Redo restores the most recently undone state.
func (h History[T]) Redo() (History[T], error) {
	if len(h.Future) == 0 {
		return h, ErrNothingToRedo
	}
	last := len(h.Future) - 1
	return History[T]{
		Past:    appendCopy(h.Past, h.Present),
		Present: h.Future[last],
		Future:  clone(h.Future[:last]),
	}, nil
}

// Reset replaces the present and drops all past and future states.
func (h History[T]) Reset(present T) History[T] {
	return New(present)
}

// Trim drops the states farthest from the present until past and future
// together fit in limit. Past states are kept in preference to future ones.
func (h History[T]) Trim(limit int) History[T] {
	limit = normalizeLimit(limit)
	if len(h.Past)+len(h.Future) <= limit {
		return h
	}
	if len(h.Past) > limit {
		h.Past = clone(h.Past[len(h.Past)-limit:])
	}
	if keep := limit - len(h.Past); len(h.Future) > keep {
		h.Future = clone(h.Future[len(h.Future)-keep:])
	}
	return h
}

// CanUndo reports whether Undo would succeed.
func (h History[T]) CanUndo() bool { return len(h.Past) > 0 }

// CanRedo reports whether Redo would succeed.
func (h History[T]) CanRedo() bool { return len(h.Future) > 0 }

// push returns a new slice with v appended, dropping the oldest entries when
// the result would exceed limit. The input slice is never written to.
func push[T any](s []T, v T, limit int) []T {
	limit = normalizeLimit(limit)
	start := 0
	if len(s)+1 > limit {
		start = len(s) + 1 - limit
	}
	return appendCopy(s[start:], v)
}

func appendCopy[T any](s []T, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s...)
	return append(out, v)
}

func clone[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return append([]T(nil), s...)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
