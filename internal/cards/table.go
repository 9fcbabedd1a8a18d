package cards

import (
	"encoding/json"
	"fmt"
)

// Entity is implemented by every record that can live in a Table.
type Entity interface {
	EntityID() string
}

// Table is a normalized collection of entities keyed by id.
// Insertion order is kept in a companion id list so iteration is stable.
//
// Entities stored in a table are treated as immutable: callers clone an
// entity, modify the clone and Upsert it. This lets a cloned table share
// entity pointers with the table it was cloned from.
type Table[T Entity] struct {
	byID map[string]T
	ids  []string
}

// NewTable creates a table holding the given entities in order.
func NewTable[T Entity](entities ...T) *Table[T] {
	t := &Table[T]{
		byID: make(map[string]T, len(entities)),
		ids:  make([]string, 0, len(entities)),
	}
	for _, e := range entities {
		t.Upsert(e)
	}
	return t
}

// Get returns the entity with the given id. The boolean is false on a miss.
func (t *Table[T]) Get(id string) (T, bool) {
	var zero T
	if t == nil || t.byID == nil {
		return zero, false
	}
	e, ok := t.byID[id]
	return e, ok
}

// Has reports whether an entity with the given id exists.
func (t *Table[T]) Has(id string) bool {
	_, ok := t.Get(id)
	return ok
}

// Upsert inserts or replaces an entity. New ids are appended to the id list;
// replacing an existing entity keeps its position.
func (t *Table[T]) Upsert(e T) {
	if t.byID == nil {
		t.byID = make(map[string]T)
	}
	id := e.EntityID()
	if _, exists := t.byID[id]; !exists {
		t.ids = append(t.ids, id)
	}
	t.byID[id] = e
}

// Remove deletes the entity with the given id and reports whether it existed.
// Related entities are left alone.
func (t *Table[T]) Remove(id string) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	for i, existing := range t.ids {
		if existing == id {
			t.ids = append(t.ids[:i:i], t.ids[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns a copy of the ids in insertion order.
func (t *Table[T]) IDs() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.ids...)
}

// Len returns the number of entities in the table.
func (t *Table[T]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}

// All returns the entities in insertion order.
func (t *Table[T]) All() []T {
	if t == nil {
		return nil
	}
	out := make([]T, 0, len(t.ids))
	for _, id := range t.ids {
		out = append(out, t.byID[id])
	}
	return out
}

// Clone returns a shallow copy of the table. Entity values are shared.
func (t *Table[T]) Clone() *Table[T] {
	if t == nil {
		return NewTable[T]()
	}
	cp := &Table[T]{
		byID: make(map[string]T, len(t.byID)),
		ids:  append([]string(nil), t.ids...),
	}
	for id, e := range t.byID {
		cp.byID[id] = e
	}
	return cp
}

// MarshalJSON encodes the table as an ordered array of entities.
func (t *Table[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.All())
}

// UnmarshalJSON decodes an ordered array of entities.
func (t *Table[T]) UnmarshalJSON(data []byte) error {
	var entities []T
	if err := json.Unmarshal(data, &entities); err != nil {
		return fmt.Errorf("failed to decode table: %w", err)
	}
	*t = Table[T]{byID: make(map[string]T, len(entities))}
	for _, e := range entities {
		t.Upsert(e)
	}
	return nil
}
