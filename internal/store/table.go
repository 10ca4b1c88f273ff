// Package store holds the normalised client-side entity cache. All state is
// immutable: every change produces a new State, and a change that alters
// nothing returns the previous value so consumers can skip work on
// reference equality.
package store

import (
	"reflect"
	"sort"

	"github.com/kilupskalvis/minard/internal/models"
)

// Slot is the content of one (type, id) position: either a valid entity or
// the error recorded when fetching it failed.
type Slot[T models.Entity] struct {
	Entity T
	Err    *models.FetchError
}

// Valid reports whether the slot holds an entity.
func (s Slot[T]) Valid() bool {
	return s.Err == nil
}

// Table maps IDs of one entity type to slots.
type Table[T models.Entity] struct {
	typ   models.EntityType
	slots map[string]Slot[T]
}

// NewTable returns an empty table for typ.
func NewTable[T models.Entity](typ models.EntityType) *Table[T] {
	return &Table[T]{typ: typ, slots: map[string]Slot[T]{}}
}

// Type returns the entity type stored in the table.
func (t *Table[T]) Type() models.EntityType {
	return t.typ
}

// Get returns the slot for id and whether one exists.
func (t *Table[T]) Get(id string) (Slot[T], bool) {
	s, ok := t.slots[id]
	return s, ok
}

// Entity returns the entity for id if the slot holds a valid one.
func (t *Table[T]) Entity(id string) (T, bool) {
	s, ok := t.slots[id]
	if !ok || !s.Valid() {
		var zero T
		return zero, false
	}
	return s.Entity, true
}

// Len returns the number of occupied slots.
func (t *Table[T]) Len() int {
	return len(t.slots)
}

// IDs returns the occupied IDs in sorted order.
func (t *Table[T]) IDs() []string {
	ids := make([]string, 0, len(t.slots))
	for id := range t.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Put creates or fully replaces each entity by ID. The receiver is returned
// unchanged when entities is empty or every entity is already stored as is.
func (t *Table[T]) Put(entities ...T) *Table[T] {
	var next *Table[T]
	for _, e := range entities {
		id := e.EntityID()
		if cur, ok := t.slots[id]; ok && cur.Valid() && reflect.DeepEqual(cur.Entity, e) {
			continue
		}
		if next == nil {
			next = t.clone()
		}
		next.slots[id] = Slot[T]{Entity: e}
	}
	if next == nil {
		return t
	}
	return next
}

// PutError records a fetch failure. A valid entity is never replaced by an
// error; in that case the receiver is returned unchanged.
func (t *Table[T]) PutError(ferr *models.FetchError) *Table[T] {
	if cur, ok := t.slots[ferr.ID]; ok && cur.Valid() {
		return t
	}
	next := t.clone()
	next.slots[ferr.ID] = Slot[T]{Err: ferr}
	return next
}

// Remove deletes id. It reports false and returns the receiver when id is
// not present.
func (t *Table[T]) Remove(id string) (*Table[T], bool) {
	if _, ok := t.slots[id]; !ok {
		return t, false
	}
	next := t.clone()
	delete(next.slots, id)
	return next, true
}

// Update replaces the valid entity at id with fn's result. Missing or
// errored slots are left alone, as are updates that change nothing.
func (t *Table[T]) Update(id string, fn func(T) T) *Table[T] {
	cur, ok := t.slots[id]
	if !ok || !cur.Valid() {
		return t
	}
	updated := fn(cur.Entity)
	if reflect.DeepEqual(updated, cur.Entity) {
		return t
	}
	next := t.clone()
	next.slots[id] = Slot[T]{Entity: updated}
	return next
}

func (t *Table[T]) clone() *Table[T] {
	slots := make(map[string]Slot[T], len(t.slots)+1)
	for k, v := range t.slots {
		slots[k] = v
	}
	return &Table[T]{typ: t.typ, slots: slots}
}
