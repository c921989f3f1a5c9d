// Package fields is the custom-field store consumed by Custom_Fields
// conditions. Fields are keyed by their platform GUID; a field can exist in
// the schema without carrying a value on a given endpoint.
package fields

import (
	"sync"

	"github.com/google/uuid"

	"github.com/breeze-rmm/monitor/internal/condition"
)

// Store resolves custom field GUIDs to their current value on the target.
// The platform implements this against its field database; InMemory serves
// tests and standalone runs.
type Store interface {
	Get(id uuid.UUID) (condition.FieldValue, bool)
}

// Lookup adapts a Store to the condition evaluator's lookup function.
func Lookup(s Store) condition.FieldLookup {
	return s.Get
}

// InMemory is a concurrency-safe map-backed Store.
type InMemory struct {
	mu     sync.RWMutex
	values map[uuid.UUID]condition.FieldValue
}

// NewInMemory returns an empty store.
func NewInMemory() *InMemory {
	return &InMemory{values: make(map[uuid.UUID]condition.FieldValue)}
}

// Set stores a field value.
func (s *InMemory) Set(id uuid.UUID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[id] = condition.FieldValue{Set: true, Value: value}
}

// Clear marks the field as known but unset.
func (s *InMemory) Clear(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[id] = condition.FieldValue{}
}

// Delete removes the field entirely, as if the reference were unknown.
func (s *InMemory) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, id)
}

// Get implements Store.
func (s *InMemory) Get(id uuid.UUID) (condition.FieldValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[id]
	return v, ok
}
