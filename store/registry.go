package store

import (
	"fmt"
	"sync"
)

// Registry holds the models defined on a Client, keyed by table name.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	tables []string
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*Model),
	}
}

// register adds a model under its table name.
func (r *Registry) register(table string, m *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[table]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyDefined, table)
	}
	r.models[table] = m
	r.tables = append(r.tables, table)
	return nil
}

// Lookup returns the model defined for a table.
func (r *Registry) Lookup(table string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[table]
	return m, ok
}

// Tables returns the defined table names in definition order.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.tables...)
}

// Has returns true if a model is defined for the table.
func (r *Registry) Has(table string) bool {
	_, ok := r.Lookup(table)
	return ok
}
