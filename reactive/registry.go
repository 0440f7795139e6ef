package reactive

import "sync"

// Entry is the diagnostic view of a registered store.
type Entry struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Snapshot map[string]any `json:"snapshot"`
	History  []Change       `json:"history"`
}

// Registry indexes live stores by id, preserving registration order.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Register adds s to the registry. Registering an id that is already present
// replaces the store but keeps its original position.
func (r *Registry) Register(s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[s.ID()]; !exists {
		r.order = append(r.order, s.ID())
	}
	r.stores[s.ID()] = s
}

// Unregister removes the store with the given id. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(id)
}

func (r *Registry) unregisterLocked(id string) {
	if _, exists := r.stores[id]; !exists {
		return
	}
	delete(r.stores, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the store registered under id.
func (r *Registry) Get(id string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[id]
	return s, ok
}

// Len returns the number of registered stores.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Stores returns the registered stores in registration order.
func (r *Registry) Stores() []*Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Store, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.stores[id])
	}
	return out
}

// List returns a snapshot of every registered store in registration order.
func (r *Registry) List() []Entry {
	stores := r.Stores()
	out := make([]Entry, 0, len(stores))
	for _, s := range stores {
		out = append(out, Entry{
			ID:       s.ID(),
			Label:    s.Label(),
			Snapshot: s.Snapshot(),
			History:  s.History(),
		})
	}
	return out
}

// Prune unregisters every store for which drop returns true and reports how
// many were removed.
func (r *Registry) Prune(drop func(*Store) bool) int {
	removed := 0
	for _, s := range r.Stores() {
		if !drop(s) {
			continue
		}
		r.mu.Lock()
		if current, ok := r.stores[s.ID()]; ok && current == s {
			r.unregisterLocked(s.ID())
			removed++
		}
		r.mu.Unlock()
	}
	return removed
}
