package chatmanager

import "sync"

// Registry maps conversation ID to its ChatManager, one provider instance
// per active conversation. It is grounded on the reference orchestrator's
// register/get/remove/list_ids shape, adapted to lazy creation: a caller
// supplies a factory so the registry itself never constructs providers.
type Registry struct {
	mu       sync.Mutex
	managers map[string]*ChatManager
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{managers: make(map[string]*ChatManager)}
}

// Register associates id with manager, replacing any prior manager for
// that id.
func (r *Registry) Register(id string, manager *ChatManager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[id] = manager
}

// Get returns the ChatManager for id, or ok=false if none is registered.
func (r *Registry) Get(id string) (*ChatManager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[id]
	return m, ok
}

// GetOrCreate returns the existing manager for id, or builds one with
// create and registers it if absent. create is invoked at most once per
// id under the registry's lock, so two concurrent callers for the same
// new id never construct two providers for it.
func (r *Registry) GetOrCreate(id string, create func() *ChatManager) *ChatManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[id]; ok {
		return m
	}
	m := create()
	r.managers[id] = m
	return m
}

// Remove deletes the manager for id, returning it if present.
func (r *Registry) Remove(id string) (*ChatManager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[id]
	delete(r.managers, id)
	return m, ok
}

// ListIDs returns every registered conversation ID, in no particular order.
func (r *Registry) ListIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.managers))
	for id := range r.managers {
		ids = append(ids, id)
	}
	return ids
}
