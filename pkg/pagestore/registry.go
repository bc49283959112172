package pagestore

import (
	"fmt"
	"sync"
)

// Registry resolves the disk store for an application name.
//
// Session teardown callbacks outlive the request that registered them, so
// they resolve the store through the registry at fire time instead of
// holding a reference that may already be destroyed.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*DiskStore
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: map[string]*DiskStore{}}
}

// DefaultRegistry is used by [NewDiskStore] when no registry is given.
var DefaultRegistry = NewRegistry()

// Lookup returns the registered store for the application name, or nil.
func (r *Registry) Lookup(appName string) *DiskStore {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stores[appName]
}

func (r *Registry) register(appName string, store *DiskStore) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[appName]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateStore, appName)
	}

	r.stores[appName] = store

	return nil
}

func (r *Registry) deregister(appName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.stores, appName)
}
