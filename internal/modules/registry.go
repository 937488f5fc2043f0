// ABOUTME: Thread-safe registry mapping module names to their ModuleInfo records.
// ABOUTME: Mutated by the startup manager, read by the module query endpoints.

package modules

import "sync"

// Registry holds exactly one ModuleInfo per module name. Entries are created
// and mutated by the Manager during startup and read concurrently by HTTP
// handlers; entries are never deleted during the process lifetime.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*ModuleInfo
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*ModuleInfo)}
}

// Put stores info under its name, overwriting any previous entry.
func (r *Registry) Put(info ModuleInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[info.Name] = &info
}

// Update applies fn to the entry for name while holding the write lock.
// Missing entries are ignored.
func (r *Registry) Update(name string, fn func(*ModuleInfo)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.modules[name]; ok {
		fn(info)
	}
}

// Get returns a copy of the entry for name.
func (r *Registry) Get(name string) (ModuleInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.modules[name]
	if !ok {
		return ModuleInfo{}, ErrModuleNotFound
	}
	return *info, nil
}

// List returns a copy of every entry keyed by module name.
func (r *Registry) List() map[string]ModuleInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ModuleInfo, len(r.modules))
	for name, info := range r.modules {
		out[name] = *info
	}
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
