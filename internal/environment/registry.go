package environment

import (
	"sync"
)

// Handle is the host-owned switch for one scene state.
type Handle interface {
	IsActive() bool
	Activate() error
	Deactivate() error
}

// Registry resolves environment identifiers to live handles.
type Registry interface {
	Lookup(id ID) (Handle, bool)
}

// MemoryRegistry is a concurrency-safe Registry populated by the host as
// scenes come up. Handles are never created or destroyed by the scheduler.
type MemoryRegistry struct {
	mu      sync.RWMutex
	handles map[ID]Handle
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{handles: make(map[ID]Handle)}
}

// Register stores h under id, replacing any previous handle. Nil handles are ignored.
func (r *MemoryRegistry) Register(id ID, h Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[id] = h
}

// Unregister drops the handle for id, e.g. when the host tears the scene down.
func (r *MemoryRegistry) Unregister(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
}

// Lookup implements Registry.
func (r *MemoryRegistry) Lookup(id ID) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// Count returns the number of registered handles.
func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// SimulatedHandle is an in-process Handle for headless runs where no host
// scene graph is attached.
type SimulatedHandle struct {
	mu     sync.Mutex
	active bool
}

// NewSimulatedHandle returns a handle in the given state.
func NewSimulatedHandle(active bool) *SimulatedHandle {
	return &SimulatedHandle{active: active}
}

func (h *SimulatedHandle) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *SimulatedHandle) Activate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = true
	return nil
}

func (h *SimulatedHandle) Deactivate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = false
	return nil
}
