package events

import "sync"

// Registry is the set of live connections of this process.
type Registry struct {
	mu    sync.RWMutex
	conns map[Connection]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[Connection]struct{})}
}

func (r *Registry) Register(c Connection) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

// Unregister is a no-op for connections that are not present.
func (r *Registry) Unregister(c Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; !ok {
		return false
	}
	delete(r.conns, c)
	return true
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot copies the current membership so callers can iterate without
// holding the lock.
func (r *Registry) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}
