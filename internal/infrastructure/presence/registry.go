package presence

import "sync"

// Registry tracks which users currently hold live connections. It is
// process-local and disposable: nothing is persisted, and a restart simply
// starts from empty. A user may hold several connections at once
// (multi-device), so the registry is a multimap keyed by user ID.
type Registry interface {
	Add(userID string, connID string)
	// Remove drops one connection and reports whether it was the user's last.
	Remove(userID string, connID string) bool
	IsOnline(userID string) bool
	ConnectionCount(userID string) int
}

type registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{}
}

func NewRegistry() Registry {
	return &registry{
		conns: make(map[string]map[string]struct{}),
	}
}

func (r *registry) Add(userID string, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
}

func (r *registry) Remove(userID string, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
		return true
	}
	return false
}

func (r *registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

func (r *registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}
