package presence

import "sync"

// Handle is a live connection capable of receiving events. The registry
// only needs delivery; connection lifecycle stays with the owner.
type Handle interface {
	SendEvent(event string, data interface{}) error
	UserID() int64
}

// Observer is notified when a user's presence flips.
type Observer func(userID int64, online bool)

// Registry tracks which users currently hold live connections. A user may
// hold several at once (multiple devices); they are online while the set
// is non-empty. State is process-local and rebuilt empty on restart.
type Registry struct {
	mu        sync.RWMutex
	byUser    map[int64]map[Handle]struct{}
	observers []Observer
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byUser: make(map[int64]map[Handle]struct{})}
}

// Subscribe adds a presence-change observer. Must be called before
// connections start registering.
func (r *Registry) Subscribe(obs Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, obs)
	r.mu.Unlock()
}

// Register adds a connection for the user. The zero-to-one transition
// emits an online event; an additional device is not a reconnect.
func (r *Registry) Register(userID int64, h Handle) {
	r.mu.Lock()
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[Handle]struct{})
		r.byUser[userID] = conns
	}
	wasOffline := len(conns) == 0
	conns[h] = struct{}{}
	observers := r.observers
	r.mu.Unlock()

	if wasOffline {
		for _, obs := range observers {
			obs(userID, true)
		}
	}
}

// Unregister removes a connection. The one-to-zero transition emits an
// offline event.
func (r *Registry) Unregister(h Handle) {
	userID := h.UserID()

	r.mu.Lock()
	conns, ok := r.byUser[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, present := conns[h]; !present {
		r.mu.Unlock()
		return
	}
	delete(conns, h)
	nowOffline := len(conns) == 0
	if nowOffline {
		delete(r.byUser, userID)
	}
	observers := r.observers
	r.mu.Unlock()

	if nowOffline {
		for _, obs := range observers {
			obs(userID, false)
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// AllConnections returns a snapshot of every live connection.
func (r *Registry) AllConnections() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Handle
	for _, conns := range r.byUser {
		for h := range conns {
			out = append(out, h)
		}
	}
	return out
}

// ConnectionsFor returns a snapshot of the user's live connections.
func (r *Registry) ConnectionsFor(userID int64) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]Handle, 0, len(conns))
	for h := range conns {
		out = append(out, h)
	}
	return out
}
