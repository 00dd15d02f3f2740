// Package session tracks the live streaming sessions of this process.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when no session is registered under an id.
var ErrNotFound = errors.New("session not found")

// Transport is the live handle a session is routed to.
type Transport interface {
	// SessionID returns the opaque id the transport was created with.
	SessionID() string
	// HandleMessage delivers a client-posted message to the session.
	HandleMessage(ctx context.Context, body []byte) error
	// Close terminates the session's connection.
	Close() error
}

// Registry maps session ids to their transports. It holds lookup entries only;
// each transport owns its own protocol state. Entries are never expired here:
// the transport's close callback is the only path to removal, so a session
// whose disconnect never fires stays registered for the process lifetime.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Transport
}

// NewRegistry creates an empty registry. One registry is owned by the server
// for the lifetime of the process.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Transport)}
}

// Register stores the transport under id, replacing any previous entry.
// Transports are responsible for id uniqueness.
func (r *Registry) Register(id string, t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = t
}

// Unregister removes id. It is a no-op if id is not registered.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Get returns the transport registered under id.
func (r *Registry) Get(id string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.sessions[id]
	return t, ok
}

// Lookup is like Get but returns ErrNotFound for unknown ids.
func (r *Registry) Lookup(id string) (Transport, error) {
	t, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
