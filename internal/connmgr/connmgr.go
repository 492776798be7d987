// Package connmgr implements the ConnectionManager collaborator (spec §6)
// as an in-memory client-id → connection-handle registry. Explicitly not
// Redis-backed: clustering is a named Non-goal (spec §13), and every lookup
// here is local-process only.
package connmgr

import (
	"sync"

	"github.com/beaconmq/beacon/internal/engine"
)

type entry struct {
	self interface{}
	info engine.ConnInfo
}

// Registry is a ConnectionManager backed by a single map guarded by an
// RWMutex: Register/Unregister are called at most once per connection
// lifetime, so contention is low and a map with a mutex is simpler than
// sync.Map's API here.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{clients: map[string]entry{}}
}

// Register implements engine.ConnectionManager. Registering an already
// registered client id replaces the prior entry; the caller (Lifecycle of
// the superseded connection) is expected to detect the conflict separately
// and call Shutdown(conflict) on itself.
func (r *Registry) Register(clientID []byte, self interface{}, info engine.ConnInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[string(clientID)] = entry{self: self, info: info}
}

// Unregister implements engine.ConnectionManager.
func (r *Registry) Unregister(clientID []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, string(clientID))
}

// Lookup returns the registered self-handle and connection info for
// clientID, used by the Broker/Session to route a Deliver event back to the
// right connection.
func (r *Registry) Lookup(clientID []byte) (self interface{}, info engine.ConnInfo, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[string(clientID)]
	return e.self, e.info, ok
}

// Count returns the number of currently registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
