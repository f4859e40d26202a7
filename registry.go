package devnet

import "sync"

// Registry is the process-wide set of live connections, keyed by peer
// address (§4.6). Grounded in the teacher's Listener.conns sync.Map
// (aznet.go), narrowed here to a single purpose: admin/HTTP visibility
// into which devices are currently attached.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*DeviceConn
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*DeviceConn)}
}

// Append inserts c, keyed by its peer address. Called once, by the login
// handshake, after a connection is fully established (§4.3).
func (r *Registry) Append(c *DeviceConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.addr.String()] = c
}

// Remove deletes the entry for addr, if present. Called exactly once per
// connection, from the write task's teardown path (§4.4, §8).
func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, addr)
}

// Get returns the live connection for addr, if any.
func (r *Registry) Get(addr string) (*DeviceConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[addr]
	return c, ok
}

// Snapshot returns a point-in-time copy of every live connection's info.
// Order is unspecified.
func (r *Registry) Snapshot() []ConnInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnInfo, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c.Info())
	}
	return out
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
