// Package protocol implements the wire-level protocols layered over a
// channel once it is connected: the version handshake state machine, the
// heartbeat ping protocol, address exchange, and the log-only reject/
// alert handlers (spec.md §4.13-§4.16). Grounded on the shape of call
// sites around the teacher's historical `peer` package (handshake
// driven from `server.go`'s `OnVersion`/`OnVerAck` callbacks) and on
// `_pkg.dev/addrmgr`'s `OnAddr`/`OnGetAddr` for the address-exchange
// responder.
package protocol

import "sync"

// NonceRegistry tracks the nonces of every channel this node currently
// has active, so the handshake's loopback guard (spec.md §4.13/§4.17:
// "nonce must not match any of our active nonces") can detect a
// self-connection regardless of which channel an inbound/outbound
// attempt lands on. It is shared across all of a node's sessions/
// channels and is safe for concurrent use.
type NonceRegistry struct {
	mu     sync.Mutex
	active map[uint64]struct{}
}

// NewNonceRegistry returns an empty registry.
func NewNonceRegistry() *NonceRegistry {
	return &NonceRegistry{active: make(map[uint64]struct{})}
}

// Add records nonce as belonging to a currently active local channel.
func (r *NonceRegistry) Add(nonce uint64) {
	r.mu.Lock()
	r.active[nonce] = struct{}{}
	r.mu.Unlock()
}

// Remove forgets nonce, typically called when its channel stops.
func (r *NonceRegistry) Remove(nonce uint64) {
	r.mu.Lock()
	delete(r.active, nonce)
	r.mu.Unlock()
}

// Contains reports whether nonce belongs to one of this node's own
// active channels.
func (r *NonceRegistry) Contains(nonce uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[nonce]
	return ok
}
