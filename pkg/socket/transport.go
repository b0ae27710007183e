// Package socket implements the core's socket layer (spec.md §4.5): a
// transport-owning endpoint with a paused/resumed read loop, a FIFO write
// queue with backlog accounting, and idempotent shutdown. Grounded on the
// teacher's historical Connmgr.Dial (net.DialTimeout over TCP) and
// generalized behind a Transport interface so TLS/WebSocket upgrades can
// be wired in without touching Socket itself (spec.md §1's transport-
// agnostic non-goal: "only the shape of the transport interface is
// fixed").
package socket

import (
	"io"

	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// Transport is the minimal byte-stream endpoint a Socket drives. This
// package implements it over TCP (tcp.go) and over gorilla/websocket
// (websocket.go); a SOCKS5-proxied transport can satisfy the same
// interface without any change to Socket, Channel or the session layer.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer

	// RemoteAuthority is the peer endpoint this transport is connected to.
	RemoteAuthority() wireaddr.Authority
	// LocalAuthority is this endpoint's own bound address.
	LocalAuthority() wireaddr.Authority
}
