package connect

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// AcceptHandler receives a connected, not-yet-started Socket for an
// inbound connection, or one of accept_failed/service_suspended/canceled.
type AcceptHandler func(sock *socket.Socket, err error)

// Acceptor binds a listener and accepts one connection at a time
// (spec.md §4.9): Accept is one-shot, and the next call may only be
// issued after the previous handler has run. Suspended is a
// session-shared atomic flag; while set, Accept fails immediately with
// service_suspended without touching the listener.
type Acceptor struct {
	strand    *strand.Strand
	listener  net.Listener
	suspended int32

	mu      sync.Mutex
	stopped bool
}

// NewAcceptor returns an unstarted Acceptor bound to st.
func NewAcceptor(st *strand.Strand) *Acceptor {
	return &Acceptor{strand: st}
}

// Start binds and listens on local (a port with an unspecified ip, or a
// bound local_authority). It returns synchronously if bind/listen fails.
func (a *Acceptor) Start(local wireaddr.Authority) error {
	ln, err := net.Listen("tcp", local.String())
	if err != nil {
		return neterr.ErrListenFailed
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()
	return nil
}

// Addr returns the listener's bound address, or nil before Start.
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Suspend toggles the shared suspension flag; while suspended, Accept
// fails immediately with service_suspended (spec.md §4.9).
func (a *Acceptor) Suspend(suspended bool) {
	v := int32(0)
	if suspended {
		v = 1
	}
	atomic.StoreInt32(&a.suspended, v)
}

// Accept issues one accept; handler runs on the acceptor's strand with
// either a connected Socket or an error. The next Accept call must wait
// until handler has run.
func (a *Acceptor) Accept(handler AcceptHandler) {
	a.mu.Lock()
	stopped, ln := a.stopped, a.listener
	a.mu.Unlock()

	if stopped {
		a.strand.Post(func() { handler(nil, neterr.ErrOperationCanceled) })
		return
	}
	if atomic.LoadInt32(&a.suspended) != 0 {
		a.strand.Post(func() { handler(nil, neterr.ErrServiceSuspended) })
		return
	}
	if ln == nil {
		a.strand.Post(func() { handler(nil, neterr.ErrListenFailed) })
		return
	}

	go func() {
		conn, err := ln.Accept()
		a.strand.Post(func() {
			a.mu.Lock()
			stoppedNow := a.stopped
			a.mu.Unlock()
			if stoppedNow {
				if conn != nil {
					conn.Close()
				}
				handler(nil, neterr.ErrOperationCanceled)
				return
			}
			if err != nil {
				handler(nil, neterr.ErrAcceptFailed)
				return
			}
			handler(socket.New(socket.NewTCPTransport(conn), a.strand), nil)
		})
	}()
}

// Stop idempotently closes the listener, canceling any pending Accept
// with operation_canceled.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	ln := a.listener
	a.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
}
