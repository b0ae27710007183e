// Package connect implements the Connector and Acceptor (spec.md
// §4.9/§4.10): the dialer that races a TCP connect against a deadline
// timer, and the accept-loop that binds/listens/accepts one connection
// at a time. Grounded on the teacher's historical
// `Connmgr.Dial`/`net.DialTimeout` (_pkg.dev/connmgr/connmgr.go) and its
// listener setup in the modern `pkg/connmgr`, generalized to spec.md's
// race_speed<2>-against-deadline connect contract and its separate,
// suspendable accept loop.
package connect

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/race"
	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/async/timer"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// DialFunc resolves and connects to address, honoring ctx's deadline/
// cancellation. The default dials plain TCP; a SOCKS5-proxied or TLS
// variant can be substituted without touching Connector (spec.md §1's
// transport-agnostic non-goal applies to the dial side too).
type DialFunc func(ctx context.Context, address string) (socket.Transport, error)

// DefaultDial resolves address (DNS or literal) and tries each resulting
// address in order until one succeeds or ctx is done, per spec.md §4.10's
// "ordered list of candidates tried in order".
func DefaultDial(ctx context.Context, address string) (socket.Transport, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, neterr.ErrAddressInvalid
	}

	var dialer net.Dialer
	if ip := net.ParseIP(host); ip != nil {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, neterr.ErrConnectFailed
		}
		return socket.NewTCPTransport(conn), nil
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(ips) == 0 {
		return nil, neterr.ErrResolveFailed
	}

	var lastErr error
	for _, ip := range ips {
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip.IP.String(), port))
		if err != nil {
			lastErr = err
			continue
		}
		return socket.NewTCPTransport(conn), nil
	}
	if ctx.Err() != nil {
		return nil, neterr.ErrConnectTimeout
	}
	return nil, fmt.Errorf("%w: %v", neterr.ErrConnectFailed, lastErr)
}

// ConnectHandler receives a connected, not-yet-started Socket, or one of
// resolve_failed/connect_failed/connect_timeout/service_suspended/canceled
// (spec.md §4.10).
type ConnectHandler func(sock *socket.Socket, err error)

// Connector races a dial attempt against a deadline timer (spec.md
// §4.10's race_speed<2>): whichever finishes first wins, the loser is
// canceled via context.
type Connector struct {
	strand  *strand.Strand
	timeout time.Duration
	dial    DialFunc

	mu        sync.Mutex
	suspended bool
	stopped   bool
}

// NewConnector builds a Connector bound to st, dialing with dial (or
// DefaultDial if nil) with a connect_timeout of timeout.
func NewConnector(st *strand.Strand, timeout time.Duration, dial DialFunc) *Connector {
	if dial == nil {
		dial = DefaultDial
	}
	return &Connector{strand: st, timeout: timeout, dial: dial}
}

// Suspend causes subsequent Connect calls to fail immediately with
// service_suspended, mirroring the acceptor's suspension flag.
func (c *Connector) Suspend(suspended bool) {
	c.mu.Lock()
	c.suspended = suspended
	c.mu.Unlock()
}

// Connect resolves and connects to target, invoking handler with a
// connected, not-yet-handshaked Socket, or an error.
func (c *Connector) Connect(target string, handler ConnectHandler) {
	c.strand.Post(func() {
		c.mu.Lock()
		stopped, suspended := c.stopped, c.suspended
		c.mu.Unlock()
		if stopped {
			handler(nil, neterr.ErrOperationCanceled)
			return
		}
		if suspended {
			handler(nil, neterr.ErrServiceSuspended)
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		deadline := timer.New(c.strand, c.timeout)

		r := race.NewSpeed[*socket.Socket](2, func(err error, sock *socket.Socket) {
			deadline.Stop()
			cancel()
			handler(sock, err)
		})

		go func() {
			transport, err := c.dial(ctx, target)
			c.strand.Post(func() {
				if err != nil {
					r.Finish(err, nil)
					return
				}
				r.Finish(nil, socket.New(transport, c.strand))
			})
		}()

		deadline.Start(func(code timer.Code) {
			if code == timer.Success {
				r.Finish(neterr.ErrConnectTimeout, nil)
			}
		})
	})
}

// ConnectAuthority is a convenience wrapper over Connect for an Authority.
func (c *Connector) ConnectAuthority(a wireaddr.Authority, handler ConnectHandler) {
	c.Connect(a.String(), handler)
}

// Stop idempotently prevents further Connect calls from succeeding.
func (c *Connector) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}
