package socket

import (
	"net"

	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// TCPTransport adapts a net.Conn to Transport. It is the only transport
// the core wires by default; Dial and Accept both produce one.
type TCPTransport struct {
	conn net.Conn
}

// NewTCPTransport wraps an already-established net.Conn.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn}
}

// Dial connects to addr ("host:port") without a timeout of its own; callers
// needing a deadline race it against a timer via pkg/async/race, matching
// the connector's race_speed<2> in spec.md §4.10.
func Dial(network, addr string) (*TCPTransport, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return NewTCPTransport(conn), nil
}

// Read implements Transport.
func (t *TCPTransport) Read(b []byte) (int, error) { return t.conn.Read(b) }

// Write implements Transport.
func (t *TCPTransport) Write(b []byte) (int, error) { return t.conn.Write(b) }

// Close implements Transport.
func (t *TCPTransport) Close() error { return t.conn.Close() }

// RemoteAuthority implements Transport.
func (t *TCPTransport) RemoteAuthority() wireaddr.Authority {
	return authorityOf(t.conn.RemoteAddr())
}

// LocalAuthority implements Transport.
func (t *TCPTransport) LocalAuthority() wireaddr.Authority {
	return authorityOf(t.conn.LocalAddr())
}

func authorityOf(addr net.Addr) wireaddr.Authority {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return wireaddr.Authority{}
	}
	return wireaddr.AuthorityFromIP(tcpAddr.IP, uint16(tcpAddr.Port))
}
