package socket

import (
	"bytes"

	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// WebSocketTransport adapts a gorilla/websocket connection to the
// stream-oriented Transport interface by buffering partial reads across
// message boundaries. It demonstrates that the channel/socket layer is
// genuinely transport-agnostic (spec.md §1 non-goal): nothing above this
// file knows whether bytes arrived over raw TCP or a WebSocket upgrade.
type WebSocketTransport struct {
	conn *websocket.Conn
	buf  bytes.Buffer
}

// NewWebSocketTransport wraps an already-upgraded/dialed connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{conn: conn}
}

// Read implements Transport, pulling a fresh binary message off the wire
// whenever the internal buffer is drained.
func (t *WebSocketTransport) Read(b []byte) (int, error) {
	for t.buf.Len() == 0 {
		_, r, err := t.conn.NextReader()
		if err != nil {
			return 0, err
		}
		if _, err := t.buf.ReadFrom(r); err != nil {
			return 0, err
		}
	}
	return t.buf.Read(b)
}

// Write implements Transport, framing b as a single binary message.
func (t *WebSocketTransport) Write(b []byte) (int, error) {
	if err := t.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close implements Transport.
func (t *WebSocketTransport) Close() error { return t.conn.Close() }

// RemoteAuthority implements Transport.
func (t *WebSocketTransport) RemoteAuthority() wireaddr.Authority {
	return authorityOf(t.conn.RemoteAddr())
}

// LocalAuthority implements Transport.
func (t *WebSocketTransport) LocalAuthority() wireaddr.Authority {
	return authorityOf(t.conn.LocalAddr())
}
