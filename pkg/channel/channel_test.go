package channel

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
	"github.com/stretchr/testify/require"
)

var errTestStop = errors.New("channel_test: stop")

type pipeTransport struct{ conn net.Conn }

func (p *pipeTransport) Read(b []byte) (int, error)          { return p.conn.Read(b) }
func (p *pipeTransport) Write(b []byte) (int, error)         { return p.conn.Write(b) }
func (p *pipeTransport) Close() error                        { return p.conn.Close() }
func (p *pipeTransport) RemoteAuthority() wireaddr.Authority { return wireaddr.Authority{} }
func (p *pipeTransport) LocalAuthority() wireaddr.Authority  { return wireaddr.Authority{} }

func testConfig() Config {
	return Config{
		Magic:             0xF00DCAFE,
		MaxPayload:        1 << 20,
		HandshakeTimeout:  time.Second,
		InactivityBase:    time.Hour,
		ExpirationTimeout: time.Hour,
	}
}

func newChannelPair(t *testing.T) (*Channel, *Channel, func()) {
	t.Helper()
	a, b := net.Pipe()
	sa, sb := strand.New(), strand.New()
	ca := New(socket.New(&pipeTransport{conn: a}, sa), sa, testConfig())
	cb := New(socket.New(&pipeTransport{conn: b}, sb), sb, testConfig())
	return ca, cb, func() { ca.Stop(errTestStop); cb.Stop(errTestStop) }
}

func TestChannelSendReceive(t *testing.T) {
	ca, cb, cleanup := newChannelPair(t)
	defer cleanup()

	var wg sync.WaitGroup
	wg.Add(1)

	var got *payload.Ping
	require.NoError(t, cb.Subscribe(payload.CmdPing, func(err error, msg payload.Message) {
		require.NoError(t, err)
		got = msg.(*payload.Ping)
		wg.Done()
	}))

	ca.Start()
	cb.Start()

	ca.Send(&payload.Ping{Nonce: 0xABCD}, func(err error) {
		require.NoError(t, err)
	})

	waitOrTimeout(t, &wg, time.Second)
	require.Equal(t, uint64(0xABCD), got.Nonce)
}

func TestChannelStopCascadesToStopSubscribers(t *testing.T) {
	ca, _, cleanup := newChannelPair(t)
	defer cleanup()

	var wg sync.WaitGroup
	wg.Add(1)
	var gotErr error
	require.NoError(t, ca.OnStop(func(err error, _ struct{}) {
		gotErr = err
		wg.Done()
	}))

	ca.Start()
	ca.Stop(neterr.ErrChannelStopped)
	waitOrTimeout(t, &wg, time.Second)
	require.ErrorIs(t, gotErr, neterr.ErrChannelStopped)
}

func TestChannelUnknownCommandDropped(t *testing.T) {
	ca, cb, cleanup := newChannelPair(t)
	defer cleanup()

	ca.Start()
	cb.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, cb.Subscribe(payload.CmdPing, func(error, payload.Message) {
		wg.Done()
	}))

	ca.Send(payload.NewOpaque("filterload", []byte("x")), func(error) {})
	ca.Send(&payload.Ping{Nonce: 1}, func(error) {})

	waitOrTimeout(t, &wg, time.Second)
}

func TestNonceIsNonZeroAndUnique(t *testing.T) {
	ca, cb, cleanup := newChannelPair(t)
	defer cleanup()
	require.NotZero(t, ca.Nonce)
	require.NotZero(t, cb.Nonce)
	require.NotEqual(t, ca.Nonce, cb.Nonce)
	require.NotEqual(t, ca.ID, cb.ID)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for channel callback")
	}
}
