package protocol

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
	"github.com/stretchr/testify/require"
)

type pipeTransport struct {
	conn   net.Conn
	remote wireaddr.Authority
	local  wireaddr.Authority
}

func (p *pipeTransport) Read(b []byte) (int, error)          { return p.conn.Read(b) }
func (p *pipeTransport) Write(b []byte) (int, error)         { return p.conn.Write(b) }
func (p *pipeTransport) Close() error                        { return p.conn.Close() }
func (p *pipeTransport) RemoteAuthority() wireaddr.Authority { return p.remote }
func (p *pipeTransport) LocalAuthority() wireaddr.Authority  { return p.local }

func testChannelConfig() channel.Config {
	return channel.Config{
		Magic:             0xF00DCAFE,
		MaxPayload:        1 << 20,
		HandshakeTimeout:  time.Second,
		InactivityBase:    time.Hour,
		ExpirationTimeout: time.Hour,
	}
}

// newChannelPair returns two connected channels, a the outbound side and
// b the inbound side, each addressed as if dialed from distinct hosts.
func newChannelPair(t *testing.T) (a, b *channel.Channel, cleanup func()) {
	t.Helper()
	connA, connB := net.Pipe()
	sa, sb := strand.New(), strand.New()

	authA := wireaddr.Authority{IP: [16]byte{15: 1}, Port: 40000}
	authB := wireaddr.Authority{IP: [16]byte{15: 2}, Port: 50000}

	ta := &pipeTransport{conn: connA, remote: authB, local: authA}
	tb := &pipeTransport{conn: connB, remote: authA, local: authB}

	a = channel.New(socket.New(ta, sa), sa, testChannelConfig())
	b = channel.New(socket.New(tb, sb), sb, testChannelConfig())
	return a, b, func() {
		a.Stop(nil)
		b.Stop(nil)
	}
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
		t.Fatal("timed out waiting")
	}
}

func baseHandshakeConfig(outbound bool, nonces *NonceRegistry) HandshakeConfig {
	return HandshakeConfig{
		MinimumProtocol: 31402,
		MaximumProtocol: 70016,
		ServicesMinimum: 0,
		ServicesMaximum: wireaddr.ServiceNetwork,
		MaximumSkew:     2 * time.Hour,
		Nonces:          nonces,
		Outbound:        outbound,
		UserAgent:       "/p2pnet-test:1.0/",
		EnableReject:    true,
	}
}

func runHandshakePair(t *testing.T, cfgA, cfgB HandshakeConfig) (resA, resB HandshakeResult, errA, errB error, a, b *channel.Channel, cleanup func()) {
	t.Helper()
	a, b, cleanup = newChannelPair(t)

	var wg sync.WaitGroup
	wg.Add(2)
	Attach(a, cfgA, func(err error, res HandshakeResult) {
		errA, resA = err, res
		wg.Done()
	})
	Attach(b, cfgB, func(err error, res HandshakeResult) {
		errB, resB = err, res
		wg.Done()
	})
	a.Start()
	b.Start()
	waitOrTimeout(t, &wg, 2*time.Second)
	return
}

func TestHandshakeSucceeds(t *testing.T) {
	nonces := NewNonceRegistry()
	resA, resB, errA, errB, _, _, cleanup := runHandshakePair(t,
		baseHandshakeConfig(true, nonces), baseHandshakeConfig(false, nonces))
	defer cleanup()

	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, uint32(70016), resA.Negotiated)
	require.Equal(t, uint32(70016), resB.Negotiated)
	require.True(t, resA.SendAddrV2)
	require.True(t, resA.WtxidRelay)
	require.True(t, resB.SendAddrV2)
	require.True(t, resB.WtxidRelay)
}

func TestHandshakeNegotiatesMinimumOfBothMaximums(t *testing.T) {
	nonces := NewNonceRegistry()
	cfgA := baseHandshakeConfig(true, nonces)
	cfgA.MaximumProtocol = 70015
	cfgB := baseHandshakeConfig(false, nonces)

	resA, resB, errA, errB, _, _, cleanup := runHandshakePair(t, cfgA, cfgB)
	defer cleanup()

	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, uint32(70015), resA.Negotiated)
	require.False(t, resA.SendAddrV2)
}

func TestHandshakeRejectsInsufficientServices(t *testing.T) {
	nonces := NewNonceRegistry()
	cfgA := baseHandshakeConfig(true, nonces)
	cfgA.ServicesMaximum = 0
	cfgB := baseHandshakeConfig(false, nonces)
	cfgB.ServicesMinimum = wireaddr.ServiceNetwork

	_, _, errA, errB, _, _, cleanup := runHandshakePair(t, cfgA, cfgB)
	defer cleanup()

	require.ErrorIs(t, errB, neterr.ErrPeerInsufficient)
	require.Error(t, errA)
}

func TestHandshakeDetectsLoopback(t *testing.T) {
	shared := NewNonceRegistry()
	cfgA := baseHandshakeConfig(true, shared)
	cfgB := baseHandshakeConfig(false, shared)

	a, b, cleanup := newChannelPair(t)
	defer cleanup()

	shared.Add(a.Nonce)
	shared.Add(b.Nonce)

	var wg sync.WaitGroup
	wg.Add(2)
	var errA, errB error
	Attach(a, cfgA, func(err error, _ HandshakeResult) { errA = err; wg.Done() })
	Attach(b, cfgB, func(err error, _ HandshakeResult) { errB = err; wg.Done() })
	a.Start()
	b.Start()
	waitOrTimeout(t, &wg, 2*time.Second)

	require.Error(t, errA)
	require.Error(t, errB)
}

func TestHandshakeRejectsStaleTimestamp(t *testing.T) {
	a, b, cleanup := newChannelPair(t)
	defer cleanup()

	cfgB := baseHandshakeConfig(false, NewNonceRegistry())
	cfgB.MaximumSkew = time.Second

	var wg sync.WaitGroup
	wg.Add(1)
	var errB error
	Attach(b, cfgB, func(err error, _ HandshakeResult) { errB = err; wg.Done() })
	a.Start()
	b.Start()

	stale := &payload.Version{
		ProtocolVersion: 70016,
		Services:        0,
		Timestamp:       time.Now().Add(-time.Hour).Unix(),
		Nonce:           1,
		UserAgent:       "/stale/",
	}
	a.Send(stale, func(error) {})

	waitOrTimeout(t, &wg, 2*time.Second)
	require.ErrorIs(t, errB, neterr.ErrPeerTimestamp)
}
