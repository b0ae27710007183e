package session

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/hostpool"
	"github.com/nspcc-dev/p2pnet/pkg/protocol"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// testDeps builds an independent node's worth of Deps: its own pool and
// nonce registry, as if it were a distinct process, so two testDeps()
// results can stand in for two distinct peers on localhost.
func testDeps(userAgent string) Deps {
	return Deps{
		ChannelConfig: channel.Config{
			Magic:             0xf00dcafe,
			MaxPayload:        1 << 20,
			HandshakeTimeout:  2 * time.Second,
			InactivityBase:    time.Hour,
			ExpirationTimeout: time.Hour,
		},
		Handshake: protocol.HandshakeConfig{
			MinimumProtocol: 31402,
			MaximumProtocol: 70016,
			ServicesMaximum: wireaddr.ServiceNetwork,
			MaximumSkew:     2 * time.Hour,
			UserAgent:       userAgent,
			EnableReject:    true,
		},
		Ping: protocol.PingConfig{Interval: time.Hour},
		Address: protocol.AddressConfig{
			FetchCount:      10,
			ServicesMaximum: wireaddr.ServiceNetwork,
		},
		Pool:   hostpool.New(hostpool.Config{Capacity: 16}),
		Nonces: protocol.NewNonceRegistry(),
	}
}

func waitOrTimeoutCh(t *testing.T, done <-chan struct{}, d time.Duration) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out")
	}
}

func loopbackEndpoint(t *testing.T, addr net.Addr) wireaddr.Endpoint {
	t.Helper()
	_, port, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	ep, err := wireaddr.NewEndpoint("tcp://127.0.0.1:" + port)
	require.NoError(t, err)
	return ep
}

func startInbound(t *testing.T, deps Deps, cfg InboundConfig) *InboundSession {
	t.Helper()
	s := NewInboundSession(deps, cfg)
	started := make(chan struct{})
	s.Start(func(err error) {
		require.NoError(t, err)
		close(started)
	})
	waitOrTimeoutCh(t, started, time.Second)
	return s
}

func TestInboundAcceptsAndHandshakesManualConnection(t *testing.T) {
	inbound := startInbound(t, testDeps("/p2pnet:inbound/"), InboundConfig{MaxInbound: 4})
	defer inbound.Stop()

	ep := loopbackEndpoint(t, inbound.Addr())

	attempts := make(chan error, 8)
	manual := NewManualSession(testDeps("/p2pnet:manual/"), ManualConfig{
		Endpoints:   []wireaddr.Endpoint{ep},
		DialTimeout: time.Second,
		OnAttempt:   func(ch *channel.Channel, err error) { attempts <- err },
	})
	manualStarted := make(chan struct{})
	manual.Start(func(err error) {
		require.NoError(t, err)
		close(manualStarted)
	})
	waitOrTimeoutCh(t, manualStarted, time.Second)
	defer manual.Stop()

	select {
	case err := <-attempts:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for manual session to connect")
	}

	require.Eventually(t, func() bool {
		return inbound.channelCount() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManualSessionRetriesAfterPeerStops(t *testing.T) {
	inbound := startInbound(t, testDeps("/p2pnet:inbound/"), InboundConfig{MaxInbound: 4})
	ep := loopbackEndpoint(t, inbound.Addr())

	attempts := make(chan error, 8)
	manual := NewManualSession(testDeps("/p2pnet:manual/"), ManualConfig{
		Endpoints:   []wireaddr.Endpoint{ep},
		DialTimeout: time.Second,
		OnAttempt:   func(ch *channel.Channel, err error) { attempts <- err },
	})
	manualStarted := make(chan struct{})
	manual.Start(func(err error) {
		require.NoError(t, err)
		close(manualStarted)
	})
	waitOrTimeoutCh(t, manualStarted, time.Second)
	defer manual.Stop()

	select {
	case err := <-attempts:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on first connect")
	}

	// Killing the inbound listener's side closes the manual session's
	// channel from under it; Backoff(0) schedules an immediate-ish retry
	// that can only ever fail now that the peer is gone.
	inbound.Stop()

	select {
	case err := <-attempts:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the stop notification")
	}
}

func TestOutboundSessionConnectsFromPool(t *testing.T) {
	inbound := startInbound(t, testDeps("/p2pnet:inbound/"), InboundConfig{MaxInbound: 4})
	defer inbound.Stop()

	_, portStr, err := net.SplitHostPort(inbound.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.ParseUint(portStr, 10, 16)
	require.NoError(t, err)

	outboundDeps := testDeps("/p2pnet:outbound/")
	target := wireaddr.AuthorityFromIP(net.ParseIP("127.0.0.1"), uint16(portNum))
	saved := make(chan struct{})
	outboundDeps.Pool.Save([]wireaddr.AddressRecord{
		wireaddr.NewAddressRecord(target, uint32(1), wireaddr.ServiceNetwork),
	}, func(error, int) { close(saved) })
	waitOrTimeoutCh(t, saved, time.Second)

	outbound := NewOutboundSession(outboundDeps, OutboundConfig{
		Count:            1,
		ConnectBatchSize: 1,
		DialTimeout:      time.Second,
		RetryDelay:       200 * time.Millisecond,
	})
	started := make(chan struct{})
	outbound.Start(func(err error) {
		require.NoError(t, err)
		close(started)
	})
	waitOrTimeoutCh(t, started, time.Second)
	defer outbound.Stop()

	require.Eventually(t, func() bool {
		return outbound.channelCount() > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSeedSessionLearnsAddressesFromSeed(t *testing.T) {
	seedDeps := testDeps("/p2pnet:seed-peer/")
	now := uint32(time.Now().Unix())
	seedDeps.Pool.Save([]wireaddr.AddressRecord{
		wireaddr.NewAddressRecord(wireaddr.AuthorityFromIP(net.ParseIP("203.0.113.10"), 30333), now, wireaddr.ServiceNetwork),
		wireaddr.NewAddressRecord(wireaddr.AuthorityFromIP(net.ParseIP("203.0.113.11"), 30333), now, wireaddr.ServiceNetwork),
	}, func(error, int) {})

	seedPeer := startInbound(t, seedDeps, InboundConfig{MaxInbound: 4})
	defer seedPeer.Stop()

	ep := loopbackEndpoint(t, seedPeer.Addr())

	seekerDeps := testDeps("/p2pnet:seeker/")
	seeker := NewSeedSession(seekerDeps, SeedConfig{
		Seeds:             []wireaddr.Endpoint{ep},
		PoolThreshold:     1,
		RequiredAddresses: 1,
		DialTimeout:       time.Second,
		AddressTimeout:    2 * time.Second,
	})

	stopped := make(chan error, 1)
	seeker.OnStop(func(err error, _ struct{}) { stopped <- err })

	started := make(chan struct{})
	seeker.Start(func(err error) {
		require.NoError(t, err)
		close(started)
	})
	waitOrTimeoutCh(t, started, time.Second)

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(4 * time.Second):
		t.Fatal("timed out waiting for seeding to finish")
	}

	require.GreaterOrEqual(t, seekerDeps.Pool.Count(), 1)
}

func TestBackoffIsLinearInRetries(t *testing.T) {
	require.Equal(t, 0*time.Second, Backoff(0))
	require.Equal(t, 10*time.Second, Backoff(1))
	require.Equal(t, 30*time.Second, Backoff(3))
}
