package protocol

import (
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/timer"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
	"github.com/stretchr/testify/require"
)

func TestPingRespondsToIncomingPing(t *testing.T) {
	a, b, cleanup := newChannelPair(t)
	defer cleanup()
	a.SetPeerVersion(nil, 70016)
	b.SetPeerVersion(nil, 70016)
	a.Start()
	b.Start()

	pa := AttachPing(a, PingConfig{Interval: time.Hour})
	require.NotNil(t, pa)
	pb := AttachPing(b, PingConfig{Interval: time.Hour})
	require.NotNil(t, pb)

	var wg sync.WaitGroup
	wg.Add(1)
	var gotLatency time.Duration
	pa.cfg.OnLatency = func(d time.Duration) { gotLatency = d; wg.Done() }

	pa.onTick(timer.Success)
	waitOrTimeout(t, &wg, 2*time.Second)
	require.GreaterOrEqual(t, gotLatency, time.Duration(0))
}

func TestPingBelowMinimumProtocolIsNoop(t *testing.T) {
	a, b, cleanup := newChannelPair(t)
	defer cleanup()
	a.SetPeerVersion(nil, 31401)
	b.SetPeerVersion(nil, 31401)
	a.Start()
	b.Start()

	require.Nil(t, AttachPing(a, PingConfig{Interval: time.Hour}))
}

func TestPingMismatchedNonceIsProtocolViolation(t *testing.T) {
	a, b, cleanup := newChannelPair(t)
	defer cleanup()
	a.SetPeerVersion(nil, 70016)
	b.SetPeerVersion(nil, 70016)
	a.Start()
	b.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	var stopErr error
	a.OnStop(func(err error, _ struct{}) { stopErr = err; wg.Done() })

	pa := AttachPing(a, PingConfig{Interval: time.Hour})
	pa.awaiting = true
	pa.sentNonce = 1

	b.Send(&payload.Pong{Nonce: 999}, func(error) {})
	waitOrTimeout(t, &wg, 2*time.Second)
	require.ErrorIs(t, stopErr, neterr.ErrProtocolViolation)
}
