package connect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
	"github.com/stretchr/testify/require"
)

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
		t.Fatal("timed out")
	}
}

func TestAcceptorAcceptsOneConnectionAtATime(t *testing.T) {
	st := strand.New()
	acc := NewAcceptor(st)
	require.NoError(t, acc.Start(wireaddr.Authority{}))
	defer acc.Stop()

	addr := acceptorAddr(t, acc)

	var wg sync.WaitGroup
	wg.Add(1)
	acc.Accept(func(sock *socket.Socket, err error) {
		require.NoError(t, err)
		require.NotNil(t, sock)
		wg.Done()
	})

	dialer := NewConnector(strand.New(), time.Second, nil)
	dialer.Connect(addr, func(sock *socket.Socket, err error) {
		require.NoError(t, err)
	})

	waitOrTimeout(t, &wg, 2*time.Second)
}

func TestAcceptorSuspensionRejectsImmediately(t *testing.T) {
	st := strand.New()
	acc := NewAcceptor(st)
	require.NoError(t, acc.Start(wireaddr.Authority{}))
	defer acc.Stop()
	acc.Suspend(true)

	var wg sync.WaitGroup
	wg.Add(1)
	acc.Accept(func(sock *socket.Socket, err error) {
		require.ErrorIs(t, err, neterr.ErrServiceSuspended)
		wg.Done()
	})
	waitOrTimeout(t, &wg, time.Second)
}

func TestAcceptorStopCancelsPendingAccept(t *testing.T) {
	st := strand.New()
	acc := NewAcceptor(st)
	require.NoError(t, acc.Start(wireaddr.Authority{}))

	var wg sync.WaitGroup
	wg.Add(1)
	acc.Accept(func(sock *socket.Socket, err error) {
		require.ErrorIs(t, err, neterr.ErrOperationCanceled)
		wg.Done()
	})
	acc.Stop()
	waitOrTimeout(t, &wg, time.Second)
}

func TestConnectorTimesOutAgainstUnreachableTarget(t *testing.T) {
	st := strand.New()
	c := NewConnector(st, 50*time.Millisecond, func(ctx context.Context, address string) (socket.Transport, error) {
		<-ctx.Done()
		return nil, context.Canceled
	})

	var wg sync.WaitGroup
	wg.Add(1)
	c.Connect("10.255.255.1:9", func(sock *socket.Socket, err error) {
		require.ErrorIs(t, err, neterr.ErrConnectTimeout)
		require.Nil(t, sock)
		wg.Done()
	})
	waitOrTimeout(t, &wg, time.Second)
}

func TestConnectorSuspendedFailsImmediately(t *testing.T) {
	st := strand.New()
	c := NewConnector(st, time.Second, nil)
	c.Suspend(true)

	var wg sync.WaitGroup
	wg.Add(1)
	c.Connect("127.0.0.1:1", func(sock *socket.Socket, err error) {
		require.ErrorIs(t, err, neterr.ErrServiceSuspended)
		wg.Done()
	})
	waitOrTimeout(t, &wg, time.Second)
}

func acceptorAddr(t *testing.T, acc *Acceptor) string {
	t.Helper()
	acc.mu.Lock()
	defer acc.mu.Unlock()
	require.NotNil(t, acc.listener)
	return acc.listener.Addr().String()
}
