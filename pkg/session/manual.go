package session

import (
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/async/timer"
	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/connect"
	"github.com/nspcc-dev/p2pnet/pkg/protocol"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// AttemptHandler observes a manual session's persistent-connection
// lifecycle: it is invoked for every connect attempt (err set on
// failure, ch set on success) and again when a successfully established
// channel eventually stops (ch set, err the stop reason), per spec.md
// §4.12's "the handler supplied to connect is invoked for every connect
// attempt and for the final channel stop".
type AttemptHandler func(ch *channel.Channel, err error)

// Backoff computes a manual session's reconnect delay from the number of
// consecutive failed attempts against one endpoint, grounded on the
// teacher's historical Connmgr.failed: "multiplier := retries * 10;
// time.AfterFunc(multiplier*time.Second, ...)" for permanent/inbound
// peers (manual endpoints are the core's closest analogue: operator-
// configured, expected to be reliable, retried indefinitely rather than
// abandoned after a retry ceiling).
func Backoff(retries int) time.Duration {
	return time.Duration(retries) * 10 * time.Second
}

// ManualConfig configures a ManualSession.
type ManualConfig struct {
	Endpoints   []wireaddr.Endpoint
	DialTimeout time.Duration
	Dial        connect.DialFunc // nil uses connect.DefaultDial
	OnAttempt   AttemptHandler
}

// ManualSession maintains a persistent connection to each of a fixed list
// of operator-configured endpoints (spec.md §4.12's session_manual): each
// endpoint gets its own reconnect loop with linear backoff, independent
// of every other endpoint's.
type ManualSession struct {
	base
	cfg        ManualConfig
	connectors []*connect.Connector
}

// NewManualSession builds an unstarted ManualSession.
func NewManualSession(deps Deps, cfg ManualConfig) *ManualSession {
	return &ManualSession{base: newBase("manual", deps), cfg: cfg}
}

// Start begins a reconnect loop for every configured endpoint. handler
// fires once, synchronously with respect to loop startup, per spec.md
// §4.12's "start's handler is invoked exactly once, before any protocols
// are attached".
func (s *ManualSession) Start(handler StartHandler) {
	s.strand.Post(func() {
		s.deps.Metrics.setUp("manual", true)
		for _, ep := range s.cfg.Endpoints {
			st := strand.New()
			c := connect.NewConnector(st, s.cfg.DialTimeout, s.cfg.Dial)
			s.connectors = append(s.connectors, c)
			s.attempt(ep, st, c, 0)
		}
		handler(nil)
	})
}

// attempt issues one connect attempt against ep; on failure it schedules
// a retry after Backoff(retries+1); on success it hands the channel
// through the handshake and, on completion, attaches protocols and waits
// for the channel to eventually stop before retrying from scratch.
func (s *ManualSession) attempt(ep wireaddr.Endpoint, st *strand.Strand, c *connect.Connector, retries int) {
	backoff := timer.New(st, 0)

	c.Connect(ep.HostPort(), func(sock *socket.Socket, err error) {
		if s.isStopped() {
			return
		}
		if err != nil {
			s.notify(nil, err)
			backoff.Start(func(code timer.Code) {
				if code == timer.Success {
					s.attempt(ep, st, c, retries+1)
				}
			}, Backoff(retries+1))
			return
		}

		ch := newChannelOn(sock, st, s.deps.ChannelConfig)
		s.trackChannel(ch)
		ch.OnStop(func(error, struct{}) {
			s.untrackChannel(ch)
			s.notify(ch, ch.Err())
			if s.isStopped() {
				return
			}
			backoff.Start(func(code timer.Code) {
				if code == timer.Success {
					s.attempt(ep, st, c, 0)
				}
			}, Backoff(0))
		})

		s.attachHandshake(ch, true, func(err error, _ protocol.HandshakeResult) {
			if err != nil {
				// ch already stopped itself; ch.OnStop above drives the retry.
				return
			}
			s.notify(ch, nil)
			s.attachProtocols(ch, true)
		})
	})
}

func (s *ManualSession) notify(ch *channel.Channel, err error) {
	if s.cfg.OnAttempt != nil {
		s.cfg.OnAttempt(ch, err)
	}
}

// Stop idempotently tears down every endpoint's connector and any live
// channels, in channel-id order, then notifies stop subscribers.
func (s *ManualSession) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	connectors := s.connectors
	s.mu.Unlock()

	for _, c := range connectors {
		c.Stop()
	}
	s.stopChannelsInOrder()
	s.deps.Metrics.setUp("manual", false)
	s.onStop.Notify(nil, struct{}{})
}
