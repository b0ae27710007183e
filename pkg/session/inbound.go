package session

import (
	"net"

	"go.uber.org/zap"

	"github.com/nspcc-dev/p2pnet/pkg/connect"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/protocol"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// InboundConfig configures an InboundSession.
type InboundConfig struct {
	Local      wireaddr.Authority
	MaxInbound int
	Blacklist  []wireaddr.Authority
	// Whitelist, if non-empty, makes every Authority not matched by it
	// rejected regardless of blacklist (spec.md §4.12).
	Whitelist []wireaddr.Authority
}

// InboundSession maintains a single Acceptor (spec.md §4.12's
// session_inbound): every accepted connection is checked against the
// blacklist/whitelist, then against the configured inbound ceiling,
// before the version handshake ever runs.
type InboundSession struct {
	base
	cfg      InboundConfig
	acceptor *connect.Acceptor
}

// NewInboundSession builds an unstarted InboundSession.
func NewInboundSession(deps Deps, cfg InboundConfig) *InboundSession {
	return &InboundSession{base: newBase("inbound", deps), cfg: cfg}
}

// Start binds the listener and, on success, begins the accept loop.
// handler fires exactly once with the bind outcome.
func (s *InboundSession) Start(handler StartHandler) {
	s.strand.Post(func() {
		s.acceptor = connect.NewAcceptor(s.strand)
		if err := s.acceptor.Start(s.cfg.Local); err != nil {
			handler(err)
			return
		}
		s.deps.Metrics.setUp("inbound", true)
		handler(nil)
		s.acceptNext()
	})
}

func (s *InboundSession) acceptNext() {
	s.acceptor.Accept(func(sock *socket.Socket, err error) {
		if s.isStopped() {
			return
		}
		if err != nil {
			if err == neterr.ErrOperationCanceled {
				return
			}
			s.logger.Debug("accept failed", zap.Error(err))
			s.acceptNext()
			return
		}

		remote := sock.RemoteAuthority()
		if !s.admitted(remote) {
			s.logger.Debug("rejecting inbound connection", zap.Stringer("remote", remote), zap.String("reason", "blacklist"))
			s.deps.Metrics.incInboundRejection("blacklist")
			sock.Stop()
			s.acceptNext()
			return
		}
		if s.channelCount() >= s.cfg.MaxInbound {
			s.logger.Debug("rejecting inbound connection", zap.Stringer("remote", remote), zap.String("reason", "capacity"))
			s.deps.Metrics.incInboundRejection("capacity")
			sock.Stop()
			s.acceptNext()
			return
		}

		ch := newChannelOn(sock, s.strand, s.deps.ChannelConfig)
		s.trackChannel(ch)
		ch.OnStop(func(error, struct{}) { s.untrackChannel(ch) })

		s.attachHandshake(ch, false, func(err error, _ protocol.HandshakeResult) {
			if err != nil {
				return
			}
			s.attachProtocols(ch, false)
		})
		s.acceptNext()
	})
}

// Addr returns the bound listener address. Valid once Start's handler
// has reported success.
func (s *InboundSession) Addr() net.Addr {
	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

// admitted reports whether remote passes the whitelist (if configured)
// and fails the blacklist.
func (s *InboundSession) admitted(remote wireaddr.Authority) bool {
	if len(s.cfg.Whitelist) > 0 {
		ok := false
		for _, w := range s.cfg.Whitelist {
			if remote.Equal(w) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, b := range s.cfg.Blacklist {
		if remote.Equal(b) {
			return false
		}
	}
	return true
}

// Stop idempotently stops the acceptor and every live inbound channel, in
// channel-id order, then notifies stop subscribers.
func (s *InboundSession) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.acceptor != nil {
		s.acceptor.Stop()
	}
	s.stopChannelsInOrder()
	s.deps.Metrics.setUp("inbound", false)
	s.onStop.Notify(nil, struct{}{})
}
