package session

import (
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/race"
	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/async/timer"
	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/connect"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/protocol"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// OutboundConfig configures an OutboundSession.
type OutboundConfig struct {
	// Count is the number of outbound slots maintained concurrently
	// (spec.md §6's outbound_connections).
	Count int
	// ConnectBatchSize bounds how many pool addresses a single slot
	// races at once (spec.md §6's connect_batch_size).
	ConnectBatchSize int
	DialTimeout      time.Duration
	Dial             connect.DialFunc
	// RetryDelay is how long a slot waits before refetching after the
	// pool has nothing usable, or every raced candidate failed.
	RetryDelay time.Duration
}

// isTerminalOutboundStop reports whether a stop reason means the address
// should not be offered back to other outbound attempts (spec.md §4.11:
// "restore unless the stop reason is terminal (blacklisted, loopback,
// peer_insufficient)").
func isTerminalOutboundStop(err error) bool {
	switch err {
	case neterr.ErrPeerBlacklisted, neterr.ErrPeerLoopback, neterr.ErrPeerInsufficient:
		return true
	}
	return false
}

// OutboundSession maintains a configured number of outbound connections
// (spec.md §4.12's session_outbound). Each slot independently fetches a
// batch of pool addresses, races a Connector per address with
// race_quality (first completed handshake wins), restores the losers,
// and restarts itself whenever its channel stops.
type OutboundSession struct {
	base
	cfg OutboundConfig
}

// NewOutboundSession builds an unstarted OutboundSession.
func NewOutboundSession(deps Deps, cfg OutboundConfig) *OutboundSession {
	return &OutboundSession{base: newBase("outbound", deps), cfg: cfg}
}

// Start begins every slot's fetch/race loop. handler fires once, before
// any slot's channel can possibly complete a handshake.
func (s *OutboundSession) Start(handler StartHandler) {
	s.strand.Post(func() {
		s.deps.Metrics.setUp("outbound", true)
		for i := 0; i < s.cfg.Count; i++ {
			s.runSlot()
		}
		handler(nil)
	})
}

// runSlot fetches a batch of pool addresses and races a dial+handshake
// per address. If the pool has nothing usable, it retries after
// RetryDelay.
func (s *OutboundSession) runSlot() {
	if s.isStopped() {
		return
	}
	s.deps.Pool.Fetch(s.cfg.ConnectBatchSize, func(err error, addrs []wireaddr.AddressRecord) {
		if s.isStopped() {
			return
		}
		if err != nil || len(addrs) == 0 {
			s.retrySlotLater()
			return
		}
		for _, a := range addrs {
			_ = s.deps.Pool.Take(a.Authority())
		}
		s.raceSlot(addrs)
	})
}

func (s *OutboundSession) retrySlotLater() {
	t := timer.New(s.strand, s.cfg.RetryDelay)
	t.Start(func(code timer.Code) {
		if code == timer.Success {
			s.runSlot()
		}
	})
}

type outboundResult struct {
	addr wireaddr.AddressRecord
	ch   *channel.Channel
}

// raceSlot dials every address in addrs on its own Connector/strand in
// parallel (so the slot's candidates run concurrently with each other,
// unlike a channel born from a shared acceptor), keeping the first to
// complete a handshake and discarding the rest.
func (s *OutboundSession) raceSlot(addrs []wireaddr.AddressRecord) {
	decided := false

	var racer *race.Quality[outboundResult]
	racer = race.NewQuality[outboundResult](len(addrs), func(err error, res outboundResult) {
		decided = true
		if err != nil {
			s.retrySlotLater()
			return
		}
		s.trackChannel(res.ch)
		res.ch.OnStop(func(error, struct{}) {
			stopErr := res.ch.Err()
			s.untrackChannel(res.ch)
			if !isTerminalOutboundStop(stopErr) {
				_ = s.deps.Pool.Restore(res.addr.Authority())
			}
			s.strand.Post(func() {
				if !s.isStopped() {
					s.runSlot()
				}
			})
		})
		s.attachProtocols(res.ch, true)
	})

	for _, a := range addrs {
		addr := a
		st := strand.New()
		c := connect.NewConnector(st, s.cfg.DialTimeout, s.cfg.Dial)
		c.ConnectAuthority(addr.Authority(), func(sock *socket.Socket, err error) {
			if err != nil {
				_ = s.deps.Pool.Restore(addr.Authority())
				s.strand.Post(func() { racer.Finish(err, outboundResult{addr: addr}) })
				return
			}
			ch := newChannelOn(sock, st, s.deps.ChannelConfig)
			s.attachHandshake(ch, true, func(err error, _ protocol.HandshakeResult) {
				s.strand.Post(func() {
					if err != nil {
						_ = s.deps.Pool.Restore(addr.Authority())
						racer.Finish(err, outboundResult{addr: addr, ch: ch})
						return
					}
					if decided {
						ch.Stop(neterr.ErrOperationCanceled)
						_ = s.deps.Pool.Restore(addr.Authority())
						return
					}
					racer.Finish(nil, outboundResult{addr: addr, ch: ch})
				})
			})
		})
	}
}

// Stop idempotently stops every live outbound channel, in channel-id
// order, then notifies stop subscribers. In-flight slot dials observe
// isStopped() and discard their result rather than starting a channel.
func (s *OutboundSession) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.stopChannelsInOrder()
	s.deps.Metrics.setUp("outbound", false)
	s.onStop.Notify(nil, struct{}{})
}
