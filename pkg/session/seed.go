package session

import (
	"sync"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/race"
	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/async/timer"
	"github.com/nspcc-dev/p2pnet/pkg/connect"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
	"github.com/nspcc-dev/p2pnet/pkg/protocol"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// SeedConfig configures a SeedSession.
type SeedConfig struct {
	Seeds []wireaddr.Endpoint
	// PoolThreshold: seeding only runs if the pool holds fewer entries
	// than this at startup.
	PoolThreshold int
	// RequiredAddresses is the cumulative learned-address count that
	// ends seeding successfully once reached.
	RequiredAddresses int
	DialTimeout       time.Duration
	// AddressTimeout bounds how long a seed channel waits for its
	// address reply before giving up and closing.
	AddressTimeout time.Duration
	Dial           connect.DialFunc
}

// SeedSession runs once at startup if the pool is below threshold
// (spec.md §4.12's session_seed): it dials every configured seed in
// parallel, handshakes, requests that seed's address set, and closes the
// channel, using race_volume to stop early once enough addresses have
// been learned cumulatively.
type SeedSession struct {
	base
	cfg SeedConfig
}

// NewSeedSession builds an unstarted SeedSession.
func NewSeedSession(deps Deps, cfg SeedConfig) *SeedSession {
	return &SeedSession{base: newBase("seed", deps), cfg: cfg}
}

// Start fires handler once, immediately: seeding (if it runs at all) is
// a best-effort background pass, not something callers block on.
func (s *SeedSession) Start(handler StartHandler) {
	s.strand.Post(func() {
		if len(s.cfg.Seeds) == 0 || s.deps.Pool.Count() >= s.cfg.PoolThreshold {
			handler(nil)
			return
		}
		s.deps.Metrics.setUp("seed", true)
		handler(nil)
		s.run()
	})
}

// run connects to every seed in parallel, each on its own
// Connector/strand pair, and feeds a single race_volume racer shared
// across all of them (required successes pinned to 1: each seed's Finish
// reports ok=true precisely when the cumulative learned-address count
// it just pushed past RequiredAddresses, so the racer's "sufficient"
// event fires on the exact seed that crosses the threshold).
func (s *SeedSession) run() {
	n := len(s.cfg.Seeds)
	learned := 0
	outcome := neterr.ErrSeedingUnsuccessful

	var volume *race.Volume[struct{}]
	volume = race.NewVolume[struct{}](n, 1, nil, neterr.ErrSeedingUnsuccessful,
		func(err error, _ struct{}) {
			outcome = err
			if err == nil {
				s.finish(nil)
			}
		},
		func(error, struct{}) { s.finish(outcome) },
	)

	for _, seed := range s.cfg.Seeds {
		seed := seed
		st := strand.New()
		c := connect.NewConnector(st, s.cfg.DialTimeout, s.cfg.Dial)

		c.Connect(seed.HostPort(), func(sock *socket.Socket, err error) {
			if s.isStopped() {
				return
			}
			if err != nil {
				s.strand.Post(func() { volume.Finish(false, struct{}{}) })
				return
			}

			ch := newChannelOn(sock, st, s.deps.ChannelConfig)
			s.trackChannel(ch)

			s.attachHandshake(ch, true, func(err error, _ protocol.HandshakeResult) {
				if err != nil {
					s.strand.Post(func() {
						s.untrackChannel(ch)
						volume.Finish(false, struct{}{})
					})
					return
				}

				var once sync.Once
				deadline := timer.New(st, s.cfg.AddressTimeout)
				report := func(accepted int) {
					once.Do(func() {
						deadline.Stop()
						ch.Stop(neterr.ErrOperationCanceled)
						s.strand.Post(func() {
							s.untrackChannel(ch)
							learned += accepted
							volume.Finish(learned >= s.cfg.RequiredAddresses, struct{}{})
						})
					})
				}

				ch.Subscribe(payload.CmdAddress, func(err error, msg payload.Message) {
					if err != nil {
						return
					}
					records := msg.(*payload.Address).Records
					s.deps.Pool.Save(records, func(_ error, accepted int) { report(accepted) })
				})
				deadline.Start(func(code timer.Code) {
					if code == timer.Success {
						report(0)
					}
				})
				ch.Send(&payload.GetAddress{}, func(error) {})
			})
		})
	}
}

// finish tears the session down exactly once, whether reached through
// the racer's successful "sufficient" event, natural completion (every
// seed finished) or an external Stop.
func (s *SeedSession) finish(outcome error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.deps.Metrics.setUp("seed", false)
	s.stopChannelsInOrder()
	s.onStop.Notify(outcome, struct{}{})
}

// Stop idempotently ends the session early, canceling any seeds still in
// flight.
func (s *SeedSession) Stop() {
	s.finish(neterr.ErrOperationCanceled)
}
