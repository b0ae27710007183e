// Package session implements the four session kinds spec.md §4.12 names
// (manual, inbound, outbound, seed) plus the Controller that orchestrates
// them together. Every session kind turns a raw accepted/dialed Socket
// into a fully protocol-attached Channel: run the version handshake, then
// attach ping/address/log-only protocols, then hand the live channel to
// its caller.
//
// Grounded on the teacher's historical `_pkg.dev/server.Server` (setup
// order: connmgr before anything that depends on a connected peer) and
// `_pkg.dev/connmgr.Connmgr.failed`'s linear backoff, generalized into
// the four independent session kinds spec.md describes rather than the
// teacher's single monolithic connection manager.
package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/async/subscribe"
	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/hostpool"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/protocol"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
)

// StartHandler reports a session's own start outcome: nil on success, or a
// fatal setup error (e.g. listen_failed for session_inbound).
type StartHandler func(err error)

// Session is the contract every session kind implements (spec.md §4.12):
// start/stop plus the handshake/protocol attachment points every kind
// shares and may override.
type Session interface {
	Start(handler StartHandler)
	Stop()
}

// Deps bundles the shared configuration every session kind turns a
// connected Socket into a running Channel with. One Deps is built by the
// Controller and handed to each session kind, so handshake/protocol
// policy is configured once for the whole node.
type Deps struct {
	ChannelConfig channel.Config

	// Handshake is the template handshake configuration; Outbound is
	// overwritten per attach to match the channel's actual direction, and
	// Nonces with Deps.Nonces.
	Handshake protocol.HandshakeConfig

	Ping protocol.PingConfig

	// Address is the template address-exchange configuration; Outbound
	// and Pool are overwritten per attach.
	Address protocol.AddressConfig

	LogOnly protocol.LogOnlyConfig

	Pool    *hostpool.Pool
	Nonces  *protocol.NonceRegistry
	Logger  *zap.Logger
	Metrics *Metrics
}

// base is embedded by every concrete session kind. It owns the session's
// own strand, the set of channels it currently has live (stopped in
// ascending id order so Stop can honor spec.md §4.12's ordered-stop
// guarantee), and a
// stop subscriber notified once Stop has finished tearing everything
// down.
type base struct {
	name   string // metrics/log tag: "manual", "inbound", "outbound", "seed"
	id     uuid.UUID // per-session log-correlation id, distinct from any channel's own id
	strand *strand.Strand
	deps   Deps
	logger *zap.Logger

	mu       sync.Mutex
	channels []*channel.Channel
	stopped  bool

	onStop *subscribe.Subscriber[struct{}]
}

func newBase(name string, deps Deps) base {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New()
	return base{
		name:   name,
		id:     id,
		strand: strand.New(),
		deps:   deps,
		logger: logger.With(zap.String("session", name), zap.String("session_id", id.String())),
		onStop: subscribe.NewSubscriber[struct{}](),
	}
}

// OnStop registers handler to run once Stop has finished tearing the
// session down.
func (b *base) OnStop(handler subscribe.Handler[struct{}]) error {
	return b.onStop.Subscribe(handler)
}

func (b *base) isStopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

// channelCount returns the number of channels this session currently
// tracks as live.
func (b *base) channelCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels)
}

func (b *base) trackChannel(ch *channel.Channel) {
	b.mu.Lock()
	b.channels = append(b.channels, ch)
	b.mu.Unlock()
	if b.deps.Metrics != nil {
		b.deps.Metrics.channelsOpen.WithLabelValues(b.name).Inc()
	}
}

func (b *base) untrackChannel(ch *channel.Channel) {
	b.mu.Lock()
	for i, c := range b.channels {
		if c == ch {
			b.channels = append(b.channels[:i], b.channels[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	if b.deps.Metrics != nil {
		b.deps.Metrics.channelsOpen.WithLabelValues(b.name).Dec()
	}
}

// stopChannelsInOrder stops every tracked channel in ascending channel-id
// order, per spec.md §4.12's session stop ordering guarantee.
func (b *base) stopChannelsInOrder() {
	b.mu.Lock()
	ordered := make([]*channel.Channel, len(b.channels))
	copy(ordered, b.channels)
	b.mu.Unlock()

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, ch := range ordered {
		ch.Stop(neterr.ErrOperationCanceled)
	}
}

// attachHandshake runs the version handshake on ch using the session's
// handshake template, overriding the direction and the nonce registry
// (Deps.Nonces), and notifies result
// exactly once. Grounded on spec.md §4.12's "attach_handshake(channel,
// handler)" contract point.
func (b *base) attachHandshake(ch *channel.Channel, outbound bool, handler func(err error, res protocol.HandshakeResult)) {
	cfg := b.deps.Handshake
	cfg.Outbound = outbound
	cfg.Nonces = b.deps.Nonces
	protocol.Attach(ch, cfg, func(err error, res protocol.HandshakeResult) {
		if err != nil && b.deps.Metrics != nil {
			b.deps.Metrics.handshakeFailures.WithLabelValues(b.name).Inc()
		}
		handler(err, res)
	})
	ch.Start()
}

// attachProtocols wires ping, address-exchange and the log-only
// observers onto an already-handshaked channel (spec.md §4.12's
// "attach_protocols(channel)" contract point, overridable by any session
// kind that needs different post-handshake behavior).
func (b *base) attachProtocols(ch *channel.Channel, outbound bool) {
	protocol.AttachPing(ch, b.deps.Ping)

	addrCfg := b.deps.Address
	addrCfg.Outbound = outbound
	addrCfg.Pool = b.deps.Pool
	protocol.AttachAddress(ch, addrCfg)

	protocol.AttachLogOnly(ch, b.deps.LogOnly)
}

// newChannelOn builds a Channel over sock, bound to the same strand sock
// itself was constructed with (socket.New's contract, mirrored by
// channel.New) — st is normally the Connector/Acceptor's own strand that
// produced sock, so a session's channels share its connector/acceptor's
// serial executor rather than each minting a strand of their own. For
// session kinds that want independent concurrency between channels (the
// outbound session's slots, the seed session's per-seed dials), the
// caller gives each such unit of concurrency its own Connector/strand
// pair up front, so this sharing never serializes work that is supposed
// to run in parallel.
func newChannelOn(sock *socket.Socket, st *strand.Strand, cfg channel.Config) *channel.Channel {
	return channel.New(sock, st, cfg)
}
