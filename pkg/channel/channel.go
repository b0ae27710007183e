// Package channel implements the core's channel: a socket wrapped with an
// identity nonce, inactivity/expiration timers, a per-channel strand, a
// stop-subscriber and a distributor (spec.md §4.7). Grounded on call
// sites of the teacher's historical `peer.NewPeer(conn, inbound, cfg)`
// (`_pkg.dev/server`) — the `peer` package itself was not retrieved, so
// Channel is a from-scratch rebuild in the idiom those call sites imply,
// generalized to spec.md's full channel contract.
package channel

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/strand"
	"github.com/nspcc-dev/p2pnet/pkg/async/subscribe"
	"github.com/nspcc-dev/p2pnet/pkg/async/timer"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
	"github.com/nspcc-dev/p2pnet/pkg/socket"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

var idCounter uint64

func nextID() uint64 { return atomic.AddUint64(&idCounter, 1) }

// randomNonce returns a random non-zero u64 (spec.md §3: "nonce is
// non-zero"), retrying the vanishingly unlikely zero draw.
func randomNonce() uint64 {
	for {
		n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
		if err != nil {
			continue
		}
		v := n.Uint64()
		if v != 0 {
			return v
		}
	}
}

// Config bounds a Channel's framing and timer behavior.
type Config struct {
	Magic             uint32
	MaxPayload        uint32
	HandshakeTimeout  time.Duration
	InactivityBase    time.Duration
	ExpirationTimeout time.Duration
}

// Channel composes a Socket with timers, a strand, a stop-subscriber and
// a Distributor (spec.md §4.7).
type Channel struct {
	ID    uint64
	Nonce uint64

	cfg    Config
	sock   *socket.Socket
	strand *strand.Strand

	handshakeTimer *timer.Timer
	inactivity     *timer.Timer
	expiration     *timer.Timer

	Distributor *Distributor
	stopSubs    *subscribe.Subscriber[struct{}]

	mu                sync.Mutex
	peerVersion       *payload.Version
	negotiatedVersion uint32
	paused            bool
	resumed           bool
	stopped           bool
	stopErr           error
}

// New constructs a Channel over sock, using st both as the channel's own
// strand and as the strand sock was constructed with, so socket read/write
// completions land on the same serial executor as the channel's own
// operations without an extra Post hop.
func New(sock *socket.Socket, st *strand.Strand, cfg Config) *Channel {
	c := &Channel{
		ID:          nextID(),
		Nonce:       randomNonce(),
		cfg:         cfg,
		sock:        sock,
		strand:      st,
		Distributor: NewDistributor(),
		stopSubs:    subscribe.NewSubscriber[struct{}](),
	}
	c.handshakeTimer = timer.New(st, cfg.HandshakeTimeout)
	c.inactivity = timer.New(st, jitter(cfg.InactivityBase))
	c.expiration = timer.New(st, cfg.ExpirationTimeout)
	return c
}

// jitter randomizes d by up to ±20% to avoid herd wake-ups (spec.md §4.7).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return d
	}
	spread := int64(d) / 5
	offset := int64(binary.BigEndian.Uint16(b[:])) % (2 * spread)
	return d + time.Duration(offset-spread)
}

// Subscribe registers handler for command's decoded messages on this
// channel's distributor.
func (c *Channel) Subscribe(command string, handler subscribe.Handler[payload.Message]) error {
	return c.Distributor.Subscribe(command, handler)
}

// OnStop registers a stop-subscriber handler, invoked once when the
// channel stops.
func (c *Channel) OnStop(handler subscribe.Handler[struct{}]) error {
	return c.stopSubs.Subscribe(handler)
}

// Start begins the handshake phase: the handshake timeout starts and the
// frame-reading loop begins (spec.md §4.7), though general traffic is not
// yet expected — only whatever the caller has subscribed on the
// distributor so far (the handshake protocol) will see anything.
func (c *Channel) Start() {
	c.strand.Post(func() {
		if c.isStoppedLocked() {
			return
		}
		c.handshakeTimer.Start(func(code timer.Code) {
			if code == timer.Success {
				c.stop(neterr.ErrChannelTimeout)
			}
		})
		c.readNextFrame()
	})
}

// Resume starts the permanent read loop (if not already implicitly
// running via Start) plus the inactivity and expiration timers, and
// stops the handshake timer. Call once the handshake completes.
func (c *Channel) Resume() {
	c.strand.Post(func() {
		if c.isStoppedLocked() {
			return
		}
		c.handshakeTimer.Stop()
		c.mu.Lock()
		wasPaused := c.paused
		c.paused = false
		c.resumed = true
		c.mu.Unlock()

		c.inactivity.Start(func(code timer.Code) {
			if code == timer.Success {
				c.stop(neterr.ErrChannelInactive)
			}
		})
		c.expiration.Start(func(code timer.Code) {
			if code == timer.Success {
				c.stop(neterr.ErrChannelExpired)
			}
		})
		if wasPaused {
			c.readNextFrame()
		}
	})
}

// Pause stops the read loop and the inactivity/expiration timers.
func (c *Channel) Pause() {
	c.strand.Post(func() {
		c.mu.Lock()
		c.paused = true
		c.mu.Unlock()
		c.inactivity.Stop()
		c.expiration.Stop()
	})
}

// Send serializes msg and enqueues it for write; handler fires once the
// underlying socket write completes.
func (c *Channel) Send(msg payload.Message, handler func(error)) {
	c.strand.Post(func() {
		if c.isStoppedLocked() {
			handler(neterr.ErrChannelStopped)
			return
		}
		h, body, err := payload.Encode(c.cfg.Magic, msg)
		if err != nil {
			handler(err)
			return
		}
		var buf bytes.Buffer
		if err := payload.WriteHeading(&buf, h); err != nil {
			handler(err)
			return
		}
		buf.Write(body)
		c.sock.Write(buf.Bytes(), func(err error) {
			c.strand.Dispatch(func() { handler(translateSocketErr(err)) })
		})
	})
}

// Strand returns the channel's own serial executor, so attached protocols
// (ping heartbeat, address exchange) can post their own work and own
// timers onto it rather than introducing a second strand per channel.
func (c *Channel) Strand() *strand.Strand { return c.strand }

// RemoteAuthority returns the peer endpoint underlying this channel.
func (c *Channel) RemoteAuthority() wireaddr.Authority { return c.sock.RemoteAuthority() }

// LocalAuthority returns this endpoint's own bound address.
func (c *Channel) LocalAuthority() wireaddr.Authority { return c.sock.LocalAuthority() }

// SetPeerVersion records the peer's handshake Version and the negotiated
// protocol version exactly once (spec.md §3's channel invariant).
func (c *Channel) SetPeerVersion(v *payload.Version, negotiated uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerVersion = v
	c.negotiatedVersion = negotiated
}

// PeerVersion returns the peer's handshake Version, or nil before
// handshake completes.
func (c *Channel) PeerVersion() *payload.Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerVersion
}

// NegotiatedVersion returns min(peer_version, maximum_protocol), valid
// only after SetPeerVersion.
func (c *Channel) NegotiatedVersion() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negotiatedVersion
}

// Stop idempotently cancels timers, stops the socket, and notifies
// stop-subscribers (spec.md §4.7). The first err for a channel is the
// one that sticks; later calls are no-ops.
func (c *Channel) Stop(err error) {
	c.strand.Post(func() { c.stop(err) })
}

func (c *Channel) stop(err error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.stopErr = err
	c.mu.Unlock()

	c.handshakeTimer.Stop()
	c.inactivity.Stop()
	c.expiration.Stop()
	c.sock.Stop()
	c.Distributor.Stop(err)
	c.stopSubs.Stop(err, struct{}{})
}

// Err returns the channel's terminal stop error, or nil while running.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopErr
}

func (c *Channel) isStoppedLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Channel) readNextFrame() {
	if c.isStoppedLocked() {
		return
	}
	c.mu.Lock()
	paused := c.paused
	c.mu.Unlock()
	if paused {
		return
	}

	header := make([]byte, payload.HeadingSize)
	c.sock.Read(header, func(err error, n int) {
		c.strand.Dispatch(func() {
			if err != nil {
				c.stop(translateSocketErr(err))
				return
			}
			c.onHeader(header)
		})
	})
}

func (c *Channel) onHeader(raw []byte) {
	h, err := payload.ReadHeading(bytes.NewReader(raw))
	if err != nil {
		c.stop(neterr.ErrInvalidHeading)
		return
	}
	if err := h.Validate(c.cfg.Magic, c.cfg.MaxPayload); err != nil {
		if err == payload.ErrBadMagic {
			c.stop(neterr.ErrBadStream)
		} else {
			c.stop(neterr.ErrOversizedPayload)
		}
		return
	}

	body := make([]byte, h.Length)
	c.sock.Read(body, func(err error, n int) {
		c.strand.Dispatch(func() {
			if err != nil {
				c.stop(translateSocketErr(err))
				return
			}
			c.onBody(h, body)
		})
	})
}

func (c *Channel) onBody(h payload.Heading, body []byte) {
	if err := h.VerifyChecksum(body); err != nil {
		c.stop(neterr.ErrInvalidChecksum)
		return
	}
	c.mu.Lock()
	resumed := c.resumed
	c.mu.Unlock()
	if resumed {
		c.inactivity.Start(func(code timer.Code) {
			if code == timer.Success {
				c.stop(neterr.ErrChannelInactive)
			}
		})
	}
	if err := c.Distributor.Notify(h.CommandString(), body); err != nil {
		c.stop(neterr.ErrInvalidMessage)
		return
	}
	c.readNextFrame()
}

func translateSocketErr(err error) error {
	if err == socket.ErrStopped {
		return neterr.ErrChannelStopped
	}
	return err
}
