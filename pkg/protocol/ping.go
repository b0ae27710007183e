package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/async/timer"
	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
)

// pingMinimumProtocol is the version from which the ping protocol applies
// (spec.md §4.14).
const pingMinimumProtocol = 31402

// PingConfig parameterizes AttachPing.
type PingConfig struct {
	// Interval is the base heartbeat period; each firing is jittered by
	// up to ±20%, matching the channel's own inactivity timer.
	Interval time.Duration
	// OnLatency, if set, is called with the round-trip time of every
	// matched pong.
	OnLatency func(time.Duration)
}

// Ping drives the periodic heartbeat over a channel: send a ping on a
// jittered interval, expect the matching pong, and answer any ping the
// peer sends immediately.
type Ping struct {
	ch  *channel.Channel
	cfg PingConfig

	timer     *timer.Timer
	sentAt    time.Time
	sentNonce uint64
	awaiting  bool
}

// AttachPing wires the heartbeat protocol onto ch. It is a no-op (returns
// nil) if the channel's negotiated protocol predates the ping protocol.
func AttachPing(ch *channel.Channel, cfg PingConfig) *Ping {
	if ch.NegotiatedVersion() < pingMinimumProtocol {
		return nil
	}
	p := &Ping{ch: ch, cfg: cfg}
	p.timer = timer.New(ch.Strand(), jitter(cfg.Interval))

	ch.Subscribe(payload.CmdPing, p.onPing)
	ch.Subscribe(payload.CmdPong, p.onPong)
	ch.OnStop(func(error, struct{}) { p.timer.Stop() })

	p.timer.Start(p.onTick)
	return p
}

func (p *Ping) onTick(code timer.Code) {
	if code != timer.Success {
		return
	}
	p.sentNonce = randomNonce()
	p.sentAt = time.Now()
	p.awaiting = true
	p.ch.Send(&payload.Ping{Nonce: p.sentNonce}, func(error) {})
	p.timer.Start(p.onTick, jitter(p.cfg.Interval))
}

func (p *Ping) onPing(err error, msg payload.Message) {
	if err != nil {
		return
	}
	ping := msg.(*payload.Ping)
	p.ch.Send(&payload.Pong{Nonce: ping.Nonce}, func(error) {})
}

func (p *Ping) onPong(err error, msg payload.Message) {
	if err != nil {
		return
	}
	pong := msg.(*payload.Pong)
	if !p.awaiting || pong.Nonce != p.sentNonce {
		p.ch.Stop(neterr.ErrProtocolViolation)
		return
	}
	p.awaiting = false
	if p.cfg.OnLatency != nil {
		p.cfg.OnLatency(time.Since(p.sentAt))
	}
}

func randomNonce() uint64 {
	for {
		n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
		if err != nil {
			continue
		}
		if v := n.Uint64(); v != 0 {
			return v
		}
	}
}

// jitter randomizes d by up to ±20%, matching channel's own timer jitter.
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
