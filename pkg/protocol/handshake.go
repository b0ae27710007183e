package protocol

import (
	"time"

	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/neterr"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// capabilityProtocolVersion is the protocol version from which sendaddrv2/
// wtxidrelay are exchanged during handshake (spec.md §4.13).
const capabilityProtocolVersion = 70016

// rejectMinProtocol is the protocol version from which a reject frame is
// sent describing a handshake failure (spec.md §4.13/§4.16).
const rejectMinProtocol = 70002

// HandshakeState is the version handshake's position in its state
// machine (spec.md §4.13).
type HandshakeState int

const (
	AwaitingVersion HandshakeState = iota
	AwaitingVerack
	Completed
)

// HandshakeResult is delivered to a handshake's completion handler.
type HandshakeResult struct {
	PeerVersion *payload.Version
	Negotiated  uint32
	SendAddrV2  bool
	WtxidRelay  bool
}

// HandshakeConfig parameterizes Attach.
type HandshakeConfig struct {
	MinimumProtocol uint32
	MaximumProtocol uint32
	ServicesMinimum wireaddr.Service
	ServicesMaximum wireaddr.Service
	MaximumSkew     time.Duration
	Nonces          *NonceRegistry
	// Outbound is true for the connecting side, which sends its version
	// first; the accepting side waits for the peer's version and replies
	// with its own (spec.md §4.13: "either ordering must work").
	Outbound     bool
	UserAgent    string
	StartHeight  int32
	EnableReject bool
}

// Handshake drives one channel through the version handshake state
// machine. It is strand-local: every handler runs on the channel's own
// strand via the distributor, so Handshake needs no locking of its own.
type Handshake struct {
	ch      *channel.Channel
	cfg     HandshakeConfig
	handler func(err error, res HandshakeResult)

	state      HandshakeState
	peer       *payload.Version
	recvAddrV2 bool
	recvWtxid  bool
	done       bool
}

// Attach registers the handshake's subscriptions on ch and, if cfg is the
// outbound side, sends the local version immediately. The caller must
// call Attach before ch.Start(), so no frame is missed, and must call
// ch.Start() itself afterward — attach_handshake only wires the protocol,
// it does not begin the channel's read loop.
func Attach(ch *channel.Channel, cfg HandshakeConfig, handler func(err error, res HandshakeResult)) *Handshake {
	hs := &Handshake{ch: ch, cfg: cfg, handler: handler, state: AwaitingVersion}

	ch.Subscribe(payload.CmdVersion, hs.onVersion)
	ch.Subscribe(payload.CmdVerack, hs.onVerack)
	ch.Subscribe(payload.CmdSendAddrV2, hs.onSendAddrV2)
	ch.Subscribe(payload.CmdWtxidRelay, hs.onWtxidRelay)
	ch.OnStop(hs.onChannelStop)

	if cfg.Nonces != nil {
		cfg.Nonces.Add(ch.Nonce)
		ch.OnStop(func(error, struct{}) { cfg.Nonces.Remove(ch.Nonce) })
	}

	if cfg.Outbound {
		hs.sendVersion()
	}
	return hs
}

func (hs *Handshake) onChannelStop(err error, _ struct{}) {
	if hs.done {
		return
	}
	hs.finish(err, HandshakeResult{})
}

func (hs *Handshake) finish(err error, res HandshakeResult) {
	if hs.done {
		return
	}
	hs.done = true
	if hs.handler != nil {
		hs.handler(err, res)
	}
}

func (hs *Handshake) onVersion(err error, msg payload.Message) {
	if err != nil || hs.state != AwaitingVersion {
		return
	}
	v := msg.(*payload.Version)

	if !hs.cfg.Outbound {
		hs.sendVersion()
	}

	if !wireaddr.Service(v.Services).Has(hs.cfg.ServicesMinimum) {
		hs.fail(neterr.ErrPeerInsufficient, v)
		return
	}
	if v.ProtocolVersion < hs.cfg.MinimumProtocol {
		hs.fail(neterr.ErrPeerInsufficient, v)
		return
	}
	if hs.cfg.Nonces != nil && hs.cfg.Nonces.Contains(v.Nonce) {
		hs.fail(neterr.ErrPeerLoopback, v)
		return
	}
	skew := v.Timestamp - time.Now().Unix()
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > hs.cfg.MaximumSkew {
		hs.fail(neterr.ErrPeerTimestamp, v)
		return
	}

	negotiated := v.ProtocolVersion
	if hs.cfg.MaximumProtocol < negotiated {
		negotiated = hs.cfg.MaximumProtocol
	}
	hs.peer = v
	hs.ch.SetPeerVersion(v, negotiated)

	if negotiated >= capabilityProtocolVersion {
		hs.ch.Send(&payload.SendAddrV2{}, func(error) {})
		hs.ch.Send(&payload.WtxidRelay{}, func(error) {})
	}
	hs.ch.Send(&payload.Verack{}, func(error) {})
	hs.state = AwaitingVerack
}

func (hs *Handshake) onVerack(err error, msg payload.Message) {
	if err != nil || hs.state != AwaitingVerack {
		return
	}
	hs.state = Completed
	res := HandshakeResult{
		PeerVersion: hs.peer,
		Negotiated:  hs.ch.NegotiatedVersion(),
		SendAddrV2:  hs.recvAddrV2,
		WtxidRelay:  hs.recvWtxid,
	}
	hs.finish(nil, res)
	hs.ch.Resume()
}

func (hs *Handshake) onSendAddrV2(err error, msg payload.Message) {
	if err != nil {
		return
	}
	if hs.state == Completed {
		hs.ch.Stop(neterr.ErrProtocolViolation)
		return
	}
	hs.recvAddrV2 = true
}

func (hs *Handshake) onWtxidRelay(err error, msg payload.Message) {
	if err != nil {
		return
	}
	if hs.state == Completed {
		hs.ch.Stop(neterr.ErrProtocolViolation)
		return
	}
	hs.recvWtxid = true
}

// fail reports a handshake failure to the caller, optionally emitting a
// reject frame first (spec.md §4.13: "at protocol 70002+, on any
// handshake failure, send a reject frame"), and stops the channel.
// Loopback never emits a reject (spec.md §8 scenario 2: "A emits no
// reject").
func (hs *Handshake) fail(err error, peer *payload.Version) {
	hs.finish(err, HandshakeResult{})

	if hs.cfg.EnableReject && err != neterr.ErrPeerLoopback && peer != nil && peer.ProtocolVersion >= rejectMinProtocol {
		reject := &payload.Reject{Message: payload.CmdVersion, Code: rejectCodeFor(err), Reason: err.Error()}
		hs.ch.Send(reject, func(error) { hs.ch.Stop(err) })
		return
	}
	hs.ch.Stop(err)
}

func rejectCodeFor(err error) uint8 {
	switch err {
	case neterr.ErrPeerInsufficient:
		return payload.RejectInsufficient
	case neterr.ErrPeerTimestamp:
		return payload.RejectNonstandard
	default:
		return payload.RejectMalformed
	}
}

func (hs *Handshake) sendVersion() {
	v := hs.buildLocalVersion()
	hs.ch.Send(&v, func(error) {})
}

func (hs *Handshake) buildLocalVersion() payload.Version {
	v := payload.Version{
		ProtocolVersion: hs.cfg.MaximumProtocol,
		Services:        uint64(hs.cfg.ServicesMaximum),
		Timestamp:       time.Now().Unix(),
		Nonce:           hs.ch.Nonce,
		UserAgent:       hs.cfg.UserAgent,
		StartHeight:     hs.cfg.StartHeight,
		Relay:           true,
		HasRelay:        true,
	}
	remote := hs.ch.RemoteAuthority()
	v.Recv.Services = uint64(hs.cfg.ServicesMaximum)
	v.Recv.IP = remote.IP
	v.Recv.Port = remote.Port

	local := hs.ch.LocalAuthority()
	v.From.Services = uint64(hs.cfg.ServicesMaximum)
	v.From.IP = local.IP
	v.From.Port = local.Port
	return v
}
