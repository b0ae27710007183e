package protocol

import (
	"time"

	"go.uber.org/zap"

	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/hostpool"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

// AddressConfig parameterizes AttachAddress.
type AddressConfig struct {
	// Outbound mirrors the channel's own direction: only an outbound
	// channel sends the initial get_address at attach time (spec.md
	// §4.15). Either side answers a get_address it receives, at most
	// once per channel.
	Outbound bool
	Pool     *hostpool.Pool
	Selfs    []wireaddr.Authority
	// FetchCount bounds the snapshot size returned to a get_address;
	// zero means "no limit" (the pool's own fetch semantics apply).
	FetchCount      int
	ServicesMaximum wireaddr.Service
	Blacklist       []wireaddr.Authority
	Logger          *zap.Logger
}

// Address exchanges peer address records over a channel (spec.md §4.15).
type Address struct {
	ch       *channel.Channel
	cfg      AddressConfig
	answered bool
}

// AttachAddress wires the address-exchange protocol onto ch, sending the
// initial get_address immediately if cfg is the outbound side.
func AttachAddress(ch *channel.Channel, cfg AddressConfig) *Address {
	a := &Address{ch: ch, cfg: cfg}
	ch.Subscribe(payload.CmdAddress, a.onAddress)
	ch.Subscribe(payload.CmdGetAddress, a.onGetAddress)

	if cfg.Outbound {
		ch.Send(&payload.GetAddress{}, func(error) {})
	}
	return a
}

func (a *Address) onAddress(err error, msg payload.Message) {
	if err != nil {
		return
	}
	addr := msg.(*payload.Address)
	records := addr.Records

	if !a.cfg.Outbound && len(records) != 1 {
		a.log("address: ignoring multi-record announce from inbound peer", len(records))
		return
	}

	filtered := records[:0:0]
	for _, r := range records {
		if !r.IsSpecified() || a.blacklisted(r.Authority()) {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) == 0 {
		return
	}
	a.cfg.Pool.Save(filtered, func(err error, accepted int) {
		if err != nil {
			return
		}
		a.log("address: accepted records into pool", accepted)
	})
}

func (a *Address) onGetAddress(err error, msg payload.Message) {
	if err != nil {
		return
	}
	if a.answered {
		a.log("get_address: ignoring repeat solicitation", 0)
		return
	}
	a.answered = true

	a.cfg.Pool.Fetch(a.cfg.FetchCount, func(err error, records []wireaddr.AddressRecord) {
		if err != nil {
			records = nil
		}
		now := uint32(time.Now().Unix())
		for _, self := range a.cfg.Selfs {
			records = append(records, wireaddr.NewAddressRecord(self, now, a.cfg.ServicesMaximum))
		}
		a.ch.Send(&payload.Address{Records: records}, func(error) {})
	})
}

func (a *Address) blacklisted(auth wireaddr.Authority) bool {
	for _, b := range a.cfg.Blacklist {
		if auth.Equal(b) {
			return true
		}
	}
	return false
}

func (a *Address) log(msg string, count int) {
	if a.cfg.Logger == nil {
		return
	}
	a.cfg.Logger.Debug(msg, zap.Uint64("channel", a.ch.ID), zap.Int("count", count))
}
