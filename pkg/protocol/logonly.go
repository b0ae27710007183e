package protocol

import (
	"go.uber.org/zap"

	"github.com/nspcc-dev/p2pnet/pkg/channel"
	"github.com/nspcc-dev/p2pnet/pkg/payload"
)

// alertMinimumProtocol and rejectMinimumProtocol gate the log-only
// protocols (spec.md §4.16); both are additionally optional by
// configuration.
const (
	alertMinimumProtocol  = 31402
	rejectMinimumProtocol = 70002
)

// LogOnlyConfig parameterizes AttachLogOnly.
type LogOnlyConfig struct {
	EnableAlert  bool
	EnableReject bool
	Logger       *zap.Logger
}

// AttachLogOnly wires the alert and reject protocols onto ch as pure
// observers: neither affects channel state, they only log (spec.md
// §4.16). Alert signatures are never validated.
func AttachLogOnly(ch *channel.Channel, cfg LogOnlyConfig) {
	if cfg.EnableAlert && ch.NegotiatedVersion() >= alertMinimumProtocol {
		ch.Subscribe(payload.CmdAlert, func(err error, msg payload.Message) {
			if err != nil || cfg.Logger == nil {
				return
			}
			a := msg.(*payload.Alert)
			cfg.Logger.Info("received alert", zap.Uint64("channel", ch.ID), zap.Int("payload_bytes", len(a.Payload)))
		})
	}
	if cfg.EnableReject && ch.NegotiatedVersion() >= rejectMinimumProtocol {
		ch.Subscribe(payload.CmdReject, func(err error, msg payload.Message) {
			if err != nil || cfg.Logger == nil {
				return
			}
			r := msg.(*payload.Reject)
			cfg.Logger.Info("received reject",
				zap.Uint64("channel", ch.ID),
				zap.String("message", r.Message),
				zap.Uint8("code", r.Code),
				zap.String("reason", r.Reason))
		})
	}
}
