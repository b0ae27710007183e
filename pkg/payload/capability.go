package payload

import "github.com/nspcc-dev/p2pnet/pkg/wireio"

// Capability announcement commands exchanged during handshake at
// protocol 70016+ (spec.md §4.13). Both carry no payload.
const (
	CmdSendAddrV2 = "sendaddrv2"
	CmdWtxidRelay = "wtxidrelay"
)

func init() {
	Register(CmdSendAddrV2, func() Message { return &SendAddrV2{} })
	Register(CmdWtxidRelay, func() Message { return &WtxidRelay{} })
}

// SendAddrV2 announces support for the addrv2 address format. It carries
// no payload; its presence on the wire is the entire signal.
type SendAddrV2 struct{}

// Command implements Message.
func (*SendAddrV2) Command() string { return CmdSendAddrV2 }

// Encode implements Message.
func (*SendAddrV2) Encode(*wireio.Writer) {}

// Decode implements Message.
func (*SendAddrV2) Decode(*wireio.Reader) {}

// WtxidRelay announces support for witness-txid-based relay. It carries
// no payload.
type WtxidRelay struct{}

// Command implements Message.
func (*WtxidRelay) Command() string { return CmdWtxidRelay }

// Encode implements Message.
func (*WtxidRelay) Encode(*wireio.Writer) {}

// Decode implements Message.
func (*WtxidRelay) Decode(*wireio.Reader) {}
