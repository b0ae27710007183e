package payload

import "github.com/nspcc-dev/p2pnet/pkg/wireio"

func init() {
	Register(CmdReject, func() Message { return &Reject{} })
	Register(CmdAlert, func() Message { return &Alert{} })
}

// Rejection codes (spec.md §4.16). Code 0 is "undefined" — used when no
// more specific code applies, matching the `reject{..., code=undefined}`
// example in spec.md §8.
const (
	RejectUndefined    uint8 = 0x00
	RejectMalformed    uint8 = 0x01
	RejectInvalid      uint8 = 0x10
	RejectObsolete     uint8 = 0x11
	RejectDuplicate    uint8 = 0x12
	RejectNonstandard  uint8 = 0x40
	RejectInsufficient uint8 = 0x42
	RejectCheckpoint   uint8 = 0x43
)

// Reject reports why a previously received message was refused (spec.md
// §4.13/§4.16), gated behind protocol ≥ 70002 and enable_reject.
type Reject struct {
	Message string
	Code    uint8
	Reason  string
	Data    []byte
}

// Command implements Message.
func (*Reject) Command() string { return CmdReject }

// Encode implements Message.
func (r *Reject) Encode(w *wireio.Writer) {
	w.VarString(r.Message)
	w.Write(r.Code)
	w.VarString(r.Reason)
	w.VarBytes(r.Data)
}

// Decode implements Message.
func (r *Reject) Decode(br *wireio.Reader) {
	r.Message = br.VarString()
	br.Read(&r.Code)
	r.Reason = br.VarString()
	r.Data = br.VarBytes()
}

// Alert is a log-only legacy broadcast (spec.md §4.16); signatures are
// never validated, matching its obsoletion across the ecosystem.
type Alert struct {
	Payload   []byte
	Signature []byte
}

// Command implements Message.
func (*Alert) Command() string { return CmdAlert }

// Encode implements Message.
func (a *Alert) Encode(w *wireio.Writer) {
	w.VarBytes(a.Payload)
	w.VarBytes(a.Signature)
}

// Decode implements Message.
func (a *Alert) Decode(r *wireio.Reader) {
	a.Payload = r.VarBytes()
	a.Signature = r.VarBytes()
}
