package payload

import (
	"io"

	"github.com/nspcc-dev/p2pnet/pkg/wireio"
)

func init() {
	Register(CmdVersion, func() Message { return &Version{} })
	Register(CmdVerack, func() Message { return &Verack{} })
}

// addrNoTimestamp is the address_record wire shape used inside a Version
// payload's recv/from fields, which omit the timestamp (spec.md §4.17).
type addrNoTimestamp struct {
	Services uint64
	IP       [16]byte
	Port     uint16
}

func (a *addrNoTimestamp) encode(w *wireio.Writer) {
	w.Write(a.Services)
	w.Write(a.IP)
	w.WriteBigEndian(a.Port)
}

func (a *addrNoTimestamp) decode(r *wireio.Reader) {
	r.Read(&a.Services)
	r.Read(&a.IP)
	r.ReadBigEndian(&a.Port)
}

// Version is the handshake payload (spec.md §4.13/§4.17). UserAgent,
// Nonce and StartHeight are present from the node's founding protocol
// version onward; Relay only from 70001. Decode tolerates the absence of
// Relay on the wire by treating end-of-stream there as "not present"
// rather than an error; a missing Nonce, UserAgent or StartHeight is a
// decode error.
type Version struct {
	ProtocolVersion uint32
	Services        uint64
	Timestamp       int64
	Recv            addrNoTimestamp
	From            addrNoTimestamp
	Nonce           uint64
	UserAgent       string
	StartHeight     int32
	Relay           bool
	HasRelay        bool
}

// Command implements Message.
func (v *Version) Command() string { return CmdVersion }

// Encode implements Message.
func (v *Version) Encode(w *wireio.Writer) {
	w.Write(v.ProtocolVersion)
	w.Write(v.Services)
	w.Write(v.Timestamp)
	v.Recv.encode(w)
	v.From.encode(w)
	w.Write(v.Nonce)
	w.VarString(v.UserAgent)
	w.Write(v.StartHeight)
	if v.HasRelay {
		w.Write(v.Relay)
	}
}

// Decode implements Message.
func (v *Version) Decode(r *wireio.Reader) {
	r.Read(&v.ProtocolVersion)
	r.Read(&v.Services)
	r.Read(&v.Timestamp)
	v.Recv.decode(r)
	v.From.decode(r)
	r.Read(&v.Nonce)
	v.UserAgent = r.VarString()
	r.Read(&v.StartHeight)

	if r.Err != nil {
		return
	}
	r.Read(&v.Relay)
	if r.Err == io.EOF || r.Err == io.ErrUnexpectedEOF {
		r.Err = nil
		v.Relay = false
		v.HasRelay = false
		return
	}
	v.HasRelay = true
}

// Verack acknowledges a received Version and carries no payload.
type Verack struct{}

// Command implements Message.
func (*Verack) Command() string { return CmdVerack }

// Encode implements Message.
func (*Verack) Encode(*wireio.Writer) {}

// Decode implements Message.
func (*Verack) Decode(*wireio.Reader) {}
