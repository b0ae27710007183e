package payload

import (
	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
	"github.com/nspcc-dev/p2pnet/pkg/wireio"
)

func init() {
	Register(CmdAddress, func() Message { return &Address{} })
	Register(CmdGetAddress, func() Message { return &GetAddress{} })
}

// encodeRecord/decodeRecord implement the address_record wire shape
// (spec.md §4.17): timestamp, services, ipv4-mapped ip, big-endian port.
// Peers below protocol 31402 omit the timestamp on the wire; this codec
// always frames one, and no layer of the core reads or writes the
// timestamp-less shape.
func encodeRecord(w *wireio.Writer, rec wireaddr.AddressRecord) {
	w.Write(rec.Timestamp)
	w.Write(uint64(rec.Services))
	w.Write(rec.IP)
	w.WriteBigEndian(rec.Port)
}

func decodeRecord(r *wireio.Reader) wireaddr.AddressRecord {
	var rec wireaddr.AddressRecord
	var services uint64
	r.Read(&rec.Timestamp)
	r.Read(&services)
	rec.Services = wireaddr.Service(services)
	r.Read(&rec.IP)
	r.ReadBigEndian(&rec.Port)
	return rec
}

// Address carries a batch of known peer addresses (spec.md §4.16).
type Address struct {
	Records []wireaddr.AddressRecord
}

// Command implements Message.
func (*Address) Command() string { return CmdAddress }

// Encode implements Message.
func (a *Address) Encode(w *wireio.Writer) {
	w.VarUint(uint64(len(a.Records)))
	for _, rec := range a.Records {
		encodeRecord(w, rec)
	}
}

// Decode implements Message.
func (a *Address) Decode(r *wireio.Reader) {
	n := r.VarUint()
	if r.Err != nil {
		return
	}
	a.Records = make([]wireaddr.AddressRecord, 0, n)
	for i := uint64(0); i < n && r.Err == nil; i++ {
		a.Records = append(a.Records, decodeRecord(r))
	}
}

// GetAddress requests the peer's Address set and carries no payload.
type GetAddress struct{}

// Command implements Message.
func (*GetAddress) Command() string { return CmdGetAddress }

// Encode implements Message.
func (*GetAddress) Encode(*wireio.Writer) {}

// Decode implements Message.
func (*GetAddress) Decode(*wireio.Reader) {}
