package payload

import "github.com/nspcc-dev/p2pnet/pkg/wireio"

func init() {
	Register(CmdInv, func() Message { return &Opaque{CommandName: CmdInv} })
	Register(CmdGetData, func() Message { return &Opaque{CommandName: CmdGetData} })
}

// Opaque is the leaf codec for every payload type spec.md leaves
// unspecified (§1's "the canonical byte layout of... other payload
// codecs are opaque blobs that implementers wire in as leaf codecs"):
// it carries the raw payload bytes under whatever command it was
// registered or received under, so a distributor can still frame,
// checksum and route inv/getdata/transaction/block-shaped traffic
// without this core knowing their internal structure.
type Opaque struct {
	CommandName string
	Body        []byte
}

// NewOpaque wraps body under command.
func NewOpaque(command string, body []byte) *Opaque {
	return &Opaque{CommandName: command, Body: body}
}

// Command implements Message.
func (o *Opaque) Command() string { return o.CommandName }

// Encode implements Message.
func (o *Opaque) Encode(w *wireio.Writer) { w.Write(o.Body) }

// Decode implements Message. The caller must have sized Body to the
// Heading's payload length before decoding, since an opaque blob carries
// no internal length prefix of its own.
func (o *Opaque) Decode(r *wireio.Reader) { r.Read(o.Body) }
