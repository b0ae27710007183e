package payload

import "github.com/nspcc-dev/p2pnet/pkg/wireio"

func init() {
	Register(CmdPing, func() Message { return &Ping{} })
	Register(CmdPong, func() Message { return &Pong{} })
}

// Ping carries a random nonce a peer must echo back in a Pong (spec.md
// §4.14).
type Ping struct {
	Nonce uint64
}

// Command implements Message.
func (*Ping) Command() string { return CmdPing }

// Encode implements Message.
func (p *Ping) Encode(w *wireio.Writer) { w.Write(p.Nonce) }

// Decode implements Message.
func (p *Ping) Decode(r *wireio.Reader) { r.Read(&p.Nonce) }

// Pong echoes a Ping's nonce.
type Pong struct {
	Nonce uint64
}

// Command implements Message.
func (*Pong) Command() string { return CmdPong }

// Encode implements Message.
func (p *Pong) Encode(w *wireio.Writer) { w.Write(p.Nonce) }

// Decode implements Message.
func (p *Pong) Decode(r *wireio.Reader) { r.Read(&p.Nonce) }
