package payload

import (
	"bytes"
	"fmt"

	"github.com/nspcc-dev/p2pnet/pkg/wireio"
)

// Message is implemented by every payload type the core round-trips
// (spec.md §8's "covers every message type" property).
type Message interface {
	Command() string
	Encode(w *wireio.Writer)
	Decode(r *wireio.Reader)
}

// factory builds a zero-valued Message for a registered command.
type factory func() Message

var registry = map[string]factory{}

// Register adds a command to the decode registry. Called from each
// codec file's init, mirroring the teacher's command.Type enumeration
// but keyed by the wire string directly rather than a closed Go enum,
// since spec.md §4.6 treats unknown commands as opaque, not fatal.
func Register(command string, make factory) {
	registry[command] = make
}

// Lookup returns a fresh Message for command, or (nil, false) if the
// command is not one of the core's known types — callers fall back to
// Opaque for those, per spec.md §4.6's "unknown commands pass through".
func Lookup(command string) (Message, bool) {
	make, ok := registry[command]
	if !ok {
		return nil, false
	}
	return make(), true
}

// NewForCommand builds the Message a distributor should decode a frame
// of the given command and payload length into: a registered codec when
// one exists, otherwise an Opaque sized to receive exactly length bytes.
// A registered codec that is itself an *Opaque (inv, getdata — commands
// this core tags but does not parse) is sized the same way, since it
// carries no internal length prefix of its own and Lookup only hands
// back a zero-valued one.
func NewForCommand(command string, length uint32) Message {
	if msg, ok := Lookup(command); ok {
		if o, ok := msg.(*Opaque); ok {
			o.Body = make([]byte, length)
		}
		return msg
	}
	return &Opaque{CommandName: command, Body: make([]byte, length)}
}

// DecodeMessage builds the Message for command and decodes raw into it,
// returning it only if the decode fully consumed raw with no error.
func DecodeMessage(command string, raw []byte) (Message, error) {
	msg := NewForCommand(command, uint32(len(raw)))
	src := bytes.NewReader(raw)
	r := wireio.NewReader(src)
	msg.Decode(r)
	if r.Err != nil {
		return nil, r.Err
	}
	if src.Len() != 0 {
		return nil, fmt.Errorf("payload: %d trailing bytes after %q", src.Len(), command)
	}
	return msg, nil
}

// Encode serializes msg's body (not including the Heading) to body, then
// returns msg's complete framed Heading for it.
func Encode(magic uint32, msg Message) (Heading, []byte, error) {
	var buf bytes.Buffer
	w := wireio.NewWriter(&buf)
	msg.Encode(w)
	if w.Err != nil {
		return Heading{}, nil, w.Err
	}
	h, err := NewHeading(magic, msg.Command(), buf.Bytes())
	return h, buf.Bytes(), err
}
