// Package wireio provides the error-sticky binary reader/writer the wire
// codecs in pkg/payload build on, grounded on the teacher's historical
// BinReader/BinWriter (_pkg.dev/wire/util/binaryReader.go,
// binaryWriter.go): every call checks a carried error first and is a no-op
// once one has occurred, so a codec can chain many reads/writes and check
// the error exactly once at the end.
package wireio

import (
	"encoding/binary"
	"errors"
	"io"
)

// Reader wraps an io.Reader, accumulating the first error encountered.
type Reader struct {
	R   io.Reader
	Err error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{R: r}
}

// Read reads into v in little-endian order.
func (r *Reader) Read(v any) {
	if r.Err != nil {
		return
	}
	r.Err = binary.Read(r.R, binary.LittleEndian, v)
}

// ReadBigEndian reads into v in big-endian order (used for IP and port
// fields, matching the wire format of net_addr.go and the version payload).
func (r *Reader) ReadBigEndian(v any) {
	if r.Err != nil {
		return
	}
	r.Err = binary.Read(r.R, binary.BigEndian, v)
}

// VarUint reads a CompactSize-style variable-length uint64.
func (r *Reader) VarUint() uint64 {
	if r.Err != nil {
		return 0
	}
	var b uint8
	r.Err = binary.Read(r.R, binary.LittleEndian, &b)
	if r.Err != nil {
		return 0
	}

	switch b {
	case 0xfd:
		var v uint16
		r.Err = binary.Read(r.R, binary.LittleEndian, &v)
		return uint64(v)
	case 0xfe:
		var v uint32
		r.Err = binary.Read(r.R, binary.LittleEndian, &v)
		return uint64(v)
	case 0xff:
		var v uint64
		r.Err = binary.Read(r.R, binary.LittleEndian, &v)
		return v
	default:
		return uint64(b)
	}
}

// MaxVarBytes bounds VarBytes allocations against maliciously large
// length prefixes; 0 means "use the package default" (32 MiB).
var MaxVarBytes uint64 = 32 << 20

// VarBytes reads a length-prefixed byte slice.
func (r *Reader) VarBytes() []byte {
	n := r.VarUint()
	if r.Err != nil {
		return nil
	}
	limit := MaxVarBytes
	if limit == 0 {
		limit = 32 << 20
	}
	if n > limit {
		r.Err = errors.New("wireio: var-length prefix exceeds maximum")
		return nil
	}
	b := make([]byte, n)
	r.Read(b)
	return b
}

// VarString reads a length-prefixed UTF-8 string.
func (r *Reader) VarString() string {
	return string(r.VarBytes())
}
