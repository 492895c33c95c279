package denunciation

import (
	"encoding/binary"
	"fmt"
)

// maxVarintBytes bounds how many bytes a single varint can occupy before
// decoding gives up — ceil(64/7) = 10 bytes, matching
// encoding/binary.MaxVarintLen64.
const maxVarintBytes = binary.MaxVarintLen64

// putUvarint appends the little-endian base-128 encoding of v to buf,
// using the same continuation-bit convention as encoding/binary.PutUvarint
// and the length-prefixing already used for req/resp message framing
// (see networking/reqresp/stream.go).
func putUvarint(buf []byte, v uint64) []byte {
	var tmp [maxVarintBytes]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// takeUvarint decodes a varint from the front of data and returns the
// decoded value along with the number of bytes consumed.
func takeUvarint(data []byte) (uint64, int, error) {
	v, n := binary.Uvarint(data)
	if n == 0 {
		return 0, 0, fmt.Errorf("buffer too short for varint")
	}
	if n < 0 {
		return 0, 0, fmt.Errorf("varint overflows 64 bits")
	}
	return v, n, nil
}

// bound describes the inclusive lower / optionally-exclusive upper bound a
// decoded varint must satisfy.
type bound struct {
	lower          uint64
	upper          uint64
	upperExclusive bool
}

func (b bound) contains(v uint64) bool {
	if v < b.lower {
		return false
	}
	if b.upperExclusive {
		return v < b.upper
	}
	return v <= b.upper
}

func (b bound) String() string {
	if b.upperExclusive {
		return fmt.Sprintf("[%d, %d)", b.lower, b.upper)
	}
	return fmt.Sprintf("[%d, %d]", b.lower, b.upper)
}

// decodeBoundedUvarint decodes a varint and rejects it if outside bound.
func decodeBoundedUvarint(data []byte, b bound) (uint64, int, error) {
	v, n, err := takeUvarint(data)
	if err != nil {
		return 0, 0, err
	}
	if !b.contains(v) {
		return 0, 0, fmt.Errorf("value %d out of bound %s", v, b)
	}
	return v, n, nil
}

// u32VarIntSerializer serializes a bounds-checked uint32 as a varint.
type u32VarIntSerializer struct {
	bound bound
}

func newU32VarIntSerializer(lower uint64, upper uint64, upperExclusive bool) u32VarIntSerializer {
	return u32VarIntSerializer{bound: bound{lower: lower, upper: upper, upperExclusive: upperExclusive}}
}

func (s u32VarIntSerializer) serialize(value uint32, buf []byte) ([]byte, error) {
	v := uint64(value)
	if !s.bound.contains(v) {
		return nil, fmt.Errorf("value %d out of bound %s", v, s.bound)
	}
	return putUvarint(buf, v), nil
}

// u32VarIntDeserializer decodes a varint and enforces it decodes to a valid
// uint32 within bound.
type u32VarIntDeserializer struct {
	bound bound
}

func newU32VarIntDeserializer(lower uint64, upper uint64, upperExclusive bool) u32VarIntDeserializer {
	return u32VarIntDeserializer{bound: bound{lower: lower, upper: upper, upperExclusive: upperExclusive}}
}

func (d u32VarIntDeserializer) deserialize(data []byte) (uint32, int, error) {
	v, n, err := decodeBoundedUvarint(data, d.bound)
	if err != nil {
		return 0, 0, err
	}
	if v > 0xFFFFFFFF {
		return 0, 0, fmt.Errorf("value %d overflows u32", v)
	}
	return uint32(v), n, nil
}
