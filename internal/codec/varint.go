// Package codec implements the binary wire format shared by values, nodes,
// datasets, and the dispatcher protocol: a u8 tag space, a continuation-bit
// "compressed uint" varint, fixed-endian float32, and length-prefixed
// strings.
//
// original_source/_INDEX.md does not retain the exact io.c that defined the
// original compressed-uint byte layout, so this module reproduces a
// conventional LEB128-style continuation-bit scheme instead of the
// original's exact bit pattern (see DESIGN.md, "compressed uint").
package codec

import (
	"fmt"
	"io"
)

// WriteUvarint writes v as a compressed uint: 7 payload bits per byte,
// low-to-high, with the top bit of each byte set on every byte but the
// last.
func WriteUvarint(w io.ByteWriter, v uint64) error {
	for v >= 0x80 {
		if err := w.WriteByte(byte(v) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return w.WriteByte(byte(v))
}

// ReadUvarint reads a compressed uint written by WriteUvarint.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		if shift >= 64 {
			return 0, fmt.Errorf("codec: varint overflows 64 bits")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// WriteSvarint bit-casts a signed int to unsigned and re-serializes via the
// same compressed-uint function, matching the original codec's
// single-function treatment of signed and unsigned integers.
func WriteSvarint(w io.ByteWriter, v int64) error {
	return WriteUvarint(w, uint64(v))
}

func ReadSvarint(r io.ByteReader) (int64, error) {
	u, err := ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	return int64(u), nil
}
