package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WriteU8 writes a raw byte.
func WriteU8(w *bufio.Writer, b byte) error {
	return w.WriteByte(b)
}

// ReadU8 reads a raw byte.
func ReadU8(r *bufio.Reader) (byte, error) {
	return r.ReadByte()
}

// WriteFloat32 writes f as 32-bit IEEE-754, little-endian on the wire.
func WriteFloat32(w *bufio.Writer, f float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
	_, err := w.Write(buf[:])
	return err
}

// ReadFloat32 reads a little-endian IEEE-754 float32.
func ReadFloat32(r *bufio.Reader) (float32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// WriteString writes a compressed-uint length followed by that many raw
// bytes. When omitStrings is set, a single zero byte stands in for the
// string (the OMIT_STRINGS serialization flag).
func WriteString(w *bufio.Writer, s string, omitStrings bool) error {
	if omitStrings {
		return WriteUvarint(w, 0)
	}
	if err := WriteUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

// ReadString reads a string written by WriteString.
func ReadString(r *bufio.Reader) (string, error) {
	n, err := ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	const maxStringLen = 1 << 30
	if n > maxStringLen {
		return "", fmt.Errorf("codec: string length %d exceeds sane maximum", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteBytes writes a compressed-uint length followed by raw bytes, for
// length-variable binary blobs. Datasets do not go through it: they are
// written field by field with dataset.Write.
func WriteBytes(w *bufio.Writer, b []byte) error {
	if err := WriteUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func ReadBytes(r *bufio.Reader) ([]byte, error) {
	n, err := ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	const maxBlobLen = 1 << 31
	if n > maxBlobLen {
		return nil, fmt.Errorf("codec: blob length %d exceeds sane maximum", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
