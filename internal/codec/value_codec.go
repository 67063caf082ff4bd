package codec

import (
	"bufio"
	"fmt"

	"github.com/pangea-net/traincoord/internal/value"
)

// WriteValue encodes a Value as tag (u8) followed by its tag-dependent
// payload. omitStrings controls whether embedded strings are collapsed to
// a zero-length placeholder.
func WriteValue(w *bufio.Writer, v value.Value, omitStrings bool) error {
	if err := WriteU8(w, byte(v.Tag())); err != nil {
		return err
	}
	switch v.Tag() {
	case value.TagFloat:
		f, _ := v.AsFloat()
		return WriteFloat32(w, f)
	case value.TagInt:
		i, _ := v.AsInt()
		return WriteSvarint(w, int64(i))
	case value.TagBool:
		b, _ := v.AsBool()
		u := uint64(0)
		if b {
			u = 1
		}
		return WriteUvarint(w, u)
	case value.TagCategory:
		c, _ := v.AsCategory()
		return WriteUvarint(w, uint64(c))
	case value.TagMissing:
		return nil
	case value.TagString:
		s, _ := v.AsString()
		return WriteString(w, s, omitStrings)
	case value.TagArray:
		elems, _ := v.AsArray()
		if err := WriteUvarint(w, uint64(len(elems))); err != nil {
			return err
		}
		for _, e := range elems {
			if err := WriteValue(w, e, omitStrings); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("codec: unknown value tag %d", v.Tag())
	}
}

// ReadValue decodes a Value written by WriteValue.
func ReadValue(r *bufio.Reader) (value.Value, error) {
	tagByte, err := ReadU8(r)
	if err != nil {
		return value.Value{}, err
	}
	tag := value.Tag(tagByte)
	switch tag {
	case value.TagFloat:
		f, err := ReadFloat32(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case value.TagInt:
		i, err := ReadSvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int32(i)), nil
	case value.TagBool:
		u, err := ReadUvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(u != 0), nil
	case value.TagCategory:
		c, err := ReadUvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Category(uint32(c)), nil
	case value.TagMissing:
		return value.Missing(), nil
	case value.TagString:
		s, err := ReadString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.String(s), nil
	case value.TagArray:
		n, err := ReadUvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		const maxArrayLen = 1 << 24
		if n > maxArrayLen {
			return value.Value{}, fmt.Errorf("codec: array length %d exceeds sane maximum", n)
		}
		elems := make([]value.Value, n)
		for i := range elems {
			e, err := ReadValue(r)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = e
		}
		return value.Array(elems), nil
	default:
		return value.Value{}, fmt.Errorf("codec: unknown value tag %d", tagByte)
	}
}
