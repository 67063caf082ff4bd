package codec

import (
	"bufio"
	"fmt"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/value"
)

// WriteNode encodes n as: opcode (u8), then (if the opcode carries an
// embedded value) its opcode-specific payload, then (if the opcode has
// children) an implicit or explicit child count followed by each child
// recursively. This mirrors node_write_internal_data/node_write.
func WriteNode(w *bufio.Writer, n *ast.Node, omitStrings bool) error {
	if err := WriteU8(w, byte(n.Op)); err != nil {
		return err
	}
	if n.Op.HasValue() {
		if err := writeNodeValue(w, n.Op, n.Value, omitStrings); err != nil {
			return err
		}
	}
	if n.Op.HasChildren() {
		if !n.Op.FixedArgs() {
			if err := WriteUvarint(w, uint64(len(n.Children))); err != nil {
				return err
			}
		}
		for _, c := range n.Children {
			if err := WriteNode(w, c, omitStrings); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeNodeValue encodes the opcode-specific embedded-value payload. Most
// leaf opcodes use a bare payload (no tag byte, since the opcode already
// names the type); constant/setlocal/getlocal use the full tag+payload
// Value encoding because they carry an arbitrary runtime value.
func writeNodeValue(w *bufio.Writer, op ast.Opcode, v value.Value, omitStrings bool) error {
	switch op {
	case ast.OpVar:
		i, err := v.AsInt()
		if err != nil {
			return fmt.Errorf("codec: var node: %w", err)
		}
		return WriteSvarint(w, int64(i))
	case ast.OpCategory:
		c, err := v.AsCategory()
		if err != nil {
			return fmt.Errorf("codec: category node: %w", err)
		}
		return WriteUvarint(w, uint64(c))
	case ast.OpInt:
		i, err := v.AsInt()
		if err != nil {
			return fmt.Errorf("codec: int node: %w", err)
		}
		return WriteSvarint(w, int64(i))
	case ast.OpBool:
		b, err := v.AsBool()
		if err != nil {
			return fmt.Errorf("codec: bool node: %w", err)
		}
		u := uint64(0)
		if b {
			u = 1
		}
		return WriteUvarint(w, u)
	case ast.OpFloat:
		f, err := v.AsFloat()
		if err != nil {
			return fmt.Errorf("codec: float node: %w", err)
		}
		return WriteFloat32(w, f)
	case ast.OpString:
		s, err := v.AsString()
		if err != nil {
			return fmt.Errorf("codec: string node: %w", err)
		}
		return WriteString(w, s, omitStrings)
	case ast.OpArray:
		elems, err := v.AsArray()
		if err != nil {
			return fmt.Errorf("codec: array node: %w", err)
		}
		if err := WriteUvarint(w, uint64(len(elems))); err != nil {
			return err
		}
		for _, e := range elems {
			if err := WriteValue(w, e, omitStrings); err != nil {
				return err
			}
		}
		return nil
	case ast.OpConstant, ast.OpSetLocal, ast.OpGetLocal:
		return WriteValue(w, v, omitStrings)
	default:
		return fmt.Errorf("codec: opcode %s has no embedded-value encoding", op.Name())
	}
}

// maxDecodeDepth bounds the explicit-stack decoder against pathological or
// malicious child-count fields.
const maxDecodeDepth = 1 << 20

// frame is one level of the decoder's explicit work stack, replacing the
// original's nodestack_t linked list.
type frame struct {
	op       ast.Opcode
	value    value.Value
	want     int
	children []*ast.Node
}

// ReadNode decodes a node tree using an explicit stack rather than
// recursion, so decode cost is O(nodes) and deep trees don't blow the Go
// call stack. Whenever the top frame has reached its expected child count,
// frames are popped until either the stack is empty (root complete) or the
// frame above is still incomplete.
func ReadNode(r *bufio.Reader) (*ast.Node, error) {
	var stack []*frame
	var completed *ast.Node

	for completed == nil {
		opByte, err := ReadU8(r)
		if err != nil {
			return nil, err
		}
		op := ast.Opcode(opByte)
		if !op.Valid() {
			return nil, fmt.Errorf("codec: unknown opcode %d", opByte)
		}

		var v value.Value
		if op.HasValue() {
			v, err = readNodeValue(r, op)
			if err != nil {
				return nil, err
			}
		}

		want := 0
		if op.HasChildren() {
			if op.FixedArgs() {
				want = op.MinArgs()
			} else {
				n, err := ReadUvarint(r)
				if err != nil {
					return nil, err
				}
				want = int(n)
			}
		}

		if want == 0 {
			node := &ast.Node{Op: op, Value: v}
			if err := popComplete(&stack, node, &completed); err != nil {
				return nil, err
			}
			continue
		}

		if len(stack) >= maxDecodeDepth {
			return nil, fmt.Errorf("codec: node tree exceeds max decode depth %d", maxDecodeDepth)
		}
		stack = append(stack, &frame{op: op, value: v, want: want})
	}
	return completed, nil
}

// popComplete attaches node to the frame on top of the stack (or reports it
// as the decoded root, if the stack is empty), then pops any frames that
// have now reached their expected child count.
func popComplete(stack *[]*frame, node *ast.Node, completed **ast.Node) error {
	for {
		s := *stack
		if len(s) == 0 {
			*completed = node
			return nil
		}
		top := s[len(s)-1]
		top.children = append(top.children, node)
		if len(top.children) < top.want {
			return nil
		}
		*stack = s[:len(s)-1]
		node = &ast.Node{Op: top.op, Value: top.value, Children: top.children}
	}
}

func readNodeValue(r *bufio.Reader, op ast.Opcode) (value.Value, error) {
	switch op {
	case ast.OpVar:
		i, err := ReadSvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int32(i)), nil
	case ast.OpCategory:
		c, err := ReadUvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Category(uint32(c)), nil
	case ast.OpInt:
		i, err := ReadSvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int32(i)), nil
	case ast.OpBool:
		u, err := ReadUvarint(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(u != 0), nil
	case ast.OpFloat:
		f, err := ReadFloat32(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case ast.OpString:
		s, err := ReadString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.String(s), nil
	case ast.OpArray:
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
	case ast.OpConstant, ast.OpSetLocal, ast.OpGetLocal:
		return ReadValue(r)
	default:
		return value.Value{}, fmt.Errorf("codec: opcode %s has no embedded-value decoding", op.Name())
	}
}
