package ast

import (
	"fmt"

	"github.com/pangea-net/traincoord/internal/value"
)

// Builder replaces the START_CODE/NODE_BEGIN/IF/THEN/ELSE/END macro DSL
// with a value-based stack of frames: each Begin pushes a frame, each
// child-producing call appends to the frame on top, and End pops the frame,
// validating its arity before making it available as a child of its parent.
type Builder struct {
	stack []*frame
	root  *Node
}

type frame struct {
	op       Opcode
	children []*Node
}

// NewBuilder starts an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Begin pushes a new branch frame for op.
func (b *Builder) Begin(op Opcode) *Builder {
	b.stack = append(b.stack, &frame{op: op})
	return b
}

// Leaf appends a leaf node carrying v to the current frame.
func (b *Builder) Leaf(op Opcode, v value.Value) *Builder {
	b.append(New(op, v))
	return b
}

// End closes the current frame, checks its arity, and attaches the
// resulting node as a child of whatever frame is now on top (or, if the
// stack is now empty, records it as the completed root).
func (b *Builder) End() *Builder {
	n := len(b.stack)
	if n == 0 {
		panic("ast: builder End() with no open frame")
	}
	top := b.stack[n-1]
	b.stack = b.stack[:n-1]

	node := &Node{Op: top.op, Children: top.children}
	if err := node.checkArity(); err != nil {
		panic(err)
	}
	b.append(node)
	return b
}

func (b *Builder) append(n *Node) {
	if len(b.stack) == 0 {
		b.root = n
		return
	}
	top := b.stack[len(b.stack)-1]
	top.children = append(top.children, n)
}

// Build returns the completed root node. It panics if any frame is still
// open, since an unbalanced Begin/End pair is a programmer error, not a
// recoverable condition.
func (b *Builder) Build() *Node {
	if len(b.stack) != 0 {
		panic(fmt.Sprintf("ast: builder has %d unclosed frame(s)", len(b.stack)))
	}
	if b.root == nil {
		panic("ast: builder produced no root")
	}
	return b.root
}

// Root wraps n in an OpRoot node, mirroring node_new(NODE_ROOT, child).
func Root(child *Node) *Node {
	return NewBranch(OpRoot, child)
}

// Var, Add, If, Lt, Gt, In, Cat, Flt, Itg, Bln, Str and Arr are thin
// convenience constructors for hand-assembling trees (tests and factory
// fixtures), mirroring the macro DSL's VAR/ADD/IF/LT/GT-style helpers.
func Var(index uint32) *Node          { return New(OpVar, value.Int(int32(index))) }
func Cat(c uint32) *Node              { return New(OpCategory, value.Category(c)) }
func Flt(f float32) *Node             { return New(OpFloat, value.Float(f)) }
func Itg(i int32) *Node               { return New(OpInt, value.Int(i)) }
func Bln(b bool) *Node                { return New(OpBool, value.Bool(b)) }
func Str(s string) *Node              { return New(OpString, value.String(s)) }
func Arr(elems ...value.Value) *Node  { return New(OpArray, value.Array(elems)) }
func Add(a, b *Node) *Node            { return NewBranch(OpAdd, a, b) }
func Lt(a, b *Node) *Node             { return NewBranch(OpLt, a, b) }
func Gt(a, b *Node) *Node             { return NewBranch(OpGt, a, b) }
func In(x, arr *Node) *Node           { return NewBranch(OpIn, x, arr) }
func If(cond, then, els *Node) *Node  { return NewBranch(OpIf, cond, then, els) }
