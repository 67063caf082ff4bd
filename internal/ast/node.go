package ast

import (
	"fmt"

	"github.com/pangea-net/traincoord/internal/value"
)

// Node is a single operator or leaf in a prediction program. It carries
// either a children vector or an embedded Value, per its opcode's shape.
// There is no parent back-reference: that existed in the original only to
// support imperative tree construction and is replaced here by Builder's
// stack of frames.
type Node struct {
	Op       Opcode
	Value    value.Value
	Children []*Node
}

// New constructs a leaf node carrying an embedded value.
func New(op Opcode, v value.Value) *Node {
	return &Node{Op: op, Value: v}
}

// NewBranch constructs a branch node with the given children. It panics if
// the child count is out of the opcode's [min,max] bounds, since branch
// shape is a construction-time invariant, not a runtime error.
func NewBranch(op Opcode, children ...*Node) *Node {
	n := &Node{Op: op, Children: children}
	if err := n.checkArity(); err != nil {
		panic(err)
	}
	return n
}

func (n *Node) checkArity() error {
	count := len(n.Children)
	if count < n.Op.MinArgs() || count > n.Op.MaxArgs() {
		return fmt.Errorf("ast: opcode %s takes [%d,%d] children, got %d",
			n.Op.Name(), n.Op.MinArgs(), n.Op.MaxArgs(), count)
	}
	return nil
}

// AppendChild enforces num_children < max_args before appending.
func (n *Node) AppendChild(child *Node) error {
	if len(n.Children) >= n.Op.MaxArgs() {
		return fmt.Errorf("ast: opcode %s already has max %d children", n.Op.Name(), n.Op.MaxArgs())
	}
	n.Children = append(n.Children, child)
	return nil
}

// SanityCheck verifies, recursively, that every node's child count lies
// within its opcode's bounds. It is run after deserialization, since a
// malformed wire payload must not silently pass through to Eval.
func SanityCheck(n *Node) error {
	if n == nil {
		return fmt.Errorf("ast: nil node")
	}
	if !n.Op.Valid() {
		return fmt.Errorf("ast: unknown opcode %d", n.Op)
	}
	count := len(n.Children)
	if count < n.Op.MinArgs() || count > n.Op.MaxArgs() {
		return fmt.Errorf("ast: opcode %s has %d children, want [%d,%d]",
			n.Op.Name(), count, n.Op.MinArgs(), n.Op.MaxArgs())
	}
	for _, c := range n.Children {
		if err := SanityCheck(c); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports structural equality, used by the round-trip law.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Op != b.Op {
		return false
	}
	if !a.Value.Equal(b.Value) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
