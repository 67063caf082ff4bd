package ast

import (
	"fmt"

	"github.com/pangea-net/traincoord/internal/value"
)

// Eval recursively evaluates n against row, dispatching on opcode. For
// identical (tree, row) pairs it returns byte-identical Values: there is no
// hidden mutable state threaded through evaluation.
func Eval(n *Node, row *Row) (value.Value, error) {
	switch n.Op {
	case OpRoot:
		return Eval(n.Children[0], row)

	case OpIf:
		cond, err := Eval(n.Children[0], row)
		if err != nil {
			return value.Value{}, err
		}
		b, err := cond.AsBool()
		if err != nil {
			return value.Value{}, fmt.Errorf("ast: if condition: %w", err)
		}
		if b {
			return Eval(n.Children[1], row)
		}
		return Eval(n.Children[2], row)

	case OpAdd:
		return evalAdd(n, row)

	case OpLt:
		return evalCompare(n, row, func(a, b float64) bool { return a < b })

	case OpGt:
		return evalCompare(n, row, func(a, b float64) bool { return a > b })

	case OpIn:
		return evalIn(n, row)

	case OpVar:
		return evalVar(n, row)

	case OpCategory, OpFloat, OpInt, OpBool, OpString, OpArray, OpConstant:
		return n.Value, nil

	case OpSetLocal, OpGetLocal:
		return value.Value{}, fmt.Errorf("ast: %s has no evaluation semantics (open question)", n.Op.Name())

	default:
		return value.Value{}, fmt.Errorf("ast: unhandled opcode %s", n.Op.Name())
	}
}

func evalAdd(n *Node, row *Row) (value.Value, error) {
	a, err := Eval(n.Children[0], row)
	if err != nil {
		return value.Value{}, err
	}
	b, err := Eval(n.Children[1], row)
	if err != nil {
		return value.Value{}, err
	}
	if a.Tag() == value.TagMissing || b.Tag() == value.TagMissing {
		return value.Missing(), nil
	}
	af, aIsFloat, err := numeric(a)
	if err != nil {
		return value.Value{}, fmt.Errorf("ast: add: %w", err)
	}
	bf, bIsFloat, err := numeric(b)
	if err != nil {
		return value.Value{}, fmt.Errorf("ast: add: %w", err)
	}
	if aIsFloat || bIsFloat {
		return value.Float(float32(af + bf)), nil
	}
	return value.Int(int32(af) + int32(bf)), nil
}

func evalCompare(n *Node, row *Row, cmp func(a, b float64) bool) (value.Value, error) {
	a, err := Eval(n.Children[0], row)
	if err != nil {
		return value.Value{}, err
	}
	b, err := Eval(n.Children[1], row)
	if err != nil {
		return value.Value{}, err
	}
	if a.Tag() == value.TagMissing || b.Tag() == value.TagMissing {
		return value.Bool(false), nil
	}
	af, _, err := numeric(a)
	if err != nil {
		return value.Value{}, fmt.Errorf("ast: compare: %w", err)
	}
	bf, _, err := numeric(b)
	if err != nil {
		return value.Value{}, fmt.Errorf("ast: compare: %w", err)
	}
	return value.Bool(cmp(af, bf)), nil
}

func evalIn(n *Node, row *Row) (value.Value, error) {
	x, err := Eval(n.Children[0], row)
	if err != nil {
		return value.Value{}, err
	}
	arrVal, err := Eval(n.Children[1], row)
	if err != nil {
		return value.Value{}, err
	}
	elems, err := arrVal.AsArray()
	if err != nil {
		return value.Value{}, fmt.Errorf("ast: in: %w", err)
	}
	for _, e := range elems {
		if x.Equal(e) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func evalVar(n *Node, row *Row) (value.Value, error) {
	idx, err := n.Value.AsInt()
	if err != nil {
		return value.Value{}, fmt.Errorf("ast: var: %w", err)
	}
	if idx < 0 || int(idx) >= len(row.Inputs) {
		return value.Value{}, fmt.Errorf("ast: var(%d): index out of range [0,%d)", idx, len(row.Inputs))
	}
	in := row.Inputs[idx]
	switch in.Kind {
	case Categorical:
		return value.Category(in.Category), nil
	case Continuous:
		return value.Float(in.Value), nil
	default:
		return value.Missing(), nil
	}
}

// numeric extracts a float64 view of a Float or Int value, reporting
// whether the original tag was Float (so callers can pick the result tag).
func numeric(v value.Value) (float64, bool, error) {
	switch v.Tag() {
	case value.TagFloat:
		f, _ := v.AsFloat()
		return float64(f), true, nil
	case value.TagInt:
		i, _ := v.AsInt()
		return float64(i), false, nil
	default:
		return 0, false, fmt.Errorf("expected numeric value, got %s", v.Tag())
	}
}
