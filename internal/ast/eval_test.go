package ast

import (
	"testing"

	"github.com/pangea-net/traincoord/internal/value"
)

func testRow() *Row {
	return &Row{Inputs: []Variable{
		{Kind: Continuous, Value: 1.0},
		{Kind: Continuous, Value: 2.0},
		{Kind: Continuous, Value: 4.0},
		{Kind: Categorical, Category: 5},
	}}
}

// TestIf mirrors test_ast.c's test_if(): row [1.0,2.0,4.0,C5],
// if(gt(add(var0,var1), var2), cat1, cat2).
func TestIf(t *testing.T) {
	tree := Root(If(Gt(Add(Var(0), Var(1)), Var(2)), Cat(1), Cat(2)))
	row := testRow()

	got, err := Eval(tree, row)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !got.Equal(value.Category(2)) {
		t.Fatalf("expected C2, got %s", got.Print())
	}

	row.Inputs[2] = Variable{Kind: Continuous, Value: 2.5}
	got, err = Eval(tree, row)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !got.Equal(value.Category(1)) {
		t.Fatalf("expected C1, got %s", got.Print())
	}
}

// TestInArray mirrors test_ast.c's test_array().
func TestInArray(t *testing.T) {
	arr := Arr(value.Category(1), value.Category(2), value.Category(3))
	tree := Root(If(In(Var(3), arr), Cat(1), Cat(2)))
	row := testRow()

	got, err := Eval(tree, row)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !got.Equal(value.Category(2)) {
		t.Fatalf("expected C2, got %s", got.Print())
	}

	row.Inputs[3] = Variable{Kind: Categorical, Category: 3}
	got, err = Eval(tree, row)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !got.Equal(value.Category(1)) {
		t.Fatalf("expected C1, got %s", got.Print())
	}
}

func TestMissingPropagation(t *testing.T) {
	row := &Row{Inputs: []Variable{{Kind: VarMissing}, {Kind: Continuous, Value: 1}}}

	sum, err := Eval(Add(Var(0), Var(1)), row)
	if err != nil {
		t.Fatalf("eval add: %v", err)
	}
	if sum.Tag() != value.TagMissing {
		t.Errorf("add(missing,x) = %s, want missing", sum.Print())
	}

	lt, err := Eval(Lt(Var(0), Var(1)), row)
	if err != nil {
		t.Fatalf("eval lt: %v", err)
	}
	if b, _ := lt.AsBool(); b != false {
		t.Errorf("lt(missing,_) = %v, want false", b)
	}

	gt, err := Eval(Gt(Var(0), Var(1)), row)
	if err != nil {
		t.Fatalf("eval gt: %v", err)
	}
	if b, _ := gt.AsBool(); b != false {
		t.Errorf("gt(missing,_) = %v, want false", b)
	}
}

func TestEvalDeterminism(t *testing.T) {
	tree := Root(If(Gt(Add(Var(0), Var(1)), Var(2)), Cat(1), Cat(2)))
	row := testRow()

	first, err := Eval(tree, row)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	second, err := Eval(tree, row)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("non-deterministic eval: %s vs %s", first.Print(), second.Print())
	}
}

func TestSanityCheckRejectsBadArity(t *testing.T) {
	good := Root(If(Bln(true), Cat(1), Cat(2)))
	if err := SanityCheck(good); err != nil {
		t.Fatalf("expected valid tree to pass, got %v", err)
	}

	bad := &Node{Op: OpIf, Children: []*Node{Bln(true), Cat(1)}}
	if err := SanityCheck(bad); err == nil {
		t.Fatal("expected arity violation to be rejected")
	}
}
