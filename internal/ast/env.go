package ast

import "math"

// VariableKind distinguishes how a row input lifts into an evaluation.
type VariableKind uint8

const (
	Categorical VariableKind = iota
	Continuous
	VarMissing
)

// Variable is one entry of a Row: a categorical label, a continuous value,
// or missing.
type Variable struct {
	Kind     VariableKind
	Category uint32
	Value    float32
}

// ValueOf returns the category as float64, the continuous value, or NaN
// when missing — matching model.h's variable_value().
func (v Variable) ValueOf() float64 {
	switch v.Kind {
	case Categorical:
		return float64(v.Category)
	case Continuous:
		return float64(v.Value)
	default:
		return math.NaN()
	}
}

// Row is a fixed-length sequence of variables supplying var(i) lookups.
type Row struct {
	Inputs []Variable
}
