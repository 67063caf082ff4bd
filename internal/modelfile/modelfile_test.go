package modelfile

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/pangea-net/traincoord/internal/ast"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	m := &Model{
		Name:        "threshold",
		ColumnNames: []string{"a", "b", "c"},
		ColumnTypes: []ast.VariableKind{ast.Continuous, ast.Continuous, ast.Continuous},
		NumInputs:   3,
		Root:        ast.Root(ast.If(ast.Gt(ast.Add(ast.Var(0), ast.Var(1)), ast.Var(2)), ast.Cat(1), ast.Cat(2))),
	}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := Save(w, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	w.Flush()

	got, err := Load(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != m.Name || got.NumInputs != m.NumInputs {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if len(got.ColumnNames) != 3 || got.ColumnNames[1] != "b" {
		t.Fatalf("column names mismatch: %v", got.ColumnNames)
	}
	if !ast.Equal(m.Root, got.Root) {
		t.Fatalf("root node mismatch after round-trip")
	}
}

func TestSaveLoadWithoutOptionalMetadata(t *testing.T) {
	m := &Model{Name: "bare", NumInputs: 0, Root: ast.Root(ast.Cat(1))}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := Save(w, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	w.Flush()

	got, err := Load(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ColumnNames != nil || got.ColumnTypes != nil {
		t.Fatalf("expected nil optional metadata, got names=%v types=%v", got.ColumnNames, got.ColumnTypes)
	}
}
