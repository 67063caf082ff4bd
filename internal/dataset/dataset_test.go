package dataset

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/pangea-net/traincoord/internal/ast"
)

func sample(t *testing.T) *Dataset {
	t.Helper()
	cols := []Column{{Name: "a", Kind: ast.Continuous}, {Name: "b", Kind: ast.Categorical}}
	rows := []ast.Row{
		{Inputs: []ast.Variable{{Kind: ast.Continuous, Value: 1.5}, {Kind: ast.Categorical, Category: 3}}},
		{Inputs: []ast.Variable{{Kind: ast.VarMissing}, {Kind: ast.Categorical, Category: 9}}},
	}
	d, err := New(cols, rows)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

// TestHashStability mirrors property 6: dataset_write then dataset_read
// then rehash reproduces the original hash.
func TestHashStability(t *testing.T) {
	d := sample(t)
	original := d.Hash()

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := Write(w, d); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Flush()

	got, err := Read(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Hash() != original {
		t.Fatalf("hash mismatch after round-trip: %s vs %s", got.Hash(), original)
	}
}

func TestHashDeterministic(t *testing.T) {
	a := sample(t)
	b := sample(t)
	if a.Hash() != b.Hash() {
		t.Fatal("identical datasets hashed differently")
	}
}

func TestHashSensitiveToContent(t *testing.T) {
	a := sample(t)
	cols := []Column{{Name: "a", Kind: ast.Continuous}, {Name: "b", Kind: ast.Categorical}}
	rows := []ast.Row{
		{Inputs: []ast.Variable{{Kind: ast.Continuous, Value: 99}, {Kind: ast.Categorical, Category: 3}}},
	}
	b, err := New(cols, rows)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Hash() == b.Hash() {
		t.Fatal("different datasets hashed identically")
	}
}

func TestRowColumnCountMismatch(t *testing.T) {
	cols := []Column{{Name: "a", Kind: ast.Continuous}}
	rows := []ast.Row{{Inputs: []ast.Variable{{Kind: ast.Continuous}, {Kind: ast.Continuous}}}}
	if _, err := New(cols, rows); err == nil {
		t.Fatal("expected error for row/column count mismatch")
	}
}
