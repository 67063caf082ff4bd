package cache

import (
	"testing"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/dataset"
)

func TestPutGetHas(t *testing.T) {
	c := New()
	cols := []dataset.Column{{Name: "a", Kind: ast.Continuous}}
	rows := []ast.Row{{Inputs: []ast.Variable{{Kind: ast.Continuous, Value: 1}}}}
	d, err := dataset.New(cols, rows)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if c.Has(d.Hash()) {
		t.Fatal("expected empty cache to not have hash")
	}

	c.Put(d)

	if !c.Has(d.Hash()) {
		t.Fatal("expected cache to have hash after Put")
	}
	got, ok := c.Get(d.Hash())
	if !ok || got != d {
		t.Fatal("Get did not return the stored dataset")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestGetMissing(t *testing.T) {
	c := New()
	var h dataset.Hash
	if _, ok := c.Get(h); ok {
		t.Fatal("expected miss on empty cache")
	}
}
