// Package wordmap defines the optional row-preprocessing collaborator
// (spec §6). Word-map input preprocessing internals are out of scope for
// the core; this package fixes only the interface a worker may consult
// before prediction.
package wordmap

import "github.com/pangea-net/traincoord/internal/ast"

// Wordmap transforms a row before it is handed to Eval, e.g. mapping free
// text inputs onto categorical codes. A nil Wordmap means "no
// preprocessing" and rows pass through unchanged.
type Wordmap interface {
	Apply(row ast.Row) (ast.Row, error)
}

// Identity is a no-op Wordmap, useful as a default collaborator in tests.
type Identity struct{}

func (Identity) Apply(row ast.Row) (ast.Row, error) {
	return row, nil
}
