// Package factory defines the external "model factory" collaborator: given
// a dataset and a transforms string, it produces a node tree and an
// integer score (lower is better). Training algorithm internals are out of
// scope for the core (spec §1); this package only fixes the interface and
// ships a small registry plus example factories used by tests and by the
// worker binary (cmd/traincoordd registers ThresholdFactory).
package factory

import (
	"context"
	"fmt"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/dataset"
)

// Factory trains a model against a dataset under the given transforms
// string, returning the resulting program and its score.
type Factory interface {
	Train(ctx context.Context, d *dataset.Dataset, transforms string) (*ast.Node, int32, error)
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(ctx context.Context, d *dataset.Dataset, transforms string) (*ast.Node, int32, error)

func (f FactoryFunc) Train(ctx context.Context, d *dataset.Dataset, transforms string) (*ast.Node, int32, error) {
	return f(ctx, d, transforms)
}

// UnknownFactoryError is returned by Registry.Lookup when name is not
// registered, surfaced on the wire as FACTORY_UNKNOWN.
type UnknownFactoryError struct {
	Name string
}

func (e *UnknownFactoryError) Error() string {
	return fmt.Sprintf("factory: unknown factory %q", e.Name)
}

// Registry resolves factory names to implementations, as required by
// REQUEST_TRAIN_MODEL's factory-name field.
type Registry struct {
	byName map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	r.byName[name] = f
}

func (r *Registry) Lookup(name string) (Factory, error) {
	f, ok := r.byName[name]
	if !ok {
		return nil, &UnknownFactoryError{Name: name}
	}
	return f, nil
}
