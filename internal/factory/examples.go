package factory

import (
	"context"
	"time"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/dataset"
)

// ThresholdFactory builds the canonical S1 scenario tree —
// if(gt(add(var0,var1), var2), cat1, cat2) — regardless of dataset
// content, scoring it by how many rows it classifies as category 1. This
// mirrors test_ast.c's test_if() tree; cmd/traincoordd registers it, and
// the worker-server tests use it as a fixture.
func ThresholdFactory() Factory {
	return FactoryFunc(func(_ context.Context, d *dataset.Dataset, _ string) (*ast.Node, int32, error) {
		tree := ast.Root(ast.If(ast.Gt(ast.Add(ast.Var(0), ast.Var(1)), ast.Var(2)), ast.Cat(1), ast.Cat(2)))
		score := int32(0)
		for _, row := range d.Rows {
			v, err := ast.Eval(tree, &row)
			if err != nil {
				continue
			}
			if c, err := v.AsCategory(); err == nil && c == 1 {
				score++
			}
		}
		return tree, score, nil
	})
}

// ConstantFactory always returns the given leaf value wrapped in a root
// node with a fixed score, useful for exercising the score gate (S4)
// without depending on dataset content.
func ConstantFactory(score int32) Factory {
	return FactoryFunc(func(_ context.Context, _ *dataset.Dataset, _ string) (*ast.Node, int32, error) {
		return ast.Root(ast.Cat(1)), score, nil
	})
}

// SleepFactory blocks for the given duration before returning a trivial
// tree, used to exercise the worker wall-clock timeout (S6). It returns
// early with ctx.Err() if ctx is cancelled; the isolated child passes a
// context that is never cancelled, so there it is ended only by the
// child's SIGKILL alarm.
func SleepFactory(d time.Duration) Factory {
	return FactoryFunc(func(ctx context.Context, _ *dataset.Dataset, _ string) (*ast.Node, int32, error) {
		select {
		case <-time.After(d):
			return ast.Root(ast.Cat(0)), 0, nil
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	})
}
