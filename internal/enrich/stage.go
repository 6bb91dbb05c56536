// Package enrich runs independent enrichment steps in parallel within a
// stage, with stages applied one after another.
package enrich

import (
	"context"
	"fmt"
)

// Step mutates an item in place. Steps of one stage run concurrently on the
// same item, so they must write disjoint fields.
type Step[T any] func(ctx context.Context, item *T) error

type namedStep[T any] struct {
	name string
	fn   Step[T]
}

// Stage groups steps that are safe to run in parallel for a single item.
type Stage[T any] struct {
	steps []namedStep[T]
}

// NewStage constructs a Stage from the provided steps, named by position.
func NewStage[T any](steps ...Step[T]) Stage[T] {
	s := Stage[T]{}
	for i, step := range steps {
		s.steps = append(s.steps, namedStep[T]{name: fmt.Sprintf("#%d", i+1), fn: step})
	}
	return s
}

// Add appends a named step; nil steps are ignored.
func (s Stage[T]) Add(name string, step Step[T]) Stage[T] {
	if step == nil {
		return s
	}
	steps := append([]namedStep[T](nil), s.steps...)
	return Stage[T]{steps: append(steps, namedStep[T]{name: name, fn: step})}
}

// Len is the number of steps in the stage.
func (s Stage[T]) Len() int { return len(s.steps) }
