package enrich

import (
	"context"
	"log"
	"sync"
)

// Pipeline runs stages in order for each item; the steps of a stage run in
// parallel. Step errors are logged and never stop an item.
type Pipeline[T any] struct {
	stages  []Stage[T]
	workers int
}

// NewPipeline constructs a Pipeline that processes one item at a time.
func NewPipeline[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages, workers: 1}
}

// WithWorkers lets up to n items move through the pipeline at once.
func (p *Pipeline[T]) WithWorkers(n int) *Pipeline[T] {
	if n < 1 {
		n = 1
	}
	p.workers = n
	return p
}

// Run applies every stage to one item and returns the step errors.
func (p *Pipeline[T]) Run(ctx context.Context, item *T) []error {
	var (
		mu   sync.Mutex
		errs []error
	)
	for _, stage := range p.stages {
		if ctx.Err() != nil {
			return append(errs, ctx.Err())
		}
		var wg sync.WaitGroup
		for _, step := range stage.steps {
			wg.Add(1)
			go func(step namedStep[T]) {
				defer wg.Done()
				if err := step.fn(ctx, item); err != nil {
					log.Printf("Step %s failed: %v", step.name, err)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(step)
		}
		wg.Wait()
	}
	return errs
}

// Process runs every item from in through the pipeline and emits it once
// done. With more than one worker the output order is not the input order.
// The output channel closes after in closes and every item is emitted.
func (p *Pipeline[T]) Process(ctx context.Context, in <-chan *T) <-chan *T {
	out := make(chan *T)
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range in {
				p.Run(ctx, item)
				select {
				case out <- item:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// ProcessAll runs a slice of items through the pipeline in place.
func (p *Pipeline[T]) ProcessAll(ctx context.Context, items []T) {
	in := make(chan *T)
	go func() {
		defer close(in)
		for i := range items {
			select {
			case in <- &items[i]:
			case <-ctx.Done():
				return
			}
		}
	}()
	for range p.Process(ctx, in) {
	}
}
