package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// BatchOptions controls batch scanning.
type BatchOptions struct {
	Workers         int
	ContinueOnError bool
}

// BatchResult pairs a locator with its scan outcome.
type BatchResult struct {
	Locator string
	Result  *Result
	Err     error
}

// ProcessBatch scans the locators with a bounded worker pool and returns the
// outcomes in input order. Recognition itself is serialized by the engine;
// loading, rectification and segmentation overlap across workers. With
// ContinueOnError unset the first failure cancels the remaining work.
func (p *Pipeline) ProcessBatch(ctx context.Context, locators []string, opts BatchOptions) ([]BatchResult, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(locators) {
		workers = len(locators)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]BatchResult, len(locators))
	for i, locator := range locators {
		results[i].Locator = locator
	}
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				locator := locators[i]
				result, err := p.Process(ctx, locator)
				results[i] = BatchResult{Locator: locator, Result: result, Err: err}
				if err != nil && !opts.ContinueOnError {
					cancel()
				}
			}
		}()
	}

dispatch:
	for i := range locators {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Locator, r.Err))
		}
	}
	if len(errs) > 0 && !opts.ContinueOnError {
		return results, errors.Join(errs...)
	}
	return results, nil
}
