// Package parallel splits row ranges across CPU cores.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the row count below which work stays on the calling goroutine.
const DefaultThreshold = 4096

// Parallelize divides items into one contiguous range per CPU core and calls
// fn for each range concurrently.
func Parallelize(items int, fn func(start, end int)) {
	_ = run(items, func(start, end int) error {
		fn(start, end)
		return nil
	})
}

// ParallelizeWithThreshold runs fn(0, items) sequentially when items does not
// exceed threshold, and Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// RunWithThreshold is ParallelizeWithThreshold for ranges that can fail. The
// error of the lowest failing range is returned, so the result does not
// depend on scheduling.
func RunWithThreshold(items int, threshold int, fn func(start, end int) error) error {
	if items <= threshold {
		if items == 0 {
			return nil
		}
		return fn(0, items)
	}
	return run(items, fn)
}

func run(items int, fn func(start, end int) error) error {
	if items == 0 {
		return nil
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	errs := make([]error, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(slot, s, e int) {
			defer wg.Done()
			errs[slot] = fn(s, e)
		}(i, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
