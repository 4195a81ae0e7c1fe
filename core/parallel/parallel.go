// Package parallel splits index ranges across goroutines.
//
// Work is divided into contiguous [start, end) chunks, so callers that write
// into pre-allocated slots by index stay deterministic regardless of the
// number of workers.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeWorkers(items, runtime.GOMAXPROCS(0), fn)
}

// ParallelizeWorkers is Parallelize with an explicit worker count.
// A workers value below 1 means one worker.
func ParallelizeWorkers(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > items {
		workers = items // No need for more workers than items
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ParallelizeErr runs fn like ParallelizeWithThreshold and returns the error
// of the lowest-indexed chunk that failed, so the reported error does not
// depend on goroutine scheduling.
func ParallelizeErr(items int, threshold int, fn func(start, end int) error) error {
	var (
		mu       sync.Mutex
		firstErr error
		errStart = items
	)
	ParallelizeWithThreshold(items, threshold, func(start, end int) {
		if err := fn(start, end); err != nil {
			mu.Lock()
			if start < errStart {
				firstErr, errStart = err, start
			}
			mu.Unlock()
		}
	})
	return firstErr
}
