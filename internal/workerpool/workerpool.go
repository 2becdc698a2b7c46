// Package workerpool runs a bounded number of goroutines against a stream of
// tasks. golang.org/x/sync is not part of the dependency graph this module
// draws from, so this is built on stdlib sync/channels rather than
// errgroup.
package workerpool

import "sync"

// Task is a unit of work; its error is collected but does not stop other
// tasks from running.
type Task func() error

// Run executes tasks across n workers and returns every error that occurred,
// in no particular order. n <= 0 is treated as 1.
func Run(n int, tasks []Task) []error {
	if n <= 0 {
		n = 1
	}
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				if err := task(); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)
	wg.Wait()

	return errs
}
