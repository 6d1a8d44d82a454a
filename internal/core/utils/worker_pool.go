package utils

import "sync"

type CompletedTask[In any, Out any] struct {
	Input  In
	Result Out
	Error  error
}

// RunInPool drains queue with at most maxWorkers concurrent workers and closes
// completed once every queued item has been processed. The queue must be
// closed by the caller.
func RunInPool[In any, Out any](worker func(In) (Out, error), queue chan In, completed chan CompletedTask[In, Out], maxWorkers int) {
	workers := min(len(queue), max(maxWorkers, 1))

	go func() {
		wg := sync.WaitGroup{}
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()

				for {
					next, ok := <-queue
					if !ok {
						return
					}

					res, err := worker(next)
					if err != nil {
						completed <- CompletedTask[In, Out]{Input: next, Error: err}
					} else {
						completed <- CompletedTask[In, Out]{Input: next, Result: res}
					}
				}
			}()
		}

		wg.Wait()

		close(completed)
	}()
}

// Collect runs every item through worker on the pool and returns once all of
// them have completed.
func Collect[In any, Out any](items []In, worker func(In) (Out, error), maxWorkers int) []CompletedTask[In, Out] {
	queue := make(chan In, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	completed := make(chan CompletedTask[In, Out], len(items))
	RunInPool(worker, queue, completed, maxWorkers)

	out := make([]CompletedTask[In, Out], 0, len(items))
	for task := range completed {
		out = append(out, task)
	}
	return out
}
