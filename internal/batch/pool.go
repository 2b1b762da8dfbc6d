package batch

import (
	"sync"

	"github.com/hvkshetry/rebalancer/internal/modules/optimizer"
)

// defaultWorkers bounds parallel strategy solves when the caller does
// not set a pool size
const defaultWorkers = 4

// jobItem is one strategy optimization queued for a worker
type jobItem struct {
	index int
	req   optimizer.Request
}

// resultItem tags an outcome with its input index so output order
// matches input order regardless of completion order
type resultItem struct {
	index   int
	outcome optimizer.Outcome
}

// runParallel executes every request on a bounded worker pool and
// returns the outcomes in input order. Requests share no mutable state:
// the restriction snapshot they read was fixed by the harvest pre-pass.
func runParallel(opt *optimizer.Optimizer, requests []optimizer.Request, workers int) []optimizer.Outcome {
	n := len(requests)
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan jobItem, n)
	results := make(chan resultItem, n)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- resultItem{index: job.index, outcome: opt.Run(job.req)}
			}
		}()
	}

	for i, req := range requests {
		jobs <- jobItem{index: i, req: req}
	}
	close(jobs)

	// Hard barrier: netting must not start before every strategy has
	// finished or failed
	wg.Wait()
	close(results)

	outcomes := make([]optimizer.Outcome, n)
	for r := range results {
		outcomes[r.index] = r.outcome
	}
	return outcomes
}
