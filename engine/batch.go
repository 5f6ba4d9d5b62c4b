package engine

import (
	"context"
	"runtime"
	"sync"

	"github.com/warp/tax-engine/income"
	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

// =============================================================================
// REQUESTS
// =============================================================================

// Request is one self-contained calculation: a tax year, elections and figures.
type Request struct {
	Name      string
	TaxYear   string
	Elections map[string]string
	Figures   income.RawFigures
}

// Calculate loads the year's RuleSet, parses elections and runs a fresh
// Orchestrator. An empty TaxYear means ruleset.DefaultTaxYear.
func Calculate(ctx context.Context, req Request, opts ...Option) (*LiabilitySummary, error) {
	year := req.TaxYear
	if year == "" {
		year = ruleset.DefaultTaxYear
	}
	rules, err := ruleset.Load(year)
	if err != nil {
		return nil, err
	}
	elections, err := relief.ParseElections(req.Elections)
	if err != nil {
		return nil, err
	}
	return New(rules, elections, opts...).Run(ctx, req.Figures)
}

// =============================================================================
// BATCH - Independent runs in parallel
// =============================================================================

type BatchResult struct {
	Name    string
	Summary *LiabilitySummary
	Err     error
}

type batchJob struct {
	index int
	req   Request
}

// RunBatch runs independent requests on a bounded pool of workers. Runs share
// nothing but the read-only rule data. Results come back in request order.
// Requests not started before ctx is cancelled report ctx.Err().
func RunBatch(ctx context.Context, reqs []Request, opts ...Option) []BatchResult {
	results := make([]BatchResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	workers := runtime.GOMAXPROCS(0)
	if len(reqs) < workers {
		workers = len(reqs)
	}

	jobs := make(chan batchJob, len(reqs))
	for i, r := range reqs {
		jobs <- batchJob{index: i, req: r}
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := BatchResult{Name: job.req.Name}
				if err := ctx.Err(); err != nil {
					res.Err = err
				} else {
					res.Summary, res.Err = Calculate(ctx, job.req, opts...)
				}
				// Each index is written by exactly one worker.
				results[job.index] = res
			}
		}()
	}
	wg.Wait()
	return results
}
