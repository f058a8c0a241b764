package testunit

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"amsprobe/internal/simulation"
	"amsprobe/internal/vector"
)

// Job is one simulation of a batch.
type Job struct {
	Index  int
	Runner simulation.Runner
	Vector vector.Vector
	Dir    string
}

// Executor runs simulation jobs with bounded parallelism. Each job owns its
// run directory, so jobs share nothing but the semaphore.
type Executor struct {
	sem *semaphore.Weighted
}

// NewExecutor allows up to processes concurrent simulations.
func NewExecutor(processes int) *Executor {
	if processes < 1 {
		processes = 1
	}
	return &Executor{sem: semaphore.NewWeighted(int64(processes))}
}

// Run executes every job and returns the results in job order. Jobs not
// started before ctx is cancelled report a failed result.
func (e *Executor) Run(ctx context.Context, jobs []Job) ([]simulation.Result, error) {
	results := make([]simulation.Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range jobs {
		job := jobs[i]
		if err := e.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer e.sem.Release(1)
			results[i] = job.Runner.Run(gctx, job.Vector, job.Dir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
