package spacez

import (
	"context"
	"runtime"
	"strconv"
	"sync"

	kitlog "github.com/go-kit/log"
)

// SweepResult is the outcome of one run of a sweep.
type SweepResult struct {
	Config     Config
	Trajectory Trajectory
	Err        error
}

// Sweep propagates independent configurations in parallel on at most `workers` goroutines (all CPUs
// if workers is not positive). Results are returned in the order of the runs. A cancelled context
// prevents the runs which have not started yet from starting; those have the context error.
// Every run logs to the provided logger with its index in the sweep; a nil logger discards the logs.
func Sweep(ctx context.Context, runs []Config, workers int, logger kitlog.Logger) []SweepResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	logger = kitlog.NewSyncLogger(logger)
	results := make([]SweepResult, len(runs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = runOne(ctx, runs[i], kitlog.With(logger, "run", strconv.Itoa(i)))
			}
		}()
	}
	for i := range runs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func runOne(ctx context.Context, conf Config, logger kitlog.Logger) SweepResult {
	res := SweepResult{Config: conf}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	a, err := NewAscent(conf, ExportConfig{})
	if err != nil {
		res.Err = err
		return res
	}
	a.SetLogger(logger)
	res.Trajectory, res.Err = a.Propagate()
	return res
}
