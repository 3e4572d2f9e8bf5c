package analysis

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Batch defaults
const (
	DefaultBatchSize       = 5
	DefaultParallelBatches = 3
	DefaultBatchPause      = 500 * time.Millisecond
)

// BatchOptions configures a BatchRunner
type BatchOptions struct {
	BatchSize       int
	ParallelBatches int
	Pause           time.Duration
	// RequestsPerSecond caps call starts across the runner; 0 disables the limit.
	RequestsPerSecond float64
}

// DefaultBatchOptions returns the default batching policy
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		BatchSize:       DefaultBatchSize,
		ParallelBatches: DefaultParallelBatches,
		Pause:           DefaultBatchPause,
	}
}

// SleepFunc pauses for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// BatchRunner runs per-item calls in groups of ParallelBatches batches of BatchSize items.
// Items within a group run concurrently; groups run one after another with a pause between them.
type BatchRunner struct {
	opts    BatchOptions
	limiter *rate.Limiter
	sleep   SleepFunc
}

// NewBatchRunner creates a runner. Zero-valued options fall back to defaults.
func NewBatchRunner(opts BatchOptions) *BatchRunner {
	defaults := DefaultBatchOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.ParallelBatches <= 0 {
		opts.ParallelBatches = defaults.ParallelBatches
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.BatchSize)
	}
	return &BatchRunner{opts: opts, limiter: limiter, sleep: sleepContext}
}

// WithSleep replaces the pause function used between groups
func (r *BatchRunner) WithSleep(sleep SleepFunc) *BatchRunner {
	r.sleep = sleep
	return r
}

// GroupSize is the number of items in flight at most
func (r *BatchRunner) GroupSize() int {
	return r.opts.BatchSize * r.opts.ParallelBatches
}

// Run calls fn for every index in [0,n). Per-item errors are returned by index and do not
// stop the run; the returned error is non-nil only when ctx ends first.
func (r *BatchRunner) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) ([]error, error) {
	itemErrs := make([]error, n)
	groupSize := r.GroupSize()

	for start := 0; start < n; start += groupSize {
		if start > 0 && r.opts.Pause > 0 {
			if err := r.sleep(ctx, r.opts.Pause); err != nil {
				return itemErrs, err
			}
		}

		end := min(start+groupSize, n)
		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if r.limiter != nil {
					if err := r.limiter.Wait(gCtx); err != nil {
						return err
					}
				}
				// Each goroutine owns its own index
				itemErrs[i] = fn(gCtx, i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return itemErrs, err
		}
		if err := ctx.Err(); err != nil {
			return itemErrs, err
		}
	}
	return itemErrs, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
