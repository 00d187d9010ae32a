package reload

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrReloadTimeout marks an executor call that exceeded the configured
// deadline. Timeouts count as failures subject to the retry policy.
var ErrReloadTimeout = errors.New("reload timed out")

// Executor swaps the compiled module code for one route file. The
// implementation lives in the host; the coordinator only drives it.
type Executor interface {
	Reload(ctx context.Context, filePath string) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, filePath string) error

func (fn ExecutorFunc) Reload(ctx context.Context, filePath string) error {
	return fn(ctx, filePath)
}

// reloadOutcome is the result of driving one route file through the
// executor including retries.
type reloadOutcome struct {
	filePath string
	err      error
	retries  int
	duration time.Duration
}

// execute runs one reload with timeout and bounded retries. The
// reported duration covers every attempt so the stats average reflects
// the real latency cost of the reload, failures included.
func (coordinator *Coordinator) execute(ctx context.Context, filePath string) reloadOutcome {
	started := time.Now()
	var lastErr error

	for attempt := 0; attempt <= coordinator.maxRetries; attempt++ {
		lastErr = coordinator.attempt(ctx, filePath)
		if lastErr == nil {
			return reloadOutcome{
				filePath: filePath,
				retries:  attempt,
				duration: time.Since(started),
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	return reloadOutcome{
		filePath: filePath,
		err:      lastErr,
		retries:  coordinator.maxRetries,
		duration: time.Since(started),
	}
}

func (coordinator *Coordinator) attempt(ctx context.Context, filePath string) error {
	attemptCtx := ctx
	cancel := func() {}
	if coordinator.timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, coordinator.timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- coordinator.executor.Reload(attemptCtx, filePath)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrReloadTimeout, coordinator.timeout)
		}
		return err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrReloadTimeout, coordinator.timeout)
		}
		return attemptCtx.Err()
	}
}
