package race

import (
	"context"
	"time"
)

// Run executes fn and waits at most limit for it to finish. When the limit
// elapses first, Run returns nil and fn keeps running in the background with
// its context cancelled. The redirect path uses this to fire best-effort side
// effects without delaying navigation.
func Run(ctx context.Context, limit time.Duration, fn func(context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}

	runCtx, cancel := context.WithTimeout(ctx, limit)
	done := make(chan error, 1)
	go func() {
		done <- fn(runCtx)
		cancel()
	}()

	select {
	case err := <-done:
		cancel()
		return err
	case <-runCtx.Done():
		// The goroutine sends before it cancels, so when fn has already
		// finished its result is sitting in the buffer; return it instead
		// of reporting a timeout that never happened.
		select {
		case err := <-done:
			return err
		default:
			return nil
		}
	}
}
