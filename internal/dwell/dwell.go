// Package dwell holds pages open for a required duration. Waits are
// chunked so cancellation is prompt and progress stays visible in the log.
package dwell

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Await blocks for total, logging a heartbeat every interval. It returns
// early only when ctx is cancelled; nothing observed on the page shortens
// a dwell once started.
func Await(ctx context.Context, log *slog.Logger, total, interval time.Duration) error {
	if total <= 0 {
		return nil
	}
	if interval <= 0 {
		interval = total
	}
	start := time.Now()
	deadline := start.Add(total)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		log.Debug("dwelling", "elapsed", time.Since(start).Round(time.Second), "total", total)
		chunk := interval
		if remaining < chunk {
			chunk = remaining
		}
		timer := time.NewTimer(chunk)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// WithCompanion runs the dwell countdown alongside a companion routine
// (e.g. a poll that dismisses interaction popups). The companion's context
// is cancelled when the countdown ends, and both sides are joined before
// returning. A companion that stops early never shortens the dwell.
func WithCompanion(ctx context.Context, log *slog.Logger, total, interval time.Duration, companion func(ctx context.Context)) error {
	companionCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		companion(companionCtx)
	}()

	err := Await(ctx, log, total, interval)
	stop()
	wg.Wait()
	return err
}
