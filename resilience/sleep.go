package resilience

import (
	"context"
	"time"
)

// Sleep suspends the caller for d or until ctx is done, whichever comes
// first. A non-positive d returns immediately without arming a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
