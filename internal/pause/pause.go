// Package pause models the named suspension points of a run: throttling
// delays and retry backoff. They are the only places cancellation is observed.
package pause

import (
	"context"
	"time"
)

// Func suspends for d or until ctx is done, returning ctx.Err() in the latter case.
type Func func(ctx context.Context, d time.Duration) error

// Sleep is the production Func backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OrSleep returns f, or Sleep when f is nil.
func OrSleep(f Func) Func {
	if f == nil {
		return Sleep
	}
	return f
}
