package usecase

import (
	"context"
	"errors"
)

// IsInterrupted reports whether err comes from a cancelled suspension point
// rather than a failed unit of work.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
