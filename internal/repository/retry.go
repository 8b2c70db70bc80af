package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// conflictBackoff is the pause before the single retry of a conflicted
// transaction.
const conflictBackoff = 20 * time.Millisecond

// RetryOnConflict runs fn and, when it fails with ErrConflict, runs it once
// more. Any other error is returned immediately. After the retry the last
// error is returned unwrapped.
func RetryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(1, retry.NewConstant(conflictBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}
