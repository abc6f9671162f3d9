package provision

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Poll calls check until it reports done, returns an error, maxAttempts
// checks have been made or ctx ends. The first check runs immediately and
// each later one after interval. maxAttempts <= 0 means only the context
// bounds the wait.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, check func(context.Context) (bool, error)) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return pollContextErr(err, attempt-1)
		}

		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if maxAttempts > 0 && attempt >= maxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrPollTimeout, attempt)
		}

		select {
		case <-ctx.Done():
			return pollContextErr(ctx.Err(), attempt)
		case <-time.After(interval):
		}
	}
}

func pollContextErr(err error, attempts int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %d attempts: %w", ErrPollTimeout, attempts, err)
	}
	return err
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
