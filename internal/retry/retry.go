package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is wrapped around the last error when every attempt failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Do calls op until it returns nil, attempts calls have been made or ctx
// ends. Between calls it waits b.NextDelay. attempts <= 0 means no limit.
func Do(ctx context.Context, b Backoff, attempts int, op func(context.Context) error) error {
	var last error
	for i := 0; attempts <= 0 || i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return fmt.Errorf("%w (last error: %w)", err, last)
			}
			return err
		}

		if last = op(ctx); last == nil {
			return nil
		}
		if attempts > 0 && i == attempts-1 {
			break
		}

		timer := time.NewTimer(b.NextDelay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), last)
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: %w", ErrExhausted, last)
}
