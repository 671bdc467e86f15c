// Package retry implements the one bounded fixed-delay retry policy used
// by store connection init, product loading and purchase restoration.
package retry

import (
	"context"
	"time"
)

// Policy is N attempts with a fixed delay between them.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Do runs fn up to p.Attempts times, waiting p.Delay between attempts.
// It returns nil on the first success and the last error on exhaustion.
// The context cancels both the wait and further attempts.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var last error
	for i := 0; i < p.attempts(); i++ {
		if i > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				return err
			}
		}
		if last = fn(ctx); last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return last
}

// DoValue runs fn up to p.Attempts times and returns the first accepted
// value. A (value, false) return from fn means "empty result, try again";
// on exhaustion the sentinel is returned with a nil error so callers
// degrade instead of failing.
func DoValue[T any](ctx context.Context, p Policy, sentinel T, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	for i := 0; i < p.attempts(); i++ {
		if i > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				return sentinel, err
			}
		}
		v, ok, err := fn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return sentinel, ctx.Err()
			}
			continue
		}
		if ok {
			return v, nil
		}
	}
	return sentinel, nil
}

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
