package apply

import (
	"context"
	"time"
)

// RetryPolicy bounds the backoff loop for transient provider failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the control-plane throttling behaviour
// observed in practice: a handful of attempts with doubling delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    16 * time.Second,
	}
}

// delay returns the backoff before retry attempt n (0-based).
func (r RetryPolicy) delay(attempt int) time.Duration {
	d := r.BaseDelay << uint(attempt)
	if d > r.MaxDelay || d <= 0 {
		d = r.MaxDelay
	}
	return d
}

// sleep waits for d or until ctx is done, reporting whether the wait
// completed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
