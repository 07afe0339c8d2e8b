package infra

import (
	"context"
	"math"
	"time"
)

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// CalculateBackoff returns the exponential delay for the given retry attempt,
// capped at one minute.
func CalculateBackoff(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if retry > 6 {
		return backoffMax
	}
	delay := backoffBase * time.Duration(math.Pow(2, float64(retry)))
	if delay > backoffMax {
		delay = backoffMax
	}
	return delay
}

// Sleep waits for d or until ctx is done. It reports false when ctx ended first.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
