package redis

import (
	"context"
	"time"
)

// Cache operations retry a fixed number of times before a cache error
// surfaces to the caller.
const cacheAttempts = 3

const retryDelay = 100 * time.Millisecond

func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < cacheAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
