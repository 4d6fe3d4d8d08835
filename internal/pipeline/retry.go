package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/chunkwise/internal/extract"
)

// MaxAttempts bounds the agent calls made for one task.
const MaxAttempts = 3

const maxBackoff = 30 * time.Second

// IsRetryable checks if an agent error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *extract.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := min(time.Duration(1<<uint(attempt))*time.Second, maxBackoff)
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}
