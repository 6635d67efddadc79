package enrich

import "time"

// SetRetryDelay shortens the retry backoff so tests exercising the retry
// path stay fast.
func SetRetryDelay(d time.Duration) (restore func()) {
	previous := retryDelay
	retryDelay = d
	return func() { retryDelay = previous }
}
