package transport

import (
	"math"
	"time"
)

// retryableStatuses are the response codes §4.1 names as transient:
// request-timeout/rate-limit/server-busy responses worth retrying.
var retryableStatuses = map[int]bool{
	408: true, // Request Timeout
	425: true, // Too Early
	429: true, // Too Many Requests
	500: true, // Internal Server Error
	502: true, // Bad Gateway
	503: true, // Service Unavailable
	504: true, // Gateway Timeout
}

func isRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// retryPolicy implements the exponential backoff described in §4.1: base
// 500ms, cap 30s, up to 4 retries (5 attempts total). A Retry-After header
// on a 429 raises the backoff floor for that attempt.
type retryPolicy struct {
	base       time.Duration
	cap        time.Duration
	maxRetries int
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{base: 500 * time.Millisecond, cap: 30 * time.Second, maxRetries: 4}
}

// shouldRetry decides whether attempt (1-indexed, the attempt that just
// finished) may be retried. Non-idempotent requests (task/event creation)
// are retried only on connection-level failure, never on an application
// 4xx/5xx the server actually answered with.
func (p retryPolicy) shouldRetry(idem Idempotency, err error, status int, attempt int) bool {
	if attempt > p.maxRetries {
		return false
	}
	if err != nil {
		return isConnectionError(err)
	}
	if idem == NonIdempotent {
		return false
	}
	return isRetryableStatus(status)
}

// backoff returns the wait before the next attempt, honoring any
// Retry-After floor from a 429 response.
func (p retryPolicy) backoff(attempt int, retryAfterFloor time.Duration) time.Duration {
	d := p.base * time.Duration(math.Pow(2, float64(attempt-1)))
	if d > p.cap {
		d = p.cap
	}
	if retryAfterFloor > d {
		d = retryAfterFloor
	}
	if d > p.cap {
		d = p.cap
	}
	return d
}

// isConnectionError reports whether err represents a connection or timeout
// failure. Do only ever produces a non-nil err for dial/TLS/read failures —
// a received application response (even a 5xx) comes back as a Response
// with err == nil — so any non-nil err here is connection-level by
// construction.
func isConnectionError(err error) bool {
	return err != nil
}
