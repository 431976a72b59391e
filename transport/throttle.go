package transport

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// UploadThrottle paces QVF uploads (Phase 0, §4.6) to relieve pressure on
// QSEoW's rate-limited upload endpoint. It is the one place outside the
// retry policy that ad-hoc sleeps are allowed (§9, "Rate-limit back-off").
type UploadThrottle struct {
	limiter *rate.Limiter
}

// NewUploadThrottle builds a throttle that allows one upload per interval,
// with a single-slot burst so the first upload never waits.
func NewUploadThrottle(interval time.Duration) *UploadThrottle {
	if interval <= 0 {
		return &UploadThrottle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &UploadThrottle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next upload slot is available or ctx is canceled.
func (t *UploadThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
