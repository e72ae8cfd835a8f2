// Package limiter paces calls against external catalog APIs: a steady
// request budget plus a hold-off window when a provider answers 429.
package limiter

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

func New(interval time.Duration, burst int) *Limiter {
	return &Limiter{
		lim: rate.NewLimiter(rate.Every(interval), burst),
	}
}

type Limiter struct {
	lim *rate.Limiter

	mu        sync.Mutex
	notBefore time.Time
}

// Wait blocks until the next request is allowed, honoring both the steady
// budget and any Retry-After hold.
func (lim *Limiter) Wait(ctx context.Context) error {
	lim.mu.Lock()
	notBefore := lim.notBefore
	lim.mu.Unlock()

	if wait := time.Until(notBefore); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lim.lim.Wait(ctx)
}

// Backoff holds all requests for the duration given by a Retry-After header
// value (whole seconds). An empty or malformed value holds for a minute.
func (lim *Limiter) Backoff(retryAfter string) time.Duration {
	wait := time.Minute
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		wait = time.Duration(seconds)*time.Second + time.Second
	}

	lim.mu.Lock()
	lim.notBefore = time.Now().Add(wait)
	lim.mu.Unlock()

	return wait
}

// HoldsUntil reports the current hold deadline, for logging.
func (lim *Limiter) HoldsUntil() (time.Time, bool) {
	lim.mu.Lock()
	defer lim.mu.Unlock()

	if time.Now().Before(lim.notBefore) {
		return lim.notBefore, true
	}
	return time.Time{}, false
}

func (lim *Limiter) String() string {
	return fmt.Sprintf("limiter(%v)", lim.lim.Limit())
}
