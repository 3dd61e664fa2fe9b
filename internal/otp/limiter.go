package otp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gymbook/internal/domain"
	"gymbook/internal/metrics"
)

var ErrTooManyRequests = errors.New("too many otp requests in the last hour")

// TooSoonError reports how long the caller has to wait before the next
// request is accepted.
type TooSoonError struct {
	SecondsRemaining int
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("otp requested too soon, retry in %d seconds", e.SecondsRemaining)
}

const slidingWindow = time.Hour

// RateLimiter throttles passcode issuance per identity with a sliding
// one-hour window. State is process-local by design: losing it on restart
// only resets the throttle.
type RateLimiter struct {
	cooldown time.Duration
	limit    int
	clock    domain.Clock

	records sync.Map // identity -> *identityRecord
}

type identityRecord struct {
	mu         sync.Mutex
	timestamps []time.Time
}

func NewRateLimiter(cooldown time.Duration, limit int, clock domain.Clock) *RateLimiter {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if limit <= 0 {
		limit = 5
	}
	return &RateLimiter{cooldown: cooldown, limit: limit, clock: clock}
}

// CheckAndRecord evaluates the window for identity and, when allowed,
// records the current request. Prune, evaluate and append run under the
// identity's lock so concurrent requests for the same identity cannot both
// claim the last slot.
func (l *RateLimiter) CheckAndRecord(identity string) error {
	v, _ := l.records.LoadOrStore(identity, &identityRecord{})
	rec := v.(*identityRecord)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	now := l.clock.Now()
	rec.prune(now)

	if n := len(rec.timestamps); n > 0 {
		since := now.Sub(rec.timestamps[n-1])
		if since < l.cooldown {
			metrics.IncOTPThrottled("too_soon")
			remaining := int((l.cooldown - since).Round(time.Second) / time.Second)
			if remaining < 1 {
				remaining = 1
			}
			return &TooSoonError{SecondsRemaining: remaining}
		}
	}

	if len(rec.timestamps) >= l.limit {
		metrics.IncOTPThrottled("too_many")
		return ErrTooManyRequests
	}

	rec.timestamps = append(rec.timestamps, now)
	return nil
}

// StartPruning drops idle identities in the background until ctx is done.
func (l *RateLimiter) StartPruning(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := l.clock.Now()
			l.records.Range(func(key, value interface{}) bool {
				rec := value.(*identityRecord)
				rec.mu.Lock()
				rec.prune(now)
				empty := len(rec.timestamps) == 0
				rec.mu.Unlock()
				if empty {
					l.records.Delete(key)
				}
				return true
			})
		}
	}
}

func (rec *identityRecord) prune(now time.Time) {
	cutoff := now.Add(-slidingWindow)
	kept := rec.timestamps[:0]
	for _, ts := range rec.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rec.timestamps = kept
}
